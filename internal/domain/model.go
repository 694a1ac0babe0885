package domain

import (
	"errors"
	"time"
)

// Core domain values. The service never mutates them after construction.

// UnacceptableRiskProfile is the risk label a background check returns for
// applicants that must not be given an account.
const UnacceptableRiskProfile = "UNACCEPTABLE_RISK_PROFILE"

type BackgroundCheckResults struct {
	RiskProfile string
	Limit       int64
}

// Acceptable reports whether the check allows an account to be opened.
func (r BackgroundCheckResults) Acceptable() bool {
	return r.RiskProfile != UnacceptableRiskProfile
}

type AccountOpeningStatus string

const (
	Opened   AccountOpeningStatus = "OPENED"
	Declined AccountOpeningStatus = "DECLINED"
)

// ErrAccountNotFound is returned by lookups for unknown reference IDs.
var ErrAccountNotFound = errors.New("account not found")

type Applicant struct {
	FirstName   string
	LastName    string
	TaxID       string
	DateOfBirth time.Time
}

// Account is the persisted shape of an opened account.
type Account struct {
	ReferenceID   string
	Applicant     Applicant
	RiskProfile   string
	ApprovedLimit int64
	OpenedAt      time.Time
}

const EventAccountOpened = "account.opened"

type AccountOpenedEvent struct {
	ReferenceID string    `json:"reference_id"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Event is the envelope every broker publisher writes.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

func NewAccountOpened(referenceID string, at time.Time) Event {
	at = at.UTC()
	return Event{
		Type:      EventAccountOpened,
		Timestamp: at,
		Data:      AccountOpenedEvent{ReferenceID: referenceID, OccurredAt: at},
	}
}

type OutboxEvent struct {
	ID          string
	ReferenceID string
	Status      string // queued|running|delivered|failed
	Attempts    int
	QueuedAt    time.Time
}
