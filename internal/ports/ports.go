package ports

import (
	"context"
	"time"

	"pension/internal/domain"
)

// BackgroundCheckService runs the external risk assessment. A nil result with
// a nil error means the provider had nothing to say about the applicant.
type BackgroundCheckService interface {
	Confirm(ctx context.Context, firstName, lastName, taxID string, dateOfBirth time.Time) (*domain.BackgroundCheckResults, error)
}

// ReferenceIdsManager mints the reference ID for a new account.
type ReferenceIdsManager interface {
	ObtainID(ctx context.Context, firstName, correlationToken, lastName, taxID string, dateOfBirth time.Time) (string, error)
}

// AccountOpeningEventPublisher announces opened accounts.
type AccountOpeningEventPublisher interface {
	Notify(ctx context.Context, referenceID string) error
}

// AccountOpener is what the HTTP layer calls.
type AccountOpener interface {
	OpenAccount(ctx context.Context, firstName, lastName, taxID string, dateOfBirth time.Time) (domain.AccountOpeningStatus, error)
}
