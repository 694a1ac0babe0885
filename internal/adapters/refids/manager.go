package refids

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrMissingCorrelationToken is returned when ObtainID gets an empty token.
var ErrMissingCorrelationToken = errors.New("correlation token is required")

var namespace = uuid.MustParse("6f0c8a51-3a3e-4d0e-9b8e-6a2d2d5b1c47")

const prefix = "ACC-"

// Manager derives reference IDs from the applicant and the caller's
// correlation token, so a retried call with the same token gets the same ID.
type Manager struct{}

func New() *Manager { return &Manager{} }

func (m *Manager) ObtainID(ctx context.Context, firstName, correlationToken, lastName, taxID string, dateOfBirth time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if correlationToken == "" {
		return "", ErrMissingCorrelationToken
	}
	name := strings.Join([]string{
		firstName,
		correlationToken,
		lastName,
		taxID,
		dateOfBirth.Format("2006-01-02"),
	}, "\x1f")
	return prefix + strings.ToUpper(uuid.NewSHA1(namespace, []byte(name)).String()), nil
}
