package accountopening

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pension/internal/domain"
	"pension/internal/ports"
)

// Service decides whether an applicant gets an account. Collaborator errors
// are returned as-is.
type Service struct {
	checks    ports.BackgroundCheckService
	ids       ports.ReferenceIdsManager
	accounts  ports.AccountRepository
	publisher ports.AccountOpeningEventPublisher
	log       zerolog.Logger

	newToken func() string
}

type Option func(*Service)

// WithLogger sets the logger used for decision traces.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l.With().Str("component", "account_opening").Logger() }
}

// WithTokenSource replaces the per-call correlation token generator.
func WithTokenSource(fn func() string) Option {
	return func(s *Service) { s.newToken = fn }
}

func New(checks ports.BackgroundCheckService, ids ports.ReferenceIdsManager, accounts ports.AccountRepository, publisher ports.AccountOpeningEventPublisher, opts ...Option) *Service {
	s := &Service{
		checks:    checks,
		ids:       ids,
		accounts:  accounts,
		publisher: publisher,
		log:       zerolog.Nop(),
		newToken:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) OpenAccount(ctx context.Context, firstName, lastName, taxID string, dateOfBirth time.Time) (domain.AccountOpeningStatus, error) {
	results, err := s.checks.Confirm(ctx, firstName, lastName, taxID, dateOfBirth)
	if err != nil {
		return "", err
	}
	if results == nil || !results.Acceptable() {
		s.log.Debug().Bool("absent", results == nil).Msg("background check declined applicant")
		return domain.Declined, nil
	}

	token := s.newToken()
	referenceID, err := s.ids.ObtainID(ctx, firstName, token, lastName, taxID, dateOfBirth)
	if err != nil {
		return "", err
	}
	created, err := s.accounts.Save(ctx, referenceID, firstName, lastName, taxID, dateOfBirth, *results)
	if err != nil {
		return "", err
	}
	if err := s.publisher.Notify(ctx, referenceID); err != nil {
		return "", err
	}

	s.log.Debug().
		Str("reference_id", referenceID).
		Str("correlation_token", token).
		Bool("created", created).
		Msg("account opened")
	return domain.Opened, nil
}
