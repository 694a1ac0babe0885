package ports

import (
	"context"
	"time"

	"pension/internal/domain"
)

// AccountRepository persists opened accounts. Save reports whether a new
// record was written.
type AccountRepository interface {
	Save(ctx context.Context, referenceID, firstName, lastName, taxID string, dateOfBirth time.Time, results domain.BackgroundCheckResults) (bool, error)
}

// AccountFinder reads back persisted accounts.
type AccountFinder interface {
	FindAccount(ctx context.Context, referenceID string) (domain.Account, error)
}
