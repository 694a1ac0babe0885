package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"pension/internal/domain"
)

// Save inserts an opened account. A row already stored under the same
// reference ID is left alone and reported as not created.
func (db *DB) Save(ctx context.Context, referenceID, firstName, lastName, taxID string, dateOfBirth time.Time, results domain.BackgroundCheckResults) (bool, error) {
	tag, err := db.conn.Exec(ctx, `
        INSERT INTO accounts (reference_id, first_name, last_name, tax_id, date_of_birth, risk_profile, approved_limit)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (reference_id) DO NOTHING
    `, referenceID, firstName, lastName, taxID, dateOfBirth, results.RiskProfile, results.Limit)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return false, &QueryError{Op: "save account", Code: pgErr.Code, err: err}
		}
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// FindAccount loads an account by reference ID.
func (db *DB) FindAccount(ctx context.Context, referenceID string) (domain.Account, error) {
	var acc domain.Account
	err := db.conn.QueryRow(ctx, `
        SELECT reference_id, first_name, last_name, tax_id, date_of_birth, risk_profile, approved_limit, opened_at
        FROM accounts WHERE reference_id = $1
    `, referenceID).Scan(
		&acc.ReferenceID,
		&acc.Applicant.FirstName,
		&acc.Applicant.LastName,
		&acc.Applicant.TaxID,
		&acc.Applicant.DateOfBirth,
		&acc.RiskProfile,
		&acc.ApprovedLimit,
		&acc.OpenedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return acc, domain.ErrAccountNotFound
	}
	return acc, err
}

// QueryError carries the SQLSTATE of a failed statement.
type QueryError struct {
	Op   string
	Code string
	err  error
}

func (e *QueryError) Error() string { return e.Op + ": " + e.err.Error() }
func (e *QueryError) Unwrap() error { return e.err }
