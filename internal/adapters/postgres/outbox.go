package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"pension/internal/domain"
)

// ErrNotFound is returned when settling an event that does not exist.
var ErrNotFound = errors.New("not found")

// DefaultLease is how long a running event may go unsettled before another
// relay worker may claim it again.
const DefaultLease = 5 * time.Minute

// Outbox stores account notifications for the relay workers. It satisfies
// ports.AccountOpeningEventPublisher and ports.OutboxRepository.
type Outbox struct {
	db    *DB
	lease time.Duration
}

// Outbox returns the event outbox. A non-positive lease means DefaultLease.
func (db *DB) Outbox(lease time.Duration) *Outbox {
	if lease <= 0 {
		lease = DefaultLease
	}
	return &Outbox{db: db, lease: lease}
}

// Notify queues an account.opened event.
func (o *Outbox) Notify(ctx context.Context, referenceID string) error {
	_, err := o.db.conn.Exec(ctx, `
        INSERT INTO account_events (id, reference_id, status) VALUES ($1, $2, 'queued')
    `, uuid.New(), referenceID)
	return err
}

// ClaimNext selects the oldest queued event using SKIP LOCKED and marks it
// running. Running events whose lease has expired are claimed again.
func (o *Outbox) ClaimNext(ctx context.Context) (ev domain.OutboxEvent, found bool, err error) {
	tx, err := o.db.conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return ev, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	err = tx.QueryRow(ctx, `
        SELECT id, reference_id, attempts, queued_at FROM account_events
        WHERE status = 'queued'
           OR (status = 'running' AND started_at < now() - make_interval(secs => $1))
        ORDER BY queued_at
        FOR UPDATE SKIP LOCKED
        LIMIT 1
    `, o.lease.Seconds()).Scan(&ev.ID, &ev.ReferenceID, &ev.Attempts, &ev.QueuedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ev, false, nil
	}
	if err != nil {
		return ev, false, err
	}

	if _, err = tx.Exec(ctx, `
        UPDATE account_events SET status='running', started_at=now(), attempts=attempts+1 WHERE id=$1
    `, ev.ID); err != nil {
		return ev, false, err
	}
	ev.Attempts++
	ev.Status = "running"
	return ev, true, nil
}

func (o *Outbox) MarkDelivered(ctx context.Context, eventID string) error {
	return o.settle(ctx, `UPDATE account_events SET status='delivered', finished_at=now(), last_error=NULL WHERE id=$1`, eventID)
}

// Requeue puts a running event back in the queue after a failed delivery.
func (o *Outbox) Requeue(ctx context.Context, eventID string, reason string) error {
	return o.settle(ctx, `UPDATE account_events SET status='queued', last_error=$2 WHERE id=$1`, eventID, reason)
}

func (o *Outbox) MarkFailed(ctx context.Context, eventID string, reason string) error {
	return o.settle(ctx, `UPDATE account_events SET status='failed', finished_at=now(), last_error=$2 WHERE id=$1`, eventID, reason)
}

func (o *Outbox) settle(ctx context.Context, sql string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tag, err := o.db.conn.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
