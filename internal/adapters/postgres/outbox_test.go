package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	claimSelect = regexp.QuoteMeta(`WHERE status = 'queued'`) + `\s+` +
		regexp.QuoteMeta(`OR (status = 'running' AND started_at < now() - make_interval(secs => $1))`) + `\s+` +
		`ORDER BY queued_at\s+FOR UPDATE SKIP LOCKED\s+LIMIT 1`
	claimUpdate = regexp.QuoteMeta(`UPDATE account_events SET status='running', started_at=now(), attempts=attempts+1 WHERE id=$1`)
	eventCols   = []string{"id", "reference_id", "attempts", "queued_at"}
)

func TestOutbox_DefaultLease(t *testing.T) {
	db, _ := newMockDB(t)

	assert.Equal(t, DefaultLease, db.Outbox(0).lease)
	assert.Equal(t, time.Minute, db.Outbox(time.Minute).lease)
}

func TestOutbox_NotifyQueuesEvent(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO account_events (id, reference_id, status) VALUES ($1, $2, 'queued')`)).
		WithArgs(pgxmock.AnyArg(), "ACC-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, db.Outbox(0).Notify(context.Background(), "ACC-1"))
}

func TestOutbox_ClaimNextMarksRunningAndBumpsAttempts(t *testing.T) {
	db, mock := newMockDB(t)
	queued := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectQuery(claimSelect).
		WithArgs(float64(90)).
		WillReturnRows(pgxmock.NewRows(eventCols).AddRow("e1", "ACC-1", 2, queued))
	mock.ExpectExec(claimUpdate).WithArgs("e1").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	ev, found, err := db.Outbox(90*time.Second).ClaimNext(context.Background())

	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "e1", ev.ID)
	assert.Equal(t, "ACC-1", ev.ReferenceID)
	assert.Equal(t, 3, ev.Attempts)
	assert.Equal(t, "running", ev.Status)
	assert.Equal(t, queued, ev.QueuedAt)
}

func TestOutbox_ClaimNextReclaimsExpiredLease(t *testing.T) {
	db, mock := newMockDB(t)
	// a stranded running row is returned by the same query once its lease expired
	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectQuery(claimSelect).
		WithArgs(DefaultLease.Seconds()).
		WillReturnRows(pgxmock.NewRows(eventCols).AddRow("e7", "ACC-7", 1, time.Now()))
	mock.ExpectExec(claimUpdate).WithArgs("e7").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	ev, found, err := db.Outbox(0).ClaimNext(context.Background())

	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 2, ev.Attempts)
}

func TestOutbox_ClaimNextEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectQuery(claimSelect).WithArgs(DefaultLease.Seconds()).WillReturnRows(pgxmock.NewRows(eventCols))
	mock.ExpectCommit()

	_, found, err := db.Outbox(0).ClaimNext(context.Background())

	require.NoError(t, err)
	assert.False(t, found)
}

func TestOutbox_ClaimNextRollsBackOnUpdateError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectQuery(claimSelect).
		WithArgs(DefaultLease.Seconds()).
		WillReturnRows(pgxmock.NewRows(eventCols).AddRow("e1", "ACC-1", 0, time.Now()))
	mock.ExpectExec(claimUpdate).WithArgs("e1").WillReturnError(errors.New("conn reset"))
	mock.ExpectRollback()

	_, found, err := db.Outbox(0).ClaimNext(context.Background())

	assert.EqualError(t, err, "conn reset")
	assert.False(t, found)
}

func TestOutbox_SettleTransitions(t *testing.T) {
	cases := []struct {
		name   string
		sql    string
		args   []any
		settle func(o *Outbox) error
	}{
		{
			name:   "delivered",
			sql:    `UPDATE account_events SET status='delivered', finished_at=now(), last_error=NULL WHERE id=$1`,
			args:   []any{"e1"},
			settle: func(o *Outbox) error { return o.MarkDelivered(context.Background(), "e1") },
		},
		{
			name:   "requeued",
			sql:    `UPDATE account_events SET status='queued', last_error=$2 WHERE id=$1`,
			args:   []any{"e1", "nack"},
			settle: func(o *Outbox) error { return o.Requeue(context.Background(), "e1", "nack") },
		},
		{
			name:   "failed",
			sql:    `UPDATE account_events SET status='failed', finished_at=now(), last_error=$2 WHERE id=$1`,
			args:   []any{"e1", "nack"},
			settle: func(o *Outbox) error { return o.MarkFailed(context.Background(), "e1", "nack") },
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			mock.ExpectExec(regexp.QuoteMeta(tc.sql)).WithArgs(tc.args...).WillReturnResult(pgxmock.NewResult("UPDATE", 1))

			assert.NoError(t, tc.settle(db.Outbox(0)))
		})
	}
}

func TestOutbox_SettleMissingEventIsNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`UPDATE account_events SET status='delivered'`).WithArgs("gone").WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := db.Outbox(0).MarkDelivered(context.Background(), "gone")

	assert.ErrorIs(t, err, ErrNotFound)
}
