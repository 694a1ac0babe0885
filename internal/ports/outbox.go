package ports

import (
	"context"

	"pension/internal/domain"
)

// OutboxRepository supports claiming and settling pending account events.
type OutboxRepository interface {
	ClaimNext(ctx context.Context) (event domain.OutboxEvent, found bool, err error)
	MarkDelivered(ctx context.Context, eventID string) error
	Requeue(ctx context.Context, eventID string, reason string) error
	MarkFailed(ctx context.Context, eventID string, reason string) error
}
