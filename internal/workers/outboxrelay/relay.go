// Package outboxrelay forwards queued account events to a broker.
package outboxrelay

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"pension/internal/domain"
	"pension/internal/ports"
)

type Relay struct {
	Outbox      ports.OutboxRepository
	Publisher   ports.AccountOpeningEventPublisher
	MaxAttempts int
	Log         zerolog.Logger
}

// Run starts worker goroutines that claim events and deliver them. It
// returns immediately; everything stops when ctx is cancelled.
func (r Relay) Run(ctx context.Context, concurrency int, pollInterval time.Duration) {
	if concurrency < 1 {
		return
	}
	eventsCh := make(chan domain.OutboxEvent, concurrency)

	// dispatcher loop
	go func() {
		defer close(eventsCh)
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for {
					ev, found, err := r.Outbox.ClaimNext(ctx)
					if err != nil {
						if ctx.Err() == nil {
							r.Log.Error().Err(err).Msg("outbox claim failed")
						}
						break
					}
					if !found {
						break
					}
					select {
					case eventsCh <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	for i := 0; i < concurrency; i++ {
		go func(idx int) {
			for ev := range eventsCh {
				if err := r.deliver(ctx, ev); err != nil {
					r.Log.Error().Err(err).Int("worker", idx).Str("event_id", ev.ID).Msg("outbox settle failed")
				}
			}
		}(i)
	}
}

// DeliverOne claims and delivers a single event synchronously. It reports
// whether an event was found.
func (r Relay) DeliverOne(ctx context.Context) (bool, error) {
	ev, found, err := r.Outbox.ClaimNext(ctx)
	if err != nil || !found {
		return false, err
	}
	return true, r.deliver(ctx, ev)
}

// deliver publishes one claimed event and settles it. Only settle errors are
// returned; publish errors are recorded on the row. Settling outlives ctx so a
// claimed row is never left running on shutdown.
func (r Relay) deliver(ctx context.Context, ev domain.OutboxEvent) error {
	settleCtx := context.WithoutCancel(ctx)
	if ctx.Err() != nil {
		return r.Outbox.Requeue(settleCtx, ev.ID, "relay stopped before delivery")
	}
	err := r.Publisher.Notify(ctx, ev.ReferenceID)
	if err == nil {
		return r.Outbox.MarkDelivered(settleCtx, ev.ID)
	}
	log := r.Log.Warn().Err(err).Str("event_id", ev.ID).Str("reference_id", ev.ReferenceID).Int("attempts", ev.Attempts)
	if ctx.Err() != nil {
		log.Msg("event delivery interrupted; requeued")
		return r.Outbox.Requeue(settleCtx, ev.ID, err.Error())
	}
	if ev.Attempts >= r.maxAttempts() {
		log.Msg("event delivery failed permanently")
		return r.Outbox.MarkFailed(settleCtx, ev.ID, err.Error())
	}
	log.Msg("event delivery failed; requeued")
	return r.Outbox.Requeue(settleCtx, ev.ID, err.Error())
}

func (r Relay) maxAttempts() int {
	if r.MaxAttempts < 1 {
		return 1
	}
	return r.MaxAttempts
}
