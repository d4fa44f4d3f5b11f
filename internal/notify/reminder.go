package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/medicab/scheduler/internal/domain/appointment"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Reminder periodically sweeps upcoming appointments and publishes one
// reminder per appointment through the notifier.
type Reminder struct {
	store    appointment.Store
	notifier Notifier
	log      *zap.Logger
	sentCtr  prometheus.Counter
	interval time.Duration
	window   time.Duration

	sent map[uuid.UUID]time.Time
}

func NewReminder(store appointment.Store, notifier Notifier, interval, window time.Duration, sentCtr prometheus.Counter, log *zap.Logger) *Reminder {
	return &Reminder{
		store:    store,
		notifier: notifier,
		log:      log,
		sentCtr:  sentCtr,
		interval: interval,
		window:   window,
		sent:     make(map[uuid.UUID]time.Time),
	}
}

// Run blocks until ctx is cancelled.
func (r *Reminder) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reminder) sweep(ctx context.Context) {
	upcoming, err := r.store.FindUpcoming(ctx, r.window)
	if err != nil {
		r.log.Error("reminder sweep failed", zap.Error(err))
		return
	}

	for _, a := range upcoming {
		if _, already := r.sent[a.ID]; already {
			continue
		}
		r.notifier.Publish(ctx, NewMessage(EventReminder, a))
		if r.sentCtr != nil {
			r.sentCtr.Inc()
		}
		r.sent[a.ID] = a.EndsAt()
	}

	// Prune entries for appointments already in the past.
	now := time.Now()
	for id, endsAt := range r.sent {
		if endsAt.Before(now) {
			delete(r.sent, id)
		}
	}

	r.log.Debug("reminder sweep completed", zap.Int("upcoming", len(upcoming)))
}
