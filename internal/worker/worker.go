package worker

import (
	"context"
	"time"

	"github.com/Domenick1991/skybook/internal/kafka"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type HoldReaper interface {
	ReapExpiredHolds(ctx context.Context, limit int) (int, error)
}

type SurgeDecayer interface {
	DecayIdle(ctx context.Context) ([]int64, error)
}

type EventConsumer interface {
	Consume(ctx context.Context, handler func(context.Context, kafka.Event) error) error
}

type Notifier interface {
	Send(ctx context.Context, event kafka.Event) error
}

// Worker runs the background sweeps: expired holds go back to FREE, idle surges decay to
// base price, and notification events are delivered.
type Worker struct {
	holds         HoldReaper
	surges        SurgeDecayer
	consumer      EventConsumer
	notifier      Notifier
	holdInterval  time.Duration
	surgeInterval time.Duration
	consumerRetry time.Duration
	batchSize     int
	log           *zap.Logger
}

type Option func(*Worker)

func WithConsumer(c EventConsumer, n Notifier) Option {
	return func(w *Worker) {
		w.consumer = c
		w.notifier = n
	}
}

func WithHoldInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.holdInterval = d
		}
	}
}

func WithSurgeInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.surgeInterval = d
		}
	}
}

// WithConsumerRetry sets the pause before the notification consumer is restarted after a failure.
func WithConsumerRetry(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.consumerRetry = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(w *Worker) {
		w.log = log
	}
}

func New(holds HoldReaper, surges SurgeDecayer, opts ...Option) *Worker {
	w := &Worker{
		holds:         holds,
		surges:        surges,
		holdInterval:  30 * time.Second,
		surgeInterval: time.Minute,
		consumerRetry: 5 * time.Second,
		batchSize:     100,
		log:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run blocks until ctx is done. A failing notification consumer is restarted and never stops the sweeps.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		w.tick(ctx, w.holdInterval, func(ctx context.Context) {
			if _, err := w.SweepHolds(ctx); err != nil {
				w.log.Error("hold sweep failed", zap.Error(err))
			}
		})
		return nil
	})

	g.Go(func() error {
		w.tick(ctx, w.surgeInterval, func(ctx context.Context) {
			if _, err := w.SweepSurges(ctx); err != nil {
				w.log.Error("surge sweep failed", zap.Error(err))
			}
		})
		return nil
	})

	if w.consumer != nil && w.notifier != nil {
		g.Go(func() error {
			w.consume(ctx)
			return nil
		})
	}

	return g.Wait()
}

func (w *Worker) consume(ctx context.Context) {
	for {
		err := w.consumer.Consume(ctx, w.notifier.Send)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			w.log.Error("notification consumer failed, restarting", zap.Error(err), zap.Duration("retry_in", w.consumerRetry))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.consumerRetry):
		}
	}
}

func (w *Worker) tick(ctx context.Context, every time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// SweepHolds releases expired holds batch by batch until a batch comes back short.
func (w *Worker) SweepHolds(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := w.holds.ReapExpiredHolds(ctx, w.batchSize)
		total += n
		if err != nil {
			return total, err
		}
		if n < w.batchSize || ctx.Err() != nil {
			break
		}
	}
	if total > 0 {
		w.log.Info("expired holds released", zap.Int("count", total))
	}
	return total, nil
}

func (w *Worker) SweepSurges(ctx context.Context) ([]int64, error) {
	ids, err := w.surges.DecayIdle(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		w.log.Info("surge prices reset", zap.Int64s("flight_ids", ids))
	}
	return ids, nil
}
