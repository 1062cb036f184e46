package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/leave-service/internal/events"
	"github.com/spec-kit/leave-service/internal/repository"
)

// OutboxConfig tunes the polling loop.
type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

// OutboxWorker drains the outbox into the event dispatcher.
type OutboxWorker struct {
	repo       repository.OutboxRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        OutboxConfig
	now        func() time.Time
}

// NewOutboxWorker builds a worker. Zero config values take defaults.
func NewOutboxWorker(repo repository.OutboxRepository, dispatcher events.Dispatcher, logger *zap.Logger, cfg OutboxConfig) *OutboxWorker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutboxWorker{
		repo:       repo,
		dispatcher: dispatcher,
		logger:     logger.Named("outbox.worker"),
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run polls until ctx is cancelled.
func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.logger.Info("outbox worker started", zap.Duration("poll_interval", w.cfg.PollInterval))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("outbox worker stopped")
			return nil
		case <-ticker.C:
			if _, err := w.ProcessPending(ctx); err != nil {
				w.logger.Error("process outbox failed", zap.Error(err))
			}
		}
	}
}

// ProcessPending delivers one batch and returns how many were sent.
func (w *OutboxWorker) ProcessPending(ctx context.Context) (int, error) {
	messages, err := w.repo.ListPending(ctx, w.now(), w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(messages) == 0 {
		return 0, nil
	}
	w.logger.Debug("processing outbox batch", zap.Int("count", len(messages)))

	sent := 0
	for _, msg := range messages {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}

		event, err := events.FromOutbox(msg)
		if err != nil {
			w.logger.Error("undecodable outbox message", zap.String("id", msg.ID), zap.Error(err))
			if markErr := w.repo.MarkDead(ctx, msg.ID, err.Error()); markErr != nil {
				w.logger.Error("mark outbox dead failed", zap.String("id", msg.ID), zap.Error(markErr))
			}
			continue
		}

		if err := w.dispatcher.Publish(ctx, event); err != nil {
			w.fail(ctx, msg.ID, msg.Attempts, err)
			continue
		}

		if err := w.repo.MarkSent(ctx, msg.ID, w.now()); err != nil {
			w.logger.Error("mark outbox sent failed", zap.String("id", msg.ID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent, nil
}

func (w *OutboxWorker) fail(ctx context.Context, id string, attempts int, cause error) {
	if attempts+1 >= w.cfg.MaxAttempts {
		w.logger.Error("outbox message dead", zap.String("id", id), zap.Int("attempts", attempts+1), zap.Error(cause))
		if err := w.repo.MarkDead(ctx, id, cause.Error()); err != nil {
			w.logger.Error("mark outbox dead failed", zap.String("id", id), zap.Error(err))
		}
		return
	}
	retryAt := w.now().Add(Backoff(attempts))
	w.logger.Warn("outbox delivery failed",
		zap.String("id", id),
		zap.Int("attempts", attempts+1),
		zap.Time("retry_at", retryAt),
		zap.Error(cause))
	if err := w.repo.MarkFailed(ctx, id, cause.Error(), retryAt); err != nil {
		w.logger.Error("mark outbox failed failed", zap.String("id", id), zap.Error(err))
	}
}

// Backoff grows linearly in 15 second steps and caps at 150 seconds.
func Backoff(attempts int) time.Duration {
	step := attempts + 1
	if step > 10 {
		step = 10
	}
	return time.Duration(step) * 15 * time.Second
}
