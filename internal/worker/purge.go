package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/leave-service/internal/repository"
)

// PurgeJob deletes delivered outbox messages older than the retention.
type PurgeJob struct {
	repo      repository.OutboxRepository
	retention time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewPurgeJob builds the job.
func NewPurgeJob(repo repository.OutboxRepository, retention time.Duration, logger *zap.Logger) *PurgeJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PurgeJob{
		repo:      repo,
		retention: retention,
		logger:    logger.Named("outbox.purge"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run purges once.
func (j *PurgeJob) Run(ctx context.Context) (int64, error) {
	cutoff := j.now().Add(-j.retention)
	purged, err := j.repo.PurgeSent(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		j.logger.Info("purged outbox messages", zap.Int64("count", purged), zap.Time("cutoff", cutoff))
	}
	return purged, nil
}

// Schedule registers the job on a new cron scheduler. The caller starts and
// stops it.
func (j *PurgeJob) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if _, err := j.Run(ctx); err != nil {
			j.logger.Error("outbox purge failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
