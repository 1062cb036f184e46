package memory

import (
	"context"
	"sort"
	"time"

	"github.com/spec-kit/leave-service/internal/domain"
	"github.com/spec-kit/leave-service/internal/repository"
)

type outboxRepo struct{ s *Store }

func (o outboxRepo) Enqueue(_ context.Context, msg *domain.OutboxMessage) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	msg.CreatedAt = o.s.now()
	if msg.Status == "" {
		msg.Status = domain.OutboxStatusPending
	}
	if msg.NextAttemptAt.IsZero() {
		msg.NextAttemptAt = msg.CreatedAt
	}
	o.s.created[msg.ID] = o.s.nextSeq()
	o.s.outbox[msg.ID] = *msg
	return nil
}

func (o outboxRepo) ListPending(_ context.Context, now time.Time, limit int) ([]domain.OutboxMessage, error) {
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()

	out := []domain.OutboxMessage{}
	for _, msg := range o.s.outbox {
		if msg.Status != domain.OutboxStatusPending && msg.Status != domain.OutboxStatusFailed {
			continue
		}
		if msg.NextAttemptAt.After(now) {
			continue
		}
		out = append(out, msg)
	}
	sort.Slice(out, func(i, j int) bool {
		return o.s.created[out[i].ID] < o.s.created[out[j].ID]
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (o outboxRepo) MarkSent(_ context.Context, id string, at time.Time) error {
	return o.update(id, func(msg *domain.OutboxMessage) {
		msg.Status = domain.OutboxStatusSent
		msg.ProcessedAt = &at
		msg.LastError = nil
	})
}

func (o outboxRepo) MarkFailed(_ context.Context, id string, reason string, retryAt time.Time) error {
	return o.update(id, func(msg *domain.OutboxMessage) {
		msg.Status = domain.OutboxStatusFailed
		msg.Attempts++
		msg.LastError = &reason
		msg.NextAttemptAt = retryAt
	})
}

func (o outboxRepo) MarkDead(_ context.Context, id string, reason string) error {
	return o.update(id, func(msg *domain.OutboxMessage) {
		msg.Status = domain.OutboxStatusDead
		msg.Attempts++
		msg.LastError = &reason
	})
}

func (o outboxRepo) PurgeSent(_ context.Context, before time.Time) (int64, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	var purged int64
	for id, msg := range o.s.outbox {
		if msg.Status == domain.OutboxStatusSent && msg.ProcessedAt != nil && msg.ProcessedAt.Before(before) {
			delete(o.s.outbox, id)
			delete(o.s.created, id)
			purged++
		}
	}
	return purged, nil
}

func (o outboxRepo) update(id string, fn func(*domain.OutboxMessage)) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	msg, ok := o.s.outbox[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&msg)
	o.s.outbox[id] = msg
	return nil
}
