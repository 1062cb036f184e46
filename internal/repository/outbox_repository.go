package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/leave-service/internal/domain"
)

type outboxRepository struct {
	db querier
}

// NewOutboxRepository builds repository.
func NewOutboxRepository(pool *pgxpool.Pool) OutboxRepository {
	return &outboxRepository{db: pool}
}

func (r *outboxRepository) Enqueue(ctx context.Context, msg *domain.OutboxMessage) error {
	const query = `
        INSERT INTO outbox_messages (id, event_type, aggregate_id, payload, status, attempts, next_attempt_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at`
	return r.db.QueryRow(ctx, query,
		msg.ID,
		msg.EventType,
		msg.AggregateID,
		msg.Payload,
		msg.Status,
		msg.Attempts,
		msg.NextAttemptAt,
	).Scan(&msg.CreatedAt)
}

func (r *outboxRepository) ListPending(ctx context.Context, now time.Time, limit int) ([]domain.OutboxMessage, error) {
	const query = `
        SELECT id, event_type, aggregate_id, payload, status, attempts, next_attempt_at, last_error, created_at, processed_at
        FROM outbox_messages
        WHERE status IN ($1, $2) AND next_attempt_at <= $3
        ORDER BY created_at ASC
        LIMIT $4`
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, query, domain.OutboxStatusPending, domain.OutboxStatusFailed, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.OutboxMessage, 0, limit)
	for rows.Next() {
		var msg domain.OutboxMessage
		if err := rows.Scan(
			&msg.ID,
			&msg.EventType,
			&msg.AggregateID,
			&msg.Payload,
			&msg.Status,
			&msg.Attempts,
			&msg.NextAttemptAt,
			&msg.LastError,
			&msg.CreatedAt,
			&msg.ProcessedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}

func (r *outboxRepository) MarkSent(ctx context.Context, id string, at time.Time) error {
	const query = `
        UPDATE outbox_messages SET status=$2, processed_at=$3, last_error=NULL
        WHERE id=$1`
	return r.exec(ctx, query, id, domain.OutboxStatusSent, at)
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id string, reason string, retryAt time.Time) error {
	const query = `
        UPDATE outbox_messages SET status=$2, attempts=attempts+1, last_error=LEFT($3, 500), next_attempt_at=$4
        WHERE id=$1`
	return r.exec(ctx, query, id, domain.OutboxStatusFailed, reason, retryAt)
}

func (r *outboxRepository) MarkDead(ctx context.Context, id string, reason string) error {
	const query = `
        UPDATE outbox_messages SET status=$2, attempts=attempts+1, last_error=LEFT($3, 500)
        WHERE id=$1`
	return r.exec(ctx, query, id, domain.OutboxStatusDead, reason)
}

func (r *outboxRepository) PurgeSent(ctx context.Context, before time.Time) (int64, error) {
	cmd, err := r.db.Exec(ctx, `DELETE FROM outbox_messages WHERE status=$1 AND processed_at < $2`, domain.OutboxStatusSent, before)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *outboxRepository) exec(ctx context.Context, query string, args ...any) error {
	cmd, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
