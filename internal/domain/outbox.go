package domain

import "time"

// OutboxStatus tracks delivery of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "pending"
	OutboxStatusFailed  OutboxStatus = "failed"
	OutboxStatusSent    OutboxStatus = "sent"
	OutboxStatusDead    OutboxStatus = "dead"
)

// OutboxMessage is an event recorded in the same unit of work as the state
// change that produced it, delivered later by the outbox worker.
type OutboxMessage struct {
	ID            string
	EventType     string
	AggregateID   string
	Payload       []byte
	Status        OutboxStatus
	Attempts      int
	NextAttemptAt time.Time
	LastError     *string
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}
