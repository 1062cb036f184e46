package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/leave-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventLeaveRequestSubmitted EventType = "leave_request.submitted"
	EventLeaveRequestDecided   EventType = "leave_request.decided"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID          string          `json:"id"`
	Type        EventType       `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	ActorID     string          `json:"actor_id"`
	Timestamp   time.Time       `json:"timestamp"`
	Payload     json.RawMessage `json:"payload"`
}

// New builds an event with a fresh id and an encoded payload.
func New(eventType EventType, aggregateID, actorID string, at time.Time, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		AggregateID: aggregateID,
		ActorID:     actorID,
		Timestamp:   at.UTC(),
		Payload:     raw,
	}, nil
}

// Decode unmarshals the payload into dst.
func (e Event) Decode(dst any) error {
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// ToOutbox wraps the event for the outbox table.
func (e Event) ToOutbox() (*domain.OutboxMessage, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return &domain.OutboxMessage{
		ID:            e.ID,
		EventType:     string(e.Type),
		AggregateID:   e.AggregateID,
		Payload:       raw,
		Status:        domain.OutboxStatusPending,
		NextAttemptAt: e.Timestamp,
	}, nil
}

// FromOutbox restores the event stored in msg.
func FromOutbox(msg domain.OutboxMessage) (Event, error) {
	var e Event
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		return Event{}, fmt.Errorf("decode outbox message %s: %w", msg.ID, err)
	}
	return e, nil
}

// LeaveRequestSubmittedPayload is carried by EventLeaveRequestSubmitted.
type LeaveRequestSubmittedPayload struct {
	RequestID     string           `json:"request_id"`
	EmployeeID    string           `json:"employee_id"`
	EmployeeName  string           `json:"employee_name"`
	EmployeeEmail string           `json:"employee_email"`
	LeaveType     domain.LeaveType `json:"leave_type"`
	StartDate     string           `json:"start_date"`
	EndDate       string           `json:"end_date"`
	LeaveDays     int              `json:"leave_days"`
	Reason        string           `json:"reason"`
}

// LeaveRequestDecidedPayload is carried by EventLeaveRequestDecided.
type LeaveRequestDecidedPayload struct {
	RequestID     string             `json:"request_id"`
	EmployeeID    string             `json:"employee_id"`
	EmployeeName  string             `json:"employee_name"`
	EmployeeEmail string             `json:"employee_email"`
	LeaveType     domain.LeaveType   `json:"leave_type"`
	StartDate     string             `json:"start_date"`
	EndDate       string             `json:"end_date"`
	LeaveDays     int                `json:"leave_days"`
	Status        domain.LeaveStatus `json:"status"`
	DecidedBy     string             `json:"decided_by"`
	RemainingDays int                `json:"remaining_days"`
}
