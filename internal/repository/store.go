package repository

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/leave-service/internal/domain"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a conditional write matched no row.
	ErrConflict = errors.New("conditional update conflict")
)

// EmployeeRepository reads and creates directory records.
type EmployeeRepository interface {
	Create(ctx context.Context, employee *domain.Employee) error
	GetByID(ctx context.Context, id string) (*domain.Employee, error)
	GetByEmail(ctx context.Context, email string) (*domain.Employee, error)
	NextEmployeeCode(ctx context.Context) (string, error)
}

// BalanceRepository is the storage behind the leave ledger.
type BalanceRepository interface {
	Balance(ctx context.Context, employeeID string) (int, error)
	// DebitIfSufficient subtracts days when the balance covers them and
	// reports whether it did. The check and the write are one operation.
	DebitIfSufficient(ctx context.Context, employeeID string, days int) (bool, error)
}

// LeaveRequestRepository persists leave requests. There is no delete.
type LeaveRequestRepository interface {
	Create(ctx context.Context, request *domain.LeaveRequest) error
	GetByID(ctx context.Context, id string) (*domain.LeaveRequest, error)
	ListByEmployee(ctx context.Context, employeeID string) ([]domain.LeaveRequest, error)
	ListAll(ctx context.Context) ([]domain.LeaveRequest, error)
	// Transition moves a request from one status to another and returns
	// ErrConflict when the stored status is no longer from.
	Transition(ctx context.Context, id string, from, to domain.LeaveStatus, decidedBy string, decidedAt time.Time) error
}

// OutboxWriter records events for later delivery.
type OutboxWriter interface {
	Enqueue(ctx context.Context, msg *domain.OutboxMessage) error
}

// OutboxRepository is the worker-side view of the outbox.
type OutboxRepository interface {
	OutboxWriter
	ListPending(ctx context.Context, now time.Time, limit int) ([]domain.OutboxMessage, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, reason string, retryAt time.Time) error
	MarkDead(ctx context.Context, id string, reason string) error
	PurgeSent(ctx context.Context, before time.Time) (int64, error)
}

// Tx exposes the repositories bound to a unit of work.
type Tx interface {
	Balances() BalanceRepository
	LeaveRequests() LeaveRequestRepository
	Outbox() OutboxWriter
}

// Store bundles repositories and the employee-scoped unit of work.
type Store interface {
	Employees() EmployeeRepository
	Balances() BalanceRepository
	LeaveRequests() LeaveRequestRepository
	Outbox() OutboxRepository

	// WithinEmployee runs fn while holding exclusive access to one employee's
	// balance. Writes made through tx become visible together when fn returns
	// nil and are discarded otherwise. Scopes for different employees do not
	// block each other.
	WithinEmployee(ctx context.Context, employeeID string, fn func(ctx context.Context, tx Tx) error) error

	Ping(ctx context.Context) error
}
