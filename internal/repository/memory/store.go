// Package memory is an in-process Store used when no database is
// configured and by the workflow tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/leave-service/internal/domain"
	"github.com/spec-kit/leave-service/internal/repository"
)

// Store keeps all records in maps guarded by one RWMutex. Employee scopes
// additionally serialize on a per-employee lock and stage their writes until
// commit.
type Store struct {
	mu        sync.RWMutex
	employees map[string]domain.Employee
	requests  map[string]domain.LeaveRequest
	outbox    map[string]domain.OutboxMessage
	seq       int64
	created   map[string]int64

	scopes *keyedMutex
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		employees: make(map[string]domain.Employee),
		requests:  make(map[string]domain.LeaveRequest),
		outbox:    make(map[string]domain.OutboxMessage),
		created:   make(map[string]int64),
		scopes:    newKeyedMutex(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ repository.Store = (*Store)(nil)

func (s *Store) Employees() repository.EmployeeRepository         { return employeeRepo{s} }
func (s *Store) Balances() repository.BalanceRepository           { return balanceRepo{s} }
func (s *Store) LeaveRequests() repository.LeaveRequestRepository { return requestRepo{s} }
func (s *Store) Outbox() repository.OutboxRepository              { return outboxRepo{s} }

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// WithinEmployee implements repository.Store.
func (s *Store) WithinEmployee(ctx context.Context, employeeID string, fn func(ctx context.Context, tx repository.Tx) error) error {
	unlock := s.scopes.Lock(employeeID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	_, ok := s.employees[employeeID]
	s.mu.RUnlock()
	if !ok {
		return repository.ErrNotFound
	}

	sc := &scope{
		store:      s,
		employeeID: employeeID,
		requests:   make(map[string]domain.LeaveRequest),
	}
	if err := fn(ctx, sc); err != nil {
		return err
	}
	sc.commit()
	return nil
}

func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

// sortedRequests returns requests newest first, matching the SQL ordering.
func (s *Store) sortedRequests(filter func(domain.LeaveRequest) bool) []domain.LeaveRequest {
	out := []domain.LeaveRequest{}
	for _, r := range s.requests {
		if filter == nil || filter(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return s.created[out[i].ID] > s.created[out[j].ID]
	})
	return out
}

type employeeRepo struct{ s *Store }

func (r employeeRepo) Create(_ context.Context, employee *domain.Employee) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.employees[employee.ID]; ok {
		return repository.ErrConflict
	}
	for _, existing := range r.s.employees {
		if strings.EqualFold(existing.Email, employee.Email) || existing.EmployeeCode == employee.EmployeeCode {
			return repository.ErrConflict
		}
	}
	now := r.s.now()
	employee.CreatedAt = now
	employee.UpdatedAt = now
	r.s.employees[employee.ID] = *employee
	return nil
}

func (r employeeRepo) GetByID(_ context.Context, id string) (*domain.Employee, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.employees[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (r employeeRepo) GetByEmail(_ context.Context, email string) (*domain.Employee, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, e := range r.s.employees {
		if strings.EqualFold(e.Email, email) {
			return &e, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r employeeRepo) NextEmployeeCode(context.Context) (string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	highest := 0
	for _, e := range r.s.employees {
		var n int
		if _, err := fmt.Sscanf(e.EmployeeCode, "EL%d", &n); err == nil && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("EL%03d", highest+1), nil
}

type balanceRepo struct{ s *Store }

func (r balanceRepo) Balance(_ context.Context, employeeID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.employees[employeeID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return e.AnnualLeaveDays, nil
}

// DebitIfSufficient outside a scope takes the employee lock itself, so it
// must not be called from inside WithinEmployee for the same employee.
func (r balanceRepo) DebitIfSufficient(ctx context.Context, employeeID string, days int) (bool, error) {
	var ok bool
	err := r.s.WithinEmployee(ctx, employeeID, func(ctx context.Context, tx repository.Tx) error {
		var err error
		ok, err = tx.Balances().DebitIfSufficient(ctx, employeeID, days)
		return err
	})
	return ok, err
}

type requestRepo struct{ s *Store }

func (r requestRepo) Create(ctx context.Context, request *domain.LeaveRequest) error {
	return r.s.WithinEmployee(ctx, request.EmployeeID, func(ctx context.Context, tx repository.Tx) error {
		return tx.LeaveRequests().Create(ctx, request)
	})
}

func (r requestRepo) GetByID(_ context.Context, id string) (*domain.LeaveRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	req, ok := r.s.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &req, nil
}

func (r requestRepo) ListByEmployee(_ context.Context, employeeID string) ([]domain.LeaveRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.sortedRequests(func(req domain.LeaveRequest) bool { return req.EmployeeID == employeeID }), nil
}

func (r requestRepo) ListAll(context.Context) ([]domain.LeaveRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.sortedRequests(nil), nil
}

func (r requestRepo) Transition(ctx context.Context, id string, from, to domain.LeaveStatus, decidedBy string, decidedAt time.Time) error {
	req, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return r.s.WithinEmployee(ctx, req.EmployeeID, func(ctx context.Context, tx repository.Tx) error {
		return tx.LeaveRequests().Transition(ctx, id, from, to, decidedBy, decidedAt)
	})
}
