package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/spec-kit/leave-service/internal/domain"
	"github.com/spec-kit/leave-service/internal/repository"
)

// scope stages writes made while an employee lock is held. Nothing reaches
// the Store until commit.
type scope struct {
	store      *Store
	employeeID string

	balance    *int
	requests   map[string]domain.LeaveRequest
	newRequest []string
	outbox     []domain.OutboxMessage
}

func (sc *scope) Balances() repository.BalanceRepository           { return scopeBalances{sc} }
func (sc *scope) LeaveRequests() repository.LeaveRequestRepository { return scopeRequests{sc} }
func (sc *scope) Outbox() repository.OutboxWriter                  { return scopeOutbox{sc} }

func (sc *scope) commit() {
	s := sc.store
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if sc.balance != nil {
		e := s.employees[sc.employeeID]
		e.AnnualLeaveDays = *sc.balance
		e.UpdatedAt = now
		s.employees[sc.employeeID] = e
	}
	for _, id := range sc.newRequest {
		s.created[id] = s.nextSeq()
	}
	for id, req := range sc.requests {
		s.requests[id] = req
	}
	for _, msg := range sc.outbox {
		s.created[msg.ID] = s.nextSeq()
		s.outbox[msg.ID] = msg
	}
}

func (sc *scope) checkEmployee(employeeID string) error {
	if employeeID != sc.employeeID {
		return fmt.Errorf("employee %s is outside the scope of %s", employeeID, sc.employeeID)
	}
	return nil
}

func (sc *scope) lookupRequest(id string) (domain.LeaveRequest, bool) {
	if req, ok := sc.requests[id]; ok {
		return req, true
	}
	sc.store.mu.RLock()
	defer sc.store.mu.RUnlock()
	req, ok := sc.store.requests[id]
	return req, ok
}

type scopeBalances struct{ sc *scope }

func (b scopeBalances) Balance(ctx context.Context, employeeID string) (int, error) {
	if employeeID == b.sc.employeeID && b.sc.balance != nil {
		return *b.sc.balance, nil
	}
	return balanceRepo{b.sc.store}.Balance(ctx, employeeID)
}

func (b scopeBalances) DebitIfSufficient(ctx context.Context, employeeID string, days int) (bool, error) {
	if err := b.sc.checkEmployee(employeeID); err != nil {
		return false, err
	}
	current, err := b.Balance(ctx, employeeID)
	if err != nil {
		return false, err
	}
	if current < days {
		return false, nil
	}
	next := current - days
	b.sc.balance = &next
	return true, nil
}

type scopeRequests struct{ sc *scope }

func (r scopeRequests) Create(_ context.Context, request *domain.LeaveRequest) error {
	if err := r.sc.checkEmployee(request.EmployeeID); err != nil {
		return err
	}
	if _, exists := r.sc.lookupRequest(request.ID); exists {
		return repository.ErrConflict
	}
	now := r.sc.store.now()
	request.CreatedAt = now
	request.UpdatedAt = now
	r.sc.requests[request.ID] = *request
	r.sc.newRequest = append(r.sc.newRequest, request.ID)
	return nil
}

func (r scopeRequests) GetByID(_ context.Context, id string) (*domain.LeaveRequest, error) {
	req, ok := r.sc.lookupRequest(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &req, nil
}

func (r scopeRequests) ListByEmployee(ctx context.Context, employeeID string) ([]domain.LeaveRequest, error) {
	committed, err := requestRepo{r.sc.store}.ListByEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	return r.overlay(committed, func(req domain.LeaveRequest) bool { return req.EmployeeID == employeeID }), nil
}

func (r scopeRequests) ListAll(ctx context.Context) ([]domain.LeaveRequest, error) {
	committed, err := requestRepo{r.sc.store}.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return r.overlay(committed, nil), nil
}

// overlay replaces committed rows with staged versions and prepends staged
// creations newest first.
func (r scopeRequests) overlay(committed []domain.LeaveRequest, filter func(domain.LeaveRequest) bool) []domain.LeaveRequest {
	out := make([]domain.LeaveRequest, 0, len(committed)+len(r.sc.newRequest))
	for i := len(r.sc.newRequest) - 1; i >= 0; i-- {
		req := r.sc.requests[r.sc.newRequest[i]]
		if filter == nil || filter(req) {
			out = append(out, req)
		}
	}
	for _, req := range committed {
		if staged, ok := r.sc.requests[req.ID]; ok {
			req = staged
		}
		out = append(out, req)
	}
	return out
}

func (r scopeRequests) Transition(_ context.Context, id string, from, to domain.LeaveStatus, decidedBy string, decidedAt time.Time) error {
	req, ok := r.sc.lookupRequest(id)
	if !ok {
		return repository.ErrNotFound
	}
	if err := r.sc.checkEmployee(req.EmployeeID); err != nil {
		return err
	}
	if req.Status != from {
		return repository.ErrConflict
	}
	by := decidedBy
	at := decidedAt
	req.Status = to
	req.DecidedBy = &by
	req.DecidedAt = &at
	req.UpdatedAt = r.sc.store.now()
	r.sc.requests[id] = req
	return nil
}

type scopeOutbox struct{ sc *scope }

func (o scopeOutbox) Enqueue(_ context.Context, msg *domain.OutboxMessage) error {
	msg.CreatedAt = o.sc.store.now()
	if msg.Status == "" {
		msg.Status = domain.OutboxStatusPending
	}
	if msg.NextAttemptAt.IsZero() {
		msg.NextAttemptAt = msg.CreatedAt
	}
	o.sc.outbox = append(o.sc.outbox, *msg)
	return nil
}
