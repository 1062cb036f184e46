package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/leave-service/internal/authz"
	"github.com/spec-kit/leave-service/internal/domain"
	"github.com/spec-kit/leave-service/internal/events"
	"github.com/spec-kit/leave-service/internal/ledger"
	"github.com/spec-kit/leave-service/internal/repository"
	apperrors "github.com/spec-kit/leave-service/pkg/util/errorutil"
)

// Actor is the authenticated caller of a workflow operation.
type Actor struct {
	ID   string
	Role domain.Role
}

// LeaveService runs leave submission, decision and queries.
type LeaveService struct {
	store           repository.Store
	ledger          *ledger.Ledger
	authz           *authz.Authorizer
	logger          *zap.Logger
	now             func() time.Time
	annualAllowance int
}

// LeaveDependencies bundles collaborators for the leave service.
type LeaveDependencies struct {
	Store           repository.Store
	Ledger          *ledger.Ledger
	Authorizer      *authz.Authorizer
	Logger          *zap.Logger
	Clock           func() time.Time
	AnnualAllowance int
}

// SubmitInput is a new leave request. Dates use the YYYY-MM-DD layout.
type SubmitInput struct {
	StartDate string
	EndDate   string
	Reason    string
	LeaveType domain.LeaveType
}

// Balance is the remaining and allotted annual leave of an employee.
type Balance struct {
	EmployeeID string
	Remaining  int
	Total      int
}

// NewLeaveService constructs the service.
func NewLeaveService(deps LeaveDependencies) *LeaveService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	l := deps.Ledger
	if l == nil {
		l = ledger.New(logger)
	}
	allowance := deps.AnnualAllowance
	if allowance <= 0 {
		allowance = domain.DefaultAnnualLeaveDays
	}
	return &LeaveService{
		store:           deps.Store,
		ledger:          l,
		authz:           deps.Authorizer,
		logger:          logger.Named("leave.service"),
		now:             clock,
		annualAllowance: allowance,
	}
}

// Submit records a pending request for the actor. Annual requests must fit
// the current balance, but nothing is debited until approval.
func (s *LeaveService) Submit(ctx context.Context, actor Actor, input SubmitInput) (*domain.LeaveRequest, error) {
	start, end, err := validateSubmit(input)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, authz.ObjectLeaveRequest, authz.ActionSubmit, ""); err != nil {
		return nil, err
	}

	employee, err := s.employee(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	request := &domain.LeaveRequest{
		ID:         uuid.NewString(),
		EmployeeID: employee.ID,
		StartDate:  start,
		EndDate:    end,
		LeaveType:  input.LeaveType,
		Reason:     strings.TrimSpace(input.Reason),
		Status:     domain.LeaveStatusPending,
	}
	days := request.LeaveDays()

	err = s.store.WithinEmployee(ctx, employee.ID, func(ctx context.Context, tx repository.Tx) error {
		if request.LeaveType.DrawsBalance() {
			available, err := s.ledger.GetBalance(ctx, tx.Balances(), employee.ID)
			if err != nil {
				return err
			}
			if available < days {
				return apperrors.NewInsufficientBalance(days, available)
			}
		}
		if err := tx.LeaveRequests().Create(ctx, request); err != nil {
			return err
		}
		return s.enqueue(ctx, tx, events.EventLeaveRequestSubmitted, request.ID, actor.ID, events.LeaveRequestSubmittedPayload{
			RequestID:     request.ID,
			EmployeeID:    employee.ID,
			EmployeeName:  employee.FullName(),
			EmployeeEmail: employee.Email,
			LeaveType:     request.LeaveType,
			StartDate:     request.StartDate.Format(domain.DateLayout),
			EndDate:       request.EndDate.Format(domain.DateLayout),
			LeaveDays:     days,
			Reason:        request.Reason,
		})
	})
	if err != nil {
		return nil, s.translate(err, "leave request")
	}

	s.logger.Info("leave request submitted",
		zap.String("request_id", request.ID),
		zap.String("employee_id", employee.ID),
		zap.String("leave_type", string(request.LeaveType)),
		zap.Int("leave_days", days),
	)
	return request, nil
}

// Decide approves or declines a pending request. Approval of an annual
// request debits the balance in the same unit of work as the status change.
func (s *LeaveService) Decide(ctx context.Context, actor Actor, requestID string, decision domain.LeaveStatus) (*domain.LeaveRequest, error) {
	if err := s.authorize(actor, authz.ObjectLeaveRequest, authz.ActionDecide, requestID); err != nil {
		return nil, err
	}
	if !decision.IsDecision() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{
			"status":  string(decision),
			"allowed": []string{string(domain.LeaveStatusApproved), string(domain.LeaveStatusDeclined)},
		})
	}

	existing, err := s.store.LeaveRequests().GetByID(ctx, requestID)
	if err != nil {
		return nil, s.translate(err, "leave request")
	}
	employee, err := s.employee(ctx, existing.EmployeeID)
	if err != nil {
		return nil, err
	}

	var decided domain.LeaveRequest
	err = s.store.WithinEmployee(ctx, existing.EmployeeID, func(ctx context.Context, tx repository.Tx) error {
		current, err := tx.LeaveRequests().GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		if !current.Status.CanTransition(decision) {
			return apperrors.NewAlreadyDecided(string(current.Status))
		}

		days := current.LeaveDays()
		if decision == domain.LeaveStatusApproved && current.LeaveType.DrawsBalance() {
			if err := s.ledger.ReserveOrDebit(ctx, tx.Balances(), current.EmployeeID, days); err != nil {
				return err
			}
		}

		decidedAt := s.now()
		if err := tx.LeaveRequests().Transition(ctx, requestID, domain.LeaveStatusPending, decision, actor.ID, decidedAt); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				status := current.Status
				if latest, getErr := tx.LeaveRequests().GetByID(ctx, requestID); getErr == nil {
					status = latest.Status
				}
				return apperrors.NewAlreadyDecided(string(status))
			}
			return err
		}

		remaining, err := s.ledger.GetBalance(ctx, tx.Balances(), current.EmployeeID)
		if err != nil {
			return err
		}

		decided = *current
		decided.Status = decision
		decided.DecidedBy = &actor.ID
		decided.DecidedAt = &decidedAt

		return s.enqueue(ctx, tx, events.EventLeaveRequestDecided, requestID, actor.ID, events.LeaveRequestDecidedPayload{
			RequestID:     requestID,
			EmployeeID:    employee.ID,
			EmployeeName:  employee.FullName(),
			EmployeeEmail: employee.Email,
			LeaveType:     current.LeaveType,
			StartDate:     current.StartDate.Format(domain.DateLayout),
			EndDate:       current.EndDate.Format(domain.DateLayout),
			LeaveDays:     days,
			Status:        decision,
			DecidedBy:     actor.ID,
			RemainingDays: remaining,
		})
	})
	if err != nil {
		return nil, s.translate(err, "leave request")
	}

	s.logger.Info("leave request decided",
		zap.String("request_id", requestID),
		zap.String("employee_id", decided.EmployeeID),
		zap.String("status", string(decision)),
		zap.String("decided_by", actor.ID),
	)
	return &decided, nil
}

// ListForEmployee returns the employee's requests, newest first. Employees
// may only list their own.
func (s *LeaveService) ListForEmployee(ctx context.Context, actor Actor, employeeID string) ([]domain.LeaveRequest, error) {
	if employeeID != actor.ID {
		if err := s.authorize(actor, authz.ObjectLeaveRequest, authz.ActionListAll, employeeID); err != nil {
			return nil, err
		}
	}
	requests, err := s.store.LeaveRequests().ListByEmployee(ctx, employeeID)
	if err != nil {
		return nil, s.translate(err, "leave request")
	}
	return requests, nil
}

// ListAll returns every request. Admin only.
func (s *LeaveService) ListAll(ctx context.Context, actor Actor) ([]domain.LeaveRequest, error) {
	if err := s.authorize(actor, authz.ObjectLeaveRequest, authz.ActionListAll, ""); err != nil {
		return nil, err
	}
	requests, err := s.store.LeaveRequests().ListAll(ctx)
	if err != nil {
		return nil, s.translate(err, "leave request")
	}
	return requests, nil
}

// Get returns one request to its owner or an admin.
func (s *LeaveService) Get(ctx context.Context, actor Actor, requestID string) (*domain.LeaveRequest, error) {
	request, err := s.store.LeaveRequests().GetByID(ctx, requestID)
	if err != nil {
		return nil, s.translate(err, "leave request")
	}
	if request.EmployeeID != actor.ID {
		if err := s.authorize(actor, authz.ObjectLeaveRequest, authz.ActionListAll, requestID); err != nil {
			return nil, err
		}
	}
	return request, nil
}

// Balance reports remaining and total annual leave.
func (s *LeaveService) Balance(ctx context.Context, actor Actor, employeeID string) (*Balance, error) {
	action := authz.ActionReadOwn
	if employeeID != actor.ID {
		action = authz.ActionReadAny
	}
	if err := s.authorize(actor, authz.ObjectBalance, action, employeeID); err != nil {
		return nil, err
	}
	remaining, err := s.ledger.GetBalance(ctx, s.store.Balances(), employeeID)
	if err != nil {
		return nil, err
	}
	return &Balance{EmployeeID: employeeID, Remaining: remaining, Total: s.annualAllowance}, nil
}

func (s *LeaveService) authorize(actor Actor, object, action, target string) error {
	if s.authz != nil && s.authz.Can(actor.Role, object, action) {
		return nil
	}
	s.logger.Warn("authorization denied",
		zap.Bool("authorization_probe", true),
		zap.String("actor_id", actor.ID),
		zap.String("role", string(actor.Role)),
		zap.String("object", object),
		zap.String("action", action),
		zap.String("target", target),
	)
	return apperrors.NewForbidden("not allowed to " + strings.ReplaceAll(action, "_", " ") + " " + strings.ReplaceAll(object, "_", " "))
}

func (s *LeaveService) employee(ctx context.Context, id string) (*domain.Employee, error) {
	employee, err := s.store.Employees().GetByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, "employee")
	}
	return employee, nil
}

func (s *LeaveService) enqueue(ctx context.Context, tx repository.Tx, eventType events.EventType, aggregateID, actorID string, payload any) error {
	event, err := events.New(eventType, aggregateID, actorID, s.now(), payload)
	if err != nil {
		return err
	}
	msg, err := event.ToOutbox()
	if err != nil {
		return err
	}
	return tx.Outbox().Enqueue(ctx, msg)
}

// translate maps storage errors to DomainErrors and passes DomainErrors
// through.
func (s *LeaveService) translate(err error, resource string) error {
	var domainErr *apperrors.DomainError
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewInternalError(err)
	default:
		s.logger.Error("storage failure", zap.String("resource", resource), zap.Error(err))
		return apperrors.NewInternalError(err)
	}
}

func validateSubmit(input SubmitInput) (time.Time, time.Time, error) {
	details := map[string]any{}
	if strings.TrimSpace(input.StartDate) == "" {
		details["start_date"] = "required"
	}
	if strings.TrimSpace(input.EndDate) == "" {
		details["end_date"] = "required"
	}
	if strings.TrimSpace(input.Reason) == "" {
		details["reason"] = "required"
	}
	if input.LeaveType == "" {
		details["leave_type"] = "required"
	} else if !input.LeaveType.Valid() {
		details["leave_type"] = "must be annual or unplanned"
	}

	var start, end time.Time
	var err error
	if _, missing := details["start_date"]; !missing {
		if start, err = domain.ParseDate(strings.TrimSpace(input.StartDate)); err != nil {
			details["start_date"] = "must be YYYY-MM-DD"
		}
	}
	if _, missing := details["end_date"]; !missing {
		if end, err = domain.ParseDate(strings.TrimSpace(input.EndDate)); err != nil {
			details["end_date"] = "must be YYYY-MM-DD"
		}
	}
	if len(details) == 0 && end.Before(start) {
		details["end_date"] = "must not be before start_date"
	}

	if len(details) > 0 {
		return time.Time{}, time.Time{}, apperrors.NewValidationError("start date, end date, reason and leave type are required", details)
	}
	return start, end, nil
}
