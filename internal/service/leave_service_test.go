package service_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/leave-service/internal/authz"
	"github.com/spec-kit/leave-service/internal/domain"
	"github.com/spec-kit/leave-service/internal/events"
	"github.com/spec-kit/leave-service/internal/repository"
	"github.com/spec-kit/leave-service/internal/repository/memory"
	"github.com/spec-kit/leave-service/internal/service"
	apperrors "github.com/spec-kit/leave-service/pkg/util/errorutil"
)

func TestSubmit_CreatesPendingWithoutDebit(t *testing.T) {
	f := newFixture(t)
	emp := f.employee(t, domain.RoleEmployee, 10)

	req, err := f.svc.Submit(context.Background(), emp, service.SubmitInput{
		StartDate: "2024-01-01",
		EndDate:   "2024-01-05",
		Reason:    "family trip",
		LeaveType: domain.LeaveTypeAnnual,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.LeaveStatusPending, req.Status)
	assert.Equal(t, 5, req.LeaveDays())
	assert.Equal(t, emp.ID, req.EmployeeID)
	assert.Equal(t, 10, f.balance(t, emp.ID))

	pending, err := f.store.Outbox().ListPending(context.Background(), fixedNow, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, string(events.EventLeaveRequestSubmitted), pending[0].EventType)

	event, err := events.FromOutbox(pending[0])
	require.NoError(t, err)
	var payload events.LeaveRequestSubmittedPayload
	require.NoError(t, event.Decode(&payload))
	assert.Equal(t, 5, payload.LeaveDays)
	assert.Equal(t, "2024-01-01", payload.StartDate)
}

func TestSubmit_Validation(t *testing.T) {
	f := newFixture(t)
	emp := f.employee(t, domain.RoleEmployee, 10)

	cases := map[string]service.SubmitInput{
		"missing reason":   {StartDate: "2024-01-01", EndDate: "2024-01-02", LeaveType: domain.LeaveTypeAnnual},
		"missing start":    {EndDate: "2024-01-02", Reason: "x", LeaveType: domain.LeaveTypeAnnual},
		"bad leave type":   {StartDate: "2024-01-01", EndDate: "2024-01-02", Reason: "x", LeaveType: "sick"},
		"bad date format":  {StartDate: "01/01/2024", EndDate: "2024-01-02", Reason: "x", LeaveType: domain.LeaveTypeAnnual},
		"end before start": {StartDate: "2024-01-05", EndDate: "2024-01-01", Reason: "x", LeaveType: domain.LeaveTypeAnnual},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Submit(context.Background(), emp, input)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed), "got %v", err)
		})
	}

	list, err := f.svc.ListForEmployee(context.Background(), emp, emp.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSubmit_AnnualBeyondBalanceRejected(t *testing.T) {
	f := newFixture(t)
	emp := f.employee(t, domain.RoleEmployee, 3)

	_, err := f.svc.Submit(context.Background(), emp, service.SubmitInput{
		StartDate: "2024-01-01",
		EndDate:   "2024-01-05",
		Reason:    "trip",
		LeaveType: domain.LeaveTypeAnnual,
	})
	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeInsufficientBalance, de.Code)
	assert.Equal(t, 3, de.Details["available"])
	assert.Equal(t, 5, de.Details["requested"])

	list, _ := f.svc.ListForEmployee(context.Background(), emp, emp.ID)
	assert.Empty(t, list)
}

func TestSubmit_UnplannedIgnoresBalance(t *testing.T) {
	f := newFixture(t)
	emp := f.employee(t, domain.RoleEmployee, 0)

	req := f.submitDays(t, emp, domain.LeaveTypeUnplanned, 4)
	_, err := f.svc.Decide(context.Background(), f.admin, req.ID, domain.LeaveStatusApproved)
	require.NoError(t, err)

	assert.Equal(t, domain.LeaveStatusApproved, f.status(t, req.ID))
	assert.Equal(t, 0, f.balance(t, emp.ID))
}

func TestDecide_TenDaysTwoSixDayRequests(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	emp := f.employee(t, domain.RoleEmployee, 10)

	first := f.submitDays(t, emp, domain.LeaveTypeAnnual, 6)
	second := f.submitDays(t, emp, domain.LeaveTypeAnnual, 6)

	decided, err := f.svc.Decide(ctx, f.admin, first.ID, domain.LeaveStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, domain.LeaveStatusApproved, decided.Status)
	require.NotNil(t, decided.DecidedBy)
	assert.Equal(t, f.admin.ID, *decided.DecidedBy)
	assert.Equal(t, 4, f.balance(t, emp.ID))

	_, err = f.svc.Decide(ctx, f.admin, second.ID, domain.LeaveStatusApproved)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInsufficientBalance))
	assert.Equal(t, domain.LeaveStatusPending, f.status(t, second.ID))
	assert.Equal(t, 4, f.balance(t, emp.ID))

	_, err = f.svc.Decide(ctx, f.admin, second.ID, domain.LeaveStatusDeclined)
	require.NoError(t, err)
	assert.Equal(t, domain.LeaveStatusDeclined, f.status(t, second.ID))
	assert.Equal(t, 4, f.balance(t, emp.ID))
}

func TestDecide_DayCountMatchesSubmission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	emp := f.employee(t, domain.RoleEmployee, 10)

	req, err := f.svc.Submit(ctx, emp, service.SubmitInput{
		StartDate: "2024-01-01",
		EndDate:   "2024-01-05",
		Reason:    "trip",
		LeaveType: domain.LeaveTypeAnnual,
	})
	require.NoError(t, err)
	require.Equal(t, 5, req.LeaveDays())

	_, err = f.svc.Decide(ctx, f.admin, req.ID, domain.LeaveStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, 5, f.balance(t, emp.ID))
}

func TestDecide_DoubleApprovalRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	emp := f.employee(t, domain.RoleEmployee, 10)
	req := f.submitDays(t, emp, domain.LeaveTypeAnnual, 3)

	_, err := f.svc.Decide(ctx, f.admin, req.ID, domain.LeaveStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, 7, f.balance(t, emp.ID))

	_, err = f.svc.Decide(ctx, f.admin, req.ID, domain.LeaveStatusApproved)
	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeAlreadyDecided, de.Code)
	assert.Equal(t, "approved", de.Details["status"])
	assert.Equal(t, 7, f.balance(t, emp.ID))

	_, err = f.svc.Decide(ctx, f.admin, req.ID, domain.LeaveStatusDeclined)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyDecided))
	assert.Equal(t, domain.LeaveStatusApproved, f.status(t, req.ID))
}

func TestDecide_DeclineLeavesBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	emp := f.employee(t, domain.RoleEmployee, 10)
	req := f.submitDays(t, emp, domain.LeaveTypeAnnual, 4)

	_, err := f.svc.Decide(ctx, f.admin, req.ID, domain.LeaveStatusDeclined)
	require.NoError(t, err)
	assert.Equal(t, 10, f.balance(t, emp.ID))

	_, err = f.svc.Decide(ctx, f.admin, req.ID, domain.LeaveStatusApproved)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyDecided))
	assert.Equal(t, 10, f.balance(t, emp.ID))
}

func TestDecide_NonAdminForbidden(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	emp := f.employee(t, domain.RoleEmployee, 10)
	req := f.submitDays(t, emp, domain.LeaveTypeAnnual, 2)

	_, err := f.svc.Decide(ctx, emp, req.ID, domain.LeaveStatusApproved)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	assert.Equal(t, domain.LeaveStatusPending, f.status(t, req.ID))
	assert.Equal(t, 10, f.balance(t, emp.ID))

	// Forbidden is reported before existence is checked.
	_, err = f.svc.Decide(ctx, emp, "does-not-exist", domain.LeaveStatusApproved)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	// and before the decision value is validated.
	_, err = f.svc.Decide(ctx, emp, req.ID, domain.LeaveStatus("maybe"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestDecide_DeniedAttemptIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	store := memory.NewStore()
	a, err := authz.New(nil)
	require.NoError(t, err)
	svc := service.NewLeaveService(service.LeaveDependencies{
		Store:      store,
		Authorizer: a,
		Logger:     zap.New(core),
	})

	_, err = svc.Decide(context.Background(), service.Actor{ID: "e1", Role: domain.RoleEmployee}, "r1", domain.LeaveStatus("maybe"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	denied := logs.FilterField(zap.Bool("authorization_probe", true)).All()
	require.Len(t, denied, 1)
	assert.Equal(t, "decide", denied[0].ContextMap()["action"])
	assert.Equal(t, "r1", denied[0].ContextMap()["target"])
}

func TestDecide_InvalidDecisionAndUnknownRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	emp := f.employee(t, domain.RoleEmployee, 10)
	req := f.submitDays(t, emp, domain.LeaveTypeAnnual, 2)

	_, err := f.svc.Decide(ctx, f.admin, req.ID, domain.LeaveStatusPending)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
	_, err = f.svc.Decide(ctx, f.admin, req.ID, domain.LeaveStatus("maybe"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	_, err = f.svc.Decide(ctx, f.admin, "does-not-exist", domain.LeaveStatusApproved)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestDecide_ConcurrentDistinctEmployees(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.employee(t, domain.RoleEmployee, 5)
	b := f.employee(t, domain.RoleEmployee, 5)
	reqA := f.submitDays(t, a, domain.LeaveTypeAnnual, 5)
	reqB := f.submitDays(t, b, domain.LeaveTypeAnnual, 5)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{reqA.ID, reqB.ID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.svc.Decide(ctx, f.admin, id, domain.LeaveStatusApproved)
		}(i, id)
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	assert.Equal(t, 0, f.balance(t, a.ID))
	assert.Equal(t, 0, f.balance(t, b.ID))
}

func TestDecide_ConcurrentSameEmployeeNeverOverdraws(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	emp := f.employee(t, domain.RoleEmployee, 10)

	requests := make([]*domain.LeaveRequest, 5)
	for i := range requests {
		requests[i] = f.submitDays(t, emp, domain.LeaveTypeAnnual, 3)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	approved, insufficient := 0, 0
	for _, req := range requests {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.svc.Decide(ctx, f.admin, id, domain.LeaveStatusApproved)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				approved++
			case apperrors.HasCode(err, apperrors.CodeInsufficientBalance):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(req.ID)
	}
	wg.Wait()

	assert.Equal(t, 3, approved)
	assert.Equal(t, 2, insufficient)
	assert.Equal(t, 1, f.balance(t, emp.ID))
}

func TestDecide_ConcurrentSameRequestDebitsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	emp := f.employee(t, domain.RoleEmployee, 10)
	req := f.submitDays(t, emp, domain.LeaveTypeAnnual, 2)

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Decide(ctx, f.admin, req.ID, domain.LeaveStatusApproved)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyDecided), "got %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 8, f.balance(t, emp.ID))
}

func TestWorkflow_RandomSequencesKeepBalanceNonNegative(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 20; round++ {
		f := newFixture(t)
		emp := f.employee(t, domain.RoleEmployee, 10)
		var pending []*domain.LeaveRequest
		expected := 10

		for step := 0; step < 30; step++ {
			switch op := rng.Intn(3); {
			case op == 0 || len(pending) == 0:
				leaveType := domain.LeaveTypeAnnual
				if rng.Intn(4) == 0 {
					leaveType = domain.LeaveTypeUnplanned
				}
				days := rng.Intn(5) + 1
				start := time.Date(2024, time.Month(rng.Intn(12)+1), rng.Intn(20)+1, 0, 0, 0, 0, time.UTC)
				req, err := f.svc.Submit(ctx, emp, service.SubmitInput{
					StartDate: start.Format(domain.DateLayout),
					EndDate:   start.AddDate(0, 0, days-1).Format(domain.DateLayout),
					Reason:    "random",
					LeaveType: leaveType,
				})
				if err != nil {
					require.True(t, apperrors.HasCode(err, apperrors.CodeInsufficientBalance), "round %d: %v", round, err)
					continue
				}
				pending = append(pending, req)
			default:
				i := rng.Intn(len(pending))
				req := pending[i]
				pending = append(pending[:i], pending[i+1:]...)

				decision := domain.LeaveStatusDeclined
				if op == 1 {
					decision = domain.LeaveStatusApproved
				}
				_, err := f.svc.Decide(ctx, f.admin, req.ID, decision)
				switch {
				case err == nil:
					if decision == domain.LeaveStatusApproved && req.LeaveType == domain.LeaveTypeAnnual {
						expected -= req.LeaveDays()
					}
				case apperrors.HasCode(err, apperrors.CodeInsufficientBalance):
					require.Equal(t, domain.LeaveStatusPending, f.status(t, req.ID))
				default:
					t.Fatalf("round %d: unexpected error %v", round, err)
				}
			}

			balance := f.balance(t, emp.ID)
			require.GreaterOrEqual(t, balance, 0)
			require.Equal(t, expected, balance)
		}
	}
}

type failingOutboxStore struct {
	repository.Store
}

func (s failingOutboxStore) WithinEmployee(ctx context.Context, employeeID string, fn func(context.Context, repository.Tx) error) error {
	return s.Store.WithinEmployee(ctx, employeeID, func(ctx context.Context, tx repository.Tx) error {
		return fn(ctx, failingOutboxTx{tx})
	})
}

type failingOutboxTx struct {
	repository.Tx
}

func (failingOutboxTx) Outbox() repository.OutboxWriter { return failingWriter{} }

type failingWriter struct{}

func (failingWriter) Enqueue(context.Context, *domain.OutboxMessage) error {
	return errors.New("outbox insert failed")
}

func TestDecide_StorageFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	failing := false
	f := newFixtureWithStore(t, func(s repository.Store) repository.Store {
		return switchStore{healthy: s, failing: failingOutboxStore{s}, useFailing: &failing}
	})
	emp := f.employee(t, domain.RoleEmployee, 10)
	req := f.submitDays(t, emp, domain.LeaveTypeAnnual, 4)

	failing = true
	_, err := f.svc.Decide(ctx, f.admin, req.ID, domain.LeaveStatusApproved)
	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeInternal, de.Code)
	assert.Equal(t, true, de.Details["retryable"])

	assert.Equal(t, 10, f.balance(t, emp.ID))
	assert.Equal(t, domain.LeaveStatusPending, f.status(t, req.ID))

	failing = false
	_, err = f.svc.Decide(ctx, f.admin, req.ID, domain.LeaveStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, 6, f.balance(t, emp.ID))
}

func TestSubmit_StorageFailureCreatesNothing(t *testing.T) {
	f := newFixtureWithStore(t, func(s repository.Store) repository.Store { return failingOutboxStore{s} })
	emp := f.employee(t, domain.RoleEmployee, 10)

	_, err := f.svc.Submit(context.Background(), emp, service.SubmitInput{
		StartDate: "2024-01-01",
		EndDate:   "2024-01-02",
		Reason:    "x",
		LeaveType: domain.LeaveTypeAnnual,
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInternal))

	list, err := f.store.LeaveRequests().ListByEmployee(context.Background(), emp.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

// switchStore routes to the failing store only while useFailing is set.
type switchStore struct {
	healthy    repository.Store
	failing    repository.Store
	useFailing *bool
}

func (s switchStore) current() repository.Store {
	if *s.useFailing {
		return s.failing
	}
	return s.healthy
}

func (s switchStore) Employees() repository.EmployeeRepository         { return s.current().Employees() }
func (s switchStore) Balances() repository.BalanceRepository           { return s.current().Balances() }
func (s switchStore) LeaveRequests() repository.LeaveRequestRepository { return s.current().LeaveRequests() }
func (s switchStore) Outbox() repository.OutboxRepository              { return s.current().Outbox() }
func (s switchStore) Ping(ctx context.Context) error                   { return s.current().Ping(ctx) }
func (s switchStore) WithinEmployee(ctx context.Context, id string, fn func(context.Context, repository.Tx) error) error {
	return s.current().WithinEmployee(ctx, id, fn)
}

func TestQueries_Authorization(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.employee(t, domain.RoleEmployee, 10)
	bob := f.employee(t, domain.RoleEmployee, 10)
	req := f.submitDays(t, alice, domain.LeaveTypeAnnual, 2)

	own, err := f.svc.ListForEmployee(ctx, alice, alice.ID)
	require.NoError(t, err)
	assert.Len(t, own, 1)

	_, err = f.svc.ListForEmployee(ctx, bob, alice.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	asAdmin, err := f.svc.ListForEmployee(ctx, f.admin, alice.ID)
	require.NoError(t, err)
	assert.Len(t, asAdmin, 1)

	_, err = f.svc.ListAll(ctx, alice)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	all, err := f.svc.ListAll(ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	got, err := f.svc.Get(ctx, alice, req.ID)
	require.NoError(t, err)
	assert.Equal(t, req.ID, got.ID)
	_, err = f.svc.Get(ctx, bob, req.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	_, err = f.svc.Get(ctx, f.admin, req.ID)
	assert.NoError(t, err)
	_, err = f.svc.Get(ctx, f.admin, "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.employee(t, domain.RoleEmployee, 7)
	bob := f.employee(t, domain.RoleEmployee, 10)

	b, err := f.svc.Balance(ctx, alice, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, b.Remaining)
	assert.Equal(t, 10, b.Total)

	_, err = f.svc.Balance(ctx, bob, alice.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	b, err = f.svc.Balance(ctx, f.admin, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, b.Remaining)

	_, err = f.svc.Balance(ctx, f.admin, "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}
