package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/leave-service/internal/authz"
	"github.com/spec-kit/leave-service/internal/domain"
	"github.com/spec-kit/leave-service/internal/repository"
	"github.com/spec-kit/leave-service/internal/repository/memory"
	"github.com/spec-kit/leave-service/internal/service"
)

var fixedNow = time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store *memory.Store
	svc   *service.LeaveService
	admin service.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, nil)
}

// newFixtureWithStore lets a test wrap the memory store, for example to
// inject failures into the unit of work.
func newFixtureWithStore(t *testing.T, wrap func(repository.Store) repository.Store) *fixture {
	t.Helper()
	store := memory.NewStore(memory.WithClock(func() time.Time { return fixedNow }))
	a, err := authz.New(nil)
	require.NoError(t, err)

	var backing repository.Store = store
	if wrap != nil {
		backing = wrap(store)
	}
	f := &fixture{
		store: store,
		svc: service.NewLeaveService(service.LeaveDependencies{
			Store:      backing,
			Authorizer: a,
			Clock:      func() time.Time { return fixedNow },
		}),
	}
	f.admin = f.employee(t, domain.RoleAdmin, 10)
	return f
}

func (f *fixture) employee(t *testing.T, role domain.Role, days int) service.Actor {
	t.Helper()
	id := uuid.NewString()
	require.NoError(t, f.store.Employees().Create(context.Background(), &domain.Employee{
		ID:              id,
		EmployeeCode:    "EL-" + id,
		FirstName:       "Test",
		LastName:        id[:8],
		Email:           id + "@example.com",
		Role:            role,
		Status:          domain.EmployeeStatusActive,
		AnnualLeaveDays: days,
	}))
	return service.Actor{ID: id, Role: role}
}

func (f *fixture) balance(t *testing.T, id string) int {
	t.Helper()
	days, err := f.store.Balances().Balance(context.Background(), id)
	require.NoError(t, err)
	return days
}

func (f *fixture) status(t *testing.T, requestID string) domain.LeaveStatus {
	t.Helper()
	req, err := f.store.LeaveRequests().GetByID(context.Background(), requestID)
	require.NoError(t, err)
	return req.Status
}

// submitDays files a request of n calendar days starting 2024-03-01.
func (f *fixture) submitDays(t *testing.T, actor service.Actor, leaveType domain.LeaveType, n int) *domain.LeaveRequest {
	t.Helper()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, n-1)
	req, err := f.svc.Submit(context.Background(), actor, service.SubmitInput{
		StartDate: start.Format(domain.DateLayout),
		EndDate:   end.Format(domain.DateLayout),
		Reason:    "holiday",
		LeaveType: leaveType,
	})
	require.NoError(t, err)
	return req
}
