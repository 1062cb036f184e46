package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/leave-service/internal/config"
	"github.com/spec-kit/leave-service/internal/domain"
	"github.com/spec-kit/leave-service/internal/events"
	"github.com/spec-kit/leave-service/internal/notification"
	"github.com/spec-kit/leave-service/internal/service"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []notification.Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg notification.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingSender) Close() error { return nil }

func TestNotificationService_SubmittedGoesToAdmins(t *testing.T) {
	d := events.NewInMemoryDispatcher()
	sender := &recordingSender{}
	service.NewNotificationService(d, sender, nil, config.NotificationConfig{
		EmailFrom:       "noreply@example.com",
		AdminRecipients: []string{"hr@example.com"},
	}).RegisterHandlers()

	e, err := events.New(events.EventLeaveRequestSubmitted, "req-1", "emp-1", time.Now(), events.LeaveRequestSubmittedPayload{
		RequestID:    "req-1",
		EmployeeName: "Ada Lovelace",
		LeaveType:    domain.LeaveTypeAnnual,
		StartDate:    "2024-01-01",
		EndDate:      "2024-01-05",
		LeaveDays:    5,
		Reason:       "trip",
	})
	require.NoError(t, err)
	require.NoError(t, d.Publish(context.Background(), e))

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "Leave Request Notification - Ada Lovelace", msg.Subject)
	assert.Equal(t, []string{"hr@example.com"}, msg.To)
	assert.Contains(t, msg.Body, "for a period of 5 days starting from 2024-01-01 to 2024-01-05")
	assert.Contains(t, msg.Body, "Reason: trip")
}

func TestNotificationService_SkipsWithoutAdmins(t *testing.T) {
	d := events.NewInMemoryDispatcher()
	sender := &recordingSender{}
	service.NewNotificationService(d, sender, nil, config.NotificationConfig{}).RegisterHandlers()

	e, err := events.New(events.EventLeaveRequestSubmitted, "req-1", "emp-1", time.Now(), events.LeaveRequestSubmittedPayload{RequestID: "req-1"})
	require.NoError(t, err)
	assert.NoError(t, d.Publish(context.Background(), e))
	assert.Empty(t, sender.sent)
}

func TestNotificationService_DecidedGoesToEmployeeAndSurfacesFailure(t *testing.T) {
	d := events.NewInMemoryDispatcher()
	sender := &recordingSender{}
	service.NewNotificationService(d, sender, nil, config.NotificationConfig{EmailFrom: "noreply@example.com"}).RegisterHandlers()

	e, err := events.New(events.EventLeaveRequestDecided, "req-1", "admin-1", time.Now(), events.LeaveRequestDecidedPayload{
		RequestID:     "req-1",
		EmployeeName:  "Ada Lovelace",
		EmployeeEmail: "ada@example.com",
		LeaveType:     domain.LeaveTypeAnnual,
		LeaveDays:     3,
		Status:        domain.LeaveStatusApproved,
		RemainingDays: 7,
	})
	require.NoError(t, err)
	require.NoError(t, d.Publish(context.Background(), e))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Leave Request Approved", sender.sent[0].Subject)
	assert.True(t, strings.Contains(sender.sent[0].Body, "Remaining annual leave days: 7."))

	sender.err = errors.New("relay down")
	assert.Error(t, d.Publish(context.Background(), e))
}
