package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/leave-service/internal/config"
	"github.com/spec-kit/leave-service/internal/events"
	"github.com/spec-kit/leave-service/internal/notification"
)

// NotificationService turns leave events into e-mails.
type NotificationService struct {
	dispatcher events.Dispatcher
	sender     notification.Sender
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, sender notification.Sender, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		sender:     sender,
		logger:     logger.Named("notification.service"),
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventLeaveRequestSubmitted, n.handleSubmitted)
	n.dispatcher.Subscribe(events.EventLeaveRequestDecided, n.handleDecided)
}

func (n *NotificationService) handleSubmitted(ctx context.Context, event events.Event) error {
	var payload events.LeaveRequestSubmittedPayload
	if err := event.Decode(&payload); err != nil {
		return err
	}
	if len(n.cfg.AdminRecipients) == 0 {
		n.logger.Warn("no admin recipients configured; skipping submission e-mail", zap.String("request_id", payload.RequestID))
		return nil
	}
	return n.send(ctx, event, SubmittedMessage(n.cfg.EmailFrom, n.cfg.AdminRecipients, payload))
}

func (n *NotificationService) handleDecided(ctx context.Context, event events.Event) error {
	var payload events.LeaveRequestDecidedPayload
	if err := event.Decode(&payload); err != nil {
		return err
	}
	if strings.TrimSpace(payload.EmployeeEmail) == "" {
		n.logger.Warn("employee has no e-mail; skipping decision e-mail", zap.String("request_id", payload.RequestID))
		return nil
	}
	return n.send(ctx, event, DecidedMessage(n.cfg.EmailFrom, payload))
}

func (n *NotificationService) send(ctx context.Context, event events.Event, msg notification.Message) error {
	if err := n.sender.Send(ctx, msg); err != nil {
		n.logger.Warn("notification failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		return err
	}
	n.logger.Debug("notification sent",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.Strings("to", msg.To))
	return nil
}

// SubmittedMessage composes the admin notice for a new request.
func SubmittedMessage(from string, to []string, p events.LeaveRequestSubmittedPayload) notification.Message {
	body := fmt.Sprintf(`Hello,

You have received a leave request from %s
for a period of %d days starting from %s to %s.

Leave type: %s
Reason: %s

Request id: %s

Thank you.`, p.EmployeeName, p.LeaveDays, p.StartDate, p.EndDate, p.LeaveType, p.Reason, p.RequestID)
	return notification.Message{
		From:    from,
		To:      to,
		Subject: "Leave Request Notification - " + p.EmployeeName,
		Body:    body,
	}
}

// DecidedMessage composes the employee notice for a decision.
func DecidedMessage(from string, p events.LeaveRequestDecidedPayload) notification.Message {
	verb := string(p.Status)
	if verb == "" {
		verb = "updated"
	}
	body := fmt.Sprintf(`Hello %s,

Your %s leave request for %d days from %s to %s has been %s.
Remaining annual leave days: %d.

Thank you.`, p.EmployeeName, p.LeaveType, p.LeaveDays, p.StartDate, p.EndDate, verb, p.RemainingDays)
	return notification.Message{
		From:    from,
		To:      []string{p.EmployeeEmail},
		Subject: "Leave Request " + strings.ToUpper(verb[:1]) + verb[1:],
		Body:    body,
	}
}
