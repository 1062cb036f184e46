// Package notification delivers composed e-mail messages to an outbound
// transport. Delivery is best effort; callers retry through the outbox.
package notification

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// Message is a plain-text e-mail.
type Message struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// ErrNoRecipients is returned for a message without any address.
var ErrNoRecipients = errors.New("notification has no recipients")

// Validate checks the message can be sent.
func (m Message) Validate() error {
	for _, to := range m.To {
		if strings.TrimSpace(to) != "" {
			return nil
		}
	}
	return ErrNoRecipients
}

// Sender hands a message to a transport.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}

// LogSender writes messages to the logger instead of a mail relay.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender builds a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger.Named("notification.log")}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	s.logger.Info("email",
		zap.String("from", msg.From),
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("body_bytes", len(msg.Body)),
	)
	return nil
}

func (s *LogSender) Close() error { return nil }
