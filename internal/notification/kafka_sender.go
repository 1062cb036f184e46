package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafkago.Writer used here.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaSender publishes messages to a topic consumed by a mail relay.
type KafkaSender struct {
	writer MessageWriter
	topic  string
}

// NewKafkaWriter builds a writer for the given brokers.
func NewKafkaWriter(brokers []string) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
}

// NewKafkaSender builds a KafkaSender. The writer must not set a topic.
func NewKafkaSender(writer MessageWriter, topic string) *KafkaSender {
	return &KafkaSender{writer: writer, topic: topic}
}

func (s *KafkaSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	err = s.writer.WriteMessages(ctx, kafkago.Message{
		Topic: s.topic,
		Key:   []byte(strings.Join(msg.To, ",")),
		Value: raw,
		Headers: []kafkago.Header{
			{Key: "content_type", Value: []byte("application/json")},
		},
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", s.topic, err)
	}
	return nil
}

func (s *KafkaSender) Close() error {
	return s.writer.Close()
}
