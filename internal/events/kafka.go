package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/fridayce/rork-mapcask/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// envelope is the record value. Unlike the websocket frame it carries the
// recipient list so downstream consumers can route it.
type envelope struct {
	Type    string    `json:"type"`
	UserIDs []string  `json:"user_ids,omitempty"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

// KafkaPublisher writes events to a topic keyed by the first recipient, so
// one user's events stay ordered within a partition.
type KafkaPublisher struct {
	w messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      brokers,
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	})
	return &KafkaPublisher{w: w}
}

func newKafkaPublisher(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{w: w}
}

var _ domain.EventPublisher = (*KafkaPublisher)(nil)

func (p *KafkaPublisher) Publish(ctx context.Context, e domain.Event) error {
	value, err := json.Marshal(envelope{Type: e.Type, UserIDs: e.UserIDs, Payload: e.Payload, At: e.At})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	key := e.Type
	if len(e.UserIDs) > 0 {
		key = e.UserIDs[0]
	}
	if err := p.w.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value, Time: e.At}); err != nil {
		return fmt.Errorf("write event %s: %w", e.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
