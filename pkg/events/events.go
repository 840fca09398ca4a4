package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/freshmart/pkg/config"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const (
	EventOrderPlaced      = "OrderPlaced"
	EventPaymentConfirmed = "PaymentConfirmed"
	EventOrderReviewed    = "OrderReviewed"
	EventStatusChanged    = "OrderStatusChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes order lifecycle events keyed by order id, so every event
// of one order lands on the same partition.
type Publisher struct {
	writer   Writer
	producer string
	now      func() time.Time
}

func NewPublisher(cfg config.KafkaConfig, producer string) *Publisher {
	return NewPublisherWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}, producer)
}

func NewPublisherWithWriter(w Writer, producer string) *Publisher {
	return &Publisher{writer: w, producer: producer, now: time.Now}
}

func Enabled(cfg config.KafkaConfig) bool {
	return len(cfg.Brokers) > 0 && cfg.Topic != ""
}

func (p *Publisher) Publish(ctx context.Context, eventType, orderID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}

	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    p.now().UTC(),
		Producer:      p.producer,
		CorrelationID: orderID,
		Payload:       data,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(orderID),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", eventType, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
