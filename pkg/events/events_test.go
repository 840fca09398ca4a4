package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/example/freshmart/pkg/config"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := NewPublisherWithWriter(w, "order-service")
	p.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	err := p.Publish(context.Background(), EventOrderPlaced, "o-1", map[string]any{"total_count": 3})
	require.NoError(t, err)

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "o-1", string(msg.Key))
	assert.Equal(t, "event_type", msg.Headers[0].Key)

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, EventOrderPlaced, env.EventType)
	assert.Equal(t, "order-service", env.Producer)
	assert.Equal(t, "o-1", env.CorrelationID)
	assert.Equal(t, 1, env.EventVersion)
	assert.NotEmpty(t, env.EventID)
	assert.JSONEq(t, `{"total_count":3}`, string(env.Payload))
}

func TestPublisher_WriteError(t *testing.T) {
	p := NewPublisherWithWriter(&fakeWriter{err: errors.New("leader not available")}, "order-service")

	err := p.Publish(context.Background(), EventOrderReviewed, "o-1", struct{}{})
	require.Error(t, err)
}

func TestEnabled(t *testing.T) {
	assert.False(t, Enabled(config.KafkaConfig{Topic: "order.events"}))
	assert.True(t, Enabled(config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "order.events"}))
}
