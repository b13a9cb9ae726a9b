package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &mockWriter{}
	p := newKafkaPublisher(w, "company-enrichment")
	at := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	err := p.Publish(context.Background(), Event{CompanyID: 42, Status: "enriched", Outcome: OutcomeEnriched, At: at})
	require.NoError(t, err)

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "42", string(msg.Key))
	assert.Equal(t, at, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "outcome", msg.Headers[0].Key)
	assert.Equal(t, "enriched", string(msg.Headers[0].Value))

	var got map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, float64(42), got["companyId"])
	assert.Equal(t, "enriched", got["status"])
	assert.Equal(t, "enriched", got["outcome"])
	assert.NotContains(t, got, "error")
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	w := &mockWriter{err: errors.New("leader not available")}
	p := newKafkaPublisher(w, "t")

	err := p.Publish(context.Background(), Event{CompanyID: 7, Outcome: OutcomeProviderError, Error: "timeout"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "company 7")
}

func TestKafkaPublisher_Close(t *testing.T) {
	w := &mockWriter{}
	require.NoError(t, newKafkaPublisher(w, "t").Close())
	assert.True(t, w.closed)
}

func TestNewKafkaPublisher(t *testing.T) {
	_, err := NewKafkaPublisher([]string{" ", ""}, "t")
	assert.Error(t, err)

	p, err := NewKafkaPublisher([]string{"localhost:9092"}, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultTopic, p.Topic())
	require.NoError(t, p.Close())
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), Event{}))
	assert.NoError(t, p.Close())
}
