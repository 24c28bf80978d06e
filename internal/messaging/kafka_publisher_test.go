package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cypherlabdev/kalshi-best-bets/internal/models"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

// TestPublish_Success tests message key, value and headers
func TestPublish_Success(t *testing.T) {
	writer := &fakeWriter{}
	publisher := newKafkaPublisher(writer, "best_bets_feed", zerolog.Nop())
	snapshot := sampleSnapshot()

	err := publisher.Publish(context.Background(), snapshot)

	require.NoError(t, err)
	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, "2026-03-07", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, snapshot.RunID.String(), string(msg.Headers[0].Value))

	var decoded models.FeedSnapshot
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, snapshot.RunID, decoded.RunID)
	assert.Len(t, decoded.Markets, 1)
}

// TestPublish_WriterError tests error propagation
func TestPublish_WriterError(t *testing.T) {
	publisher := newKafkaPublisher(&fakeWriter{err: errors.New("no brokers")}, "best_bets_feed", zerolog.Nop())

	err := publisher.Publish(context.Background(), sampleSnapshot())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write message")
}

// TestPublish_Nil tests rejection of nil snapshots
func TestPublish_Nil(t *testing.T) {
	writer := &fakeWriter{}
	publisher := newKafkaPublisher(writer, "best_bets_feed", zerolog.Nop())

	assert.Error(t, publisher.Publish(context.Background(), nil))
	assert.Empty(t, writer.messages)
}

// TestNewKafkaPublisher tests writer configuration
func TestNewKafkaPublisher(t *testing.T) {
	publisher := NewKafkaPublisher(KafkaPublisherConfig{Brokers: []string{"localhost:9092"}, Topic: "best_bets_feed"}, zerolog.Nop())

	writer, ok := publisher.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "best_bets_feed", writer.Topic)
	assert.NoError(t, publisher.Close())
}
