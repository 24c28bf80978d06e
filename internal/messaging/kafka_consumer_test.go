package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/cypherlabdev/kalshi-best-bets/internal/metrics"
	"github.com/cypherlabdev/kalshi-best-bets/internal/mocks"
	"github.com/cypherlabdev/kalshi-best-bets/internal/models"
)

// testKafkaConsumerSetup is a helper struct to hold test dependencies
type testKafkaConsumerSetup struct {
	mockCache *mocks.MockFeedCache
	logger    zerolog.Logger
	ctrl      *gomock.Controller
	config    KafkaConsumerConfig
}

// setupTestKafkaConsumer creates a test consumer with mocked dependencies
func setupTestKafkaConsumer(t *testing.T) *testKafkaConsumerSetup {
	ctrl := gomock.NewController(t)

	return &testKafkaConsumerSetup{
		mockCache: mocks.NewMockFeedCache(ctrl),
		logger:    zerolog.Nop(),
		ctrl:      ctrl,
		config: KafkaConsumerConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "best_bets_feed",
			GroupID: "test-group",
		},
	}
}

// cleanup cleans up test resources
func (s *testKafkaConsumerSetup) cleanup() {
	s.ctrl.Finish()
}

func snapshotMessage(t *testing.T, snapshot *models.FeedSnapshot) kafka.Message {
	t.Helper()
	data, err := json.Marshal(snapshot)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(snapshot.Date), Value: data}
}

func sampleSnapshot() *models.FeedSnapshot {
	return &models.FeedSnapshot{
		ID:          uuid.New(),
		RunID:       uuid.New(),
		Date:        "2026-03-07",
		GeneratedAt: time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC),
		Markets: []models.FeedMarket{
			{TeamName: "Duke", Ticker: "KXMAKEMARMAD-26-DUKE", MarketType: "Make Tournament", YesPrice: 0.85, BTProbability: 0.95, EV: 0.10},
		},
	}
}

// TestNewKafkaConsumer tests consumer creation
func TestNewKafkaConsumer(t *testing.T) {
	setup := setupTestKafkaConsumer(t)
	defer setup.cleanup()

	consumer := NewKafkaConsumer(setup.config, setup.mockCache, setup.logger)

	assert.NotNil(t, consumer)
	assert.NotNil(t, consumer.reader)
	assert.NotNil(t, consumer.cache)
	assert.Equal(t, setup.config.Topic, consumer.reader.(*kafka.Reader).Config().Topic)
	assert.Equal(t, setup.config.GroupID, consumer.reader.(*kafka.Reader).Config().GroupID)

	consumer.Close()
}

// TestProcessMessage_Success tests that a snapshot is cached
func TestProcessMessage_Success(t *testing.T) {
	setup := setupTestKafkaConsumer(t)
	defer setup.cleanup()

	consumer := NewKafkaConsumer(setup.config, setup.mockCache, setup.logger)
	defer consumer.Close()

	snapshot := sampleSnapshot()
	setup.mockCache.EXPECT().
		SetSnapshot(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, got *models.FeedSnapshot) error {
			assert.Equal(t, snapshot.RunID, got.RunID)
			assert.Equal(t, "2026-03-07", got.Date)
			assert.Len(t, got.Markets, 1)
			return nil
		})

	err := consumer.processMessage(context.Background(), snapshotMessage(t, snapshot))

	assert.NoError(t, err)
}

// TestProcessMessage_CountsSnapshots tests that cached snapshots are counted
func TestProcessMessage_CountsSnapshots(t *testing.T) {
	setup := setupTestKafkaConsumer(t)
	defer setup.cleanup()

	m := metrics.New()
	consumer := NewKafkaConsumer(setup.config, setup.mockCache, setup.logger).WithMetrics(m)
	defer consumer.Close()

	setup.mockCache.EXPECT().SetSnapshot(gomock.Any(), gomock.Any()).Return(nil)

	require.NoError(t, consumer.processMessage(context.Background(), snapshotMessage(t, sampleSnapshot())))

	expected := `
# HELP bestbets_feed_snapshots_consumed_total Feed snapshots cached by the dashboard consumer.
# TYPE bestbets_feed_snapshots_consumed_total counter
bestbets_feed_snapshots_consumed_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "bestbets_feed_snapshots_consumed_total"))
}

// TestProcessMessage_InvalidJSON tests processing with invalid JSON
func TestProcessMessage_InvalidJSON(t *testing.T) {
	setup := setupTestKafkaConsumer(t)
	defer setup.cleanup()

	consumer := NewKafkaConsumer(setup.config, setup.mockCache, setup.logger)
	defer consumer.Close()

	// Cache must not be touched
	err := consumer.processMessage(context.Background(), kafka.Message{Value: []byte("{not json")})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal message")
}

// TestProcessMessage_MissingDate tests rejection of snapshots without a run date
func TestProcessMessage_MissingDate(t *testing.T) {
	setup := setupTestKafkaConsumer(t)
	defer setup.cleanup()

	consumer := NewKafkaConsumer(setup.config, setup.mockCache, setup.logger)
	defer consumer.Close()

	snapshot := sampleSnapshot()
	snapshot.Date = ""

	err := consumer.processMessage(context.Background(), snapshotMessage(t, snapshot))

	assert.Error(t, err)
}

// TestProcessMessage_CacheFailure tests that cache errors are returned so the offset is not committed
func TestProcessMessage_CacheFailure(t *testing.T) {
	setup := setupTestKafkaConsumer(t)
	defer setup.cleanup()

	consumer := NewKafkaConsumer(setup.config, setup.mockCache, setup.logger)
	defer consumer.Close()

	setup.mockCache.EXPECT().
		SetSnapshot(gomock.Any(), gomock.Any()).
		Return(errors.New("redis down"))

	err := consumer.processMessage(context.Background(), snapshotMessage(t, sampleSnapshot()))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to cache snapshot")
}

// TestKafkaConsumer_Close tests consumer closing
func TestKafkaConsumer_Close(t *testing.T) {
	setup := setupTestKafkaConsumer(t)
	defer setup.cleanup()

	consumer := NewKafkaConsumer(setup.config, setup.mockCache, setup.logger)

	assert.NoError(t, consumer.Close())
}

// TestKafkaConsumer_ContextCancellation tests context cancellation handling
func TestKafkaConsumer_ContextCancellation(t *testing.T) {
	setup := setupTestKafkaConsumer(t)
	defer setup.cleanup()

	consumer := NewKafkaConsumer(setup.config, setup.mockCache, setup.logger)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())

	// Start consumer in goroutine
	done := make(chan error)
	go func() {
		done <- consumer.Start(ctx)
	}()

	// Cancel immediately
	cancel()

	// Wait for consumer to stop
	select {
	case err := <-done:
		// Consumer should stop without error on context cancellation
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Consumer did not stop within timeout")
	}
}

// fakeReader serves queued messages, then fails every fetch with err
type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	err       error
	fetches   int
	committed []kafka.Message
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if len(f.messages) > 0 {
		msg := f.messages[0]
		f.messages = f.messages[1:]
		return msg, nil
	}
	if f.err != nil {
		return kafka.Message{}, f.err
	}
	f.mu.Unlock()
	<-ctx.Done()
	f.mu.Lock()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeReader) Close() error {
	return nil
}

func (f *fakeReader) stats() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches, len(f.committed)
}

// TestKafkaConsumer_FetchErrorBackoff tests that repeated fetch failures wait between attempts
func TestKafkaConsumer_FetchErrorBackoff(t *testing.T) {
	setup := setupTestKafkaConsumer(t)
	defer setup.cleanup()

	reader := &fakeReader{err: errors.New("broker unavailable")}
	consumer := newKafkaConsumer(reader, "best_bets_feed", "test-group", setup.mockCache, setup.logger)
	consumer.retryWait = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 220*time.Millisecond)
	defer cancel()

	require.NoError(t, consumer.Start(ctx))

	fetches, _ := reader.stats()
	assert.GreaterOrEqual(t, fetches, 2)
	assert.LessOrEqual(t, fetches, 6)
}

// TestKafkaConsumer_StopsDuringBackoff tests that cancellation interrupts the retry wait
func TestKafkaConsumer_StopsDuringBackoff(t *testing.T) {
	setup := setupTestKafkaConsumer(t)
	defer setup.cleanup()

	reader := &fakeReader{err: errors.New("broker unavailable")}
	consumer := newKafkaConsumer(reader, "best_bets_feed", "test-group", setup.mockCache, setup.logger)
	consumer.retryWait = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- consumer.Start(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Consumer did not stop within timeout")
	}
}

// TestKafkaConsumer_CommitsProcessed tests that cached snapshots are committed
func TestKafkaConsumer_CommitsProcessed(t *testing.T) {
	setup := setupTestKafkaConsumer(t)
	defer setup.cleanup()

	reader := &fakeReader{messages: []kafka.Message{
		snapshotMessage(t, sampleSnapshot()),
		{Value: []byte("{not json")},
	}}
	consumer := newKafkaConsumer(reader, "best_bets_feed", "test-group", setup.mockCache, setup.logger)

	setup.mockCache.EXPECT().SetSnapshot(gomock.Any(), gomock.Any()).Return(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	require.NoError(t, consumer.Start(ctx))

	_, committed := reader.stats()
	assert.Equal(t, 1, committed)
}
