package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/cypherlabdev/kalshi-best-bets/internal/metrics"
	"github.com/cypherlabdev/kalshi-best-bets/internal/models"
	"github.com/cypherlabdev/kalshi-best-bets/internal/service"
)

// fetchRetryWait is the pause after a failed fetch before trying again
const fetchRetryWait = time.Second

// messageReader is the subset of kafka.Reader the consumer uses
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer consumes feed snapshots from Kafka and caches them for the dashboard
type KafkaConsumer struct {
	reader    messageReader
	topic     string
	groupID   string
	cache     service.FeedCache
	metrics   *metrics.Metrics
	retryWait time.Duration
	logger    zerolog.Logger
}

// KafkaConsumerConfig holds Kafka consumer configuration
type KafkaConsumerConfig struct {
	Brokers []string // e.g., ["localhost:9092"]
	Topic   string   // e.g., "best_bets_feed"
	GroupID string   // e.g., "bestbets-dashboard"
}

// NewKafkaConsumer creates a new Kafka consumer
func NewKafkaConsumer(
	config KafkaConsumerConfig,
	cache service.FeedCache,
	logger zerolog.Logger,
) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        config.Brokers,
		Topic:          config.Topic,
		GroupID:        config.GroupID,
		MinBytes:       1,    // Snapshots are infrequent
		MaxBytes:       10e6, // 10MB
		CommitInterval: 1000, // Commit every 1 second
	})

	return newKafkaConsumer(reader, config.Topic, config.GroupID, cache, logger)
}

func newKafkaConsumer(reader messageReader, topic, groupID string, cache service.FeedCache, logger zerolog.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		reader:    reader,
		topic:     topic,
		groupID:   groupID,
		cache:     cache,
		retryWait: fetchRetryWait,
		logger:    logger.With().Str("component", "kafka_consumer").Logger(),
	}
}

// WithMetrics counts cached snapshots into m
func (c *KafkaConsumer) WithMetrics(m *metrics.Metrics) *KafkaConsumer {
	c.metrics = m
	return c
}

// Start begins consuming messages from Kafka
func (c *KafkaConsumer) Start(ctx context.Context) error {
	c.logger.Info().
		Str("topic", c.topic).
		Str("group_id", c.groupID).
		Msg("started consuming from Kafka")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("stopping Kafka consumer")
			return nil

		default:
			// Read message
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				c.logger.Error().Err(err).Msg("failed to fetch message")

				// Back off before fetching again
				select {
				case <-ctx.Done():
					c.logger.Info().Msg("stopping Kafka consumer")
					return nil
				case <-time.After(c.retryWait):
				}
				continue
			}

			// Process message
			if err := c.processMessage(ctx, msg); err != nil {
				c.logger.Error().
					Err(err).
					Int64("offset", msg.Offset).
					Str("key", string(msg.Key)).
					Msg("failed to process message")
				// Don't commit if processing failed
				continue
			}

			// Commit message
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				c.logger.Error().Err(err).Msg("failed to commit message")
			}
		}
	}
}

// processMessage caches a single feed snapshot
func (c *KafkaConsumer) processMessage(ctx context.Context, msg kafka.Message) error {
	// Parse message
	var snapshot models.FeedSnapshot
	if err := json.Unmarshal(msg.Value, &snapshot); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}
	if snapshot.Date == "" {
		return fmt.Errorf("snapshot without date")
	}

	c.logger.Debug().
		Int("markets", len(snapshot.Markets)).
		Str("run_id", snapshot.RunID.String()).
		Msg("processing feed snapshot")

	// Cache snapshot in Redis
	if err := c.cache.SetSnapshot(ctx, &snapshot); err != nil {
		return fmt.Errorf("failed to cache snapshot: %w", err)
	}
	c.metrics.SnapshotConsumed()

	c.logger.Info().
		Int("markets", len(snapshot.Markets)).
		Str("date", snapshot.Date).
		Str("run_id", snapshot.RunID.String()).
		Msg("cached feed snapshot")

	return nil
}

// Close closes the Kafka reader
func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
