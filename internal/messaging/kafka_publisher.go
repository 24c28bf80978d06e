package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/cypherlabdev/kalshi-best-bets/internal/models"
)

// messageWriter is the subset of kafka.Writer the publisher uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes feed snapshots for the dashboard
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger zerolog.Logger
}

// KafkaPublisherConfig holds Kafka publisher configuration
type KafkaPublisherConfig struct {
	Brokers      []string      // e.g., ["localhost:9092"]
	Topic        string        // e.g., "best_bets_feed"
	WriteTimeout time.Duration // e.g., 10 * time.Second
}

// NewKafkaPublisher creates a new Kafka publisher
func NewKafkaPublisher(config KafkaPublisherConfig, logger zerolog.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(config.Brokers...),
		Topic:                  config.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           config.WriteTimeout,
		AllowAutoTopicCreation: true,
	}

	return newKafkaPublisher(writer, config.Topic, logger)
}

func newKafkaPublisher(writer messageWriter, topic string, logger zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: writer,
		topic:  topic,
		logger: logger.With().Str("component", "kafka_publisher").Logger(),
	}
}

// Publish writes one snapshot keyed by its run date
func (p *KafkaPublisher) Publish(ctx context.Context, snapshot *models.FeedSnapshot) error {
	if snapshot == nil {
		return fmt.Errorf("nil snapshot")
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(snapshot.Date),
		Value: data,
		Time:  snapshot.GeneratedAt,
		Headers: []kafka.Header{
			{Key: "run_id", Value: []byte(snapshot.RunID.String())},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	p.logger.Info().
		Str("topic", p.topic).
		Str("date", snapshot.Date).
		Str("run_id", snapshot.RunID.String()).
		Int("markets", len(snapshot.Markets)).
		Msg("published feed snapshot")

	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
