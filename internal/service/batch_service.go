package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cypherlabdev/kalshi-best-bets/internal/models"
)

// ReportWriter persists a finished report and returns where it went
type ReportWriter interface {
	Write(rep *models.Report) (string, error)
}

// BatchConfig holds batch run configuration
type BatchConfig struct {
	DryRun bool // Run the pipeline but write and publish nothing
}

// Batch runs the pipeline once and delivers the report
type Batch struct {
	pipeline  *Pipeline
	writer    ReportWriter
	publisher Publisher
	dryRun    bool
	logger    zerolog.Logger
}

// NewBatch creates a batch run. publisher may be nil when the feed is not shipped.
func NewBatch(cfg BatchConfig, pipeline *Pipeline, writer ReportWriter, publisher Publisher, logger zerolog.Logger) *Batch {
	return &Batch{
		pipeline:  pipeline,
		writer:    writer,
		publisher: publisher,
		dryRun:    cfg.DryRun,
		logger:    logger.With().Str("component", "batch").Logger(),
	}
}

// Run executes the pipeline for date, writes the report files and publishes the feed.
// A publish failure is logged and does not fail the run; the files are the record.
func (b *Batch) Run(ctx context.Context, date time.Time) (*models.Report, error) {
	rep, err := b.pipeline.Run(ctx, date)
	if err != nil {
		return nil, err
	}

	if b.dryRun {
		b.logger.Info().
			Str("date", rep.Date).
			Int("bets", len(rep.Opportunities)).
			Msg("dry run, skipping output")
		return rep, nil
	}

	dir, err := b.writer.Write(rep)
	if err != nil {
		return rep, fmt.Errorf("write report: %w", err)
	}

	if b.publisher != nil {
		if err := b.publisher.Publish(ctx, models.NewFeedSnapshot(rep)); err != nil {
			b.logger.Warn().
				Err(err).
				Str("run_id", rep.RunID.String()).
				Msg("failed to publish feed snapshot")
		}
	}

	b.logger.Info().
		Str("dir", dir).
		Str("run_id", rep.RunID.String()).
		Int("bets", len(rep.Opportunities)).
		Msg("batch run complete")

	return rep, nil
}
