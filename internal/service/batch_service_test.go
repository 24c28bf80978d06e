package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/cypherlabdev/kalshi-best-bets/internal/mocks"
	"github.com/cypherlabdev/kalshi-best-bets/internal/models"
)

type fakeReportWriter struct {
	written []*models.Report
	err     error
}

func (f *fakeReportWriter) Write(rep *models.Report) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.written = append(f.written, rep)
	return "out/" + rep.Date, nil
}

// testBatchSetup is a helper struct to hold test dependencies
type testBatchSetup struct {
	*testPipelineSetup
	writer        *fakeReportWriter
	mockPublisher *mocks.MockPublisher
}

func setupTestBatch(t *testing.T) *testBatchSetup {
	pipeline := setupTestPipeline(t, nil)
	return &testBatchSetup{
		testPipelineSetup: pipeline,
		writer:            &fakeReportWriter{},
		mockPublisher:     mocks.NewMockPublisher(pipeline.ctrl),
	}
}

func (s *testBatchSetup) batch(cfg BatchConfig, publisher Publisher) *Batch {
	return NewBatch(cfg, s.pipeline, s.writer, publisher, zerolog.Nop())
}

// TestBatch_Success tests that the report is written and its feed published
func TestBatch_Success(t *testing.T) {
	setup := setupTestBatch(t)
	defer setup.cleanup()
	setup.expectFetches(sampleForecasts(), sampleMarkets())

	var published *models.FeedSnapshot
	setup.mockPublisher.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, s *models.FeedSnapshot) error {
			published = s
			return nil
		})

	rep, err := setup.batch(BatchConfig{}, setup.mockPublisher).Run(context.Background(), runDate)

	require.NoError(t, err)
	require.Len(t, setup.writer.written, 1)
	assert.Same(t, rep, setup.writer.written[0])
	require.NotNil(t, published)
	assert.Equal(t, rep.RunID, published.RunID)
	assert.Equal(t, "2026-03-07", published.Date)
	assert.Len(t, published.Markets, len(rep.Feed))
}

// TestBatch_DryRun tests that nothing is written or published
func TestBatch_DryRun(t *testing.T) {
	setup := setupTestBatch(t)
	defer setup.cleanup()
	setup.expectFetches(sampleForecasts(), sampleMarkets())

	rep, err := setup.batch(BatchConfig{DryRun: true}, setup.mockPublisher).Run(context.Background(), runDate)

	require.NoError(t, err)
	assert.Len(t, rep.Opportunities, 3)
	assert.Empty(t, setup.writer.written)
}

// TestBatch_NoPublisher tests a run with the feed disabled
func TestBatch_NoPublisher(t *testing.T) {
	setup := setupTestBatch(t)
	defer setup.cleanup()
	setup.expectFetches(sampleForecasts(), sampleMarkets())

	_, err := setup.batch(BatchConfig{}, nil).Run(context.Background(), runDate)

	require.NoError(t, err)
	assert.Len(t, setup.writer.written, 1)
}

// TestBatch_PublishFailure tests that a publish error does not fail the run
func TestBatch_PublishFailure(t *testing.T) {
	setup := setupTestBatch(t)
	defer setup.cleanup()
	setup.expectFetches(sampleForecasts(), sampleMarkets())

	setup.mockPublisher.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		Return(errors.New("no brokers"))

	_, err := setup.batch(BatchConfig{}, setup.mockPublisher).Run(context.Background(), runDate)

	assert.NoError(t, err)
}

// TestBatch_WriteFailure tests that a write error fails the run before publishing
func TestBatch_WriteFailure(t *testing.T) {
	setup := setupTestBatch(t)
	defer setup.cleanup()
	setup.expectFetches(sampleForecasts(), sampleMarkets())
	setup.writer.err = errors.New("read-only file system")

	_, err := setup.batch(BatchConfig{}, setup.mockPublisher).Run(context.Background(), runDate)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "write report")
}

// TestBatch_PipelineFailure tests that a fetch error writes nothing
func TestBatch_PipelineFailure(t *testing.T) {
	setup := setupTestBatch(t)
	defer setup.cleanup()

	setup.mockMarkets.EXPECT().Preflight(gomock.Any()).Return(models.NewFetchError("kalshi", "preflight", errors.New("timeout")))

	_, err := setup.batch(BatchConfig{}, setup.mockPublisher).Run(context.Background(), runDate)

	var fetchErr *models.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Empty(t, setup.writer.written)
}
