package service

//go:generate mockgen -destination=../mocks/mock_sources.go -package=mocks . ForecastSource,MarketSource,Publisher

import (
	"context"
	"time"

	"github.com/cypherlabdev/kalshi-best-bets/internal/models"
)

// ForecastSource fetches model probabilities keyed by free-text team name
type ForecastSource interface {
	Fetch(ctx context.Context, date time.Time, conferences map[string]string) (*models.ForecastSet, error)
}

// MarketSource fetches active exchange markets keyed by ticker
type MarketSource interface {
	Preflight(ctx context.Context) error
	FetchMarkets(ctx context.Context, conferenceSeries map[string]string) (*models.MarketSet, error)
}

// Publisher ships feed snapshots to the dashboard
type Publisher interface {
	Publish(ctx context.Context, snapshot *models.FeedSnapshot) error
	Close() error
}
