package service

//go:generate mockgen -destination=../mocks/mock_cache.go -package=mocks . FeedCache

import (
	"context"

	"github.com/cypherlabdev/kalshi-best-bets/internal/models"
)

// FeedCache is an interface that abstracts feed snapshot storage
// This allows for easier testing and mocking
type FeedCache interface {
	SetSnapshot(ctx context.Context, snapshot *models.FeedSnapshot) error
	Latest(ctx context.Context) (*models.FeedSnapshot, error)
	ByDate(ctx context.Context, date string) (*models.FeedSnapshot, error)
	Dates(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}
