package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/cypherlabdev/kalshi-best-bets/internal/models"
)

// ErrNoFeed is returned when neither the cache nor the seed holds a snapshot
var ErrNoFeed = errors.New("no feed snapshot available")

const summaryListSize = 10

// FeedService serves dashboard feed snapshots with a cache-first strategy
type FeedService struct {
	cache  FeedCache
	seed   *models.FeedSnapshot
	now    func() time.Time
	logger zerolog.Logger
}

// NewFeedService creates a new feed service
func NewFeedService(cache FeedCache, logger zerolog.Logger) *FeedService {
	return &FeedService{
		cache:  cache,
		now:    time.Now,
		logger: logger.With().Str("component", "feed_service").Logger(),
	}
}

// LoadSeed reads a feed.json written by a batch run, keeps it as the fallback
// snapshot and writes it to the cache
func (s *FeedService) LoadSeed(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed feed: %w", err)
	}

	var snapshot models.FeedSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("failed to parse seed feed: %w", err)
	}
	if snapshot.Date == "" {
		return fmt.Errorf("seed feed %s has no date", path)
	}
	s.seed = &snapshot

	if err := s.cache.SetSnapshot(ctx, &snapshot); err != nil {
		// Seed still serves as fallback
		s.logger.Warn().
			Err(err).
			Str("date", snapshot.Date).
			Msg("failed to cache seed feed")
	}

	s.logger.Info().
		Str("path", path).
		Str("date", snapshot.Date).
		Int("markets", len(snapshot.Markets)).
		Msg("loaded seed feed")

	return nil
}

// Snapshot returns the snapshot for date (YYYY-MM-DD), or the latest when date is empty
func (s *FeedService) Snapshot(ctx context.Context, date string) (*models.FeedSnapshot, error) {
	var (
		snapshot *models.FeedSnapshot
		err      error
	)
	if date == "" {
		snapshot, err = s.cache.Latest(ctx)
	} else {
		snapshot, err = s.cache.ByDate(ctx, date)
	}
	if err == nil && snapshot != nil {
		s.logger.Debug().
			Str("date", snapshot.Date).
			Msg("cache hit for feed snapshot")
		return snapshot, nil
	}

	// Log cache miss (but don't fail on cache errors)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("date", date).
			Msg("cache miss for feed snapshot, trying seed")
	}

	if s.seed != nil && (date == "" || date == s.seed.Date) {
		return s.seed, nil
	}

	if date == "" {
		return nil, ErrNoFeed
	}
	return nil, fmt.Errorf("%w for %s", ErrNoFeed, date)
}

// Dates lists the run dates available in the cache, newest first
func (s *FeedService) Dates(ctx context.Context) ([]string, error) {
	dates, err := s.cache.Dates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list feed dates: %w", err)
	}
	if len(dates) == 0 && s.seed != nil {
		dates = []string{s.seed.Date}
	}
	return dates, nil
}

// Bets returns the snapshot grouped by market type, conference markets by conference
func (s *FeedService) Bets(ctx context.Context, date string) (*models.FeedBets, error) {
	snapshot, err := s.Snapshot(ctx, date)
	if err != nil {
		return nil, err
	}

	bets := &models.FeedBets{
		Timestamp:         s.now().UTC(),
		Date:              snapshot.Date,
		TotalMarkets:      len(snapshot.Markets),
		MakeTournament:    []models.FeedMarket{},
		ConferenceMarkets: make(map[string][]models.FeedMarket),
		GameMarkets:       []models.FeedMarket{},
	}

	for _, m := range snapshot.Markets {
		switch m.MarketType {
		case models.MarketTournament.Label():
			bets.MakeTournament = append(bets.MakeTournament, m)
		case models.MarketConferenceChampion.Label():
			bets.ConferenceMarkets[m.Conference] = append(bets.ConferenceMarkets[m.Conference], m)
		case models.MarketGame.Label():
			bets.GameMarkets = append(bets.GameMarkets, m)
		}
	}

	s.logger.Debug().
		Str("date", snapshot.Date).
		Int("total", bets.TotalMarkets).
		Msg("served grouped feed")

	return bets, nil
}

// Summary returns totals, per-conference counts and the top tournament favourites,
// underdogs and EV opportunities of a snapshot
func (s *FeedService) Summary(ctx context.Context, date string) (*models.FeedSummary, error) {
	snapshot, err := s.Snapshot(ctx, date)
	if err != nil {
		return nil, err
	}

	summary := &models.FeedSummary{
		Timestamp:          s.now().UTC(),
		Date:               snapshot.Date,
		ConferencesTracked: []string{},
		ConferenceCounts:   make(map[string]int),
		TopEV:              snapshot.TopEV,
	}

	var tournament []models.FeedMarket
	for _, m := range snapshot.Markets {
		switch m.MarketType {
		case models.MarketTournament.Label():
			summary.TotalMakeTournament++
			tournament = append(tournament, m)
		case models.MarketConferenceChampion.Label():
			summary.TotalConference++
			summary.ConferenceCounts[m.Conference]++
		case models.MarketGame.Label():
			summary.TotalGames++
		}
	}

	for conf := range summary.ConferenceCounts {
		summary.ConferencesTracked = append(summary.ConferencesTracked, conf)
	}
	sort.Strings(summary.ConferencesTracked)

	favorites := append([]models.FeedMarket(nil), tournament...)
	sort.SliceStable(favorites, func(i, j int) bool {
		return favorites[i].ImpliedProb > favorites[j].ImpliedProb
	})
	summary.TopFavorites = head(favorites, summaryListSize)

	var underdogs []models.FeedMarket
	for _, m := range tournament {
		if m.ImpliedProb > 0 {
			underdogs = append(underdogs, m)
		}
	}
	sort.SliceStable(underdogs, func(i, j int) bool {
		return underdogs[i].ImpliedProb < underdogs[j].ImpliedProb
	})
	summary.TopUnderdogs = head(underdogs, summaryListSize)

	if summary.TopEV == nil {
		summary.TopEV = []models.BetOpportunity{}
	}

	return summary, nil
}

// Ready checks the cache connection
func (s *FeedService) Ready(ctx context.Context) error {
	return s.cache.Ping(ctx)
}

func head(markets []models.FeedMarket, n int) []models.FeedMarket {
	if len(markets) > n {
		markets = markets[:n]
	}
	if markets == nil {
		return []models.FeedMarket{}
	}
	return markets
}
