// Package forecast scrapes BartTorvik probability tables through a headless browser.
package forecast

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cypherlabdev/kalshi-best-bets/internal/models"
	"github.com/cypherlabdev/kalshi-best-bets/pkg/matcher"
)

// SourceName identifies BartTorvik in fetch errors and metrics
const SourceName = "barttorvik"

// PageBrowser loads rendered pages. Close releases the session.
type PageBrowser interface {
	Page(ctx context.Context, url string) (string, error)
	Close() error
}

// BrowserFactory opens one browser session per fetch
type BrowserFactory func(ctx context.Context) (PageBrowser, error)

// SourceConfig holds forecast source configuration
type SourceConfig struct {
	BaseURL string // e.g., "https://barttorvik.com"
	Browser BrowserConfig
}

// Source fetches tournament, conference and game forecasts
type Source struct {
	baseURL    string
	open       BrowserFactory
	normalizer *matcher.Normalizer
	logger     zerolog.Logger
}

// NewSource creates a forecast source backed by headless Chrome
func NewSource(config SourceConfig, normalizer *matcher.Normalizer, logger zerolog.Logger) *Source {
	open := func(ctx context.Context) (PageBrowser, error) {
		return NewBrowser(ctx, config.Browser, logger)
	}
	return NewSourceWithBrowser(config.BaseURL, open, normalizer, logger)
}

// NewSourceWithBrowser creates a forecast source with a custom browser factory
func NewSourceWithBrowser(baseURL string, open BrowserFactory, normalizer *matcher.Normalizer, logger zerolog.Logger) *Source {
	if normalizer == nil {
		normalizer = matcher.DefaultNormalizer()
	}
	return &Source{
		baseURL:    strings.TrimRight(baseURL, "/"),
		open:       open,
		normalizer: normalizer,
		logger:     logger.With().Str("component", "forecast_source").Logger(),
	}
}

// Fetch scrapes all three datasets for date. conferences maps conference name to
// its BartTorvik code. Any page or parse failure aborts with a FetchError.
func (s *Source) Fetch(ctx context.Context, date time.Time, conferences map[string]string) (*models.ForecastSet, error) {
	browser, err := s.open(ctx)
	if err != nil {
		return nil, models.NewFetchError(SourceName, "browser", err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to close browser")
		}
	}()

	set := &models.ForecastSet{Conferences: make(map[string][]models.ConferenceForecast)}

	// TourneyCast
	html, err := browser.Page(ctx, s.TourneyCastURL())
	if err != nil {
		return nil, models.NewFetchError(SourceName, "tourneycast", err)
	}
	set.Tournament, err = ParseTourneyCast(strings.NewReader(html))
	if err != nil {
		return nil, models.NewFetchError(SourceName, "tourneycast", err)
	}
	s.logger.Info().Int("teams", len(set.Tournament)).Msg("scraped tourneycast")

	// ConCast, in name order so runs are reproducible
	names := make([]string, 0, len(conferences))
	for name := range conferences {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		code := conferences[name]
		html, err := browser.Page(ctx, s.ConCastURL(code, date))
		if err != nil {
			return nil, models.NewFetchError(SourceName, "concast "+code, err)
		}
		teams, err := ParseConCast(strings.NewReader(html), name)
		if err != nil {
			return nil, models.NewFetchError(SourceName, "concast "+code, err)
		}
		if len(teams) == 0 {
			s.logger.Warn().Str("conference", name).Msg("no concast rows")
			continue
		}
		set.Conferences[name] = teams
		s.logger.Info().Str("conference", name).Int("teams", len(teams)).Msg("scraped concast")
	}

	// Schedule
	html, err = browser.Page(ctx, s.ScheduleURL(date))
	if err != nil {
		return nil, models.NewFetchError(SourceName, "schedule", err)
	}
	games, skipped, err := ParseSchedule(strings.NewReader(html), s.normalizer)
	if err != nil {
		return nil, models.NewFetchError(SourceName, "schedule", err)
	}
	set.Games = games
	s.logger.Info().
		Int("games", len(games)).
		Int("skipped_rows", skipped).
		Str("date", date.Format("2006-01-02")).
		Msg("scraped schedule")

	return set, nil
}

// TourneyCastURL returns the tournament projection page
func (s *Source) TourneyCastURL() string {
	return s.baseURL + "/tourneycast.php"
}

// ConCastURL returns the conference projection page for code as of date
func (s *Source) ConCastURL(code string, date time.Time) string {
	return fmt.Sprintf("%s/concast.php?conlimit=%s&date=%s", s.baseURL, code, date.Format("20060102"))
}

// ScheduleURL returns the schedule page for date
func (s *Source) ScheduleURL(date time.Time) string {
	return fmt.Sprintf("%s/schedule.php?date=%s", s.baseURL, date.Format("20060102"))
}
