package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cypherlabdev/kalshi-best-bets/internal/metrics"
	"github.com/cypherlabdev/kalshi-best-bets/internal/models"
	"github.com/cypherlabdev/kalshi-best-bets/pkg/ev"
	"github.com/cypherlabdev/kalshi-best-bets/pkg/matcher"
	"github.com/cypherlabdev/kalshi-best-bets/pkg/report"
)

// TournamentConference labels tournament rows in the dashboard feed
const TournamentConference = "March Madness"

// DateLayout is the run date format used in reports, output paths and cache keys
const DateLayout = "2006-01-02"

// PipelineConfig holds the parameters of one batch run
type PipelineConfig struct {
	Conferences      map[string]string // conference -> forecast code
	ConferenceSeries map[string]string // conference -> exchange series ticker
	MinEV            float64
	ShareFactor      float64
	TopN             int
	Preflight        bool
	Aliases          *matcher.AliasTable
}

// Pipeline runs fetch, match, price and rank in sequence
type Pipeline struct {
	cfg        PipelineConfig
	forecasts  ForecastSource
	markets    MarketSource
	matcher    *matcher.Matcher
	calculator *ev.Calculator
	metrics    *metrics.Metrics
	now        func() time.Time
	logger     zerolog.Logger
}

// NewPipeline creates a new pipeline
func NewPipeline(
	cfg PipelineConfig,
	forecasts ForecastSource,
	markets MarketSource,
	nameMatcher *matcher.Matcher,
	calculator *ev.Calculator,
	logger zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		forecasts:  forecasts,
		markets:    markets,
		matcher:    nameMatcher,
		calculator: calculator,
		now:        time.Now,
		logger:     logger.With().Str("component", "pipeline").Logger(),
	}
}

// WithMetrics records stage timings and match counts into m
func (p *Pipeline) WithMetrics(m *metrics.Metrics) *Pipeline {
	p.metrics = m
	return p
}

// priced is one matched market ready for the EV calculator
type priced struct {
	input  ev.Input
	source string
}

// Run executes one batch for date. Any fetch failure aborts the run with a *models.FetchError.
func (p *Pipeline) Run(ctx context.Context, date time.Time) (*models.Report, error) {
	rep := &models.Report{
		RunID:       uuid.New(),
		Date:        date.Format(DateLayout),
		MinEV:       p.cfg.MinEV,
		ShareFactor: p.cfg.ShareFactor,
		TopN:        p.cfg.TopN,
	}
	logger := p.logger.With().Str("run_id", rep.RunID.String()).Str("date", rep.Date).Logger()
	logger.Info().Msg("starting run")

	if p.cfg.Preflight {
		if err := p.stage("preflight", func() error { return p.markets.Preflight(ctx) }); err != nil {
			return nil, p.fail(logger, "preflight", err)
		}
		logger.Info().Msg("exchange preflight passed")
	}

	var forecasts *models.ForecastSet
	err := p.stage("fetch_forecasts", func() (err error) {
		forecasts, err = p.forecasts.Fetch(ctx, date, p.cfg.Conferences)
		return err
	})
	if err != nil {
		return nil, p.fail(logger, "fetch forecasts", err)
	}

	var markets *models.MarketSet
	err = p.stage("fetch_markets", func() (err error) {
		markets, err = p.markets.FetchMarkets(ctx, p.cfg.ConferenceSeries)
		return err
	})
	if err != nil {
		return nil, p.fail(logger, "fetch markets", err)
	}

	p.recordFetched(forecasts, markets)
	rep.Messages = append(rep.Messages,
		fmt.Sprintf("Fetched %d tournament, %d conference and %d game forecasts",
			len(forecasts.Tournament), forecasts.Count()-len(forecasts.Tournament)-len(forecasts.Games), len(forecasts.Games)),
		fmt.Sprintf("Fetched %d markets", markets.Count()),
	)

	var matched []priced
	_ = p.stage("match", func() error {
		matched = append(matched, p.matchTournament(forecasts.Tournament, markets.Tournament, rep)...)
		matched = append(matched, p.matchConferences(forecasts.Conferences, markets.Conferences, rep)...)
		matched = append(matched, p.matchGames(forecasts.Games, markets.Games, rep)...)
		return nil
	})
	rep.Messages = append(rep.Messages, fmt.Sprintf("Matched %d markets (%d teams and %d contracts unmatched)",
		len(matched), len(rep.UnmatchedTeams), len(rep.UnmatchedContracts)))

	inputs := make([]ev.Input, 0, len(matched))
	for _, m := range matched {
		inputs = append(inputs, m.input)
	}

	var opportunities []models.BetOpportunity
	_ = p.stage("ev", func() error {
		opportunities, rep.InvalidInputs = p.calculator.BatchCalculate(inputs)
		return nil
	})
	p.metrics.AddInvalidInputs(rep.InvalidInputs)
	if rep.InvalidInputs > 0 {
		rep.Messages = append(rep.Messages, fmt.Sprintf("%d records excluded for invalid probabilities or prices", rep.InvalidInputs))
	}

	qualifying := report.Qualifying(opportunities, p.cfg.MinEV)
	rep.Qualifying = len(qualifying)
	rep.Opportunities = report.Aggregate(opportunities, p.cfg.MinEV, p.cfg.TopN)
	rep.Feed = buildFeed(markets, matched, opportunities)
	rep.GeneratedAt = p.now().UTC()

	if len(rep.Opportunities) == 0 {
		rep.Messages = append(rep.Messages, fmt.Sprintf("No opportunities with EV >= %.4f", p.cfg.MinEV))
	} else {
		rep.Messages = append(rep.Messages, fmt.Sprintf("%d opportunities with EV >= %.4f, reporting %d",
			rep.Qualifying, p.cfg.MinEV, len(rep.Opportunities)))
	}

	counts := make(map[string]int)
	for _, o := range rep.Opportunities {
		counts[o.MarketType.Label()]++
	}
	p.metrics.SetOpportunities(counts)
	p.metrics.RunSucceeded(rep.GeneratedAt)

	logger.Info().
		Int("matched", len(matched)).
		Int("qualifying", rep.Qualifying).
		Int("reported", len(rep.Opportunities)).
		Int("invalid", rep.InvalidInputs).
		Msg("run complete")

	return rep, nil
}

func (p *Pipeline) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.metrics.ObserveStage(name, time.Since(start))
	return err
}

func (p *Pipeline) fail(logger zerolog.Logger, op string, err error) error {
	source := "unknown"
	var fetchErr *models.FetchError
	if errors.As(err, &fetchErr) {
		source = fetchErr.Source
	}
	p.metrics.RunFailed(source)
	logger.Error().Err(err).Str("source", source).Msgf("%s failed", op)
	return fmt.Errorf("%s: %w", op, err)
}

func (p *Pipeline) recordFetched(forecasts *models.ForecastSet, markets *models.MarketSet) {
	p.metrics.AddFetched(models.SourceTourneyCast, string(models.MarketTournament), len(forecasts.Tournament))
	p.metrics.AddFetched(models.SourceSchedule, string(models.MarketGame), len(forecasts.Games))
	for _, teams := range forecasts.Conferences {
		p.metrics.AddFetched(models.SourceConCast, string(models.MarketConferenceChampion), len(teams))
	}
	p.metrics.AddFetched("kalshi", string(models.MarketTournament), len(markets.Tournament))
	p.metrics.AddFetched("kalshi", string(models.MarketGame), len(markets.Games))
	for _, m := range markets.Conferences {
		p.metrics.AddFetched("kalshi", string(models.MarketConferenceChampion), len(m))
	}
}

func (p *Pipeline) matchTournament(records []models.ForecastRecord, markets []models.MarketRecord, rep *models.Report) []priced {
	byName := make(map[string]models.ForecastRecord, len(records))
	names := make([]string, 0, len(records))
	for _, r := range records {
		byName[r.Name] = r
		names = append(names, r.Name)
	}

	res := p.matcher.Match(names, models.Titles(markets), p.cfg.Aliases)
	byTicker := indexMarkets(markets)

	out := make([]priced, 0, len(res.Matches))
	for _, name := range matchedNames(res) {
		m := res.Matches[name]
		out = append(out, priced{
			input: ev.Input{
				Match:       toMatchResult(m, byTicker[m.Ticker]),
				Team:        name,
				Probability: byName[name].Value,
			},
			source: models.SourceTourneyCast,
		})
		p.metrics.AddMatch(string(models.MarketTournament), string(m.Method))
	}

	p.addUnmatched(rep, res.UnmatchedForecasts, res.UnmatchedMarkets, models.MarketTournament, "")
	return out
}

func (p *Pipeline) matchConferences(forecasts map[string][]models.ConferenceForecast, markets map[string][]models.MarketRecord, rep *models.Report) []priced {
	var out []priced

	for _, conf := range conferenceNames(forecasts, markets) {
		teams := forecasts[conf]
		confMarkets := markets[conf]

		if len(confMarkets) == 0 {
			if len(teams) > 0 {
				rep.Messages = append(rep.Messages, fmt.Sprintf("No %s markets, %d teams skipped", conf, len(teams)))
			}
			for _, t := range teams {
				rep.UnmatchedTeams = append(rep.UnmatchedTeams, models.UnmatchedTeam{
					Team:       t.Team,
					Normalized: p.matcher.Normalizer().Normalize(t.Team),
					MarketType: models.MarketConferenceChampion,
					Conference: conf,
					Reason:     matcher.ReasonNoMarket,
				})
			}
			p.metrics.AddUnmatched("forecast", string(models.MarketConferenceChampion), len(teams))
			continue
		}

		byName := make(map[string]models.ConferenceForecast, len(teams))
		names := make([]string, 0, len(teams))
		for _, t := range teams {
			byName[t.Team] = t
			names = append(names, t.Team)
		}

		res := p.matcher.Match(names, models.Titles(confMarkets), p.cfg.Aliases)
		byTicker := indexMarkets(confMarkets)

		for _, name := range matchedNames(res) {
			m := res.Matches[name]
			f := byName[name]
			out = append(out, priced{
				input: ev.Input{
					Match:      toMatchResult(m, byTicker[m.Ticker]),
					Team:       name,
					Conference: conf,
					Sole:       f.Sole,
					Share:      f.Share,
				},
				source: models.SourceConCast,
			})
			p.metrics.AddMatch(string(models.MarketConferenceChampion), string(m.Method))
		}

		p.addUnmatched(rep, res.UnmatchedForecasts, res.UnmatchedMarkets, models.MarketConferenceChampion, conf)
	}

	return out
}

func (p *Pipeline) matchGames(games []models.GameForecast, markets []models.MarketRecord, rep *models.Report) []priced {
	res := p.matcher.MatchGames(games, markets, p.cfg.Aliases)
	byTicker := indexMarkets(markets)

	out := make([]priced, 0, len(res.Matches))
	for _, gm := range res.Matches {
		out = append(out, priced{
			input: ev.Input{
				Match:       toMatchResult(gm.Match, byTicker[gm.Match.Ticker]),
				Team:        gm.Team,
				Opponent:    gm.Opponent,
				Probability: gm.Probability,
			},
			source: models.SourceSchedule,
		})
		p.metrics.AddMatch(string(models.MarketGame), string(gm.Match.Method))
	}

	p.addUnmatched(rep, res.UnmatchedForecasts, res.UnmatchedMarkets, models.MarketGame, "")
	return out
}

func (p *Pipeline) addUnmatched(rep *models.Report, forecasts []matcher.Unmatched, markets []matcher.UnmatchedMarket, marketType models.MarketType, conference string) {
	for _, u := range forecasts {
		rep.UnmatchedTeams = append(rep.UnmatchedTeams, models.UnmatchedTeam{
			Team:       u.Name,
			Normalized: u.Normalized,
			MarketType: marketType,
			Conference: conference,
			Reason:     u.Reason,
		})
	}
	for _, u := range markets {
		rep.UnmatchedContracts = append(rep.UnmatchedContracts, models.UnmatchedContract{
			Contract:   u.Title,
			Normalized: u.Normalized,
			Ticker:     u.Ticker,
			MarketType: marketType,
			Conference: conference,
			Reason:     u.Reason,
		})
	}
	p.metrics.AddUnmatched("forecast", string(marketType), len(forecasts))
	p.metrics.AddUnmatched("market", string(marketType), len(markets))
}

// buildFeed lists every fetched market, enriched with the model side where one matched.
// Rows are ordered by implied probability descending, then ticker.
func buildFeed(markets *models.MarketSet, matched []priced, opportunities []models.BetOpportunity) []models.FeedMarket {
	byTicker := make(map[string]priced, len(matched))
	for _, m := range matched {
		byTicker[m.input.Match.Market.Ticker] = m
	}
	oppByTicker := make(map[string]models.BetOpportunity, len(opportunities))
	for _, o := range opportunities {
		oppByTicker[o.Ticker] = o
	}

	var all []models.MarketRecord
	all = append(all, markets.Tournament...)
	for _, conf := range conferenceNames(nil, markets.Conferences) {
		all = append(all, markets.Conferences[conf]...)
	}
	all = append(all, markets.Games...)

	feed := make([]models.FeedMarket, 0, len(all))
	for _, mk := range all {
		row := models.FeedMarket{
			TeamName:    mk.Subtitle,
			Ticker:      mk.Ticker,
			MarketType:  mk.Type.Label(),
			Conference:  mk.Conference,
			YesPrice:    mk.YesPrice.InexactFloat64(),
			NoPrice:     mk.NoPrice.InexactFloat64(),
			YesAsk:      mk.YesAsk.InexactFloat64(),
			NoAsk:       mk.NoAsk.InexactFloat64(),
			LastPrice:   mk.LastPrice.InexactFloat64(),
			Volume:      mk.Volume,
			ImpliedProb: mk.ImpliedProb().InexactFloat64(),
		}
		if mk.Type == models.MarketTournament {
			row.Conference = TournamentConference
		}

		if m, ok := byTicker[mk.Ticker]; ok {
			row.BTSource = m.source
			switch mk.Type {
			case models.MarketConferenceChampion:
				sole, share := m.input.Sole, m.input.Share
				row.SoleProb = &sole
				row.ShareProb = &share
			default:
				row.BTProbability = m.input.Probability
			}
			if o, ok := oppByTicker[mk.Ticker]; ok {
				row.EV = o.EV
				if mk.Type == models.MarketConferenceChampion {
					row.BTProbability = o.ModelValue
				}
			}
		}

		feed = append(feed, row)
	}

	sort.SliceStable(feed, func(i, j int) bool {
		if feed[i].ImpliedProb != feed[j].ImpliedProb {
			return feed[i].ImpliedProb > feed[j].ImpliedProb
		}
		return feed[i].Ticker < feed[j].Ticker
	})

	return feed
}

func toMatchResult(m matcher.Match, market *models.MarketRecord) models.MatchResult {
	return models.MatchResult{
		ForecastName: m.Name,
		Market:       market,
		Score:        m.Score,
		Method:       m.Method,
	}
}

func indexMarkets(markets []models.MarketRecord) map[string]*models.MarketRecord {
	out := make(map[string]*models.MarketRecord, len(markets))
	for i := range markets {
		out[markets[i].Ticker] = &markets[i]
	}
	return out
}

func matchedNames(res matcher.Result) []string {
	names := make([]string, 0, len(res.Matches))
	for name := range res.Matches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// conferenceNames returns the sorted union of conference keys
func conferenceNames(forecasts map[string][]models.ConferenceForecast, markets map[string][]models.MarketRecord) []string {
	seen := make(map[string]bool, len(forecasts)+len(markets))
	var names []string
	for name := range forecasts {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for name := range markets {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
