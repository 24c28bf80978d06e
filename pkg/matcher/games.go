package matcher

import (
	"fmt"
	"sort"

	"github.com/cypherlabdev/kalshi-best-bets/internal/models"
)

// GameMatch is one side of a scheduled game resolved to its winner market
type GameMatch struct {
	Game        models.GameForecast
	Team        string
	Opponent    string
	Probability float64
	Match       Match
}

// GameResult holds the outcome of MatchGames
type GameResult struct {
	Matches            []GameMatch
	UnmatchedForecasts []Unmatched
	UnmatchedMarkets   []UnmatchedMarket
}

type gameEvent struct {
	key     string
	title   string
	markets map[string]string // ticker -> team subtitle
}

// MatchGames resolves each scheduled game to exactly one winner event, then each
// side to a market within it. Events are grouped by event ticker.
func (m *Matcher) MatchGames(games []models.GameForecast, markets []models.MarketRecord, aliases *AliasTable) GameResult {
	var res GameResult

	events := groupEvents(markets)
	claimed := make(map[string]bool)

	ordered := make([]models.GameForecast, len(games))
	copy(ordered, games)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Away != ordered[j].Away {
			return ordered[i].Away < ordered[j].Away
		}
		return ordered[i].Home < ordered[j].Home
	})

	for _, g := range ordered {
		label := fmt.Sprintf("%s at %s", g.Away, g.Home)
		away := m.normalizer.Normalize(g.Away)
		home := m.normalizer.Normalize(g.Home)
		if away == "" || home == "" {
			res.UnmatchedForecasts = append(res.UnmatchedForecasts, Unmatched{Name: label, Reason: ReasonEmptyName})
			continue
		}

		var found []*gameEvent
		for _, ev := range events {
			if m.eventCovers(ev, g, away, home, aliases) {
				found = append(found, ev)
			}
		}

		switch {
		case len(found) == 0:
			res.UnmatchedForecasts = append(res.UnmatchedForecasts, Unmatched{
				Name: label, Normalized: away + " at " + home, Reason: ReasonNoMarket,
			})
			continue
		case len(found) > 1:
			res.UnmatchedForecasts = append(res.UnmatchedForecasts, Unmatched{
				Name:       label,
				Normalized: away + " at " + home,
				Reason:     fmt.Sprintf("multiple markets found: %d", len(found)),
			})
			continue
		}

		sides := m.Match([]string{g.Away, g.Home}, found[0].markets, aliases)
		for _, rec := range g.Records() {
			match, ok := sides.Matches[rec.Name]
			if !ok {
				continue
			}
			claimed[match.Ticker] = true
			res.Matches = append(res.Matches, GameMatch{
				Game:        g,
				Team:        rec.Name,
				Opponent:    rec.Opponent,
				Probability: rec.Value,
				Match:       match,
			})
		}
		for _, u := range sides.UnmatchedForecasts {
			u.Name = fmt.Sprintf("%s (%s)", u.Name, label)
			res.UnmatchedForecasts = append(res.UnmatchedForecasts, u)
		}
	}

	for _, ev := range events {
		tickers := make([]string, 0, len(ev.markets))
		for t := range ev.markets {
			tickers = append(tickers, t)
		}
		sort.Strings(tickers)
		for _, t := range tickers {
			if claimed[t] {
				continue
			}
			res.UnmatchedMarkets = append(res.UnmatchedMarkets, UnmatchedMarket{
				Ticker:     t,
				Title:      ev.markets[t],
				Normalized: m.normalizer.Normalize(ev.markets[t]),
				Reason:     ReasonNoGameMatch,
			})
		}
	}

	return res
}

// eventCovers reports whether an event's title names both teams, or whether both
// teams resolve to markets inside it
func (m *Matcher) eventCovers(ev *gameEvent, g models.GameForecast, away, home string, aliases *AliasTable) bool {
	title := m.normalizer.Normalize(ev.title)
	if containsPhrase(title, away) && containsPhrase(title, home) {
		return true
	}
	if len(ev.markets) < 2 {
		return false
	}
	sides := m.Match([]string{g.Away, g.Home}, ev.markets, aliases)
	return len(sides.Matches) == 2
}

func groupEvents(markets []models.MarketRecord) []*gameEvent {
	byKey := make(map[string]*gameEvent)
	var keys []string

	for _, mk := range markets {
		key := mk.EventTicker
		if key == "" {
			key = mk.Ticker
		}
		ev, ok := byKey[key]
		if !ok {
			ev = &gameEvent{key: key, title: mk.Title, markets: make(map[string]string)}
			byKey[key] = ev
			keys = append(keys, key)
		}
		ev.markets[mk.Ticker] = mk.Subtitle
	}

	sort.Strings(keys)
	events := make([]*gameEvent, 0, len(keys))
	for _, k := range keys {
		events = append(events, byKey[k])
	}
	return events
}
