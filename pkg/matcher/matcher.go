// Package matcher resolves free-text forecast names to exchange market tickers.
//
// Resolution runs in three phases over normalized names: exact equality, alias
// lookup, then approximate similarity against markets not yet claimed. Every input
// ends up either matched or in an unmatched list with a reason; nothing is logged.
package matcher

import (
	"fmt"
	"sort"

	"github.com/cypherlabdev/kalshi-best-bets/internal/models"
)

// DefaultMinScore is the similarity a fuzzy match must exceed
const DefaultMinScore = 90.0

// Unmatched reasons
const (
	ReasonEmptyName      = "empty name"
	ReasonBelowThreshold = "no market above similarity threshold"
	ReasonClaimed        = "market already claimed"
	ReasonNoTeamMatch    = "no team match found"
	ReasonNoMarket       = "no market found"
	ReasonNoGameMatch    = "no game match found"
)

// Match is a resolved forecast name
type Match struct {
	Name   string
	Ticker string
	Score  float64
	Method models.MatchMethod
}

// Unmatched is a forecast name that could not be resolved
type Unmatched struct {
	Name       string
	Normalized string
	Reason     string
}

// UnmatchedMarket is a market no forecast resolved to
type UnmatchedMarket struct {
	Ticker     string
	Title      string
	Normalized string
	Reason     string
}

// Result holds the outcome of one Match call
type Result struct {
	Matches            map[string]Match // keyed by forecast name as given
	UnmatchedForecasts []Unmatched
	UnmatchedMarkets   []UnmatchedMarket
}

// Matcher resolves names with a fixed normalizer and acceptance threshold
type Matcher struct {
	normalizer *Normalizer
	minScore   float64
}

// New creates a matcher. A nil normalizer uses the default tables.
func New(minScore float64, normalizer *Normalizer) *Matcher {
	if normalizer == nil {
		normalizer = DefaultNormalizer()
	}
	return &Matcher{normalizer: normalizer, minScore: minScore}
}

// Normalizer returns the matcher's normalizer
func (m *Matcher) Normalizer() *Normalizer {
	return m.normalizer
}

type candidate struct {
	name   string
	ticker string
	score  float64
}

// Match resolves forecast names against market titles keyed by ticker.
// Each market is assigned to at most one name. The result depends only on the inputs.
func (m *Matcher) Match(names []string, titles map[string]string, aliases *AliasTable) Result {
	res := Result{Matches: make(map[string]Match)}

	tickers := make([]string, 0, len(titles))
	for t := range titles {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	marketNorm := make(map[string]string, len(tickers))
	byNorm := make(map[string][]string)
	for _, t := range tickers {
		n := m.normalizer.Normalize(titles[t])
		marketNorm[t] = n
		if n != "" {
			byNorm[n] = append(byNorm[n], t)
		}
	}

	claimed := make(map[string]bool)
	firstFree := func(candidates []string) (string, bool) {
		for _, t := range candidates {
			if !claimed[t] {
				return t, true
			}
		}
		return "", false
	}

	ordered := uniqueSorted(names)
	normName := make(map[string]string, len(ordered))
	var pending []string

	// Phase 1: exact
	for _, name := range ordered {
		n := m.normalizer.Normalize(name)
		normName[name] = n
		if n == "" {
			res.UnmatchedForecasts = append(res.UnmatchedForecasts, Unmatched{Name: name, Reason: ReasonEmptyName})
			continue
		}
		if t, ok := firstFree(byNorm[n]); ok {
			claimed[t] = true
			res.Matches[name] = Match{Name: name, Ticker: t, Score: 100, Method: models.MatchExact}
			continue
		}
		pending = append(pending, name)
	}

	// Phase 2: alias
	var fuzzy []string
	for _, name := range pending {
		target, ok := aliases.Lookup(normName[name])
		if ok {
			if _, isTicker := titles[target]; isTicker && !claimed[target] {
				claimed[target] = true
				res.Matches[name] = Match{Name: name, Ticker: target, Score: 100, Method: models.MatchAlias}
				continue
			}
			if t, found := firstFree(byNorm[m.normalizer.Normalize(target)]); found {
				claimed[t] = true
				res.Matches[name] = Match{Name: name, Ticker: t, Score: 100, Method: models.MatchAlias}
				continue
			}
		}
		fuzzy = append(fuzzy, name)
	}

	// Phase 3: approximate similarity over unclaimed markets
	best := make(map[string]float64, len(fuzzy))
	var candidates []candidate
	for _, name := range fuzzy {
		for _, t := range tickers {
			if claimed[t] || marketNorm[t] == "" {
				continue
			}
			score := Similarity(normName[name], marketNorm[t])
			if score > best[name] {
				best[name] = score
			}
			if score > m.minScore {
				candidates = append(candidates, candidate{name: name, ticker: t, score: score})
			}
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		if candidates[i].name != candidates[j].name {
			return candidates[i].name < candidates[j].name
		}
		return candidates[i].ticker < candidates[j].ticker
	})
	for _, c := range candidates {
		if claimed[c.ticker] {
			continue
		}
		if _, done := res.Matches[c.name]; done {
			continue
		}
		claimed[c.ticker] = true
		res.Matches[c.name] = Match{Name: c.name, Ticker: c.ticker, Score: c.score, Method: models.MatchFuzzy}
	}

	for _, name := range fuzzy {
		if _, ok := res.Matches[name]; ok {
			continue
		}
		reason := fmt.Sprintf("%s (best %.1f)", ReasonBelowThreshold, best[name])
		if len(byNorm[normName[name]]) > 0 {
			reason = ReasonClaimed
		}
		res.UnmatchedForecasts = append(res.UnmatchedForecasts, Unmatched{
			Name:       name,
			Normalized: normName[name],
			Reason:     reason,
		})
	}
	sort.Slice(res.UnmatchedForecasts, func(i, j int) bool {
		return res.UnmatchedForecasts[i].Name < res.UnmatchedForecasts[j].Name
	})

	for _, t := range tickers {
		if claimed[t] {
			continue
		}
		res.UnmatchedMarkets = append(res.UnmatchedMarkets, UnmatchedMarket{
			Ticker:     t,
			Title:      titles[t],
			Normalized: marketNorm[t],
			Reason:     ReasonNoTeamMatch,
		})
	}

	return res
}

func uniqueSorted(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
