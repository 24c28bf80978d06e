// Package report ranks bet opportunities and summarizes them per market type.
package report

import (
	"math"
	"sort"

	"github.com/cypherlabdev/kalshi-best-bets/internal/models"
)

// Aggregate keeps opportunities with EV >= minEV, orders them by EV descending
// (ties by team then ticker ascending) and truncates to topN. topN <= 0 keeps all.
// The input slice is not modified.
func Aggregate(opportunities []models.BetOpportunity, minEV float64, topN int) []models.BetOpportunity {
	out := Qualifying(opportunities, minEV)

	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

// Qualifying filters and sorts without applying the result cap
func Qualifying(opportunities []models.BetOpportunity, minEV float64) []models.BetOpportunity {
	out := make([]models.BetOpportunity, 0, len(opportunities))
	for _, o := range opportunities {
		if o.EV >= minEV {
			out = append(out, o)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].EV != out[j].EV {
			return out[i].EV > out[j].EV
		}
		if out[i].Team != out[j].Team {
			return out[i].Team < out[j].Team
		}
		return out[i].Ticker < out[j].Ticker
	})

	return out
}

// Summarize groups opportunities by market type label
func Summarize(opportunities []models.BetOpportunity) map[string]*models.MarketStats {
	stats := make(map[string]*models.MarketStats)

	for _, o := range opportunities {
		label := o.MarketType.Label()
		s, ok := stats[label]
		if !ok {
			s = &models.MarketStats{MaxEV: math.Inf(-1), MinEV: math.Inf(1)}
			stats[label] = s
		}
		s.Count++
		s.TotalEV += o.EV
		s.MaxEV = math.Max(s.MaxEV, o.EV)
		s.MinEV = math.Min(s.MinEV, o.EV)
	}

	for _, s := range stats {
		s.AvgEV = s.TotalEV / float64(s.Count)
	}

	return stats
}

// MeanEV returns the average EV, or 0 for an empty slice
func MeanEV(opportunities []models.BetOpportunity) float64 {
	if len(opportunities) == 0 {
		return 0
	}
	total := 0.0
	for _, o := range opportunities {
		total += o.EV
	}
	return total / float64(len(opportunities))
}
