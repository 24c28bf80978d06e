package models

import (
	"time"

	"github.com/google/uuid"
)

// Contract sides
const (
	SideYes = "yes"
	SideNo  = "no"
)

// BetOpportunity is the EV of one matched market. EV = ModelValue - MarketPrice.
type BetOpportunity struct {
	MarketType  MarketType  `json:"market_type"`
	Team        string      `json:"team_name"`
	Conference  string      `json:"conference,omitempty"`
	Description string      `json:"description"`
	Ticker      string      `json:"contract_ticker"`
	Side        string      `json:"side"`
	ModelValue  float64     `json:"model_prob_or_exp_payout"` // Probability or expected payout
	MarketPrice float64     `json:"market_price"`
	EV          float64     `json:"ev"`
	MatchMethod MatchMethod `json:"match_method"`
	MatchScore  float64     `json:"match_score"`
}

// MarketStats summarizes the opportunities of one market type
type MarketStats struct {
	Count   int     `json:"count"`
	TotalEV float64 `json:"total_ev"`
	AvgEV   float64 `json:"avg_ev"`
	MaxEV   float64 `json:"max_ev"`
	MinEV   float64 `json:"min_ev"`
}

// Report is the result of one pipeline run
type Report struct {
	RunID              uuid.UUID           `json:"run_id"`
	Date               string              `json:"date"`
	GeneratedAt        time.Time           `json:"generated_at"`
	MinEV              float64             `json:"min_ev"`
	ShareFactor        float64             `json:"share_factor"`
	TopN               int                 `json:"top_n"`
	Qualifying         int                 `json:"qualifying"` // Opportunities passing min EV before the top-N cap
	Opportunities      []BetOpportunity    `json:"opportunities"`
	Feed               []FeedMarket        `json:"feed"`
	UnmatchedTeams     []UnmatchedTeam     `json:"unmatched_teams"`
	UnmatchedContracts []UnmatchedContract `json:"unmatched_contracts"`
	InvalidInputs      int                 `json:"invalid_inputs"`
	Messages           []string            `json:"messages"`
}

// EVParams holds the payout parameters of the EV calculator
type EVParams struct {
	ShareFactor    float64 // Fraction of the payout collected when a title is shared (0-1)
	EvaluateNoSide bool    // Also price the NO side of binary markets
	RequireQuote   bool    // Skip markets without a yes buy price
}
