package models

import (
	"time"

	"github.com/google/uuid"
)

// FeedMarket is one matched market as served by the dashboard feed
type FeedMarket struct {
	TeamName      string   `json:"team_name"`
	Ticker        string   `json:"ticker"`
	MarketType    string   `json:"market_type"`
	Conference    string   `json:"conference"`
	YesPrice      float64  `json:"yes_price"`
	NoPrice       float64  `json:"no_price"`
	YesAsk        float64  `json:"yes_ask"`
	NoAsk         float64  `json:"no_ask"`
	LastPrice     float64  `json:"last_price"`
	Volume        int64    `json:"volume"`
	ImpliedProb   float64  `json:"implied_prob"`
	BTProbability float64  `json:"bt_probability"`
	EV            float64  `json:"ev"`
	BTSource      string   `json:"bt_source"`
	ShareProb     *float64 `json:"share_prob"`
	SoleProb      *float64 `json:"sole_prob"`
}

// FeedSnapshot is the message published after each run and cached for the dashboard
type FeedSnapshot struct {
	ID          uuid.UUID        `json:"id"`
	RunID       uuid.UUID        `json:"run_id"`
	Date        string           `json:"date"`
	GeneratedAt time.Time        `json:"generated_at"`
	Markets     []FeedMarket     `json:"markets"`
	TopEV       []BetOpportunity `json:"top_ev"`
}

// NewFeedSnapshot builds the dashboard snapshot for a report
func NewFeedSnapshot(report *Report) *FeedSnapshot {
	return &FeedSnapshot{
		ID:          uuid.New(),
		RunID:       report.RunID,
		Date:        report.Date,
		GeneratedAt: report.GeneratedAt,
		Markets:     report.Feed,
		TopEV:       report.Opportunities,
	}
}

// FeedBets is the dashboard feed grouped by market type
type FeedBets struct {
	Timestamp         time.Time               `json:"timestamp"`
	Date              string                  `json:"date"`
	TotalMarkets      int                     `json:"total_markets"`
	MakeTournament    []FeedMarket            `json:"make_tournament"`
	ConferenceMarkets map[string][]FeedMarket `json:"conference_markets"`
	GameMarkets       []FeedMarket            `json:"game_markets"`
}

// FeedSummary is the dashboard overview of one snapshot
type FeedSummary struct {
	Timestamp           time.Time        `json:"timestamp"`
	Date                string           `json:"date"`
	TotalMakeTournament int              `json:"total_make_tournament"`
	TotalConference     int              `json:"total_conference"`
	TotalGames          int              `json:"total_games"`
	ConferencesTracked  []string         `json:"conferences_tracked"`
	ConferenceCounts    map[string]int   `json:"conference_counts"`
	TopFavorites        []FeedMarket     `json:"top_favorites"`
	TopUnderdogs        []FeedMarket     `json:"top_underdogs"`
	TopEV               []BetOpportunity `json:"top_ev"`
}
