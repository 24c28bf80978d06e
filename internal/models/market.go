package models

import (
	"github.com/shopspring/decimal"
)

// MarketType is the payout family of an exchange market
type MarketType string

const (
	MarketGame               MarketType = "GAME"
	MarketTournament         MarketType = "TOURNAMENT"
	MarketConferenceChampion MarketType = "CONFERENCE_CHAMPION"
)

// Label returns the human readable name used in reports and the dashboard feed
func (t MarketType) Label() string {
	switch t {
	case MarketGame:
		return "Game Winner"
	case MarketTournament:
		return "Make Tournament"
	case MarketConferenceChampion:
		return "Conference Champion"
	default:
		return string(t)
	}
}

// MarketRecord is one active exchange contract with its current prices.
// YesPrice and NoPrice are buy prices: the ask when quoted, otherwise the last trade.
type MarketRecord struct {
	Ticker      string          `json:"ticker"`
	EventTicker string          `json:"event_ticker"`
	Title       string          `json:"title"`
	Subtitle    string          `json:"team_name"`
	Type        MarketType      `json:"market_type"`
	Conference  string          `json:"conference,omitempty"`
	YesPrice    decimal.Decimal `json:"yes_price"`
	NoPrice     decimal.Decimal `json:"no_price"`
	YesBid      decimal.Decimal `json:"yes_bid"`
	NoBid       decimal.Decimal `json:"no_bid"`
	YesAsk      decimal.Decimal `json:"yes_ask"`
	NoAsk       decimal.Decimal `json:"no_ask"`
	LastPrice   decimal.Decimal `json:"last_price"`
	Volume      int64           `json:"volume"`
	Status      string          `json:"status"`
}

// ImpliedProb is the mid of the yes bid/ask, or the last price when nothing is quoted
func (m *MarketRecord) ImpliedProb() decimal.Decimal {
	sum := m.YesBid.Add(m.YesAsk)
	if sum.GreaterThan(decimal.Zero) {
		return sum.Div(decimal.NewFromInt(2)).Round(4)
	}
	return m.LastPrice.Round(4)
}

// HasQuote reports whether the market has a usable yes buy price
func (m *MarketRecord) HasQuote() bool {
	return m.YesPrice.GreaterThan(decimal.Zero)
}

// MatchMethod records how a forecast name was resolved to a market
type MatchMethod string

const (
	MatchExact MatchMethod = "exact"
	MatchAlias MatchMethod = "alias"
	MatchFuzzy MatchMethod = "fuzzy"
)

// MatchResult pairs a forecast team with the market it resolved to
type MatchResult struct {
	ForecastName string        `json:"forecast_name"`
	Market       *MarketRecord `json:"market"`
	Score        float64       `json:"score"` // 0-100
	Method       MatchMethod   `json:"method"`
}

// UnmatchedTeam is a forecast entity with no market counterpart
type UnmatchedTeam struct {
	Team       string     `json:"team"`
	Normalized string     `json:"normalized"`
	MarketType MarketType `json:"market_type"`
	Conference string     `json:"conference,omitempty"`
	Reason     string     `json:"reason"`
}

// UnmatchedContract is a market with no forecast counterpart
type UnmatchedContract struct {
	Contract   string     `json:"contract"`
	Normalized string     `json:"normalized"`
	Ticker     string     `json:"ticker"`
	MarketType MarketType `json:"market_type"`
	Conference string     `json:"conference,omitempty"`
	Reason     string     `json:"reason"`
}

// MarketSet is every active market fetched from the exchange in one run
type MarketSet struct {
	Tournament  []MarketRecord            `json:"tournament"`
	Conferences map[string][]MarketRecord `json:"conferences"`
	Games       []MarketRecord            `json:"games"`
}

// Count returns the total number of markets in the set
func (s *MarketSet) Count() int {
	n := len(s.Tournament) + len(s.Games)
	for _, markets := range s.Conferences {
		n += len(markets)
	}
	return n
}

// Titles returns market titles keyed by ticker, using the team subtitle when present
func Titles(markets []MarketRecord) map[string]string {
	out := make(map[string]string, len(markets))
	for _, m := range markets {
		name := m.Subtitle
		if name == "" {
			name = m.Title
		}
		out[m.Ticker] = name
	}
	return out
}
