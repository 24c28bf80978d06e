package models

// MetricKind identifies which probability a forecast record carries
type MetricKind string

const (
	MetricWinProb       MetricKind = "WIN_PROB"
	MetricTourneyProb   MetricKind = "TOURNEY_PROB"
	MetricConfSoleProb  MetricKind = "CONF_SOLE_PROB"
	MetricConfShareProb MetricKind = "CONF_SHARE_PROB"
)

// Forecast source pages
const (
	SourceTourneyCast = "tourneycast"
	SourceConCast     = "concast"
	SourceSchedule    = "schedule"
)

// ForecastRecord is a single scraped probability keyed by free-text team name
type ForecastRecord struct {
	Name       string     `json:"name"`
	Kind       MetricKind `json:"kind"`
	Value      float64    `json:"value"` // Probability in [0,1]
	Conference string     `json:"conference,omitempty"`
	Opponent   string     `json:"opponent,omitempty"`
	Source     string     `json:"source"`
}

// ConferenceForecast holds the sole and shared title probabilities for one team
type ConferenceForecast struct {
	Team       string  `json:"team"`
	Conference string  `json:"conference"`
	Sole       float64 `json:"sole_probability"`
	Share      float64 `json:"share_probability"`
}

// Records splits the forecast into its sole and share records
func (c ConferenceForecast) Records() []ForecastRecord {
	return []ForecastRecord{
		{Name: c.Team, Kind: MetricConfSoleProb, Value: c.Sole, Conference: c.Conference, Source: SourceConCast},
		{Name: c.Team, Kind: MetricConfShareProb, Value: c.Share, Conference: c.Conference, Source: SourceConCast},
	}
}

// GameForecast is one scheduled game with the projected winner's probability
type GameForecast struct {
	Away     string  `json:"away_team"`
	Home     string  `json:"home_team"`
	Favorite string  `json:"favorite"`
	WinProb  float64 `json:"win_probability"` // Favorite's probability
	Line     string  `json:"line,omitempty"`
	Time     string  `json:"time,omitempty"`
}

// Underdog returns the team that is not the favorite
func (g GameForecast) Underdog() string {
	if g.Favorite == g.Home {
		return g.Away
	}
	return g.Home
}

// Records returns one WIN_PROB record per side
func (g GameForecast) Records() []ForecastRecord {
	underdog := g.Underdog()
	return []ForecastRecord{
		{Name: g.Favorite, Kind: MetricWinProb, Value: g.WinProb, Opponent: underdog, Source: SourceSchedule},
		{Name: underdog, Kind: MetricWinProb, Value: 1 - g.WinProb, Opponent: g.Favorite, Source: SourceSchedule},
	}
}

// ForecastSet is everything scraped from the forecast source in one run
type ForecastSet struct {
	Tournament  []ForecastRecord                `json:"tournament"`
	Conferences map[string][]ConferenceForecast `json:"conferences"`
	Games       []GameForecast                  `json:"games"`
}

// Count returns the number of teams and games in the set
func (s *ForecastSet) Count() int {
	n := len(s.Tournament) + len(s.Games)
	for _, teams := range s.Conferences {
		n += len(teams)
	}
	return n
}
