// Package output writes the per-run report files under <dir>/<YYYY-MM-DD>/.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/cypherlabdev/kalshi-best-bets/internal/models"
	"github.com/cypherlabdev/kalshi-best-bets/pkg/report"
)

// Report file names
const (
	BetsCSVFile            = "best_bets.csv"
	BetsJSONFile           = "best_bets.json"
	UnmatchedTeamsFile     = "unmatched_teams.csv"
	UnmatchedContractsFile = "unmatched_contracts.csv"
	SummaryFile            = "summary.json"
	FeedFile               = "feed.json"
	LogFile                = "log.txt"
	ScreenshotsDir         = "screenshots"
)

// WriterConfig holds output configuration
type WriterConfig struct {
	Dir string
}

// Writer writes report files for a run
type Writer struct {
	dir    string
	now    func() time.Time
	logger zerolog.Logger
}

// NewWriter creates a new report writer
func NewWriter(config WriterConfig, logger zerolog.Logger) *Writer {
	return &Writer{
		dir:    config.Dir,
		now:    time.Now,
		logger: logger.With().Str("component", "output_writer").Logger(),
	}
}

// RunDir returns the directory for a run date
func (w *Writer) RunDir(date string) string {
	return filepath.Join(w.dir, date)
}

// ScreenshotDir returns the screenshot directory for a run date
func (w *Writer) ScreenshotDir(date string) string {
	return filepath.Join(w.RunDir(date), ScreenshotsDir)
}

// Prepare creates the run directory
func (w *Writer) Prepare(date string) (string, error) {
	dir := w.RunDir(date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	return dir, nil
}

// BetsFile is the layout of best_bets.json
type BetsFile struct {
	Timestamp   time.Time               `json:"timestamp"`
	RunID       string                  `json:"run_id"`
	Date        string                  `json:"date"`
	TotalBets   int                     `json:"total_bets"`
	Qualifying  int                     `json:"qualifying"`
	MinEV       float64                 `json:"min_ev"`
	MaxEV       float64                 `json:"max_ev"`
	AvgEV       float64                 `json:"avg_ev"`
	Threshold   float64                 `json:"min_ev_threshold"`
	ShareFactor float64                 `json:"share_factor"`
	Bets        []models.BetOpportunity `json:"bets"`
}

// Summary is the layout of summary.json
type Summary struct {
	Timestamp          time.Time                      `json:"timestamp"`
	TotalBets          int                            `json:"total_bets"`
	OverallAvgEV       float64                        `json:"overall_avg_ev"`
	MarketBreakdown    map[string]*models.MarketStats `json:"market_breakdown"`
	InvalidInputs      int                            `json:"invalid_inputs"`
	UnmatchedTeams     int                            `json:"unmatched_teams"`
	UnmatchedContracts int                            `json:"unmatched_contracts"`
	Messages           []string                       `json:"messages"`
}

// Write writes every report file and returns the run directory
func (w *Writer) Write(rep *models.Report) (string, error) {
	dir, err := w.Prepare(rep.Date)
	if err != nil {
		return "", err
	}

	steps := []struct {
		name string
		fn   func(string) error
	}{
		{BetsCSVFile, func(p string) error { return writeBetsCSV(p, rep.Opportunities, rep.GeneratedAt) }},
		{BetsJSONFile, func(p string) error { return writeJSON(p, w.betsFile(rep)) }},
		{UnmatchedTeamsFile, func(p string) error { return writeUnmatchedTeams(p, rep.UnmatchedTeams) }},
		{UnmatchedContractsFile, func(p string) error { return writeUnmatchedContracts(p, rep.UnmatchedContracts) }},
		{SummaryFile, func(p string) error { return writeJSON(p, w.summary(rep)) }},
		{FeedFile, func(p string) error { return writeJSON(p, models.NewFeedSnapshot(rep)) }},
	}

	for _, s := range steps {
		if err := s.fn(filepath.Join(dir, s.name)); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", s.name, err)
		}
	}

	w.logger.Info().
		Str("dir", dir).
		Int("bets", len(rep.Opportunities)).
		Int("unmatched_teams", len(rep.UnmatchedTeams)).
		Int("unmatched_contracts", len(rep.UnmatchedContracts)).
		Msg("wrote report files")

	return dir, nil
}

func (w *Writer) betsFile(rep *models.Report) BetsFile {
	out := BetsFile{
		Timestamp:   w.now().UTC(),
		RunID:       rep.RunID.String(),
		Date:        rep.Date,
		TotalBets:   len(rep.Opportunities),
		Qualifying:  rep.Qualifying,
		AvgEV:       report.MeanEV(rep.Opportunities),
		Threshold:   rep.MinEV,
		ShareFactor: rep.ShareFactor,
		Bets:        rep.Opportunities,
	}
	if out.Bets == nil {
		out.Bets = []models.BetOpportunity{}
	}
	if len(rep.Opportunities) > 0 {
		out.MinEV, out.MaxEV = math.Inf(1), math.Inf(-1)
		for _, o := range rep.Opportunities {
			out.MinEV = math.Min(out.MinEV, o.EV)
			out.MaxEV = math.Max(out.MaxEV, o.EV)
		}
	}
	return out
}

func (w *Writer) summary(rep *models.Report) Summary {
	return Summary{
		Timestamp:          w.now().UTC(),
		TotalBets:          len(rep.Opportunities),
		OverallAvgEV:       report.MeanEV(rep.Opportunities),
		MarketBreakdown:    report.Summarize(rep.Opportunities),
		InvalidInputs:      rep.InvalidInputs,
		UnmatchedTeams:     len(rep.UnmatchedTeams),
		UnmatchedContracts: len(rep.UnmatchedContracts),
		Messages:           rep.Messages,
	}
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeBetsCSV(path string, bets []models.BetOpportunity, at time.Time) error {
	header := []string{
		"market_type", "conference", "description", "model_prob_or_exp_payout", "market_price",
		"ev", "side", "contract_ticker", "team_name", "match_method", "match_score", "timestamp",
	}
	rows := make([][]string, 0, len(bets))
	for _, b := range bets {
		rows = append(rows, []string{
			b.MarketType.Label(),
			b.Conference,
			b.Description,
			formatFloat(b.ModelValue),
			formatFloat(b.MarketPrice),
			formatFloat(b.EV),
			b.Side,
			b.Ticker,
			b.Team,
			string(b.MatchMethod),
			formatFloat(b.MatchScore),
			at.Format(time.RFC3339),
		})
	}
	return writeCSV(path, header, rows)
}

func writeUnmatchedTeams(path string, teams []models.UnmatchedTeam) error {
	rows := make([][]string, 0, len(teams))
	for _, t := range teams {
		rows = append(rows, []string{t.Team, t.Normalized, t.MarketType.Label(), t.Conference, t.Reason})
	}
	return writeCSV(path, []string{"team", "normalized", "market_type", "conference", "reason"}, rows)
}

func writeUnmatchedContracts(path string, contracts []models.UnmatchedContract) error {
	rows := make([][]string, 0, len(contracts))
	for _, c := range contracts {
		rows = append(rows, []string{c.Contract, c.Normalized, c.Ticker, c.MarketType.Label(), c.Conference, c.Reason})
	}
	return writeCSV(path, []string{"contract", "normalized", "ticker", "market_type", "conference", "reason"}, rows)
}
