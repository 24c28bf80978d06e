package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cypherlabdev/kalshi-best-bets/internal/models"
)

// setupTestWriter creates a writer rooted in a temp dir
func setupTestWriter(t *testing.T) (*Writer, string) {
	t.Helper()
	root := t.TempDir()
	w := NewWriter(WriterConfig{Dir: root}, zerolog.Nop())
	w.now = func() time.Time { return time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC) }
	return w, root
}

func testReport() *models.Report {
	return &models.Report{
		RunID:       uuid.New(),
		Date:        "2026-03-07",
		GeneratedAt: time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC),
		MinEV:       0.02,
		ShareFactor: 0.5,
		TopN:        20,
		Qualifying:  2,
		Opportunities: []models.BetOpportunity{
			{MarketType: models.MarketTournament, Team: "Duke", Description: "Duke to Make Tournament", Ticker: "KXMAKEMARMAD-26-DUKE",
				Side: models.SideYes, ModelValue: 0.95, MarketPrice: 0.85, EV: 0.10, MatchMethod: models.MatchAlias, MatchScore: 100},
			{MarketType: models.MarketConferenceChampion, Team: "Duke", Conference: "ACC", Description: "Duke to Win ACC", Ticker: "KXACCREG-26-DUKE",
				Side: models.SideYes, ModelValue: 0.4, MarketPrice: 0.35, EV: 0.05, MatchMethod: models.MatchExact, MatchScore: 100},
		},
		Feed: []models.FeedMarket{{TeamName: "Duke", Ticker: "KXMAKEMARMAD-26-DUKE", MarketType: "Make Tournament", EV: 0.10}},
		UnmatchedTeams: []models.UnmatchedTeam{
			{Team: "St. Mary's", Normalized: "saint marys", MarketType: models.MarketTournament, Reason: "no market above similarity threshold (best 40.0)"},
		},
		UnmatchedContracts: []models.UnmatchedContract{
			{Contract: "Gonzaga", Normalized: "gonzaga", Ticker: "KXMAKEMARMAD-26-GONZ", MarketType: models.MarketTournament, Reason: "no team match found"},
		},
		Messages: []string{"Fetched 3 markets"},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

// TestWrite_AllFiles tests that every report file lands in the dated directory
func TestWrite_AllFiles(t *testing.T) {
	w, root := setupTestWriter(t)

	dir, err := w.Write(testReport())

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "2026-03-07"), dir)
	for _, name := range []string{BetsCSVFile, BetsJSONFile, UnmatchedTeamsFile, UnmatchedContractsFile, SummaryFile, FeedFile} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
}

// TestWrite_BetsCSV tests the ranked CSV layout
func TestWrite_BetsCSV(t *testing.T) {
	w, _ := setupTestWriter(t)
	dir, err := w.Write(testReport())
	require.NoError(t, err)

	records := readCSV(t, filepath.Join(dir, BetsCSVFile))

	require.Len(t, records, 3)
	assert.Equal(t, "market_type", records[0][0])
	assert.Equal(t, []string{"Make Tournament", "", "Duke to Make Tournament", "0.95", "0.85", "0.1", "yes",
		"KXMAKEMARMAD-26-DUKE", "Duke", "alias", "100", "2026-03-07T12:00:00Z"}, records[1])
	assert.Equal(t, "ACC", records[2][1])
}

// TestWrite_BetsJSON tests metadata in best_bets.json
func TestWrite_BetsJSON(t *testing.T) {
	w, _ := setupTestWriter(t)
	rep := testReport()
	dir, err := w.Write(rep)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, BetsJSONFile))
	require.NoError(t, err)
	var file BetsFile
	require.NoError(t, json.Unmarshal(data, &file))

	assert.Equal(t, 2, file.TotalBets)
	assert.Equal(t, 0.05, file.MinEV)
	assert.Equal(t, 0.10, file.MaxEV)
	assert.InDelta(t, 0.075, file.AvgEV, 1e-12)
	assert.Equal(t, 0.02, file.Threshold)
	assert.Equal(t, rep.RunID.String(), file.RunID)
	assert.Len(t, file.Bets, 2)
}

// TestWrite_Summary tests per-market-type statistics
func TestWrite_Summary(t *testing.T) {
	w, _ := setupTestWriter(t)
	dir, err := w.Write(testReport())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, SummaryFile))
	require.NoError(t, err)
	var summary Summary
	require.NoError(t, json.Unmarshal(data, &summary))

	assert.Equal(t, 2, summary.TotalBets)
	require.Contains(t, summary.MarketBreakdown, "Make Tournament")
	assert.Equal(t, 1, summary.MarketBreakdown["Make Tournament"].Count)
	assert.Equal(t, 0.05, summary.MarketBreakdown["Conference Champion"].MaxEV)
	assert.Equal(t, 1, summary.UnmatchedTeams)
	assert.Equal(t, 1, summary.UnmatchedContracts)
}

// TestWrite_Unmatched tests the diagnostic CSVs
func TestWrite_Unmatched(t *testing.T) {
	w, _ := setupTestWriter(t)
	dir, err := w.Write(testReport())
	require.NoError(t, err)

	teams := readCSV(t, filepath.Join(dir, UnmatchedTeamsFile))
	require.Len(t, teams, 2)
	assert.Equal(t, "St. Mary's", teams[1][0])
	assert.Equal(t, "saint marys", teams[1][1])

	contracts := readCSV(t, filepath.Join(dir, UnmatchedContractsFile))
	require.Len(t, contracts, 2)
	assert.Equal(t, "KXMAKEMARMAD-26-GONZ", contracts[1][2])
}

// TestWrite_Feed tests that feed.json is a loadable snapshot
func TestWrite_Feed(t *testing.T) {
	w, _ := setupTestWriter(t)
	rep := testReport()
	dir, err := w.Write(rep)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, FeedFile))
	require.NoError(t, err)
	var snapshot models.FeedSnapshot
	require.NoError(t, json.Unmarshal(data, &snapshot))

	assert.Equal(t, rep.RunID, snapshot.RunID)
	assert.Equal(t, "2026-03-07", snapshot.Date)
	assert.Len(t, snapshot.Markets, 1)
	assert.Len(t, snapshot.TopEV, 2)
}

// TestWrite_Empty tests that an empty run still writes headers
func TestWrite_Empty(t *testing.T) {
	w, _ := setupTestWriter(t)
	rep := &models.Report{RunID: uuid.New(), Date: "2026-03-08"}

	dir, err := w.Write(rep)

	require.NoError(t, err)
	records := readCSV(t, filepath.Join(dir, BetsCSVFile))
	assert.Len(t, records, 1)

	data, err := os.ReadFile(filepath.Join(dir, BetsJSONFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"bets": []`)
}

// TestWrite_Unwritable tests error wrapping for a bad output root
func TestWrite_Unwritable(t *testing.T) {
	root := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(root, []byte("x"), 0o644))
	w := NewWriter(WriterConfig{Dir: root}, zerolog.Nop())

	_, err := w.Write(testReport())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create output dir")
}

// TestRenderTable tests the console table
func TestRenderTable(t *testing.T) {
	out := RenderTable(testReport())

	assert.Contains(t, out, "TOP 2 KALSHI BEST BETS")
	assert.Contains(t, out, "Duke to Make Tournament")
	assert.Contains(t, out, "$0.100")
	assert.Contains(t, out, "NCAA Tournament")
	assert.Contains(t, out, "Total qualifying bets: 2")
}

// TestRenderTable_Empty tests the empty-report message
func TestRenderTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, &models.Report{}))
	assert.Equal(t, "No qualifying bets found.\n", buf.String())
}

// TestTruncate tests description shortening
func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	long := strings.Repeat("a", 60)
	assert.Equal(t, strings.Repeat("a", 50)+"...", truncate(long, 50))
}
