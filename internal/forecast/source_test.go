package forecast

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cypherlabdev/kalshi-best-bets/internal/models"
)

const tourneyCastHTML = `<html><body>
<table>
  <tr><th colspan="3">Projection</th><th colspan="2">Odds</th></tr>
  <tr><th>RK</th><th>TEAM</th><th>CONF</th><th>IN %</th><th>CHAMP</th></tr>
  <tr><td>1</td><td><a href="team.php?team=Duke">Duke</a> (1)</td><td>ACC</td><td>99.8%</td><td>18.2</td></tr>
  <tr><td>2</td><td><a href="#">St. Mary's</a></td><td>WCC</td><td>85.5</td><td>1.1</td></tr>
  <tr><td>3</td><td>Oakland</td><td>Horz</td><td>-</td><td>0.0</td></tr>
  <tr><td>4</td><td></td><td>SEC</td><td>50</td><td>0.0</td></tr>
  <tr><td>short row</td></tr>
</table>
</body></html>`

const conCastHTML = `<html><body>
<table>
  <tr><th>TEAM</th><th>REC</th><th>SHARE</th><th>SOLE</th></tr>
  <tr><td>Duke</td><td>14-2</td><td>62.0%</td><td>45.5%</td></tr>
  <tr><td>North Carolina</td><td>12-4</td><td>20%</td><td>N/A</td></tr>
  <tr><td>Boston College</td><td>3-13</td><td>-</td><td>-</td></tr>
</table>
</body></html>`

const scheduleHTML = `<html><body>
<table>
  <tr><th>TIME</th><th>MATCHUP</th><th>T-RANK LINE</th></tr>
  <tr><td>7:00 PM</td><td>3 Duke at 8 North Carolina</td><td>Duke -5.5, 78-72 (71%)</td></tr>
  <tr><td>9:00 PM</td><td>Kansas vs Baylor</td><td>Baylor -1.5, 70-69 (55%)</td></tr>
  <tr><td>9:30 PM</td><td>Gonzaga @ Saint Mary's</td><td></td></tr>
  <tr><td>TBD</td><td>Postponed</td><td>-</td></tr>
</table>
</body></html>`

// TestParseTourneyCast tests extraction of IN % probabilities
func TestParseTourneyCast(t *testing.T) {
	records, err := ParseTourneyCast(strings.NewReader(tourneyCastHTML))

	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "Duke", records[0].Name)
	assert.Equal(t, "ACC", records[0].Conference)
	assert.InDelta(t, 0.998, records[0].Value, 1e-9)
	assert.Equal(t, models.MetricTourneyProb, records[0].Kind)
	assert.Equal(t, models.SourceTourneyCast, records[0].Source)

	assert.Equal(t, "St. Mary's", records[1].Name)
	assert.InDelta(t, 0.855, records[1].Value, 1e-9)
}

// TestParseTourneyCast_NoHeader tests that a missing column is a parse failure
func TestParseTourneyCast_NoHeader(t *testing.T) {
	_, err := ParseTourneyCast(strings.NewReader(`<table><tr><th>TEAM</th><th>CONF</th></tr></table>`))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHeaderNotFound))
}

// TestParseConCast tests sole and share extraction
func TestParseConCast(t *testing.T) {
	teams, err := ParseConCast(strings.NewReader(conCastHTML), "ACC")

	require.NoError(t, err)
	require.Len(t, teams, 2)

	assert.Equal(t, models.ConferenceForecast{Team: "Duke", Conference: "ACC", Sole: 0.455, Share: 0.62}, teams[0])
	assert.Equal(t, "North Carolina", teams[1].Team)
	assert.Equal(t, 0.2, teams[1].Share)
	assert.Equal(t, 0.0, teams[1].Sole)
}

// TestParseSchedule tests matchup and line parsing
func TestParseSchedule(t *testing.T) {
	games, skipped, err := ParseSchedule(strings.NewReader(scheduleHTML), nil)

	require.NoError(t, err)
	assert.Equal(t, 2, skipped)
	require.Len(t, games, 2)

	assert.Equal(t, "Duke", games[0].Away)
	assert.Equal(t, "North Carolina", games[0].Home)
	assert.Equal(t, "Duke", games[0].Favorite)
	assert.InDelta(t, 0.71, games[0].WinProb, 1e-9)
	assert.Equal(t, "7:00 PM", games[0].Time)

	assert.Equal(t, "Kansas", games[1].Away)
	assert.Equal(t, "Baylor", games[1].Home)
	assert.Equal(t, "Baylor", games[1].Favorite)
	assert.Equal(t, "Kansas", games[1].Underdog())
	assert.InDelta(t, 0.55, games[1].WinProb, 1e-9)
}

// TestSplitMatchup tests separators and names whose lowercase form changes byte length
func TestSplitMatchup(t *testing.T) {
	tests := []struct {
		text string
		away string
		home string
		ok   bool
	}{
		{text: "12 Duke at 3 North Carolina", away: "Duke", home: "North Carolina", ok: true},
		{text: "Gonzaga vs. Saint Mary's", away: "Gonzaga", home: "Saint Mary's", ok: true},
		{text: "Kansas VS Baylor", away: "Kansas", home: "Baylor", ok: true},
		{text: "Auburn @ Alabama", away: "Auburn", home: "Alabama", ok: true},
		{text: "İstanbul Tech at Duke", away: "İstanbul Tech", home: "Duke", ok: true},
		{text: "KİEL at Duke", away: "KİEL", home: "Duke", ok: true},
		{text: "Duke", ok: false},
		{text: " at Duke", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			away, home, ok := splitMatchup(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.away, away)
			assert.Equal(t, tt.home, home)
		})
	}
}

// TestParsePercent tests percentage cells
func TestParsePercent(t *testing.T) {
	v, ok := parsePercent(" 71.3% ")
	assert.True(t, ok)
	assert.InDelta(t, 0.713, v, 1e-9)

	v, ok = parsePercent("1,000")
	assert.True(t, ok)
	assert.Equal(t, 10.0, v)

	for _, blank := range []string{"", "-", "N/A", "n/a", "abc"} {
		_, ok := parsePercent(blank)
		assert.False(t, ok, blank)
	}
}

type fakeBrowser struct {
	pages  map[string]string
	fail   map[string]error
	closed bool
	loaded []string
}

func (f *fakeBrowser) Page(_ context.Context, url string) (string, error) {
	f.loaded = append(f.loaded, url)
	if err, ok := f.fail[url]; ok {
		return "", err
	}
	return f.pages[url], nil
}

func (f *fakeBrowser) Close() error {
	f.closed = true
	return nil
}

func setupTestSource(browser *fakeBrowser) *Source {
	open := func(context.Context) (PageBrowser, error) { return browser, nil }
	return NewSourceWithBrowser("https://bt.test/", open, nil, zerolog.Nop())
}

// TestSource_Fetch tests a full scrape over static pages
func TestSource_Fetch(t *testing.T) {
	date := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	browser := &fakeBrowser{pages: map[string]string{
		"https://bt.test/tourneycast.php":                         tourneyCastHTML,
		"https://bt.test/concast.php?conlimit=ACC&date=20260307":  conCastHTML,
		"https://bt.test/concast.php?conlimit=B12&date=20260307":  `<table><tr><th>TEAM</th><th>SHARE</th></tr></table>`,
		"https://bt.test/schedule.php?date=20260307":              scheduleHTML,
	}}
	source := setupTestSource(browser)

	set, err := source.Fetch(context.Background(), date, map[string]string{"ACC": "ACC", "Big 12": "B12"})

	require.NoError(t, err)
	assert.True(t, browser.closed)
	assert.Len(t, set.Tournament, 2)
	assert.Len(t, set.Conferences["ACC"], 2)
	assert.NotContains(t, set.Conferences, "Big 12")
	assert.Len(t, set.Games, 2)
	assert.Equal(t, 6, set.Count())
	assert.Equal(t, []string{
		"https://bt.test/tourneycast.php",
		"https://bt.test/concast.php?conlimit=ACC&date=20260307",
		"https://bt.test/concast.php?conlimit=B12&date=20260307",
		"https://bt.test/schedule.php?date=20260307",
	}, browser.loaded)
}

// TestSource_FetchPageError tests that a page failure aborts and still closes the browser
func TestSource_FetchPageError(t *testing.T) {
	browser := &fakeBrowser{
		pages: map[string]string{"https://bt.test/tourneycast.php": tourneyCastHTML},
		fail:  map[string]error{"https://bt.test/schedule.php?date=20260307": errors.New("timeout")},
	}
	source := setupTestSource(browser)

	set, err := source.Fetch(context.Background(), time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC), nil)

	require.Error(t, err)
	assert.Nil(t, set)
	assert.True(t, browser.closed)

	var fetchErr *models.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, SourceName, fetchErr.Source)
	assert.Equal(t, "schedule", fetchErr.Op)
}

// TestSource_FetchBrowserError tests that a browser start failure is a fetch error
func TestSource_FetchBrowserError(t *testing.T) {
	open := func(context.Context) (PageBrowser, error) { return nil, errors.New("no chrome") }
	source := NewSourceWithBrowser("https://bt.test", open, nil, zerolog.Nop())

	_, err := source.Fetch(context.Background(), time.Now(), nil)

	var fetchErr *models.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, "browser", fetchErr.Op)
}
