package forecast

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/cypherlabdev/kalshi-best-bets/internal/models"
	"github.com/cypherlabdev/kalshi-best-bets/pkg/matcher"
)

// ErrHeaderNotFound is returned when no table carries the required columns
var ErrHeaderNotFound = errors.New("required table columns not found")

// Column labels as they appear in table headers, upper-cased
var (
	teamLabels  = []string{"TEAM"}
	confLabels  = []string{"CONF", "CONFERENCE"}
	inLabels    = []string{"IN %", "IN%", "IN"}
	shareLabels = []string{"SHARE"}
	soleLabels  = []string{"SOLE"}
)

// gameLine matches a T-Rank projection such as "Duke -5.5, 78-72 (71%)"
var gameLine = regexp.MustCompile(`(?i)^\s*(.+?)\s+(?:-?\d+(?:\.\d+)?|pk)\s*,\s*\d+\s*-\s*\d+\s*\((\d+(?:\.\d+)?)%\)`)

// leadingRank strips rank or seed prefixes such as "12 Duke"
var leadingRank = regexp.MustCompile(`^\d+\s+`)

// matchupSeparator finds "at", "@", "vs" or "vs." between two team names, in any case
var matchupSeparator = regexp.MustCompile(`(?i)\s+(?:at|@|vs\.?)\s+`)

// ParseTourneyCast extracts tournament qualification probabilities from the
// TourneyCast table. Rows without a parseable IN % are skipped.
func ParseTourneyCast(r io.Reader) ([]models.ForecastRecord, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	table, cols, ok := locate(doc, map[string][]string{"team": teamLabels, "conf": confLabels, "in": inLabels}, "team", "in")
	if !ok {
		return nil, fmt.Errorf("tourneycast: %w", ErrHeaderNotFound)
	}

	seen := make(map[string]bool)
	var records []models.ForecastRecord
	eachRow(table, cols, func(cells *goquery.Selection) {
		team := teamText(cells.Eq(cols["team"]))
		prob, ok := parsePercent(cellText(cells.Eq(cols["in"])))
		if team == "" || !ok || seen[team] {
			return
		}
		seen[team] = true

		var conf string
		if i, has := cols["conf"]; has {
			conf = cellText(cells.Eq(i))
		}

		records = append(records, models.ForecastRecord{
			Name:       team,
			Kind:       models.MetricTourneyProb,
			Value:      prob,
			Conference: conf,
			Source:     models.SourceTourneyCast,
		})
	})

	return records, nil
}

// ParseConCast extracts sole and shared title probabilities for one conference.
// A missing SOLE column or cell counts as zero.
func ParseConCast(r io.Reader, conference string) ([]models.ConferenceForecast, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	table, cols, ok := locate(doc, map[string][]string{"team": teamLabels, "share": shareLabels, "sole": soleLabels}, "team", "share")
	if !ok {
		return nil, fmt.Errorf("concast %s: %w", conference, ErrHeaderNotFound)
	}

	var teams []models.ConferenceForecast
	eachRow(table, cols, func(cells *goquery.Selection) {
		team := teamText(cells.Eq(cols["team"]))
		share, shareOK := parsePercent(cellText(cells.Eq(cols["share"])))
		var sole float64
		soleOK := false
		if i, has := cols["sole"]; has {
			sole, soleOK = parsePercent(cellText(cells.Eq(i)))
		}
		if team == "" || (!shareOK && !soleOK) {
			return
		}

		teams = append(teams, models.ConferenceForecast{
			Team:       team,
			Conference: conference,
			Sole:       sole,
			Share:      share,
		})
	})

	return teams, nil
}

// ParseSchedule extracts the day's games with the favorite's T-Rank win probability.
// Cells are time, matchup, line. It returns the number of rows it could not use.
func ParseSchedule(r io.Reader, n *matcher.Normalizer) ([]models.GameForecast, int, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse document: %w", err)
	}
	if n == nil {
		n = matcher.DefaultNormalizer()
	}

	var games []models.GameForecast
	skipped := 0
	doc.Find("table").First().Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}

		away, home, ok := splitMatchup(cellText(cells.Eq(1)))
		if !ok {
			skipped++
			return
		}

		var line string
		if cells.Length() > 2 {
			line = cellText(cells.Eq(2))
		}
		favorite, prob, ok := parseLine(line)
		if !ok {
			skipped++
			return
		}

		games = append(games, models.GameForecast{
			Away:     away,
			Home:     home,
			Favorite: resolveSide(favorite, away, home, n),
			WinProb:  prob,
			Line:     line,
			Time:     cellText(cells.Eq(0)),
		})
	})

	return games, skipped, nil
}

// locate finds the first table with a header row holding every required column
func locate(doc *goquery.Document, want map[string][]string, required ...string) (*goquery.Selection, map[string]int, bool) {
	var (
		found *goquery.Selection
		cols  map[string]int
	)

	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		table.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
			candidate := make(map[string]int)
			row.Children().Filter("th, td").Each(func(i int, cell *goquery.Selection) {
				label := strings.ToUpper(cellText(cell))
				for key, labels := range want {
					if _, done := candidate[key]; done {
						continue
					}
					for _, l := range labels {
						if label == l {
							candidate[key] = i
						}
					}
				}
			})
			for _, key := range required {
				if _, ok := candidate[key]; !ok {
					return true
				}
			}
			found, cols = table, candidate
			return false
		})
		return found == nil
	})

	return found, cols, found != nil
}

// eachRow calls fn with the data cells of every row wide enough for cols
func eachRow(table *goquery.Selection, cols map[string]int, fn func(cells *goquery.Selection)) {
	width := 0
	for _, i := range cols {
		if i+1 > width {
			width = i + 1
		}
	}
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Children().Filter("td")
		if cells.Length() < width {
			return
		}
		fn(cells)
	})
}

func cellText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

// teamText prefers the team link over annotations such as seeds or records
func teamText(cell *goquery.Selection) string {
	if a := cell.Find("a").First(); a.Length() > 0 {
		if t := cellText(a); t != "" {
			return t
		}
	}
	return cellText(cell)
}

// parsePercent converts "71.3%" to 0.713. Blank, "-" and "N/A" are not values.
func parsePercent(text string) (float64, bool) {
	text = strings.TrimSpace(strings.NewReplacer("%", "", ",", "").Replace(text))
	if text == "" || text == "-" || strings.EqualFold(text, "N/A") {
		return 0, false
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	return v / 100, true
}

func splitMatchup(text string) (string, string, bool) {
	loc := matchupSeparator.FindStringIndex(text)
	if loc == nil {
		return "", "", false
	}
	away := strings.TrimSpace(leadingRank.ReplaceAllString(strings.TrimSpace(text[:loc[0]]), ""))
	home := strings.TrimSpace(leadingRank.ReplaceAllString(strings.TrimSpace(text[loc[1]:]), ""))
	if away == "" || home == "" {
		return "", "", false
	}
	return away, home, true
}

func parseLine(line string) (string, float64, bool) {
	m := gameLine.FindStringSubmatch(line)
	if m == nil {
		return "", 0, false
	}
	pct, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return "", 0, false
	}
	return strings.TrimSpace(m[1]), pct / 100, true
}

// resolveSide maps the team named in the line onto the away or home name
func resolveSide(favorite, away, home string, n *matcher.Normalizer) string {
	f, a, h := n.Normalize(favorite), n.Normalize(away), n.Normalize(home)
	switch {
	case f == a:
		return away
	case f == h:
		return home
	}
	if matcher.Similarity(f, a) >= matcher.Similarity(f, h) {
		return away
	}
	return home
}
