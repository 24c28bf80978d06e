package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/cypherlabdev/kalshi-best-bets/internal/models"
)

const maxDescription = 50

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	evStyle     = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("42"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
)

// evColumn is the index of the EV column
const evColumn = 5

// RenderTable formats the reported opportunities as a console table
func RenderTable(rep *models.Report) string {
	if len(rep.Opportunities) == 0 {
		return "No qualifying bets found.\n"
	}

	rows := make([][]string, 0, len(rep.Opportunities))
	for _, o := range rep.Opportunities {
		rows = append(rows, []string{
			o.MarketType.Label(),
			leagueOrConference(o),
			truncate(o.Description, maxDescription),
			fmt.Sprintf("%.3f", o.ModelValue),
			fmt.Sprintf("$%.2f", o.MarketPrice),
			fmt.Sprintf("$%.3f", o.EV),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("Market Type", "League/Conf", "Description", "Model Prob/Exp Payout", "Price", "EV").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == evColumn:
				return evStyle
			default:
				return cellStyle
			}
		})

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("TOP %d KALSHI BEST BETS (%s)", len(rep.Opportunities), rep.Date)))
	b.WriteString("\n")
	b.WriteString(t.String())
	b.WriteString("\n")
	b.WriteString(footerStyle.Render(fmt.Sprintf("Total qualifying bets: %d, showing top %d", rep.Qualifying, len(rep.Opportunities))))
	b.WriteString("\n")
	return b.String()
}

// PrintTable writes the console table to w
func PrintTable(w io.Writer, rep *models.Report) error {
	_, err := io.WriteString(w, RenderTable(rep))
	return err
}

func leagueOrConference(o models.BetOpportunity) string {
	switch {
	case o.Conference != "":
		return o.Conference
	case o.MarketType == models.MarketTournament:
		return "NCAA Tournament"
	default:
		return "NCAAB"
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
