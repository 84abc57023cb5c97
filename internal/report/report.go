// Package report renders a terminal summary of finished simulations.
package report

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/swapsim/internal"
	"github.com/vadiminshakov/swapsim/internal/domain"
)

const tokenDecimals = 18

var (
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	warning   = lipgloss.AdaptiveColor{Light: "#D7263D", Dark: "#FF5F87"}

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(highlight).MarginTop(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	okStyle     = cellStyle.Foreground(special)
	failStyle   = cellStyle.Foreground(warning)
)

// FormatUnits renders an amount of the smallest unit as a token amount with four decimals.
func FormatUnits(v *big.Int) string {
	if v == nil {
		return "-"
	}
	return decimal.NewFromBigInt(v, -tokenDecimals).StringFixed(4)
}

// FormatPrice renders a 1e18-scaled price.
func FormatPrice(v *big.Int) string {
	if v == nil {
		return "-"
	}
	return decimal.NewFromBigInt(v, -tokenDecimals).StringFixed(6)
}

// Render returns the summary of all simulations.
func Render(summaries []*internal.Summary) string {
	var b strings.Builder
	for _, s := range summaries {
		if s == nil {
			continue
		}
		b.WriteString(titleStyle.Render(fmt.Sprintf("%s  pool %s / %s", s.Name, FormatUnits(s.PoolBalances.A), FormatUnits(s.PoolBalances.B))))
		b.WriteString("\n")
		if len(s.Scenarios) > 0 {
			b.WriteString(scenarioTable(s.Scenarios))
			b.WriteString("\n")
		}
		if s.Walks != nil && len(s.Walks.Outcomes) > 0 {
			b.WriteString(walkTable(s))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func scenarioTable(results []internal.ScenarioResult) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		res := r.Result
		var last domain.TelemetryRow
		if res.Table.Len() > 0 {
			last = res.Table.Rows[res.Table.Len()-1]
		}
		rows = append(rows, []string{
			r.Name,
			strconv.FormatBool(r.Isolated),
			string(res.State),
			strconv.Itoa(res.Trades),
			FormatPrice(last.OraclePrice),
			FormatPrice(last.SpotPrice),
			orDash(r.Path),
		})
	}
	return render([]string{"scenario", "isolated", "state", "trades", "oracle", "p", "output"}, rows, 2)
}

func walkTable(s *internal.Summary) string {
	rows := make([][]string, 0, len(s.Walks.Outcomes))
	for _, o := range s.Walks.Outcomes {
		errText := ""
		if o.Err != nil {
			errText = o.Err.Error()
		}
		rows = append(rows, []string{
			strconv.Itoa(o.RunID),
			string(o.State),
			strconv.Itoa(o.Rows),
			orDash(o.Path),
			orDash(errText),
		})
	}
	return render([]string{"run", "state", "rows", "output", "error"}, rows, 1)
}

func render(headers []string, rows [][]string, stateCol int) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == stateCol && rows[row][col] == string(domain.RunStateAborted):
				return failStyle
			case col == stateCol:
				return okStyle
			default:
				return cellStyle
			}
		}).
		String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
