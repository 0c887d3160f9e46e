package render

import (
	"io"
	"strconv"
	"strings"

	"forsysrank/internal/forsys"

	"github.com/charmbracelet/lipgloss"
)

// Styles used by the terminal table.
type Styles struct {
	Title lipgloss.Style
	Bold  lipgloss.Style
	Body  lipgloss.Style
	Muted lipgloss.Style
}

// DefaultStyles returns the table styles.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A")),
		Bold:  lipgloss.NewStyle().Bold(true),
		Body:  lipgloss.NewStyle(),
		Muted: lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280")),
	}
}

// SimpleTable is a static table with a title and a header row.
type SimpleTable struct {
	Title   string
	Headers []string
	Rows    [][]string
	Footer  string
}

// NewSimpleTable creates a new SimpleTable with the given title and headers.
func NewSimpleTable(title string, headers []string) *SimpleTable {
	return &SimpleTable{
		Title:   title,
		Headers: headers,
		Rows:    make([][]string, 0),
	}
}

// AddRow adds a row to the table.
func (t *SimpleTable) AddRow(row ...string) {
	t.Rows = append(t.Rows, row)
}

// View renders the table. A table without rows still shows its header.
func (t *SimpleTable) View(styles Styles) string {
	var sb strings.Builder

	if t.Title != "" {
		sb.WriteString(styles.Title.Render(t.Title))
		sb.WriteString("\n")
	}

	colWidths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		colWidths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(colWidths) {
				if w := lipgloss.Width(cell); w > colWidths[i] {
					colWidths[i] = w
				}
			}
		}
	}
	// Width includes padding.
	for i := range colWidths {
		colWidths[i] += 2
	}

	headerStyle := styles.Bold.Padding(0, 1)
	rowStyle := styles.Body.Padding(0, 1)
	sep := styles.Muted.Render("|")

	for i, h := range t.Headers {
		sb.WriteString(headerStyle.Width(colWidths[i]).Render(h))
		if i < len(t.Headers)-1 {
			sb.WriteString(sep)
		}
	}
	sb.WriteString("\n")

	totalWidth := len(t.Headers) - 1
	for _, w := range colWidths {
		totalWidth += w
	}
	if totalWidth > 0 {
		sb.WriteString(styles.Muted.Render(strings.Repeat("-", totalWidth)))
		sb.WriteString("\n")
	}

	for _, row := range t.Rows {
		for i, cell := range row {
			if i >= len(colWidths) {
				break
			}
			style := rowStyle.Width(colWidths[i])
			if isNumeric(cell) {
				style = style.Align(lipgloss.Right)
			}
			sb.WriteString(style.Render(cell))
			if i < len(row)-1 && i < len(colWidths)-1 {
				sb.WriteString(sep)
			}
		}
		sb.WriteString("\n")
	}

	if t.Footer != "" {
		sb.WriteString(styles.Muted.Render(t.Footer))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	return sb.String()
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// ScenarioTable builds the table for one scenario: one row per included
// project in rank order, with running area and cost.
func ScenarioTable(priorities []string, sc *forsys.Scenario) *SimpleTable {
	headers := []string{"Rank", "Project", "Total"}
	headers = append(headers, priorities...)
	headers = append(headers, "Cum. Area", "Cum. Cost")

	t := NewSimpleTable("Scenario "+sc.Key, headers)
	for i, p := range sc.RankedProjects {
		row := []string{
			strconv.Itoa(p.Rank),
			strconv.FormatInt(p.ID, 10),
			formatScore(p.TotalScore),
		}
		for _, pr := range priorities {
			row = append(row, formatScore(p.WeightedPriorityScores[pr]))
		}
		row = append(row,
			formatAmount(sc.CumulativeRankedProjectArea[i]),
			formatAmount(sc.CumulativeRankedProjectCost[i]),
		)
		t.AddRow(row...)
	}
	t.Footer = summaryLine(sc)
	return t
}

// Table writes one styled table per scenario in key order.
func Table(w io.Writer, set *forsys.ScenarioSet) error {
	styles := DefaultStyles()
	for _, key := range set.Keys() {
		t := ScenarioTable(set.Params.Priorities, set.Scenarios[key])
		if _, err := io.WriteString(w, t.View(styles)); err != nil {
			return err
		}
	}
	return nil
}
