package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"forsysrank/internal/forsys"

	"github.com/charmbracelet/glamour"
)

// MarkdownSource returns the raw Markdown report for a scenario set.
func MarkdownSource(set *forsys.ScenarioSet) string {
	var sb strings.Builder
	priorities := set.Params.Priorities

	sb.WriteString("# ForSys scenarios\n\n")
	fmt.Fprintf(&sb, "Priorities: %s\n\n", strings.Join(priorities, ", "))
	if set.Params.MaxArea != nil || set.Params.MaxCost != nil {
		sb.WriteString("Budget:")
		if set.Params.MaxArea != nil {
			fmt.Fprintf(&sb, " area ≤ %s", formatAmount(*set.Params.MaxArea))
		}
		if set.Params.MaxCost != nil {
			fmt.Fprintf(&sb, " cost ≤ %s", formatAmount(*set.Params.MaxCost))
		}
		sb.WriteString("\n\n")
	}

	for _, key := range set.Keys() {
		sc := set.Scenarios[key]
		fmt.Fprintf(&sb, "## `%s`\n\n", key)

		sb.WriteString("| Rank | Project | Total |")
		for _, p := range priorities {
			fmt.Fprintf(&sb, " %s |", p)
		}
		sb.WriteString(" Cum. Area | Cum. Cost |\n")
		sb.WriteString("|---:|---:|---:|")
		for range priorities {
			sb.WriteString("---:|")
		}
		sb.WriteString("---:|---:|\n")

		for i, p := range sc.RankedProjects {
			fmt.Fprintf(&sb, "| %d | %s | %s |", p.Rank, strconv.FormatInt(p.ID, 10), formatScore(p.TotalScore))
			for _, pr := range priorities {
				fmt.Fprintf(&sb, " %s |", formatScore(p.WeightedPriorityScores[pr]))
			}
			fmt.Fprintf(&sb, " %s | %s |\n",
				formatAmount(sc.CumulativeRankedProjectArea[i]),
				formatAmount(sc.CumulativeRankedProjectCost[i]))
		}
		fmt.Fprintf(&sb, "\n_%s_\n\n", summaryLine(sc))
	}
	return sb.String()
}

// Markdown renders the report through glamour for the terminal.
func Markdown(w io.Writer, set *forsys.ScenarioSet, opts Options) error {
	wrap := opts.WordWrap
	if wrap <= 0 {
		wrap = 100
	}

	styleOpt := glamour.WithAutoStyle()
	if opts.Style != "" {
		styleOpt = glamour.WithStylePath(opts.Style)
	}

	renderer, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(wrap))
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}

	out, err := renderer.Render(MarkdownSource(set))
	if err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}
