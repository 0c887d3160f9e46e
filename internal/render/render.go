// Package render turns scenario sets into JSON, terminal tables or Markdown.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"forsysrank/internal/forsys"
	"forsysrank/internal/logging"
)

// Format selects an output rendering.
type Format string

const (
	FormatJSON     Format = "json"
	FormatTable    Format = "table"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts json, table, markdown (or md), case-insensitive.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return FormatJSON, nil
	case "table":
		return FormatTable, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unknown output format %q (want json, table or markdown)", s)
}

// Options tunes the terminal renderings.
type Options struct {
	// Style is a glamour style name ("dark", "light", "notty", ...).
	// Empty picks one from the terminal.
	Style    string
	WordWrap int
}

// ScenarioSet writes set to w in the requested format.
func ScenarioSet(w io.Writer, set *forsys.ScenarioSet, f Format, opts Options) error {
	logging.RenderDebug("Rendering %d scenarios as %s", len(set.Scenarios), f)
	switch f {
	case FormatJSON:
		return JSON(w, set.Scenarios)
	case FormatTable:
		return Table(w, set)
	case FormatMarkdown:
		return Markdown(w, set, opts)
	}
	return fmt.Errorf("unknown output format %q", f)
}

// JSON writes v as indented JSON followed by a newline. Scenario maps come
// out with keys sorted.
func JSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}

func summaryLine(sc *forsys.Scenario) string {
	sum := sc.Summary()
	line := fmt.Sprintf("included %d, skipped %d, area %s, cost %s",
		sum.Included, sum.Skipped, formatAmount(sum.TotalArea), formatAmount(sum.TotalCost))
	if sum.Skipped > 0 {
		line += " (skipped: " + formatIDs(sc.SkippedProjectIDs) + ")"
	}
	return line
}
