package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"forsysrank/internal/config"
	"forsysrank/internal/forsys"
	"forsysrank/internal/logging"
	"forsysrank/internal/metrics"
	"forsysrank/internal/render"
	"forsysrank/internal/store"
	"forsysrank/internal/table"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	rankPriorities     []string
	rankProjectIDField string
	rankAreaField      string
	rankCostField      string
	rankMaxArea        float64
	rankMaxCost        float64
	rankWorkers        int
	rankFormat         string
	rankStyle          string
	rankSave           bool
	rankLabel          string
)

// rankCmd parses one engine output and prints the scenarios
var rankCmd = &cobra.Command{
	Use:   "rank <file>",
	Short: "Rank the projects in a ForSys output file",
	Long: `Reads a ForSys project output table (.json or .csv, or "-" for JSON on
stdin), groups its rows into weight scenarios, ranks each scenario by total
weighted score and applies the area and cost ceilings.

Flags override the engine and budget sections of the config file.

Examples:
  forsys rank run.json --priorities fire,carbon
  forsys rank project_output.csv -p fire,carbon --max-area 5000 --format table
  forsys rank run.json --save --label "spring batch"`,
	Args: cobra.ExactArgs(1),
	RunE: runRank,
}

func init() {
	rankCmd.Flags().StringSliceVarP(&rankPriorities, "priorities", "p", nil, "Priorities in engine order")
	rankCmd.Flags().StringVar(&rankProjectIDField, "project-id-field", "", "Project id column")
	rankCmd.Flags().StringVar(&rankAreaField, "area-field", "", "Area field (column ETrt_<field>)")
	rankCmd.Flags().StringVar(&rankCostField, "cost-field", "", "Cost field (column ETrt_<field>)")
	rankCmd.Flags().Float64Var(&rankMaxArea, "max-area", -1, "Area ceiling (negative for config value)")
	rankCmd.Flags().Float64Var(&rankMaxCost, "max-cost", -1, "Cost ceiling (negative for config value)")
	rankCmd.Flags().IntVar(&rankWorkers, "workers", 0, "Scenarios computed in parallel (0 for config value)")
	rankCmd.Flags().StringVarP(&rankFormat, "format", "f", "", "Output format: json, table, markdown")
	rankCmd.Flags().StringVar(&rankStyle, "style", "", "Markdown style (dark, light, notty)")
	rankCmd.Flags().BoolVar(&rankSave, "save", false, "Store the result in the scenario database")
	rankCmd.Flags().StringVar(&rankLabel, "label", "", "Label for the stored result")
}

// rankParams merges the command-line flags over the config.
func rankParams(cfg *config.Config) forsys.Params {
	p := cfg.Params()
	if len(rankPriorities) > 0 {
		p.Priorities = append([]string(nil), rankPriorities...)
	}
	if rankProjectIDField != "" {
		p.ProjectIDField = rankProjectIDField
	}
	if rankAreaField != "" {
		p.AreaField = rankAreaField
	}
	if rankCostField != "" {
		p.CostField = rankCostField
	}
	if rankMaxArea >= 0 {
		v := rankMaxArea
		p.MaxArea = &v
	}
	if rankMaxCost >= 0 {
		v := rankMaxCost
		p.MaxCost = &v
	}
	if rankWorkers > 0 {
		p.Workers = rankWorkers
	}
	return p
}

func outputFormat(flag string, cfg *config.Config) (render.Format, error) {
	if flag != "" {
		return render.ParseFormat(flag)
	}
	return render.ParseFormat(cfg.Output.Format)
}

func loadInput(cmd *cobra.Command, path string) (*table.Table, error) {
	if path == "-" {
		return table.ReadJSON(cmd.InOrStdin())
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("cannot read input: %w", err)
	}
	return table.LoadFile(path)
}

func runRank(cmd *cobra.Command, args []string) error {
	ws, cfg, err := loadWorkspaceConfig()
	if err != nil {
		return err
	}
	defer flushMetrics(ws, cfg)

	params := rankParams(cfg)
	format, err := outputFormat(rankFormat, cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), parseTimeout(cfg))
	defer cancel()

	source := args[0]
	tbl, err := loadInput(cmd, source)
	if err != nil {
		return err
	}

	logger.Debug("Parsing engine output",
		zap.String("source", source),
		zap.Int("rows", tbl.NumRows()),
		zap.Strings("priorities", params.Priorities))

	start := time.Now()
	set, err := forsys.ParseScenarioSet(ctx, tbl, params)
	elapsed := time.Since(start)

	scenarios := 0
	if set != nil {
		scenarios = len(set.Scenarios)
	}
	logging.AuditParse(source, scenarios, elapsed, err)
	metrics.ObserveParse(scenarios, elapsed, err)
	if err != nil {
		logger.Error("Parse failed", zap.String("source", source), zap.Error(err))
		return err
	}
	metrics.ObserveSet(set)
	logger.Info("Parsed engine output",
		zap.String("source", source),
		zap.Int("scenarios", scenarios),
		zap.Duration("elapsed", elapsed))

	if rankSave {
		st, err := openStore(ws, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		id, err := st.SaveScenarioSet(set, store.SaveOptions{
			Source:     source,
			Label:      rankLabel,
			SourceRows: tbl.NumRows(),
		})
		if err != nil {
			return err
		}
		logger.Info("Saved scenario set", zap.String("id", id))
		fmt.Fprintf(cmd.ErrOrStderr(), "Saved scenario set %s\n", id)
	}

	return render.ScenarioSet(cmd.OutOrStdout(), set, format, render.Options{Style: rankStyle})
}
