package main

import (
	"fmt"
	"strconv"

	"forsysrank/internal/render"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	listFormat string
	showFormat string
	showStyle  string
)

// listCmd lists stored scenario sets
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored scenario sets, newest first",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

// showCmd prints one stored scenario set
var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a stored scenario set",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

// deleteCmd removes a stored scenario set
var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored scenario set",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	listCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "Output format: json, table")
	showCmd.Flags().StringVarP(&showFormat, "format", "f", "", "Output format: json, table, markdown")
	showCmd.Flags().StringVar(&showStyle, "style", "", "Markdown style (dark, light, notty)")
}

func runList(cmd *cobra.Command, args []string) error {
	ws, cfg, err := loadWorkspaceConfig()
	if err != nil {
		return err
	}
	st, err := openStore(ws, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	sets, err := st.ListScenarioSets()
	if err != nil {
		return err
	}
	logger.Debug("Listed scenario sets", zap.Int("count", len(sets)))

	format, err := render.ParseFormat(listFormat)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	switch format {
	case render.FormatJSON:
		return render.JSON(out, sets)
	case render.FormatTable:
		if len(sets) == 0 {
			fmt.Fprintln(out, "No scenario sets stored.")
			return nil
		}
		t := render.NewSimpleTable("Scenario sets", []string{"ID", "Created", "Source", "Label", "Scenarios", "Priorities"})
		for _, s := range sets {
			t.AddRow(s.ID, s.CreatedAt.Format("2006-01-02 15:04:05"), s.Source, s.Label,
				strconv.Itoa(s.Scenarios), fmt.Sprint(s.Priorities))
		}
		fmt.Fprint(out, t.View(render.DefaultStyles()))
		return nil
	}
	return fmt.Errorf("list does not support %s output", format)
}

func runShow(cmd *cobra.Command, args []string) error {
	ws, cfg, err := loadWorkspaceConfig()
	if err != nil {
		return err
	}
	format, err := outputFormat(showFormat, cfg)
	if err != nil {
		return err
	}

	st, err := openStore(ws, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	saved, err := st.LoadScenarioSet(args[0])
	if err != nil {
		return err
	}
	return render.ScenarioSet(cmd.OutOrStdout(), saved.Set, format, render.Options{Style: showStyle})
}

func runDelete(cmd *cobra.Command, args []string) error {
	ws, cfg, err := loadWorkspaceConfig()
	if err != nil {
		return err
	}
	st, err := openStore(ws, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeleteScenarioSet(args[0]); err != nil {
		return err
	}
	logger.Info("Deleted scenario set", zap.String("id", args[0]))
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted scenario set %s\n", args[0])
	return nil
}
