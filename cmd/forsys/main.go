package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"forsysrank/internal/config"
	"forsysrank/internal/logging"
	"forsysrank/internal/metrics"
	"forsysrank/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string
	timeout    time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "forsys",
	Short: "forsys - rank ForSys scenario output under area and cost budgets",
	Long: `forsys turns the raw project table produced by the ForSys scenario
planning engine into ranked, budget-filtered scenarios.

Each distinct combination of priority weights in the table becomes one
scenario. Projects are scored, ranked by total weighted score, and walked
greedily under optional area and cost ceilings.

Results can be printed, stored in a local SQLite database, or produced
continuously from files dropped into an inbox directory.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapConfig := zap.NewProductionConfig()
		if verbose {
			zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapConfig.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAudit()
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: nearest directory containing .forsys)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: <workspace>/.forsys/config.yaml)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Parse timeout (default: execution.timeout from config)")

	rootCmd.AddCommand(rankCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// resolveWorkspace returns the --workspace flag or the nearest .forsys root.
func resolveWorkspace() (string, error) {
	if workspace != "" {
		return filepath.Abs(workspace)
	}
	return config.FindWorkspaceRoot()
}

func resolveConfigPath(ws string) string {
	if configPath != "" {
		return configPath
	}
	return filepath.Join(ws, ".forsys", "config.yaml")
}

// loadWorkspaceConfig loads and validates the config and starts file logging.
func loadWorkspaceConfig() (string, *config.Config, error) {
	ws, err := resolveWorkspace()
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve workspace: %w", err)
	}

	cfg, err := config.Load(resolveConfigPath(ws))
	if err != nil {
		return "", nil, err
	}
	if err := cfg.Validate(); err != nil {
		return "", nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := logging.Initialize(ws, cfg.Logging.Settings()); err != nil {
		logger.Warn("File logging unavailable", zap.Error(err))
	} else if err := logging.InitAudit(); err != nil {
		logger.Warn("Audit log unavailable", zap.Error(err))
	}
	logging.Boot("Workspace %s, config %s", ws, resolveConfigPath(ws))
	return ws, cfg, nil
}

func parseTimeout(cfg *config.Config) time.Duration {
	if timeout > 0 {
		return timeout
	}
	return cfg.GetTimeout()
}

func openStore(ws string, cfg *config.Config) (*store.Store, error) {
	path := config.ResolvePath(ws, cfg.Store.DatabasePath)
	st, err := store.NewStore(cfg.Store.Driver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario store: %w", err)
	}
	logger.Debug("Opened scenario store", zap.String("path", path), zap.String("driver", st.Driver()))
	return st, nil
}

// flushMetrics writes the metrics textfile when enabled.
func flushMetrics(ws string, cfg *config.Config) {
	if !cfg.Metrics.Enabled {
		return
	}
	path := config.ResolvePath(ws, cfg.Metrics.Textfile)
	if err := metrics.WriteTextfile(path); err != nil {
		logger.Warn("Failed to write metrics", zap.String("path", path), zap.Error(err))
	}
}
