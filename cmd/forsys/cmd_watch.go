package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"forsysrank/internal/config"
	"forsysrank/internal/inbox"
	"forsysrank/internal/metrics"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	watchNoSave     bool
	watchMetricAddr string
)

// watchCmd processes engine output dropped into a directory
var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Rank engine output files as they land in an inbox directory",
	Long: `Watches a directory (default: inbox.dir from config) for .json and .csv
ForSys output files. Each file is parsed with the configured priorities and
ceilings once writes settle, stored in the scenario database, and recorded
in the ingest log as success or failed.

Runs until interrupted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchNoSave, "no-save", false, "Parse and log only, do not store results")
	watchCmd.Flags().StringVar(&watchMetricAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :2112)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return watchUntil(ctx, cmd, args)
}

// watchUntil runs the inbox until ctx is done.
func watchUntil(ctx context.Context, cmd *cobra.Command, args []string) error {
	ws, cfg, err := loadWorkspaceConfig()
	if err != nil {
		return err
	}

	dir := config.ResolvePath(ws, cfg.Inbox.Dir)
	if len(args) == 1 {
		dir = args[0]
	}

	st, err := openStore(ws, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	w, err := inbox.New(inbox.Options{
		Dir:      dir,
		Params:   cfg.Params(),
		Sink:     st,
		Save:     cfg.Inbox.Save && !watchNoSave,
		Debounce: cfg.GetInboxDebounce(),
		Timeout:  parseTimeout(cfg),
		Observer: metrics.Recorder{},
		OnResult: func(res inbox.Result) {
			if res.Err != nil {
				logger.Warn("Inbox file failed", zap.String("path", res.Path), zap.Error(res.Err))
			} else {
				logger.Info("Inbox file ranked",
					zap.String("path", res.Path),
					zap.String("set_id", res.SetID),
					zap.Int("scenarios", res.Scenarios),
					zap.Duration("elapsed", res.Elapsed))
			}
			flushMetrics(ws, cfg)
		},
	})
	if err != nil {
		return err
	}
	defer w.Stop()

	if watchMetricAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, watchMetricAddr); err != nil {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	if err := w.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s (Ctrl+C to stop)\n", dir)

	<-ctx.Done()
	logger.Info("Inbox watch stopped", zap.Int("processed", w.Stats().Processed), zap.Int("failed", w.Stats().Failed))
	return nil
}
