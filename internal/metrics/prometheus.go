// Package metrics exposes Prometheus metrics for parse runs, either as a
// node-exporter textfile or over HTTP.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"forsysrank/internal/forsys"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every forsys metric. It is separate from the default
// registry so textfile output carries no runtime metrics.
var Registry = prometheus.NewRegistry()

var (
	parseCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forsys_parse_total",
			Help: "Total number of engine outputs parsed, by outcome",
		},
		[]string{"status"},
	)
	parseDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "forsys_parse_duration_seconds",
			Help:    "Time spent parsing one engine output.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		},
	)
	scenarioCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forsys_scenarios_total",
			Help: "Total number of scenarios produced",
		},
	)
	projectCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forsys_ranked_projects_total",
			Help: "Ranked projects by budget outcome",
		},
		[]string{"outcome"},
	)
	lastSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "forsys_last_success_timestamp_seconds",
			Help: "Unix time of the last successful parse.",
		},
	)
)

func init() {
	Registry.MustRegister(parseCounter)
	Registry.MustRegister(parseDuration)
	Registry.MustRegister(scenarioCounter)
	Registry.MustRegister(projectCounter)
	Registry.MustRegister(lastSuccess)
}

// ObserveParse records one parse attempt.
func ObserveParse(scenarios int, elapsed time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	parseCounter.WithLabelValues(status).Inc()
	parseDuration.Observe(elapsed.Seconds())
	if err == nil {
		scenarioCounter.Add(float64(scenarios))
		lastSuccess.SetToCurrentTime()
	}
}

// ObserveSet counts included and skipped projects across every scenario.
func ObserveSet(set *forsys.ScenarioSet) {
	for _, sc := range set.Scenarios {
		projectCounter.WithLabelValues("included").Add(float64(len(sc.RankedProjects)))
		projectCounter.WithLabelValues("skipped").Add(float64(len(sc.SkippedProjectIDs)))
	}
}

// Recorder adapts the package metrics to the inbox observer hook.
type Recorder struct{}

// ObserveParse implements inbox.Observer.
func (Recorder) ObserveParse(source string, scenarios int, elapsed time.Duration, err error) {
	ObserveParse(scenarios, elapsed, err)
}

// WriteTextfile writes the registry in the text exposition format to path,
// atomically, for the node-exporter textfile collector.
func WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// Handler serves the registry over HTTP.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
