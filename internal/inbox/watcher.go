// Package inbox watches a drop directory for engine output files and parses
// each one as it settles.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"forsysrank/internal/forsys"
	"forsysrank/internal/logging"
	"forsysrank/internal/store"
	"forsysrank/internal/table"

	"github.com/fsnotify/fsnotify"
)

// Sink receives parsed scenario sets and the ingest log. *store.Store
// satisfies it.
type Sink interface {
	SaveScenarioSet(set *forsys.ScenarioSet, opts store.SaveOptions) (string, error)
	RecordIngest(rec store.IngestRecord) error
}

// Observer is notified after every parse attempt.
type Observer interface {
	ObserveParse(source string, scenarios int, elapsed time.Duration, err error)
}

// Options configures a Watcher.
type Options struct {
	Dir      string
	Params   forsys.Params
	Sink     Sink // optional
	Save     bool // persist parsed sets to Sink
	Debounce time.Duration
	Timeout  time.Duration // per file, 0 for none
	Observer Observer      // optional
	OnResult func(Result)  // optional, called from the watcher goroutine
}

// Result is the outcome of processing one file.
type Result struct {
	Path      string
	SetID     string
	Rows      int
	Scenarios int
	Elapsed   time.Duration
	Err       error
}

// Stats tracks watcher activity.
type Stats struct {
	Events        int
	Processed     int
	Failed        int
	Errors        int
	LastEventTime time.Time
	LastEventPath string
}

// Watcher parses .json and .csv files dropped into a directory.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	opts        Options
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	closed      bool
	stats       Stats
}

// New creates a Watcher. Call Start to begin watching.
func New(opts Options) (*Watcher, error) {
	if opts.Dir == "" {
		return nil, errors.New("inbox directory is required")
	}
	if err := opts.Params.Validate(); err != nil {
		return nil, err
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:     fw,
		opts:        opts,
		debounceMap: make(map[string]time.Time),
		debounceDur: opts.Debounce,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string { return w.opts.Dir }

// Stats returns a snapshot of watcher activity.
func (w *Watcher) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// Start creates the directory if needed and begins watching it.
// It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	if w.closed {
		w.mu.Unlock()
		return errors.New("inbox watcher already stopped")
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addDir(); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}
	logging.Inbox("Watching inbox: %s", w.opts.Dir)

	go w.run(ctx)
	return nil
}

func (w *Watcher) addDir() error {
	if err := os.MkdirAll(w.opts.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create inbox %s: %w", w.opts.Dir, err)
	}
	if err := w.watcher.Add(w.opts.Dir); err != nil {
		return fmt.Errorf("failed to watch inbox %s: %w", w.opts.Dir, err)
	}
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	wasRunning := w.running
	w.running = false
	w.closed = true
	w.mu.Unlock()

	if wasRunning {
		close(w.stopCh)
		<-w.doneCh
	}

	if err := w.watcher.Close(); err != nil {
		logging.InboxError("Error closing watcher: %v", err)
	}
	logging.Inbox("Inbox watcher stopped")
}

// Wait blocks until the event loop exits.
func (w *Watcher) Wait() {
	<-w.doneCh
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	debounceTicker := time.NewTicker(tickInterval(w.debounceDur))
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Inbox("Inbox watcher: context cancelled")
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.InboxError("Watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-debounceTicker.C:
			w.processDebounced(ctx)
		}
	}
}

func tickInterval(debounce time.Duration) time.Duration {
	if d := debounce / 2; d < 100*time.Millisecond {
		if d < 10*time.Millisecond {
			return 10 * time.Millisecond
		}
		return d
	}
	return 100 * time.Millisecond
}

// Accepts reports whether the inbox handles a file with this name.
func Accepts(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".json", ".csv":
		return true
	}
	return false
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !Accepts(event.Name) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	logging.InboxDebug("%s event for %s", event.Op, event.Name)

	w.mu.Lock()
	w.stats.Events++
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = event.Name
	w.debounceMap[event.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processDebounced(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var ready []string
	for path, t := range w.debounceMap {
		if now.Sub(t) >= w.debounceDur {
			ready = append(ready, path)
			delete(w.debounceMap, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		if ctx.Err() != nil {
			return
		}
		res, ok := w.Process(ctx, path)
		if !ok {
			continue
		}
		if w.opts.OnResult != nil {
			w.opts.OnResult(res)
		}
	}
}

// Process parses one file and hands the result to the sink. It returns false
// if the file vanished before it could be read.
func (w *Watcher) Process(ctx context.Context, path string) (Result, bool) {
	res := Result{Path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logging.InboxDebug("File gone before processing: %s", path)
		return res, false
	}

	if w.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	set, rows, err := parseFile(ctx, path, w.opts.Params)
	res.Elapsed = time.Since(start)
	res.Rows = rows
	if err == nil {
		res.Scenarios = len(set.Scenarios)
		if w.opts.Save && w.opts.Sink != nil {
			res.SetID, err = w.opts.Sink.SaveScenarioSet(set, store.SaveOptions{
				Source:     path,
				SourceRows: rows,
			})
		}
	}
	res.Err = err

	logging.AuditParse(path, res.Scenarios, res.Elapsed, err)
	if w.opts.Observer != nil {
		w.opts.Observer.ObserveParse(path, res.Scenarios, res.Elapsed, err)
	}
	w.record(res)
	return res, true
}

func (w *Watcher) record(res Result) {
	rec := store.IngestRecord{Path: res.Path, SetID: res.SetID, Status: store.IngestSuccess}
	w.mu.Lock()
	if res.Err != nil {
		w.stats.Failed++
		rec.Status = store.IngestFailed
		rec.Error = res.Err.Error()
	} else {
		w.stats.Processed++
	}
	w.mu.Unlock()

	if res.Err != nil {
		logging.InboxError("Failed to process %s: %v", res.Path, res.Err)
	} else {
		logging.Inbox("Processed %s: %d scenarios", res.Path, res.Scenarios)
	}

	if w.opts.Sink == nil {
		return
	}
	if err := w.opts.Sink.RecordIngest(rec); err != nil {
		logging.InboxError("Failed to record ingest: %v", err)
	}
}

func parseFile(ctx context.Context, path string, p forsys.Params) (*forsys.ScenarioSet, int, error) {
	tbl, err := table.LoadFile(path)
	if err != nil {
		return nil, 0, err
	}
	set, err := forsys.ParseScenarioSet(ctx, tbl, p)
	return set, tbl.NumRows(), err
}
