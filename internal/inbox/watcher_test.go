package inbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"forsysrank/internal/forsys"
	"forsysrank/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// =============================================================================
// FIXTURES
// =============================================================================

const engineCSV = `proj_id,Pr_1_p1,Pr_2_p2,ETrt_p1,ETrt_p2,ETrt_area,ETrt_cost
1,1,1,0.5,0.1,10,500
2,1,1,0.1,0.4,11,600
3,1,1,0.3,0.1,12,800
2,1,2,0.1,0.4,11,600
1,1,2,0.5,0.1,10,500
3,1,2,0.3,0.1,12,800
`

const engineJSON = `{"project": {
	"proj_id": [1, 2, 1, 2],
	"Pr_1_p1": [1, 1, 2, 2],
	"Pr_2_p2": [1, 1, 1, 1],
	"ETrt_p1": [0.5, 0.1, 0.5, 0.1],
	"ETrt_p2": [0.1, 0.4, 0.1, 0.4],
	"ETrt_area": [10, 11, 10, 11],
	"ETrt_cost": [500, 600, 500, 600]
}}`

func testParams() forsys.Params {
	return forsys.Params{
		Priorities:     []string{"p1", "p2"},
		ProjectIDField: "proj_id",
		AreaField:      "area",
		CostField:      "cost",
	}
}

type fakeSink struct {
	mu      sync.Mutex
	saved   []store.SaveOptions
	ingests []store.IngestRecord
	saveErr error
}

func (f *fakeSink) SaveScenarioSet(set *forsys.ScenarioSet, opts store.SaveOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return "", f.saveErr
	}
	f.saved = append(f.saved, opts)
	return "set-" + filepath.Base(opts.Source), nil
}

func (f *fakeSink) RecordIngest(rec store.IngestRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingests = append(f.ingests, rec)
	return nil
}

type fakeObserver struct {
	mu    sync.Mutex
	calls int
	errs  int
}

func (o *fakeObserver) ObserveParse(source string, scenarios int, elapsed time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	if err != nil {
		o.errs++
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newWatcher(t *testing.T, opts Options) *Watcher {
	t.Helper()
	w, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(w.Stop)
	return w
}

// =============================================================================
// PROCESS
// =============================================================================

func TestProcess_CSV(t *testing.T) {
	dir := t.TempDir()
	sink := &fakeSink{}
	obs := &fakeObserver{}
	w := newWatcher(t, Options{Dir: dir, Params: testParams(), Sink: sink, Save: true, Observer: obs})

	path := writeFile(t, dir, "run.csv", engineCSV)
	res, ok := w.Process(context.Background(), path)
	require.True(t, ok)
	require.NoError(t, res.Err)

	assert.Equal(t, 2, res.Scenarios)
	assert.Equal(t, 6, res.Rows)
	assert.Equal(t, "set-run.csv", res.SetID)

	require.Len(t, sink.saved, 1)
	assert.Equal(t, path, sink.saved[0].Source)
	assert.Equal(t, 6, sink.saved[0].SourceRows)

	require.Len(t, sink.ingests, 1)
	assert.Equal(t, store.IngestSuccess, sink.ingests[0].Status)
	assert.Equal(t, "set-run.csv", sink.ingests[0].SetID)

	assert.Equal(t, 1, obs.calls)
	assert.Equal(t, 0, obs.errs)
	assert.Equal(t, 1, w.Stats().Processed)
}

func TestProcess_JSONWithoutSave(t *testing.T) {
	dir := t.TempDir()
	sink := &fakeSink{}
	w := newWatcher(t, Options{Dir: dir, Params: testParams(), Sink: sink})

	res, ok := w.Process(context.Background(), writeFile(t, dir, "run.json", engineJSON))
	require.True(t, ok)
	require.NoError(t, res.Err)
	assert.Equal(t, 2, res.Scenarios)
	assert.Empty(t, res.SetID)
	assert.Empty(t, sink.saved)
	require.Len(t, sink.ingests, 1)
	assert.Equal(t, store.IngestSuccess, sink.ingests[0].Status)
}

func TestProcess_MissingHeaderRecordsFailure(t *testing.T) {
	dir := t.TempDir()
	sink := &fakeSink{}
	obs := &fakeObserver{}
	w := newWatcher(t, Options{Dir: dir, Params: testParams(), Sink: sink, Save: true, Observer: obs})

	bad := "proj_id,Pr_1_p1,ETrt_p1,ETrt_p2,ETrt_area,ETrt_cost\n1,1,0.5,0.1,10,500\n"
	res, ok := w.Process(context.Background(), writeFile(t, dir, "bad.csv", bad))
	require.True(t, ok)
	require.Error(t, res.Err)
	assert.True(t, errors.Is(res.Err, forsys.ErrMissingHeader))
	assert.EqualError(t, res.Err, "header, Pr_2_p2, is not a forsys output header")

	assert.Empty(t, sink.saved)
	require.Len(t, sink.ingests, 1)
	assert.Equal(t, store.IngestFailed, sink.ingests[0].Status)
	assert.Contains(t, sink.ingests[0].Error, "Pr_2_p2")
	assert.Equal(t, 1, obs.errs)
	assert.Equal(t, 1, w.Stats().Failed)
}

func TestProcess_SaveErrorIsFailure(t *testing.T) {
	dir := t.TempDir()
	sink := &fakeSink{saveErr: errors.New("disk full")}
	w := newWatcher(t, Options{Dir: dir, Params: testParams(), Sink: sink, Save: true})

	res, ok := w.Process(context.Background(), writeFile(t, dir, "run.csv", engineCSV))
	require.True(t, ok)
	assert.EqualError(t, res.Err, "disk full")
	require.Len(t, sink.ingests, 1)
	assert.Equal(t, store.IngestFailed, sink.ingests[0].Status)
}

func TestProcess_VanishedFile(t *testing.T) {
	dir := t.TempDir()
	w := newWatcher(t, Options{Dir: dir, Params: testParams()})

	_, ok := w.Process(context.Background(), filepath.Join(dir, "gone.csv"))
	assert.False(t, ok)
}

func TestAccepts(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"out.json", true},
		{"out.CSV", true},
		{"/tmp/x/out.csv", true},
		{"out.json.tmp", false},
		{".hidden.csv", false},
		{"notes.txt", false},
		{"noext", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Accepts(tt.path))
		})
	}
}

func TestNew_Validates(t *testing.T) {
	_, err := New(Options{Params: testParams()})
	assert.Error(t, err)

	_, err = New(Options{Dir: t.TempDir()})
	assert.ErrorIs(t, err, forsys.ErrInvalidParams)
}

// =============================================================================
// WATCH LOOP
// =============================================================================

func TestWatcher_ProcessesDroppedFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "inbox")
	results := make(chan Result, 8)
	sink := &fakeSink{}

	w := newWatcher(t, Options{
		Dir:      dir,
		Params:   testParams(),
		Sink:     sink,
		Save:     true,
		Debounce: 50 * time.Millisecond,
		OnResult: func(r Result) { results <- r },
	})
	require.NoError(t, w.Start(context.Background()))
	require.DirExists(t, dir)

	writeFile(t, dir, "ignored.txt", "hello")
	path := writeFile(t, dir, "run.csv", engineCSV)

	select {
	case res := <-results:
		assert.Equal(t, path, res.Path)
		assert.NoError(t, res.Err)
		assert.Equal(t, 2, res.Scenarios)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for inbox to process file")
	}

	select {
	case res := <-results:
		t.Fatalf("unexpected extra result for %s", res.Path)
	case <-time.After(300 * time.Millisecond):
	}

	w.Stop()
	assert.Len(t, sink.saved, 1)
}

func TestWatcher_ContextCancelStopsLoop(t *testing.T) {
	w := newWatcher(t, Options{Dir: t.TempDir(), Params: testParams()})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	cancel()

	done := make(chan struct{})
	go func() {
		w.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not exit after cancel")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := New(Options{Dir: t.TempDir(), Params: testParams()})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
	assert.Error(t, w.Start(context.Background()))
}

func TestTickInterval(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, tickInterval(time.Second))
	assert.Equal(t, 25*time.Millisecond, tickInterval(50*time.Millisecond))
	assert.Equal(t, 10*time.Millisecond, tickInterval(time.Millisecond))
}
