package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/alerts"
	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/budget"
	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/scanner"
	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/spec"
	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/watch"
)

// fakeCounter returns configurable counts. When gate is set every scan
// blocks until the test sends on it, ignoring ctx like a slow disk walk.
type fakeCounter struct {
	mu      sync.Mutex
	files   uint
	lines   uint
	err     error
	gate    chan struct{}
	started chan struct{}

	calls     atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
}

func (f *fakeCounter) Scan(ctx context.Context, roots []string) (scanner.Result, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		cur := f.maxActive.Load()
		if n <= cur || f.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}
	f.calls.Add(1)

	f.mu.Lock()
	gate, started := f.gate, f.started
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return scanner.Result{Files: f.files, Lines: f.lines}, f.err
}

func (f *fakeCounter) set(files, lines uint) {
	f.mu.Lock()
	f.files, f.lines = files, lines
	f.mu.Unlock()
}

// block makes subsequent scans wait on the returned gate.
func (f *fakeCounter) block() (gate, started chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	f.started = make(chan struct{}, 16)
	return f.gate, f.started
}

type fakeSource struct {
	ch     chan watch.ChangeEvent
	roots  []string
	closed atomic.Bool
	// hold, when set, blocks Close until it is closed.
	hold chan struct{}
}

func (s *fakeSource) Events() <-chan watch.ChangeEvent { return s.ch }

func (s *fakeSource) Close() error {
	if s.hold != nil {
		<-s.hold
	}
	if s.closed.CompareAndSwap(false, true) {
		close(s.ch)
	}
	return nil
}

type sourceFactory struct {
	mu     sync.Mutex
	opened []*fakeSource
	hold   chan struct{}
}

func (f *sourceFactory) open(roots []string, _ watch.Options) (watch.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &fakeSource{ch: make(chan watch.ChangeEvent, 1), roots: roots, hold: f.hold}
	f.opened = append(f.opened, s)
	return s, nil
}

func (f *sourceFactory) all() []*fakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeSource(nil), f.opened...)
}

func (f *sourceFactory) last() *fakeSource {
	all := f.all()
	return all[len(all)-1]
}

type fixture struct {
	m       *Monitor
	counter *fakeCounter
	sources *sourceFactory
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, src spec.Source, heuristic scanner.ProgressHeuristic) *fixture {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ProjectRoot = t.TempDir()
	cfg.PollingInterval = time.Hour

	if heuristic == nil {
		heuristic = scanner.ProgressFunc(func(context.Context, []string, []spec.Criterion) (map[string]uint, error) {
			return nil, nil
		})
	}

	f := &fixture{counter: &fakeCounter{}, sources: &sourceFactory{}}
	m, err := New(cfg, Deps{
		Spec:      src,
		Counter:   f.counter,
		Heuristic: heuristic,
		Changes:   f.sources.open,
		Logger:    discardLogger(),
	})
	require.NoError(t, err)
	f.m = m
	t.Cleanup(func() { _ = m.Stop() })
	return f
}

func filesSpec(limit uint) spec.Source {
	return spec.StaticSource{View: &spec.WorkingSpecView{
		Summary: spec.Summary{ID: "FEAT-1", Title: "Feature", Tier: 2},
		Budgets: map[spec.BudgetKind]uint{spec.BudgetFiles: limit},
	}}
}

func waitScans(t *testing.T, m *Monitor, n uint64) StatusSnapshot {
	t.Helper()
	require.Eventually(t, func() bool {
		return m.Status().ScanCount >= n
	}, 2*time.Second, 5*time.Millisecond, "expected %d scans", n)
	return m.Status()
}

func TestStart_PublishesInitialSnapshot(t *testing.T) {
	f := newFixture(t, filesSpec(10), nil)
	f.counter.set(3, 120)

	require.NoError(t, f.m.Start(context.Background()))

	s := f.m.Status()
	assert.Equal(t, StateRunning, s.State)
	assert.True(t, s.Initialized)
	assert.EqualValues(t, 1, s.ScanCount)
	assert.EqualValues(t, 3, s.Files)
	assert.EqualValues(t, 120, s.Lines)
	require.Contains(t, s.Budgets, spec.BudgetFiles)
	assert.EqualValues(t, 3, s.Budgets[spec.BudgetFiles].Current)
	assert.NotContains(t, s.Budgets, spec.BudgetLinesOfCode, "no loc limit declared")
	require.NotNil(t, s.SpecSummary)
	assert.Equal(t, "FEAT-1", s.SpecSummary.ID)
	assert.Empty(t, s.ConfigError)
	assert.False(t, s.LastScanAt.IsZero())
	assert.Len(t, f.sources.all(), 1)
}

func TestExampleScenario_FifthFileRaisesCritical(t *testing.T) {
	f := newFixture(t, filesSpec(5), nil)
	f.counter.set(4, 40)
	require.NoError(t, f.m.Start(context.Background()))

	before := f.m.Alerts(alerts.Filter{})

	f.counter.set(5, 50)
	require.NoError(t, f.m.Trigger())
	s := waitScans(t, f.m, 2)

	b := s.Budgets[spec.BudgetFiles]
	assert.EqualValues(t, 5, b.Current)
	assert.Equal(t, 1.0, b.Ratio)
	assert.Equal(t, budget.StatusExceeded, b.Status)

	critical := f.m.Alerts(alerts.Filter{Severity: alerts.SeverityCritical})
	require.Len(t, critical, 1)
	assert.Equal(t, alerts.KindBudgetCritical, critical[0].Kind)
	assert.Contains(t, critical[0].Message, "5/5")
	assert.Len(t, s.ActiveAlerts, len(before)+1)
}

func TestIdempotentSuppression(t *testing.T) {
	f := newFixture(t, filesSpec(10), nil)
	f.counter.set(9, 90)
	require.NoError(t, f.m.Start(context.Background()))

	first := f.m.Status()
	require.Len(t, first.ActiveAlerts, 1)

	for i := uint64(2); i <= 6; i++ {
		require.NoError(t, f.m.Trigger())
		s := waitScans(t, f.m, i)
		assert.Equal(t, first.Budgets, s.Budgets)
		assert.Len(t, s.ActiveAlerts, 1)
		assert.Equal(t, first.ActiveAlerts[0].CreatedAt, s.ActiveAlerts[0].CreatedAt)
	}
}

func TestNoOverlappingScans_ExactlyOneFollowUp(t *testing.T) {
	f := newFixture(t, filesSpec(10), nil)
	require.NoError(t, f.m.Start(context.Background()))
	require.EqualValues(t, 1, f.counter.calls.Load())

	gate, started := f.counter.block()

	require.NoError(t, f.m.Trigger())
	<-started

	// Several triggers of every kind while the scan is blocked.
	for i := 0; i < 3; i++ {
		require.NoError(t, f.m.Trigger())
	}
	src := f.sources.last()
	src.ch <- watch.ChangeEvent{Paths: []string{"a.go"}}
	src.ch <- watch.ChangeEvent{Paths: []string{"b.go"}}

	gate <- struct{}{}
	<-started
	gate <- struct{}{}

	waitScans(t, f.m, 3)
	time.Sleep(150 * time.Millisecond)

	assert.EqualValues(t, 3, f.counter.calls.Load(), "exactly one follow-up scan")
	assert.EqualValues(t, 1, f.counter.maxActive.Load(), "scans never overlap")
	assert.EqualValues(t, 3, f.m.Status().ScanCount)
}

func TestChangeEventTriggersRecompute(t *testing.T) {
	f := newFixture(t, filesSpec(10), nil)
	require.NoError(t, f.m.Start(context.Background()))

	f.counter.set(2, 20)
	f.sources.last().ch <- watch.ChangeEvent{Paths: []string{"x.go"}}

	s := waitScans(t, f.m, 2)
	assert.EqualValues(t, 2, s.Budgets[spec.BudgetFiles].Current)
}

func TestPollingTriggersRecompute(t *testing.T) {
	f := newFixture(t, filesSpec(10), nil)
	require.NoError(t, f.m.Reconfigure(context.Background(), Reconfiguration{PollingInterval: 20 * time.Millisecond}))
	require.NoError(t, f.m.Start(context.Background()))

	waitScans(t, f.m, 3)
}

func TestEmptyCriteria(t *testing.T) {
	f := newFixture(t, filesSpec(100), nil)
	require.NoError(t, f.m.Start(context.Background()))

	s := f.m.Status()
	assert.Equal(t, 0.0, s.OverallProgress)
	assert.Empty(t, s.Progress)
	assert.Empty(t, f.m.Alerts(alerts.Filter{Severity: alerts.SeverityInfo}), "stalled never fires without criteria")
}

func TestProgressStalledAndAggregated(t *testing.T) {
	src := spec.StaticSource{View: &spec.WorkingSpecView{
		Criteria: []spec.Criterion{{ID: "A1"}, {ID: "A2"}},
	}}
	heuristic := scanner.ProgressFunc(func(_ context.Context, _ []string, c []spec.Criterion) (map[string]uint, error) {
		require.Len(t, c, 2)
		return map[string]uint{"A1": 30, "A2": 0}, nil
	})
	f := newFixture(t, src, heuristic)
	require.NoError(t, f.m.Start(context.Background()))

	s := f.m.Status()
	assert.Equal(t, []string{"A1", "A2"}, s.Criteria)
	assert.Equal(t, map[string]uint{"A1": 30, "A2": 0}, s.Progress)
	assert.Equal(t, 15.0, s.OverallProgress)

	stalled := f.m.Alerts(alerts.Filter{Severity: alerts.SeverityInfo})
	require.Len(t, stalled, 1)
	assert.Equal(t, alerts.KindProgressStalled, stalled[0].Kind)
}

func TestHeuristicFailureReportsZero(t *testing.T) {
	src := spec.StaticSource{View: &spec.WorkingSpecView{Criteria: []spec.Criterion{{ID: "A1"}}}}
	heuristic := scanner.ProgressFunc(func(context.Context, []string, []spec.Criterion) (map[string]uint, error) {
		return nil, errors.New("boom")
	})
	f := newFixture(t, src, heuristic)
	require.NoError(t, f.m.Start(context.Background()))

	s := f.m.Status()
	assert.Equal(t, map[string]uint{"A1": 0}, s.Progress)
}

func TestLifecycle(t *testing.T) {
	f := newFixture(t, filesSpec(10), nil)

	assert.NoError(t, f.m.Stop(), "stop before start is a no-op")
	assert.Equal(t, StateStopped, f.m.Status().State)
	assert.False(t, f.m.Status().Initialized)

	var lerr *LifecycleError
	require.ErrorAs(t, f.m.Trigger(), &lerr)

	require.NoError(t, f.m.Start(context.Background()))
	err := f.m.Start(context.Background())
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, StateRunning, lerr.State)
	assert.Equal(t, StateRunning, f.m.State())

	require.NoError(t, f.m.Stop())
	require.NoError(t, f.m.Stop())
	assert.Equal(t, StateStopped, f.m.State())
	assert.Equal(t, StateStopped, f.m.Status().State)
	assert.True(t, f.sources.last().closed.Load(), "change source closed on stop")

	require.NoError(t, f.m.Start(context.Background()), "restart after stop")
	assert.Len(t, f.sources.all(), 2)
}

func TestStopDuringStartIsRejected(t *testing.T) {
	f := newFixture(t, filesSpec(10), nil)
	gate, started := f.counter.block()

	errc := make(chan error, 1)
	go func() { errc <- f.m.Start(context.Background()) }()
	<-started

	s := f.m.Status()
	assert.Equal(t, StateStarting, s.State)
	assert.False(t, s.Initialized, "sentinel while starting")

	var lerr *LifecycleError
	require.ErrorAs(t, f.m.Stop(), &lerr)
	assert.Equal(t, StateStarting, lerr.State)

	close(gate)
	require.NoError(t, <-errc)
	assert.Equal(t, StateRunning, f.m.State())
}

func TestStopDiscardsInflightScan(t *testing.T) {
	f := newFixture(t, filesSpec(10), nil)
	f.counter.set(1, 10)
	require.NoError(t, f.m.Start(context.Background()))

	gate, started := f.counter.block()
	f.counter.set(9, 90)
	require.NoError(t, f.m.Trigger())
	<-started

	stopped := make(chan error, 1)
	go func() { stopped <- f.m.Stop() }()
	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("stop waited for the blocked scan")
	}

	gate <- struct{}{}
	time.Sleep(50 * time.Millisecond)

	s := f.m.Status()
	assert.EqualValues(t, 1, s.ScanCount, "in-flight result discarded")
	assert.EqualValues(t, 1, s.Budgets[spec.BudgetFiles].Current)
	assert.Empty(t, s.ActiveAlerts)
}

func TestStop_PublishesStoppingSnapshot(t *testing.T) {
	f := newFixture(t, filesSpec(10), nil)
	f.sources.hold = make(chan struct{})
	f.counter.set(2, 20)
	require.NoError(t, f.m.Start(context.Background()))

	stopped := make(chan error, 1)
	go func() { stopped <- f.m.Stop() }()

	require.Eventually(t, func() bool {
		return f.m.Status().State == StateStopping
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, StateStopping, f.m.State())
	assert.EqualValues(t, 2, f.m.Status().Files, "last scan kept while stopping")

	close(f.sources.hold)
	require.NoError(t, <-stopped)
	assert.Equal(t, StateStopped, f.m.Status().State)
}

func TestStart_MissingSpecDegrades(t *testing.T) {
	f := newFixture(t, spec.StaticSource{Err: spec.ErrSpecNotFound}, nil)
	f.counter.set(7, 70)

	require.NoError(t, f.m.Start(context.Background()))

	s := f.m.Status()
	assert.Equal(t, StateRunning, s.State)
	assert.True(t, s.Initialized)
	assert.Nil(t, s.SpecSummary)
	assert.Contains(t, s.ConfigError, "not found")
	assert.Empty(t, s.Budgets)
	assert.Empty(t, s.ActiveAlerts)
	assert.EqualValues(t, 7, s.Files, "raw counts still reported")
}

func TestStart_UnloadableSpecFails(t *testing.T) {
	f := newFixture(t, spec.StaticSource{Err: errors.New("yaml: bad indentation")}, nil)

	err := f.m.Start(context.Background())
	var cerr *ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, StateStopped, f.m.State())
	assert.False(t, f.m.Status().Initialized)
	assert.Empty(t, f.sources.all(), "change source never opened")
}

func TestStart_InitialScanFailure(t *testing.T) {
	f := newFixture(t, filesSpec(10), nil)
	f.counter.err = errors.New("disk gone")

	require.Error(t, f.m.Start(context.Background()))
	assert.Equal(t, StateStopped, f.m.State())
}

// flakySpec fails to load after the first call.
type flakySpec struct {
	calls atomic.Int32
	view  *spec.WorkingSpecView
}

func (s *flakySpec) Load() (*spec.WorkingSpecView, error) {
	if s.calls.Add(1) > 1 {
		return nil, errors.New("yaml: mapping values are not allowed here")
	}
	return s.view, nil
}

func TestReloadFailureKeepsPreviousView(t *testing.T) {
	src := &flakySpec{view: &spec.WorkingSpecView{
		Summary: spec.Summary{ID: "FEAT-2"},
		Budgets: map[spec.BudgetKind]uint{spec.BudgetFiles: 10},
	}}
	f := newFixture(t, src, nil)
	require.NoError(t, f.m.Start(context.Background()))

	require.NoError(t, f.m.Trigger())
	s := waitScans(t, f.m, 2)

	require.NotNil(t, s.SpecSummary)
	assert.Equal(t, "FEAT-2", s.SpecSummary.ID)
	assert.Contains(t, s.Budgets, spec.BudgetFiles)
	assert.NotEmpty(t, s.ConfigError)
}

func TestReconfigure_KeepsAlertsAndReopensSource(t *testing.T) {
	f := newFixture(t, filesSpec(5), nil)
	f.counter.set(4, 40)
	require.NoError(t, f.m.Start(context.Background()))

	warning := f.m.Alerts(alerts.Filter{})
	require.Len(t, warning, 1)
	assert.Equal(t, alerts.KindBudgetWarning, warning[0].Kind)

	th := alerts.Thresholds{BudgetWarning: 0.5, BudgetCritical: 0.75, StalledBelow: 25}
	require.NoError(t, f.m.Reconfigure(context.Background(), Reconfiguration{
		WatchPaths: []string{"lib"},
		Thresholds: &th,
	}))

	s := waitScans(t, f.m, 2)
	require.Len(t, s.ActiveAlerts, 2)
	assert.Equal(t, warning[0].ID, s.ActiveAlerts[0].ID, "history kept")
	assert.Equal(t, alerts.KindBudgetCritical, s.ActiveAlerts[1].Kind)
	assert.Equal(t, []string{"lib"}, s.WatchPaths)

	opened := f.sources.all()
	require.Len(t, opened, 2)
	assert.True(t, opened[0].closed.Load())
	assert.False(t, opened[1].closed.Load())
	assert.Equal(t, f.m.Config().Roots(), opened[1].roots)
}

func TestReconfigure_Invalid(t *testing.T) {
	f := newFixture(t, filesSpec(5), nil)
	bad := alerts.Thresholds{BudgetWarning: 0.99, BudgetCritical: 0.5}
	assert.Error(t, f.m.Reconfigure(context.Background(), Reconfiguration{Thresholds: &bad}))
	assert.Equal(t, alerts.DefaultThresholds(), f.m.Config().AlertThresholds)
}

func TestReconfigure_CancelledLeavesConfigUnchanged(t *testing.T) {
	f := newFixture(t, filesSpec(5), nil)
	require.NoError(t, f.m.Start(context.Background()))
	before := f.m.Config().WatchPaths

	gate, started := f.counter.block()
	require.NoError(t, f.m.Trigger())
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := f.m.Reconfigure(ctx, Reconfiguration{WatchPaths: []string{"other"}})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, before, f.m.Config().WatchPaths)

	close(gate)
	s := waitScans(t, f.m, 2)
	assert.Equal(t, before, s.WatchPaths)
	assert.Len(t, f.sources.all(), 1, "change source not reopened")

	// A later call on a live context still goes through.
	require.NoError(t, f.m.Reconfigure(context.Background(), Reconfiguration{WatchPaths: []string{"other"}}))
	assert.Equal(t, []string{"other"}, f.m.Config().WatchPaths)
}

func TestReconfigure_InvalidAgainstRunningConfig(t *testing.T) {
	f := newFixture(t, filesSpec(5), nil)
	require.NoError(t, f.m.Start(context.Background()))

	raised := alerts.Thresholds{BudgetWarning: 0.9, BudgetCritical: 0.97, StalledBelow: 25}
	require.NoError(t, f.m.Reconfigure(context.Background(), Reconfiguration{Thresholds: &raised}))
	assert.Equal(t, raised, f.m.Config().AlertThresholds)

	bad := alerts.Thresholds{BudgetWarning: 0.99, BudgetCritical: 0.5}
	assert.Error(t, f.m.Reconfigure(context.Background(), Reconfiguration{Thresholds: &bad}))
	assert.Equal(t, raised, f.m.Config().AlertThresholds)
	assert.Equal(t, StateRunning, f.m.State())
}

func TestReconfigure_CapacityEvictsOldest(t *testing.T) {
	src := spec.StaticSource{View: &spec.WorkingSpecView{
		Budgets:  map[spec.BudgetKind]uint{spec.BudgetFiles: 10, spec.BudgetLinesOfCode: 100},
		Criteria: []spec.Criterion{{ID: "A1"}},
	}}
	f := newFixture(t, src, nil)
	f.counter.set(9, 99)
	require.NoError(t, f.m.Start(context.Background()))
	require.Len(t, f.m.Status().ActiveAlerts, 3)
	require.NoError(t, f.m.Stop())

	require.NoError(t, f.m.Reconfigure(context.Background(), Reconfiguration{MaxActiveAlerts: 1}))
	assert.Equal(t, 1, f.m.Config().MaxActiveAlerts)

	active := f.m.engine.Active()
	require.Len(t, active, 1)
	assert.Equal(t, alerts.KindProgressStalled, active[0].Kind, "oldest evicted first")
}

func TestSnapshotAtomicity(t *testing.T) {
	src := spec.StaticSource{View: &spec.WorkingSpecView{
		Budgets: map[spec.BudgetKind]uint{spec.BudgetFiles: 1 << 20, spec.BudgetLinesOfCode: 1 << 20},
	}}
	f := newFixture(t, src, nil)
	require.NoError(t, f.m.Start(context.Background()))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	var mismatches atomic.Int32
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				s := f.m.Status()
				if s.Budgets[spec.BudgetFiles].Current != s.Files ||
					s.Budgets[spec.BudgetLinesOfCode].Current != s.Lines ||
					s.Files*10 != s.Lines {
					mismatches.Add(1)
				}
			}
		}()
	}

	for i := uint(1); i <= 30; i++ {
		f.counter.set(i, i*10)
		require.NoError(t, f.m.Trigger())
		waitScans(t, f.m, uint64(i)+1)
	}
	close(stop)
	wg.Wait()

	assert.Zero(t, mismatches.Load())
}

func TestStatusIsACopy(t *testing.T) {
	f := newFixture(t, filesSpec(5), nil)
	f.counter.set(5, 5)
	require.NoError(t, f.m.Start(context.Background()))

	s := f.m.Status()
	s.Budgets[spec.BudgetFiles] = BudgetStatus{}
	s.ActiveAlerts[0].Message = "changed"

	again := f.m.Status()
	assert.EqualValues(t, 5, again.Budgets[spec.BudgetFiles].Current)
	assert.NotEqual(t, "changed", again.ActiveAlerts[0].Message)
}

func TestSubscribe(t *testing.T) {
	f := newFixture(t, filesSpec(10), nil)
	feed, cancel := f.m.Subscribe(4)

	f.counter.set(8, 80)
	require.NoError(t, f.m.Start(context.Background()))

	select {
	case a := <-feed:
		assert.Equal(t, alerts.KindBudgetWarning, a.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected alert on feed")
	}

	cancel()
	cancel()
	_, ok := <-feed
	assert.False(t, ok)
}

func TestBudgetListOrder(t *testing.T) {
	s := StatusSnapshot{Budgets: map[spec.BudgetKind]BudgetStatus{
		"zeta":                 {Kind: "zeta"},
		spec.BudgetLinesOfCode: {Kind: spec.BudgetLinesOfCode},
		spec.BudgetFiles:       {Kind: spec.BudgetFiles},
	}}
	var kinds []spec.BudgetKind
	for _, b := range s.BudgetList() {
		kinds = append(kinds, b.Kind)
	}
	assert.Equal(t, []spec.BudgetKind{spec.BudgetFiles, spec.BudgetLinesOfCode, "zeta"}, kinds)
}

func TestScanOnce(t *testing.T) {
	f := newFixture(t, filesSpec(4), nil)
	f.counter.set(4, 44)

	s, err := f.m.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateStopped, s.State)
	assert.True(t, s.Initialized)
	assert.EqualValues(t, 4, s.Budgets[spec.BudgetFiles].Current)
	require.Len(t, s.ActiveAlerts, 1)
	assert.Equal(t, alerts.KindBudgetCritical, s.ActiveAlerts[0].Kind)
	assert.Empty(t, f.sources.all(), "no change source for a one-shot scan")
	assert.Equal(t, StateStopped, f.m.State())

	require.NoError(t, f.m.Start(context.Background()))
	_, err = f.m.ScanOnce(context.Background())
	var lerr *LifecycleError
	assert.ErrorAs(t, err, &lerr)
}
