// Package monitor keeps a live view of a project's change budgets and
// acceptance-criteria progress.
//
// A Monitor funnels change events, a periodic tick and manual triggers into
// one serialized recompute pipeline. Each recompute scans the tree, builds
// a fresh budget/progress pair, evaluates alert rules and publishes an
// immutable StatusSnapshot. Readers only ever see published snapshots.
//
// At most one scan is in flight. Triggers that arrive while a scan runs
// collapse into exactly one follow-up scan.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/alerts"
	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/budget"
	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/scanner"
	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/spec"
	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/watch"
)

// ChangeSourceFunc opens a change source over roots.
type ChangeSourceFunc func(roots []string, opts watch.Options) (watch.Source, error)

// OpenWatcher is the default ChangeSourceFunc backed by fsnotify.
func OpenWatcher(roots []string, opts watch.Options) (watch.Source, error) {
	w, err := watch.New(roots, opts)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// Deps are the collaborators a Monitor runs with. Nil fields are built
// from the Config.
type Deps struct {
	Spec      spec.Source
	Counter   scanner.Counter
	Heuristic scanner.ProgressHeuristic
	Changes   ChangeSourceFunc
	Logger    *slog.Logger
	Now       func() time.Time
}

// Monitor is the live project monitor.
type Monitor struct {
	id        string
	logger    *slog.Logger
	now       func() time.Time
	specSrc   spec.Source
	counter   scanner.Counter
	heuristic scanner.ProgressHeuristic
	changes   ChangeSourceFunc
	metrics   *metrics

	snapshot atomic.Pointer[StatusSnapshot]

	mu       sync.Mutex
	state    State
	cfg      *Config
	cancel   context.CancelFunc
	loopDone chan struct{}

	trigger  chan struct{}
	reconfig chan *reconfigRequest
	inflight sync.WaitGroup

	// Pipeline-owned. Touched by Start before the loop runs, by the loop
	// while running, and by Reconfigure only while stopped.
	engine     *alerts.Engine
	view       *spec.WorkingSpecView
	specLoaded bool
	specErr    error
	scanCount  uint64

	subMu   sync.Mutex
	subs    map[int]chan alerts.Alert
	nextSub int
}

type reconfigRequest struct {
	rc   Reconfiguration
	err  error
	done chan struct{}
}

// New creates a stopped monitor. A nil cfg uses DefaultConfig.
func New(cfg *Config, deps Deps) (*Monitor, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid monitor config: %w", err)
	}
	cfg = cfg.Clone()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Spec == nil {
		deps.Spec = spec.NewFileSource(cfg.ProjectRoot, cfg.SpecPath)
	}
	if deps.Counter == nil {
		deps.Counter = scanner.New(cfg.Extensions, logger)
	}
	if deps.Heuristic == nil {
		deps.Heuristic = scanner.NewKeywordHeuristic(cfg.Extensions, logger)
	}
	if deps.Changes == nil {
		deps.Changes = OpenWatcher
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	m := &Monitor{
		id:        uuid.NewString(),
		logger:    logger.With("component", "monitor"),
		now:       deps.Now,
		specSrc:   deps.Spec,
		counter:   deps.Counter,
		heuristic: deps.Heuristic,
		changes:   deps.Changes,
		cfg:       cfg,
		trigger:   make(chan struct{}, 1),
		reconfig:  make(chan *reconfigRequest),
		engine:    alerts.NewEngine(cfg.AlertThresholds, cfg.MaxActiveAlerts),
		view:      &spec.WorkingSpecView{},
		subs:      make(map[int]chan alerts.Alert),
	}
	m.metrics = newMetrics()
	m.publish(m.sentinel(StateStopped, cfg))
	return m, nil
}

// ID identifies this monitor instance.
func (m *Monitor) ID() string {
	return m.id
}

// State returns the current lifecycle state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Config returns a copy of the active configuration.
func (m *Monitor) Config() *Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.Clone()
}

// Start loads the working spec, runs one synchronous scan, opens the change
// source and starts the pipeline. ctx bounds the initial scan only; the
// pipeline runs until Stop.
//
// A missing spec is not fatal: the monitor runs with empty budgets and the
// snapshot carries the ConfigurationError. A spec that exists but cannot be
// loaded, or a failed initial scan, returns the error and leaves the
// monitor stopped.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateStopped {
		st := m.state
		m.mu.Unlock()
		return &LifecycleError{Op: "start", State: st}
	}
	m.state = StateStarting
	cfg := m.cfg.Clone()
	m.mu.Unlock()

	m.publish(m.sentinel(StateStarting, cfg))

	// A scan abandoned by the previous Stop may still be walking.
	m.inflight.Wait()

	m.logger.Info("starting monitor", "roots", cfg.Roots(), "poll_interval", cfg.PollingInterval)

	m.specErr = nil
	if err := m.reloadSpec(cfg); err != nil {
		return m.failStart(cfg, err)
	}

	out := m.compute(ctx, cfg.Roots(), m.view, m.specLoaded)
	if out.err != nil {
		m.metrics.recordScan(ctx, "error", out.duration)
		return m.failStart(cfg, fmt.Errorf("initial scan: %w", out.err))
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p := &pipeline{
		m:      m,
		cfg:    cfg,
		src:    m.openChanges(cfg),
		ticker: time.NewTicker(cfg.PollingInterval),
	}
	done := make(chan struct{})

	m.metrics.observe(m)

	m.mu.Lock()
	m.apply(runCtx, cfg, out, StateRunning)
	m.state = StateRunning
	m.cancel = cancel
	m.loopDone = done
	m.mu.Unlock()

	go p.run(runCtx, done)

	m.logger.Info("monitor running", "files", out.result.Files, "lines", out.result.Lines)
	return nil
}

func (m *Monitor) failStart(cfg *Config, err error) error {
	m.logger.Error("monitor failed to start", "error", err)
	m.mu.Lock()
	m.state = StateStopped
	m.mu.Unlock()
	m.publish(m.sentinel(StateStopped, cfg))
	return err
}

// Stop closes the change source, stops the timer and waits for the
// pipeline to exit. The result of an in-flight scan is discarded; the walk
// itself may finish in the background. Stopping a stopped monitor is a
// no-op. Stop during Start is rejected.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	switch m.state {
	case StateStopped, StateStopping:
		m.mu.Unlock()
		return nil
	case StateStarting:
		m.mu.Unlock()
		return &LifecycleError{Op: "stop", State: StateStarting}
	}
	m.state = StateStopping
	cancel, done := m.cancel, m.loopDone
	m.publishState(StateStopping)
	// Cancel under the lock so a finishing scan cannot publish after this.
	cancel()
	m.mu.Unlock()

	m.logger.Info("stopping monitor")
	<-done
	m.metrics.unobserve()

	m.mu.Lock()
	m.state = StateStopped
	m.cancel = nil
	m.loopDone = nil
	m.publishState(StateStopped)
	m.mu.Unlock()

	m.logger.Info("monitor stopped")
	return nil
}

// ScanOnce runs a single recompute on a stopped monitor and returns the
// resulting snapshot. No change source or timer is started.
func (m *Monitor) ScanOnce(ctx context.Context) (StatusSnapshot, error) {
	m.mu.Lock()
	if m.state != StateStopped {
		st := m.state
		m.mu.Unlock()
		return StatusSnapshot{}, &LifecycleError{Op: "run a one-shot scan on", State: st}
	}
	// Hold Starting so Start and Reconfigure are rejected meanwhile.
	m.state = StateStarting
	cfg := m.cfg.Clone()
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.state = StateStopped
		m.mu.Unlock()
	}()

	m.inflight.Wait()

	m.specErr = nil
	if err := m.reloadSpec(cfg); err != nil {
		return StatusSnapshot{}, err
	}
	out := m.compute(ctx, cfg.Roots(), m.view, m.specLoaded)
	if out.err != nil {
		return StatusSnapshot{}, fmt.Errorf("scan: %w", out.err)
	}
	m.apply(ctx, cfg, out, StateStopped)
	return m.Status(), nil
}

// Status returns the latest snapshot. It never scans. Before the first
// successful scan of a run the snapshot has Initialized=false.
func (m *Monitor) Status() StatusSnapshot {
	return m.snapshot.Load().clone()
}

// Alerts returns active alerts matching f, oldest first.
func (m *Monitor) Alerts(f alerts.Filter) []alerts.Alert {
	return f.Apply(m.Status().ActiveAlerts)
}

// Trigger requests a recompute through the pipeline. Requests made while a
// recompute is pending or running coalesce.
func (m *Monitor) Trigger() error {
	m.mu.Lock()
	st := m.state
	m.mu.Unlock()
	if st != StateRunning {
		return &LifecycleError{Op: "trigger a scan on", State: st}
	}
	select {
	case m.trigger <- struct{}{}:
	default:
	}
	return nil
}

// Subscribe returns a channel receiving each newly raised alert. Delivery
// is best effort: when the buffer is full the alert is dropped for that
// subscriber. The cancel func unsubscribes and closes the channel.
func (m *Monitor) Subscribe(buffer int) (<-chan alerts.Alert, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan alerts.Alert, buffer)

	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, id)
			m.subMu.Unlock()
			close(ch)
		})
	}
}

// Reconfiguration lists the settings that can change on a live monitor.
// Zero values leave a setting unchanged.
type Reconfiguration struct {
	WatchPaths      []string
	Thresholds      *alerts.Thresholds
	PollingInterval time.Duration
	MaxActiveAlerts int
}

func (rc Reconfiguration) applyTo(cfg *Config) {
	if len(rc.WatchPaths) > 0 {
		cfg.WatchPaths = append([]string(nil), rc.WatchPaths...)
	}
	if rc.Thresholds != nil {
		cfg.AlertThresholds = *rc.Thresholds
	}
	if rc.PollingInterval > 0 {
		cfg.PollingInterval = rc.PollingInterval
	}
	if rc.MaxActiveAlerts > 0 {
		cfg.MaxActiveAlerts = rc.MaxActiveAlerts
	}
}

// Reconfigure changes watch paths, thresholds, polling interval or alert
// capacity. Active alerts are kept. On a running monitor the change source
// is reopened when watch paths change and a recompute follows.
func (m *Monitor) Reconfigure(ctx context.Context, rc Reconfiguration) error {
	m.mu.Lock()
	next := m.cfg.Clone()
	rc.applyTo(next)
	if err := next.Validate(); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("invalid reconfiguration: %w", err)
	}

	switch m.state {
	case StateStopped:
		m.cfg = next
		m.engine.SetThresholds(next.AlertThresholds)
		m.engine.SetCapacity(next.MaxActiveAlerts)
		m.mu.Unlock()
		return nil
	case StateRunning:
	default:
		st := m.state
		m.mu.Unlock()
		return &LifecycleError{Op: "reconfigure", State: st}
	}

	done := m.loopDone
	m.mu.Unlock()

	// The pipeline commits the change; nothing is stored unless it does.
	if err := ctx.Err(); err != nil {
		return err
	}
	if rc.Thresholds != nil {
		th := *rc.Thresholds
		rc.Thresholds = &th
	}
	req := &reconfigRequest{rc: rc, done: make(chan struct{})}
	select {
	case m.reconfig <- req:
	case <-done:
		return &LifecycleError{Op: "reconfigure", State: StateStopping}
	case <-ctx.Done():
		return ctx.Err()
	}

	// Once received, the request is answered before the loop can exit.
	<-req.done
	return req.err
}

func (m *Monitor) publish(s StatusSnapshot) {
	m.snapshot.Store(&s)
}

// publishState republishes the latest snapshot under a new lifecycle state.
// Callers hold m.mu.
func (m *Monitor) publishState(st State) {
	if s := m.snapshot.Load(); s != nil {
		next := s.clone()
		next.State = st
		m.snapshot.Store(&next)
	}
}

func (m *Monitor) sentinel(state State, cfg *Config) StatusSnapshot {
	return StatusSnapshot{
		MonitorID:  m.id,
		State:      state,
		Timestamp:  m.now(),
		Budgets:    map[spec.BudgetKind]BudgetStatus{},
		Progress:   map[string]uint{},
		WatchPaths: append([]string(nil), cfg.WatchPaths...),
	}
}

func (m *Monitor) openChanges(cfg *Config) watch.Source {
	src, err := m.changes(cfg.Roots(), watch.Options{
		Ignore:   cfg.Ignore,
		Debounce: cfg.Debounce,
		Logger:   m.logger,
	})
	if err != nil {
		m.logger.Warn("change watching unavailable, relying on polling", "error", err)
		return nil
	}
	return src
}

// reloadSpec refreshes the pipeline's spec view. A missing spec swaps in an
// empty view and is logged once. Any other failure keeps the previous view
// and is returned as a *ConfigurationError.
func (m *Monitor) reloadSpec(cfg *Config) error {
	view, err := m.specSrc.Load()
	if err == nil {
		if view == nil {
			view = &spec.WorkingSpecView{}
		}
		if m.specErr != nil {
			m.logger.Info("working spec loaded", "path", cfg.SpecPath, "id", view.Summary.ID)
		}
		m.view, m.specLoaded, m.specErr = view, true, nil
		return nil
	}

	cerr := &ConfigurationError{Path: cfg.SpecPath, Err: err}
	changed := m.specErr == nil || m.specErr.Error() != cerr.Error()

	if errors.Is(err, spec.ErrSpecNotFound) {
		if changed {
			m.logger.Warn("working spec not found, budgets and progress disabled", "path", cfg.SpecPath)
		}
		m.view, m.specLoaded, m.specErr = &spec.WorkingSpecView{}, false, cerr
		return nil
	}

	if changed {
		m.logger.Warn("failed to load working spec, keeping previous view", "path", cfg.SpecPath, "error", err)
	}
	m.specErr = cerr
	return cerr
}

type scanOutcome struct {
	result     scanner.Result
	progress   map[string]uint
	view       *spec.WorkingSpecView
	specLoaded bool
	duration   time.Duration
	err        error
}

// compute performs the blocking part of a recompute: the tree walk and the
// progress heuristic. It touches no pipeline state.
func (m *Monitor) compute(ctx context.Context, roots []string, view *spec.WorkingSpecView, specLoaded bool) scanOutcome {
	started := time.Now()
	ctx, span := m.metrics.tracer.Start(ctx, "monitor.scan")
	defer span.End()

	res, err := m.counter.Scan(ctx, roots)
	if err != nil {
		span.RecordError(err)
		return scanOutcome{err: err, duration: time.Since(started)}
	}

	out := scanOutcome{result: res, view: view, specLoaded: specLoaded}
	if len(view.Criteria) > 0 {
		progress, err := m.heuristic.Progress(ctx, roots, view.Criteria)
		if err != nil {
			if ctx.Err() != nil {
				return scanOutcome{err: ctx.Err(), duration: time.Since(started)}
			}
			m.logger.Warn("progress heuristic failed, reporting zero progress", "error", err)
			progress = nil
		}
		out.progress = progress
	}
	out.duration = time.Since(started)
	return out
}

// apply swaps in the trackers from one scan, runs the alert rules and
// publishes the snapshot. Only the pipeline owner calls it.
func (m *Monitor) apply(ctx context.Context, cfg *Config, out scanOutcome, state State) {
	view := out.view
	bt := budget.NewTracker(view.Budgets, map[spec.BudgetKind]uint{
		spec.BudgetFiles:       out.result.Files,
		spec.BudgetLinesOfCode: out.result.Lines,
	})
	pt := budget.NewProgressTracker(view.CriterionIDs(), out.progress)

	ev := m.engine.Process(bt.List(), alerts.Progress{Overall: pt.Overall(), Criteria: pt.Len()})
	m.scanCount++

	now := m.now()
	snap := buildSnapshot(bt, pt, m.engine.Active(), m.engine.Thresholds())
	snap.MonitorID = m.id
	snap.State = state
	snap.Timestamp = now
	snap.LastScanAt = now
	snap.ScanDuration = out.duration
	snap.ScanCount = m.scanCount
	snap.Files = out.result.Files
	snap.Lines = out.result.Lines
	snap.SkippedFiles = len(out.result.Skipped)
	snap.WatchPaths = append([]string(nil), cfg.WatchPaths...)
	if out.specLoaded {
		sum := view.Summary
		snap.SpecSummary = &sum
	}
	if m.specErr != nil {
		snap.ConfigError = m.specErr.Error()
	}
	m.publish(snap)

	m.metrics.recordScan(ctx, "ok", out.duration)
	m.metrics.recordAlerts(ctx, ev.Added)

	for _, a := range ev.Added {
		m.logger.Warn("alert raised", "id", a.ID, "kind", a.Kind, "severity", a.Severity, "message", a.Message)
		m.notify(a)
	}
	m.logger.Debug("scan applied",
		"scan", m.scanCount,
		"files", out.result.Files,
		"lines", out.result.Lines,
		"skipped", len(out.result.Skipped),
		"overall_progress", snap.OverallProgress,
		"duration", out.duration,
	)
}

func (m *Monitor) notify(a alerts.Alert) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- a:
		default:
		}
	}
}

// pipeline is the single consumer of every recompute trigger.
type pipeline struct {
	m      *Monitor
	cfg    *Config
	src    watch.Source
	ticker *time.Ticker
}

func (p *pipeline) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer p.closeSource()
	defer p.ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-p.events():
			if !ok {
				p.sourceClosed()
				continue
			}
			p.m.logger.Debug("change detected", "paths", len(ev.Paths))
		case <-p.ticker.C:
		case <-p.m.trigger:
		case req := <-p.m.reconfig:
			req.err = p.reconfigure(req.rc)
			close(req.done)
			if req.err != nil {
				continue
			}
		}

		if !p.recompute(ctx) {
			return
		}
	}
}

// recompute scans until no trigger arrived during the last scan. It
// returns false once ctx is done.
func (p *pipeline) recompute(ctx context.Context) bool {
	for {
		followUp, ok := p.scanOnce(ctx)
		if !ok {
			return false
		}
		if !followUp {
			return true
		}
	}
}

// scanOnce runs one scan in the background while still consuming triggers,
// so a busy scan never blocks the change source. It reports whether any
// trigger arrived meanwhile.
func (p *pipeline) scanOnce(ctx context.Context) (followUp bool, ok bool) {
	_ = p.m.reloadSpec(p.cfg)
	roots := p.cfg.Roots()
	view, loaded := p.m.view, p.m.specLoaded

	results := make(chan scanOutcome, 1)
	p.m.inflight.Add(1)
	go func() {
		defer p.m.inflight.Done()
		results <- p.m.compute(ctx, roots, view, loaded)
	}()

	for {
		select {
		case out := <-results:
			if ctx.Err() != nil {
				return false, false
			}
			followUp = p.drain() || followUp
			if out.err != nil {
				p.m.metrics.recordScan(ctx, "error", out.duration)
				p.m.logger.Warn("scan failed, keeping previous snapshot", "error", out.err)
				return followUp, true
			}
			p.m.mu.Lock()
			if ctx.Err() != nil {
				p.m.mu.Unlock()
				return false, false
			}
			p.m.apply(ctx, p.cfg, out, StateRunning)
			p.m.mu.Unlock()
			return followUp, true
		case <-ctx.Done():
			return false, false
		case _, ok := <-p.events():
			if !ok {
				p.sourceClosed()
				continue
			}
			followUp = true
		case <-p.ticker.C:
			followUp = true
		case <-p.m.trigger:
			followUp = true
		}
	}
}

// drain consumes triggers that are already pending without blocking.
func (p *pipeline) drain() bool {
	pending := false
	for {
		select {
		case _, ok := <-p.events():
			if !ok {
				p.sourceClosed()
				continue
			}
			pending = true
		case <-p.m.trigger:
			pending = true
		default:
			return pending
		}
	}
}

// reconfigure applies rc on top of the pipeline's current config and
// commits the result to the monitor.
func (p *pipeline) reconfigure(rc Reconfiguration) error {
	next := p.cfg.Clone()
	rc.applyTo(next)
	if err := next.Validate(); err != nil {
		return fmt.Errorf("invalid reconfiguration: %w", err)
	}

	p.m.engine.SetThresholds(next.AlertThresholds)
	p.m.engine.SetCapacity(next.MaxActiveAlerts)

	if next.PollingInterval != p.cfg.PollingInterval {
		p.ticker.Reset(next.PollingInterval)
	}

	if !slices.Equal(p.cfg.Roots(), next.Roots()) {
		p.m.logger.Info("watch paths changed, reopening change source", "roots", next.Roots())
		p.closeSource()
		p.src = p.m.openChanges(next)
	}
	p.cfg = next

	p.m.mu.Lock()
	p.m.cfg = next.Clone()
	p.m.mu.Unlock()
	return nil
}

func (p *pipeline) events() <-chan watch.ChangeEvent {
	if p.src == nil {
		return nil
	}
	return p.src.Events()
}

func (p *pipeline) sourceClosed() {
	p.m.logger.Warn("change source closed, relying on polling")
	p.src = nil
}

func (p *pipeline) closeSource() {
	if p.src == nil {
		return
	}
	if err := p.src.Close(); err != nil {
		p.m.logger.Debug("closing change source", "error", err)
	}
	p.src = nil
}
