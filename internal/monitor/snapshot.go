package monitor

import (
	"sort"
	"time"

	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/alerts"
	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/budget"
	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/spec"
)

// BudgetStatus is one budget as reported in a snapshot.
type BudgetStatus struct {
	Kind    spec.BudgetKind `json:"kind"`
	Current uint            `json:"current"`
	Limit   uint            `json:"limit"`
	Ratio   float64         `json:"ratio"`
	Status  budget.Status   `json:"status"`
}

// Budget converts back to the tracker representation.
func (b BudgetStatus) Budget() budget.Budget {
	return budget.Budget{Kind: b.Kind, Current: b.Current, Limit: b.Limit}
}

// StatusSnapshot is an immutable point-in-time view of one completed scan.
// Budgets, Progress and ActiveAlerts always come from the same scan.
type StatusSnapshot struct {
	MonitorID   string `json:"monitor_id"`
	State       State  `json:"state"`
	Initialized bool   `json:"initialized"`

	// Timestamp is when this snapshot was published.
	Timestamp time.Time `json:"timestamp"`
	// LastScanAt is when the scan behind this snapshot completed.
	LastScanAt   time.Time     `json:"last_scan_at"`
	ScanDuration time.Duration `json:"scan_duration"`
	ScanCount    uint64        `json:"scan_count"`

	Files        uint `json:"files"`
	Lines        uint `json:"lines"`
	SkippedFiles int  `json:"skipped_files"`

	Budgets         map[spec.BudgetKind]BudgetStatus `json:"budgets"`
	Progress        map[string]uint                  `json:"progress"`
	Criteria        []string                         `json:"criteria"`
	OverallProgress float64                          `json:"overall_progress"`
	ActiveAlerts    []alerts.Alert                   `json:"active_alerts"`

	// SpecSummary is nil when no spec is loaded.
	SpecSummary *spec.Summary `json:"spec_summary,omitempty"`
	ConfigError string        `json:"config_error,omitempty"`
	WatchPaths  []string      `json:"watch_paths"`
}

// BudgetList returns budgets in evaluation order.
func (s StatusSnapshot) BudgetList() []BudgetStatus {
	out := make([]BudgetStatus, 0, len(s.Budgets))
	known := make(map[spec.BudgetKind]bool, len(spec.Kinds))
	for _, k := range spec.Kinds {
		known[k] = true
		if b, ok := s.Budgets[k]; ok {
			out = append(out, b)
		}
	}
	var extra []BudgetStatus
	for k, b := range s.Budgets {
		if !known[k] {
			extra = append(extra, b)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].Kind < extra[j].Kind })
	return append(out, extra...)
}

// ProgressEntries returns per-criterion progress in declaration order.
func (s StatusSnapshot) ProgressEntries() []budget.ProgressEntry {
	out := make([]budget.ProgressEntry, 0, len(s.Criteria))
	for _, id := range s.Criteria {
		out = append(out, budget.ProgressEntry{CriterionID: id, Percentage: s.Progress[id]})
	}
	return out
}

// clone deep-copies the snapshot so callers cannot reach shared state.
func (s StatusSnapshot) clone() StatusSnapshot {
	out := s
	out.Budgets = make(map[spec.BudgetKind]BudgetStatus, len(s.Budgets))
	for k, v := range s.Budgets {
		out.Budgets[k] = v
	}
	out.Progress = make(map[string]uint, len(s.Progress))
	for k, v := range s.Progress {
		out.Progress[k] = v
	}
	out.Criteria = append([]string(nil), s.Criteria...)
	out.WatchPaths = append([]string(nil), s.WatchPaths...)
	out.ActiveAlerts = make([]alerts.Alert, len(s.ActiveAlerts))
	for i, a := range s.ActiveAlerts {
		if a.Budget != nil {
			ref := *a.Budget
			a.Budget = &ref
		}
		out.ActiveAlerts[i] = a
	}
	if s.SpecSummary != nil {
		sum := *s.SpecSummary
		out.SpecSummary = &sum
	}
	return out
}

// buildSnapshot assembles a snapshot from one scan's trackers.
func buildSnapshot(bt *budget.Tracker, pt *budget.ProgressTracker, active []alerts.Alert, th alerts.Thresholds) StatusSnapshot {
	budgets := make(map[spec.BudgetKind]BudgetStatus)
	for _, b := range bt.List() {
		budgets[b.Kind] = BudgetStatus{
			Kind:    b.Kind,
			Current: b.Current,
			Limit:   b.Limit,
			Ratio:   b.Ratio(),
			Status:  b.StatusAt(th.BudgetWarning, th.BudgetCritical),
		}
	}

	entries := pt.Entries()
	criteria := make([]string, len(entries))
	for i, e := range entries {
		criteria[i] = e.CriterionID
	}

	return StatusSnapshot{
		Initialized:     true,
		Budgets:         budgets,
		Progress:        pt.Map(),
		Criteria:        criteria,
		OverallProgress: pt.Overall(),
		ActiveAlerts:    active,
	}
}
