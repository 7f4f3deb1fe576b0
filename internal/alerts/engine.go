package alerts

import (
	"fmt"
	"time"

	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/budget"
)

// Thresholds configure when rules fire.
type Thresholds struct {
	// BudgetWarning is the usage ratio that raises a warning.
	// Default: 0.80
	BudgetWarning float64 `json:"budget_warning" yaml:"budget_warning"`

	// BudgetCritical is the usage ratio that raises a critical alert.
	// Default: 0.95
	BudgetCritical float64 `json:"budget_critical" yaml:"budget_critical"`

	// StalledBelow is the overall progress percentage under which progress
	// is reported as stalled.
	// Default: 25
	StalledBelow uint `json:"stalled_below" yaml:"stalled_below"`
}

// DefaultThresholds returns the default alert thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		BudgetWarning:  0.80,
		BudgetCritical: 0.95,
		StalledBelow:   25,
	}
}

// Validate checks the thresholds are usable.
func (t Thresholds) Validate() error {
	if t.BudgetWarning <= 0 {
		return fmt.Errorf("budget_warning must be positive, got %.2f", t.BudgetWarning)
	}
	if t.BudgetCritical <= 0 {
		return fmt.Errorf("budget_critical must be positive, got %.2f", t.BudgetCritical)
	}
	if t.BudgetWarning > t.BudgetCritical {
		return fmt.Errorf("budget_warning (%.2f) must not exceed budget_critical (%.2f)", t.BudgetWarning, t.BudgetCritical)
	}
	if t.StalledBelow > 100 {
		return fmt.Errorf("stalled_below must be between 0 and 100, got %d", t.StalledBelow)
	}
	return nil
}

// Progress is the aggregate progress the stalled rule inspects.
type Progress struct {
	Overall  float64
	Criteria int
}

// Evaluation is the outcome of one rule pass.
type Evaluation struct {
	// Added are new alerts, in rule evaluation order.
	Added []Alert
	// Unchanged are candidates suppressed because an alert with the same
	// id is already active. The active copy is returned, not the candidate.
	Unchanged []Alert
}

// Evaluate runs the rules against one scan's results. It does not modify
// active. Rules, in order:
//  1. per budget, ratio >= critical raises budget_critical
//  2. otherwise ratio >= warning raises budget_warning
//  3. overall progress below stalled_below with at least one criterion
//     raises progress_stalled
func Evaluate(budgets []budget.Budget, progress Progress, active []Alert, th Thresholds, now time.Time) Evaluation {
	byID := make(map[string]Alert, len(active))
	for _, a := range active {
		byID[a.ID] = a
	}

	var ev Evaluation
	consider := func(candidate Alert) {
		if existing, ok := byID[candidate.ID]; ok {
			ev.Unchanged = append(ev.Unchanged, existing)
			return
		}
		byID[candidate.ID] = candidate
		ev.Added = append(ev.Added, candidate)
	}

	for _, b := range budgets {
		if b.Limit == 0 {
			continue
		}
		ratio := b.Ratio()
		switch {
		case ratio >= th.BudgetCritical:
			consider(Alert{
				ID:       AlertID(KindBudgetCritical, string(b.Kind)),
				Kind:     KindBudgetCritical,
				Severity: SeverityCritical,
				Message: fmt.Sprintf("%s budget critical: %s %s used (%.0f%%, threshold %.0f%%)",
					b.Label(), b.Usage(), b.Unit(), ratio*100, th.BudgetCritical*100),
				CreatedAt: now,
				Budget:    budgetRef(b),
			})
		case ratio >= th.BudgetWarning:
			consider(Alert{
				ID:       AlertID(KindBudgetWarning, string(b.Kind)),
				Kind:     KindBudgetWarning,
				Severity: SeverityWarning,
				Message: fmt.Sprintf("%s budget warning: %s %s used (%.0f%%, threshold %.0f%%)",
					b.Label(), b.Usage(), b.Unit(), ratio*100, th.BudgetWarning*100),
				CreatedAt: now,
				Budget:    budgetRef(b),
			})
		}
	}

	if progress.Criteria > 0 && progress.Overall < float64(th.StalledBelow) {
		consider(Alert{
			ID:       AlertID(KindProgressStalled, "overall"),
			Kind:     KindProgressStalled,
			Severity: SeverityInfo,
			Message: fmt.Sprintf("Progress stalled: %.1f%% overall across %d criteria (below %d%%)",
				progress.Overall, progress.Criteria, th.StalledBelow),
			CreatedAt: now,
		})
	}

	return ev
}

// Engine applies Evaluate to a Ring. Like Ring, it belongs to a single
// pipeline and is not safe for concurrent use.
type Engine struct {
	thresholds Thresholds
	ring       *Ring
	now        func() time.Time
}

// NewEngine creates an engine with the given thresholds and ring capacity.
func NewEngine(th Thresholds, capacity int) *Engine {
	return &Engine{
		thresholds: th,
		ring:       NewRing(capacity),
		now:        time.Now,
	}
}

// SetThresholds replaces the thresholds used by later evaluations.
// Active alerts are kept.
func (e *Engine) SetThresholds(th Thresholds) {
	e.thresholds = th
}

// Thresholds returns the current thresholds.
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// SetCapacity resizes the active set.
func (e *Engine) SetCapacity(capacity int) {
	e.ring.SetCapacity(capacity)
}

// Process evaluates one scan, appends new alerts to the active set and
// returns the evaluation.
func (e *Engine) Process(budgets []budget.Budget, progress Progress) Evaluation {
	ev := Evaluate(budgets, progress, e.ring.List(), e.thresholds, e.now())
	e.ring.Add(ev.Added...)
	return ev
}

// Active returns a copy of the active alerts, oldest first.
func (e *Engine) Active() []Alert {
	return e.ring.List()
}
