// Package budget holds the budget and progress state computed by each scan.
//
// Trackers are plain data holders. They are never merged or patched: the
// monitor builds a complete fresh pair per scan and swaps it in whole.
package budget

import (
	"fmt"
	"sort"

	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/spec"
)

// Status represents how close a budget is to its limit.
type Status int

const (
	// StatusHealthy indicates usage below the warning threshold.
	StatusHealthy Status = iota
	// StatusWarning indicates usage at or above the warning threshold.
	StatusWarning
	// StatusExceeded indicates usage at or above the critical threshold.
	StatusExceeded
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusWarning:
		return "warning"
	case StatusExceeded:
		return "exceeded"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// MarshalText lets Status render as a string in JSON output.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name produced by MarshalText.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "healthy":
		*s = StatusHealthy
	case "warning":
		*s = StatusWarning
	case "exceeded":
		*s = StatusExceeded
	default:
		return fmt.Errorf("unknown budget status %q", text)
	}
	return nil
}

// Budget is one current/limit pair.
type Budget struct {
	Kind    spec.BudgetKind `json:"kind"`
	Current uint            `json:"current"`
	Limit   uint            `json:"limit"`
}

// Ratio returns Current/Limit. It may exceed 1.0. A zero limit yields 0.
func (b Budget) Ratio() float64 {
	if b.Limit == 0 {
		return 0
	}
	return float64(b.Current) / float64(b.Limit)
}

// StatusAt classifies the budget against warning and critical ratios.
func (b Budget) StatusAt(warning, critical float64) Status {
	r := b.Ratio()
	switch {
	case r >= critical:
		return StatusExceeded
	case r >= warning:
		return StatusWarning
	default:
		return StatusHealthy
	}
}

// Unit is the noun used in messages for this budget's kind.
func (b Budget) Unit() string {
	switch b.Kind {
	case spec.BudgetFiles:
		return "files"
	case spec.BudgetLinesOfCode:
		return "lines"
	default:
		return string(b.Kind)
	}
}

// Label is the display name of this budget's kind.
func (b Budget) Label() string {
	switch b.Kind {
	case spec.BudgetFiles:
		return "File"
	case spec.BudgetLinesOfCode:
		return "Lines-of-code"
	default:
		return string(b.Kind)
	}
}

// Usage renders the budget as "current/limit".
func (b Budget) Usage() string {
	return fmt.Sprintf("%d/%d", b.Current, b.Limit)
}

// Tracker holds the budgets produced by one scan.
type Tracker struct {
	budgets map[spec.BudgetKind]Budget
}

// NewTracker builds budgets from spec limits and scanned counts.
// Dimensions without a positive limit are not tracked.
func NewTracker(limits map[spec.BudgetKind]uint, counts map[spec.BudgetKind]uint) *Tracker {
	t := &Tracker{}
	values := make(map[spec.BudgetKind]Budget, len(limits))
	for kind, limit := range limits {
		if limit == 0 {
			continue
		}
		values[kind] = Budget{Kind: kind, Current: counts[kind], Limit: limit}
	}
	t.Replace(values)
	return t
}

// Replace swaps in a complete set of budgets.
func (t *Tracker) Replace(values map[spec.BudgetKind]Budget) {
	next := make(map[spec.BudgetKind]Budget, len(values))
	for k, v := range values {
		next[k] = v
	}
	t.budgets = next
}

// List returns the tracked budgets in spec.Kinds order, followed by any
// unknown kinds sorted by name.
func (t *Tracker) List() []Budget {
	if t == nil {
		return nil
	}
	out := make([]Budget, 0, len(t.budgets))
	known := make(map[spec.BudgetKind]bool, len(spec.Kinds))
	for _, k := range spec.Kinds {
		known[k] = true
		if b, ok := t.budgets[k]; ok {
			out = append(out, b)
		}
	}
	var extra []Budget
	for k, b := range t.budgets {
		if !known[k] {
			extra = append(extra, b)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].Kind < extra[j].Kind })
	return append(out, extra...)
}
