// Package alerts evaluates budgets and progress against thresholds and keeps
// the bounded set of active alerts.
//
// Alert identity is content-addressed from (kind, subject), so the same
// condition detected on consecutive scans collapses into one active alert.
// Alerts are never retired when a condition clears; they leave the active
// set only through FIFO eviction.
package alerts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/budget"
)

// Kind classifies the rule that produced an alert.
type Kind string

const (
	KindBudgetWarning   Kind = "budget_warning"
	KindBudgetCritical  Kind = "budget_critical"
	KindProgressStalled Kind = "progress_stalled"
)

// Severity is the urgency of an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// ParseSeverity validates a severity name. The empty string is accepted
// and means "any severity".
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case "", SeverityInfo, SeverityWarning, SeverityCritical:
		return Severity(s), nil
	default:
		return "", fmt.Errorf("invalid severity %q (must be info, warning, or critical)", s)
	}
}

// BudgetRef is the budget state captured when the alert was raised.
type BudgetRef struct {
	Kind    string  `json:"kind"`
	Current uint    `json:"current"`
	Limit   uint    `json:"limit"`
	Ratio   float64 `json:"ratio"`
}

// Alert is a single raised condition. Message and Budget are snapshots
// taken at creation and are never updated afterwards.
type Alert struct {
	ID        string     `json:"id"`
	Kind      Kind       `json:"kind"`
	Severity  Severity   `json:"severity"`
	Message   string     `json:"message"`
	CreatedAt time.Time  `json:"created_at"`
	Budget    *BudgetRef `json:"budget,omitempty"`
}

// AlertID derives the stable identity of an alert from its kind and the
// budget kind or criterion it concerns.
func AlertID(kind Kind, subject string) string {
	sum := sha256.Sum256([]byte(string(kind) + "\x00" + subject))
	return "alert-" + hex.EncodeToString(sum[:8])
}

func budgetRef(b budget.Budget) *BudgetRef {
	return &BudgetRef{
		Kind:    string(b.Kind),
		Current: b.Current,
		Limit:   b.Limit,
		Ratio:   b.Ratio(),
	}
}
