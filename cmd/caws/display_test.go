package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/alerts"
	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/budget"
	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/monitor"
	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/spec"
)

func init() {
	color.NoColor = true
}

func TestPrintStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)
	snap := &monitor.StatusSnapshot{
		State:        monitor.StateRunning,
		Initialized:  true,
		LastScanAt:   now.Add(-30 * time.Second),
		ScanDuration: 12 * time.Millisecond,
		ScanCount:    3,
		Files:        5,
		Lines:        120,
		Budgets: map[spec.BudgetKind]monitor.BudgetStatus{
			spec.BudgetFiles:       {Kind: spec.BudgetFiles, Current: 5, Limit: 5, Ratio: 1, Status: budget.StatusExceeded},
			spec.BudgetLinesOfCode: {Kind: spec.BudgetLinesOfCode, Current: 120, Limit: 1000, Ratio: 0.12, Status: budget.StatusHealthy},
		},
		Criteria:        []string{"A1", "A2"},
		Progress:        map[string]uint{"A1": 100, "A2": 0},
		OverallProgress: 50,
		ActiveAlerts: []alerts.Alert{
			{ID: "a", Kind: alerts.KindBudgetCritical, Severity: alerts.SeverityCritical, Message: "File budget critical: 5/5 files used", CreatedAt: now},
		},
		SpecSummary: &spec.Summary{ID: "FEAT-7", Title: "Live monitor", Tier: 2},
	}

	var buf bytes.Buffer
	printStatus(&buf, snap, now)
	out := buf.String()

	assert.Contains(t, out, "FEAT-7 Live monitor (tier 2)")
	assert.Contains(t, out, "State:   running")
	assert.Contains(t, out, "scan #3, 30s ago")
	assert.Contains(t, out, "5/5 files  exceeded")
	assert.Contains(t, out, "120/1000 lines  healthy")
	assert.Contains(t, out, "[CRITICAL] File budget critical: 5/5 files used")
	assert.Contains(t, out, "Overall        50%")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("File ")), bytes.Index(buf.Bytes(), []byte("Lines-of-code")))
}

func TestPrintStatusUninitialized(t *testing.T) {
	var buf bytes.Buffer
	printStatus(&buf, &monitor.StatusSnapshot{State: monitor.StateStarting, ConfigError: "configuration error: spec: missing"}, time.Now())

	out := buf.String()
	assert.Contains(t, out, "none loaded")
	assert.Contains(t, out, "No scan has completed yet")
	assert.Contains(t, out, "configuration error")
	assert.NotContains(t, out, "Budgets:")
}

func TestPrintAlerts(t *testing.T) {
	var buf bytes.Buffer
	printAlerts(&buf, nil)
	assert.Contains(t, buf.String(), "No active alerts")

	buf.Reset()
	printAlerts(&buf, []alerts.Alert{
		{Severity: alerts.SeverityWarning, Message: "File budget warning: 4/5 files used"},
		{Severity: alerts.SeverityInfo, Message: "Progress stalled"},
	})
	assert.Contains(t, buf.String(), "[WARNING] File budget warning")
	assert.Contains(t, buf.String(), "[INFO] Progress stalled")
}

func TestRenderBar(t *testing.T) {
	assert.Equal(t, "["+repeat("█", 10)+repeat("░", 10)+"]", renderBar(50, budget.StatusHealthy))
	assert.Equal(t, "["+repeat("█", 20)+"]", renderBar(140, budget.StatusExceeded))
	assert.Equal(t, "["+repeat("░", 20)+"]", renderBar(-5, budget.StatusHealthy))
}

func TestAnyExceeded(t *testing.T) {
	snap := monitor.StatusSnapshot{Budgets: map[spec.BudgetKind]monitor.BudgetStatus{
		spec.BudgetFiles: {Status: budget.StatusWarning},
	}}
	assert.False(t, anyExceeded(snap))
	snap.Budgets[spec.BudgetLinesOfCode] = monitor.BudgetStatus{Status: budget.StatusExceeded}
	assert.True(t, anyExceeded(snap))
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}
