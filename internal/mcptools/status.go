package mcptools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/alerts"
	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/monitor"
)

// Provider is the read side of a monitor.
type Provider interface {
	Status() monitor.StatusSnapshot
	Alerts(f alerts.Filter) []alerts.Alert
}

// StatusTool handles the caws_monitor_status MCP tool.
type StatusTool struct {
	provider Provider
	now      func() time.Time
}

// NewStatusTool creates a StatusTool reading from p.
func NewStatusTool(p Provider) *StatusTool {
	return &StatusTool{provider: p, now: time.Now}
}

// Definition returns the MCP tool definition for registration.
func (t *StatusTool) Definition() mcp.Tool {
	return mcp.NewTool("caws_monitor_status",
		mcp.WithDescription(
			"Show the live project monitor status: change budget usage, "+
				"acceptance-criteria progress and active alerts. "+
				"Includes when the last scan completed so stale data is visible.",
		),
	)
}

// Handle processes the caws_monitor_status tool call.
func (t *StatusTool) Handle(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s := t.provider.Status()
	if !s.Initialized {
		return mcp.NewToolResultText(fmt.Sprintf(
			"# Monitor Status\n\nMonitor is %s and has not completed its first scan yet.\n", s.State)), nil
	}
	return mcp.NewToolResultText(renderStatus(s, t.now())), nil
}

func renderStatus(s monitor.StatusSnapshot, now time.Time) string {
	var b strings.Builder

	b.WriteString("# Monitor Status\n\n")
	if s.SpecSummary != nil {
		fmt.Fprintf(&b, "**Spec**: %s: %s (tier %d)\n", s.SpecSummary.ID, s.SpecSummary.Title, s.SpecSummary.Tier)
	} else {
		b.WriteString("**Spec**: not loaded\n")
	}
	fmt.Fprintf(&b, "**State**: %s\n", s.State)
	fmt.Fprintf(&b, "**Last scan**: %s (%s ago, took %s, scan #%d)\n",
		s.LastScanAt.Format(time.RFC3339),
		now.Sub(s.LastScanAt).Round(time.Second),
		s.ScanDuration.Round(time.Millisecond),
		s.ScanCount,
	)
	if s.SkippedFiles > 0 {
		fmt.Fprintf(&b, "**Skipped files**: %d (unreadable)\n", s.SkippedFiles)
	}
	if s.ConfigError != "" {
		fmt.Fprintf(&b, "\n> ⚠️ %s\n", s.ConfigError)
	}

	b.WriteString("\n## Budgets\n\n")
	budgets := s.BudgetList()
	if len(budgets) == 0 {
		fmt.Fprintf(&b, "No budgets declared. Tracked: %d files, %d lines.\n", s.Files, s.Lines)
	} else {
		b.WriteString("| Budget | Used | Ratio | Status |\n")
		b.WriteString("|--------|------|-------|--------|\n")
		for _, bs := range budgets {
			bb := bs.Budget()
			fmt.Fprintf(&b, "| %s | %s %s | %.0f%% | %s |\n", bb.Label(), bb.Usage(), bb.Unit(), bs.Ratio*100, bs.Status)
		}
	}

	b.WriteString("\n## Progress\n\n")
	entries := s.ProgressEntries()
	if len(entries) == 0 {
		b.WriteString("No acceptance criteria declared.\n")
	} else {
		fmt.Fprintf(&b, "Overall: **%.1f%%**\n\n", s.OverallProgress)
		b.WriteString("| Criterion | Progress |\n")
		b.WriteString("|-----------|----------|\n")
		for _, e := range entries {
			fmt.Fprintf(&b, "| %s | %d%% |\n", e.CriterionID, e.Percentage)
		}
	}

	b.WriteString("\n## Active Alerts\n\n")
	if len(s.ActiveAlerts) == 0 {
		b.WriteString("None.\n")
	} else {
		writeAlerts(&b, s.ActiveAlerts)
	}

	return b.String()
}

func writeAlerts(b *strings.Builder, list []alerts.Alert) {
	for _, a := range list {
		fmt.Fprintf(b, "- %s **%s** %s (%s, since %s)\n",
			severityMarker(a.Severity), a.Severity, a.Message, a.ID, a.CreatedAt.Format(time.RFC3339))
	}
}

func severityMarker(s alerts.Severity) string {
	switch s {
	case alerts.SeverityCritical:
		return "🔴"
	case alerts.SeverityWarning:
		return "🟡"
	default:
		return "🔵"
	}
}
