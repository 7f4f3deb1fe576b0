package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/alerts"
	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/budget"
	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/monitor"
)

const barWidth = 20

// printStatus renders a snapshot for humans.
func printStatus(w io.Writer, snap *monitor.StatusSnapshot, now time.Time) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Fprintf(w, "\n%s\n\n", cyan("=== CAWS Monitor Status ==="))

	if snap.SpecSummary != nil {
		fmt.Fprintf(w, "Spec:    %s %s (tier %d)\n", snap.SpecSummary.ID, snap.SpecSummary.Title, snap.SpecSummary.Tier)
	} else {
		fmt.Fprintf(w, "Spec:    %s\n", gray("none loaded"))
	}
	fmt.Fprintf(w, "State:   %s\n", stateColor(snap.State)(snap.State.String()))
	if snap.ConfigError != "" {
		fmt.Fprintf(w, "Config:  %s\n", red(snap.ConfigError))
	}

	if !snap.Initialized {
		fmt.Fprintf(w, "\n%s\n\n", gray("No scan has completed yet"))
		return
	}

	fmt.Fprintf(w, "Scanned: %d files, %d lines (scan #%d, %v ago, took %v)\n",
		snap.Files, snap.Lines, snap.ScanCount,
		now.Sub(snap.LastScanAt).Round(time.Second), snap.ScanDuration.Round(time.Millisecond))
	if snap.SkippedFiles > 0 {
		fmt.Fprintf(w, "Skipped: %s\n", yellow(fmt.Sprintf("%d unreadable files", snap.SkippedFiles)))
	}

	fmt.Fprintf(w, "\n%s\n", yellow("Budgets:"))
	list := snap.BudgetList()
	if len(list) == 0 {
		fmt.Fprintf(w, "  %s\n", gray("No budgets declared"))
	}
	for _, b := range list {
		bb := b.Budget()
		fmt.Fprintf(w, "  %-14s %s %s  %s\n",
			bb.Label(),
			renderBar(b.Ratio*100, b.Status),
			bb.Usage()+" "+bb.Unit(),
			budgetColor(b.Status)(b.Status.String()))
	}

	fmt.Fprintf(w, "\n%s\n", yellow("Acceptance Criteria:"))
	entries := snap.ProgressEntries()
	if len(entries) == 0 {
		fmt.Fprintf(w, "  %s\n", gray("No acceptance criteria"))
	} else {
		for _, e := range entries {
			fmt.Fprintf(w, "  %-14s %s %3d%%\n", e.CriterionID, renderBar(float64(e.Percentage), budget.StatusHealthy), e.Percentage)
		}
		fmt.Fprintf(w, "  %-14s %.0f%%\n", "Overall", snap.OverallProgress)
	}

	fmt.Fprintf(w, "\n%s\n", yellow("Active Alerts:"))
	if len(snap.ActiveAlerts) == 0 {
		fmt.Fprintf(w, "  %s\n", gray("None"))
	} else {
		for _, a := range snap.ActiveAlerts {
			printAlert(w, a)
		}
	}
	fmt.Fprintln(w)
}

// printAlerts renders a list of alerts, one per line.
func printAlerts(w io.Writer, list []alerts.Alert) {
	if len(list) == 0 {
		fmt.Fprintf(w, "%s\n", color.New(color.FgHiBlack).Sprint("No active alerts"))
		return
	}
	for _, a := range list {
		printAlert(w, a)
	}
}

func printAlert(w io.Writer, a alerts.Alert) {
	c := severityColor(a.Severity)
	fmt.Fprintf(w, "  %s %s  %s\n",
		c(fmt.Sprintf("[%s]", strings.ToUpper(string(a.Severity)))),
		a.Message,
		color.New(color.FgHiBlack).Sprint(a.CreatedAt.Format("15:04:05")))
}

// renderBar draws a fixed-width usage bar. Budget bars are colored by
// status; progress bars stay green.
func renderBar(percent float64, status budget.Status) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := int(percent / 100.0 * barWidth)

	barColor := color.New(color.FgGreen)
	switch status {
	case budget.StatusWarning:
		barColor = color.New(color.FgYellow)
	case budget.StatusExceeded:
		barColor = color.New(color.FgRed, color.Bold)
	}

	var sb strings.Builder
	for i := 0; i < barWidth; i++ {
		if i < filled {
			sb.WriteString(barColor.Sprint("█"))
		} else {
			sb.WriteString(color.New(color.FgHiBlack).Sprint("░"))
		}
	}
	return "[" + sb.String() + "]"
}

func severityColor(s alerts.Severity) func(a ...interface{}) string {
	switch s {
	case alerts.SeverityCritical:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case alerts.SeverityWarning:
		return color.New(color.FgYellow).SprintFunc()
	default:
		return color.New(color.FgCyan).SprintFunc()
	}
}

func budgetColor(s budget.Status) func(a ...interface{}) string {
	switch s {
	case budget.StatusExceeded:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case budget.StatusWarning:
		return color.New(color.FgYellow).SprintFunc()
	default:
		return color.New(color.FgGreen).SprintFunc()
	}
}

func stateColor(s monitor.State) func(a ...interface{}) string {
	switch s {
	case monitor.StateRunning:
		return color.New(color.FgGreen).SprintFunc()
	case monitor.StateStopped:
		return color.New(color.FgHiBlack).SprintFunc()
	default:
		return color.New(color.FgYellow).SprintFunc()
	}
}
