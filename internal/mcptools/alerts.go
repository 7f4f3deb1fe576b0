package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/alerts"
)

// AlertsTool handles the caws_monitor_alerts MCP tool.
type AlertsTool struct {
	provider Provider
}

// NewAlertsTool creates an AlertsTool reading from p.
func NewAlertsTool(p Provider) *AlertsTool {
	return &AlertsTool{provider: p}
}

// Definition returns the MCP tool definition for registration.
func (t *AlertsTool) Definition() mcp.Tool {
	return mcp.NewTool("caws_monitor_alerts",
		mcp.WithDescription(
			"List active monitor alerts, oldest first. Alerts are raised when a change "+
				"budget crosses its warning or critical threshold, or when overall "+
				"acceptance-criteria progress is stalled.",
		),
		mcp.WithString("severity",
			mcp.Description("Only return alerts of this severity"),
			mcp.Enum("info", "warning", "critical"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Return only the most recent N matching alerts (default: all)"),
		),
	)
}

// Handle processes the caws_monitor_alerts tool call.
func (t *AlertsTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sev, err := alerts.ParseSeverity(req.GetString("severity", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	limit := intArg(req, "limit", 0)
	if limit < 0 {
		return mcp.NewToolResultError(fmt.Sprintf("'limit' must be non-negative, got %d", limit)), nil
	}

	list := t.provider.Alerts(alerts.Filter{Severity: sev, Limit: limit})
	if len(list) == 0 {
		if sev != "" {
			return mcp.NewToolResultText(fmt.Sprintf("No active %s alerts.", sev)), nil
		}
		return mcp.NewToolResultText("No active alerts."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d active alerts:\n\n", len(list))
	writeAlerts(&b, list)
	return mcp.NewToolResultText(b.String()), nil
}

// intArg extracts an integer argument. JSON numbers arrive as float64.
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}
