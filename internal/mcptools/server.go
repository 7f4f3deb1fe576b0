// Package mcptools serves the live monitor to agents over MCP.
package mcptools

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates an MCP server exposing the monitor tools.
func NewServer(p Provider, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"caws-monitor",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(
			"Live CAWS project monitor. Call caws_monitor_status for budget usage and "+
				"acceptance-criteria progress, and caws_monitor_alerts for active alerts.",
		),
	)

	statusTool := NewStatusTool(p)
	s.AddTool(statusTool.Definition(), statusTool.Handle)

	alertsTool := NewAlertsTool(p)
	s.AddTool(alertsTool.Definition(), alertsTool.Handle)

	return s
}

// ServeStdio serves the monitor tools on stdin/stdout until the input closes.
func ServeStdio(p Provider, version string) error {
	return server.ServeStdio(NewServer(p, version))
}
