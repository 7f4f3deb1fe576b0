package control

import (
	"context"
	"fmt"

	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/alerts"
	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/monitor"
)

// Provider is the part of a monitor the control socket exposes.
type Provider interface {
	Status() monitor.StatusSnapshot
	Alerts(f alerts.Filter) []alerts.Alert
	Trigger() error
}

// MonitorHandler routes commands to p.
func MonitorHandler(p Provider) Handler {
	return func(_ context.Context, cmd Command) (any, error) {
		switch cmd.Type {
		case CommandStatus:
			return p.Status(), nil

		case CommandAlerts:
			sev, err := alerts.ParseSeverity(cmd.Severity)
			if err != nil {
				return nil, err
			}
			if cmd.Limit < 0 {
				return nil, fmt.Errorf("limit must be non-negative, got %d", cmd.Limit)
			}
			list := p.Alerts(alerts.Filter{Severity: sev, Limit: cmd.Limit})
			if list == nil {
				list = []alerts.Alert{}
			}
			return list, nil

		case CommandRescan:
			if err := p.Trigger(); err != nil {
				return nil, err
			}
			return nil, nil

		default:
			return nil, fmt.Errorf("unknown command type: %q", cmd.Type)
		}
	}
}
