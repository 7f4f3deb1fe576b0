package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/alerts"
	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/monitor"
)

// Client sends control commands to a running monitor
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new control client
func NewClient(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    10 * time.Second,
	}
}

// SetTimeout sets the client timeout for commands
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// SendCommand sends a command and waits for the response
func (c *Client) SendCommand(cmd Command) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to monitor (is it running?): %w", err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, fmt.Errorf("failed to set deadline: %w", err)
	}

	if err := json.NewEncoder(conn).Encode(cmd); err != nil {
		return nil, fmt.Errorf("failed to send command: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &resp, nil
}

// call sends cmd and decodes a successful response's data into out.
func (c *Client) call(cmd Command, out any) error {
	cmd.Timestamp = time.Now()
	resp, err := c.SendCommand(cmd)
	if err != nil {
		return err
	}
	if !resp.Success {
		if resp.Error != "" {
			return errors.New(resp.Error)
		}
		return errors.New(resp.Message)
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", cmd.Type, err)
	}
	return nil
}

// Status requests the monitor's latest snapshot
func (c *Client) Status() (*monitor.StatusSnapshot, error) {
	var snap monitor.StatusSnapshot
	if err := c.call(Command{Type: CommandStatus}, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Alerts requests active alerts, optionally filtered by severity and
// truncated to the most recent limit entries
func (c *Client) Alerts(severity alerts.Severity, limit int) ([]alerts.Alert, error) {
	var list []alerts.Alert
	if err := c.call(Command{Type: CommandAlerts, Severity: string(severity), Limit: limit}, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Rescan asks the monitor to recompute now
func (c *Client) Rescan() error {
	return c.call(Command{Type: CommandRescan}, nil)
}
