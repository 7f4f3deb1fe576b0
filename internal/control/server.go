// Package control exposes a running monitor over a Unix domain socket.
//
// Each connection carries one JSON-encoded Command and receives one
// JSON-encoded Response.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Command types understood by MonitorHandler.
const (
	CommandStatus = "status"
	CommandAlerts = "alerts"
	CommandRescan = "rescan"
)

// DefaultSocketName is the socket file created under the project's .caws directory.
const DefaultSocketName = "monitor.sock"

// DefaultSocketPath returns the conventional socket location for a project.
func DefaultSocketPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".caws", DefaultSocketName)
}

// Command represents a control command sent to the monitor
type Command struct {
	Type      string    `json:"type"`               // "status", "alerts", "rescan"
	Severity  string    `json:"severity,omitempty"` // alerts: severity filter
	Limit     int       `json:"limit,omitempty"`    // alerts: most recent N
	Timestamp time.Time `json:"timestamp"`
}

// Response represents a response to a control command
type Response struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Handler executes a command and returns a JSON-encodable result.
type Handler func(ctx context.Context, cmd Command) (any, error)

// Server manages the control socket
type Server struct {
	socketPath string
	listener   net.Listener
	logger     *slog.Logger
	mu         sync.RWMutex
	running    bool
	stopCh     chan struct{}
	doneCh     chan struct{}

	onCommand Handler
}

// NewServer creates a new control server. A stale socket file left by a
// crashed instance is removed.
func NewServer(socketPath string, onCommand Handler, logger *slog.Logger) (*Server, error) {
	dir := filepath.Dir(socketPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}

	if err := os.RemoveAll(socketPath); err != nil {
		return nil, fmt.Errorf("failed to remove existing socket: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		socketPath: socketPath,
		onCommand:  onCommand,
		logger:     logger.With("component", "control"),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}, nil
}

// Start begins listening for control commands
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("control server already running")
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to create control socket: %w", err)
	}

	s.listener = listener
	s.running = true
	s.mu.Unlock()

	s.logger.Info("control server listening", "socket", s.socketPath)

	go s.acceptLoop(ctx)
	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer close(s.doneCh)
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		default:
		}

		// Accept timeout lets the loop notice stop and ctx.
		if err := s.listener.(*net.UnixListener).SetDeadline(time.Now().Add(1 * time.Second)); err != nil {
			s.logger.Warn("failed to set accept deadline", "error", err)
			return
		}

		conn, err := s.listener.Accept()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			select {
			case <-s.stopCh:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept error", "error", err)
			continue
		}

		go s.handleConnection(ctx, conn)
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	// Bad clients must not hold a connection open forever.
	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		s.logger.Warn("failed to set read deadline", "error", err)
		return
	}

	var cmd Command
	if err := json.NewDecoder(conn).Decode(&cmd); err != nil {
		s.sendError(conn, fmt.Sprintf("failed to decode command: %v", err))
		return
	}

	if cmd.Timestamp.IsZero() {
		cmd.Timestamp = time.Now()
	}

	resp := s.dispatch(ctx, cmd)
	if err := s.sendResponse(conn, resp); err != nil {
		s.logger.Warn("failed to send response", "command", cmd.Type, "error", err)
	}
}

func (s *Server) dispatch(ctx context.Context, cmd Command) Response {
	if s.onCommand == nil {
		return Response{
			Success: false,
			Message: "No command handler registered",
			Error:   "server misconfiguration",
		}
	}

	data, err := s.onCommand(ctx, cmd)
	if err != nil {
		return Response{
			Success: false,
			Message: fmt.Sprintf("Command failed: %v", err),
			Error:   err.Error(),
		}
	}

	resp := Response{
		Success: true,
		Message: fmt.Sprintf("Command '%s' completed successfully", cmd.Type),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Response{
				Success: false,
				Message: "failed to encode result",
				Error:   err.Error(),
			}
		}
		resp.Data = raw
	}
	return resp
}

func (s *Server) sendError(conn net.Conn, message string) {
	resp := Response{
		Success: false,
		Message: message,
		Error:   message,
	}
	_ = s.sendResponse(conn, resp) // Ignore errors on error path
}

func (s *Server) sendResponse(conn net.Conn, resp Response) error {
	return json.NewEncoder(conn).Encode(resp)
}

// Stop stops the server and removes the socket file. Safe to call more
// than once.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}

	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warn("error closing listener", "error", err)
		}
	}

	select {
	case <-s.doneCh:
	case <-time.After(5 * time.Second):
		s.logger.Warn("timeout waiting for control server shutdown")
	}

	if err := os.RemoveAll(s.socketPath); err != nil {
		s.logger.Warn("failed to remove socket file", "error", err)
	}

	s.logger.Info("control server stopped")
	return nil
}

// IsRunning returns whether the server is currently running
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// SocketPath returns the path to the control socket
func (s *Server) SocketPath() string {
	return s.socketPath
}
