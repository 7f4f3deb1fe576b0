package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/control"
	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/mcptools"
	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/monitor"
	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/telemetry"
)

var monitorCmd = &cobra.Command{
	Use:     "monitor",
	Aliases: []string{"start"},
	Short:   "Run the live project monitor",
	Long: `Run the live monitor in the foreground. The monitor rescans on file
changes and on a polling interval, raises alerts as budgets fill up or
progress stalls, and answers status queries on a local control socket.

With --mcp the monitor tools are also served over MCP on stdin/stdout.`,
	Run: func(cmd *cobra.Command, args []string) {
		serveMCP, _ := cmd.Flags().GetBool("mcp")
		noSocket, _ := cmd.Flags().GetBool("no-socket")

		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Options{
			Endpoint:    os.Getenv("CAWS_OTEL_ENDPOINT"),
			Insecure:    envBool("CAWS_OTEL_INSECURE"),
			ServiceName: "caws-monitor",
			Version:     Version,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to initialize telemetry: %v\n", err)
			os.Exit(1)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(flushCtx); err != nil {
				slog.Warn("telemetry shutdown failed", "error", err)
			}
		}()

		if err := runMonitor(ctx, cfg, serveMCP, !noSocket); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	monitorCmd.Flags().Bool("mcp", false, "Serve monitor tools over MCP on stdin/stdout")
	monitorCmd.Flags().Bool("no-socket", false, "Do not open the control socket")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(ctx context.Context, cfg *monitor.Config, serveMCP, withSocket bool) error {
	m, err := monitor.New(cfg, monitor.Deps{Logger: slog.Default()})
	if err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	err = m.Start(startCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to start monitor: %w", err)
	}
	defer func() {
		if err := m.Stop(); err != nil {
			slog.Warn("monitor stop failed", "error", err)
		}
	}()

	if withSocket {
		srv, err := control.NewServer(resolveSocket(), control.MonitorHandler(m), slog.Default())
		if err != nil {
			return err
		}
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("failed to start control server: %w", err)
		}
		defer func() { _ = srv.Stop() }()
	}

	if serveMCP {
		// Stdout belongs to the MCP transport; alerts only go to the log.
		errCh := make(chan error, 1)
		go func() { errCh <- mcptools.ServeStdio(m, Version) }()
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		}
	}

	printStatus(os.Stdout, ptr(m.Status()), time.Now())

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s watching %d paths (Ctrl+C to stop)\n\n", green("✓"), len(cfg.WatchPaths))

	alertCh, unsubscribe := m.Subscribe(16)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case a, ok := <-alertCh:
			if !ok {
				return nil
			}
			printAlert(os.Stdout, a)
		}
	}
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

func ptr[T any](v T) *T {
	return &v
}
