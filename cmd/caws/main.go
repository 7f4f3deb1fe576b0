package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/control"
	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/monitor"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	projectRoot string
	configPath  string
	socketPath  string
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "caws",
	Short: "CAWS live project monitor",
	Long: `caws watches a working tree and keeps a live view of change budget
usage and acceptance-criteria progress for the active working spec
(.caws/working-spec.yaml).`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env is optional
		_ = godotenv.Load()
		slog.SetDefault(newLogger(logLevel))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&projectRoot, "project", "p", ".", "Project root directory")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Monitor config file (default <project>/.caws/monitor.yaml)")
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "Control socket path (default <project>/.caws/monitor.sock)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger writes text logs to stderr so stdout stays free for command
// output and the MCP stdio transport.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// loadConfig layers the config file, then CAWS_MONITOR_* env vars, then
// the --project flag.
func loadConfig(cmd *cobra.Command) (*monitor.Config, error) {
	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}

	path := configPath
	if path == "" {
		path = filepath.Join(root, monitor.DefaultConfigPath)
	}

	cfg, err := monitor.LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	cfg = monitor.LoadFromEnv(cfg)

	if cmd.Flags().Changed("project") || cfg.ProjectRoot == "" || cfg.ProjectRoot == "." {
		cfg.ProjectRoot = root
	}
	return cfg, nil
}

func resolveSocket() string {
	if socketPath != "" {
		return socketPath
	}
	root, err := filepath.Abs(projectRoot)
	if err != nil {
		root = projectRoot
	}
	return control.DefaultSocketPath(root)
}

func newClient() *control.Client {
	return control.NewClient(resolveSocket())
}
