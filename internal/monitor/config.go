package monitor

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/alerts"
	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/scanner"
	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/spec"
	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/watch"
)

// DefaultConfigPath is where the monitor config lives relative to the project root.
const DefaultConfigPath = ".caws/monitor.yaml"

// Config holds the complete monitor configuration.
type Config struct {
	// ProjectRoot anchors relative watch paths and the spec path.
	// Default: current directory
	ProjectRoot string `yaml:"project_root" json:"project_root"`

	// SpecPath is the working spec location, relative to ProjectRoot.
	// Default: .caws/working-spec.yaml
	SpecPath string `yaml:"spec_path" json:"spec_path"`

	// WatchPaths are the directories watched and scanned.
	// Default: conventional source, test and docs directories
	WatchPaths []string `yaml:"watch_paths" json:"watch_paths"`

	// PollingInterval is how often a recompute runs without any change event.
	// YAML takes a duration string ("30s") or integer milliseconds (30000).
	// Default: 30 seconds
	PollingInterval time.Duration `yaml:"polling_interval" json:"polling_interval"`

	// Debounce is the quiet period before a burst of changes triggers a recompute.
	// Same formats as PollingInterval.
	// Default: 1 second
	Debounce time.Duration `yaml:"debounce" json:"debounce"`

	// AlertThresholds control when budget and progress alerts fire.
	AlertThresholds alerts.Thresholds `yaml:"alert_thresholds" json:"alert_thresholds"`

	// MaxActiveAlerts bounds the active alert set.
	// Default: 10
	MaxActiveAlerts int `yaml:"max_active_alerts" json:"max_active_alerts"`

	// Extensions is the allowlist of file extensions counted toward budgets.
	// Default: scanner.DefaultExtensions
	Extensions []string `yaml:"extensions" json:"extensions"`

	// Ignore are watch ignore globs.
	// Default: watch.DefaultIgnore
	Ignore []string `yaml:"ignore" json:"ignore"`
}

// DefaultConfig returns a monitor configuration with conventional defaults.
func DefaultConfig() *Config {
	return &Config{
		ProjectRoot:     ".",
		SpecPath:        spec.DefaultPath,
		WatchPaths:      []string{"src", "lib", "app", "tests", "test", "docs"},
		PollingInterval: 30 * time.Second,
		Debounce:        watch.DefaultDebounce,
		AlertThresholds: alerts.DefaultThresholds(),
		MaxActiveAlerts: alerts.DefaultCapacity,
		Extensions:      append([]string(nil), scanner.DefaultExtensions...),
		Ignore:          append([]string(nil), watch.DefaultIgnore...),
	}
}

// UnmarshalYAML reads integer polling_interval and debounce values as
// milliseconds, matching the CAWS_MONITOR_* env vars.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(value.Content); i += 2 {
			key, val := value.Content[i], value.Content[i+1]
			switch key.Value {
			case "polling_interval", "debounce":
				if val.Kind == yaml.ScalarNode && val.ShortTag() == "!!int" {
					val.Value += "ms"
					val.Tag = "!!str"
				}
			}
		}
	}
	type plain Config
	return value.Decode((*plain)(c))
}

// LoadFromFile loads configuration from a YAML file layered over defaults.
// Returns default config if the file doesn't exist.
// Returns error if the file exists but is invalid.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromEnv applies environment overrides to a copy of base.
// Prefix: CAWS_MONITOR_
// An invalid result is logged and base is returned unchanged.
func LoadFromEnv(base *Config) *Config {
	if base == nil {
		base = DefaultConfig()
	}
	cfg := base.Clone()

	if val := os.Getenv("CAWS_MONITOR_PROJECT_ROOT"); val != "" {
		cfg.ProjectRoot = val
	}

	if val := os.Getenv("CAWS_MONITOR_SPEC_PATH"); val != "" {
		cfg.SpecPath = val
	}

	if val := os.Getenv("CAWS_MONITOR_WATCH_PATHS"); val != "" {
		cfg.WatchPaths = splitList(val)
	}

	if val := os.Getenv("CAWS_MONITOR_EXTENSIONS"); val != "" {
		cfg.Extensions = splitList(val)
	}

	if val := os.Getenv("CAWS_MONITOR_POLL_INTERVAL"); val != "" {
		if d, err := parseDurationOrMillis(val); err == nil {
			cfg.PollingInterval = d
		}
	}

	if val := os.Getenv("CAWS_MONITOR_DEBOUNCE"); val != "" {
		if d, err := parseDurationOrMillis(val); err == nil {
			cfg.Debounce = d
		}
	}

	if val := os.Getenv("CAWS_MONITOR_BUDGET_WARNING"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.AlertThresholds.BudgetWarning = f
		}
	}

	if val := os.Getenv("CAWS_MONITOR_BUDGET_CRITICAL"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.AlertThresholds.BudgetCritical = f
		}
	}

	if val := os.Getenv("CAWS_MONITOR_STALLED_BELOW"); val != "" {
		if n, err := strconv.ParseUint(val, 10, 32); err == nil {
			cfg.AlertThresholds.StalledBelow = uint(n)
		}
	}

	if val := os.Getenv("CAWS_MONITOR_MAX_ALERTS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.MaxActiveAlerts = n
		}
	}

	if err := cfg.Validate(); err != nil {
		slog.Warn("invalid monitor config from environment, ignoring overrides", "error", err)
		return base.Clone()
	}
	return cfg
}

// Validate checks that the configuration has usable values.
func (c *Config) Validate() error {
	if len(c.WatchPaths) == 0 {
		return fmt.Errorf("watch_paths must not be empty")
	}
	for _, p := range c.WatchPaths {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("watch_paths must not contain empty entries")
		}
	}

	if c.PollingInterval < 10*time.Millisecond {
		return fmt.Errorf("polling_interval too fast (minimum 10ms), got %v", c.PollingInterval)
	}
	if c.PollingInterval > time.Hour {
		return fmt.Errorf("polling_interval too slow (maximum 1h), got %v", c.PollingInterval)
	}

	if c.Debounce < 0 {
		return fmt.Errorf("debounce must be non-negative, got %v", c.Debounce)
	}
	if c.Debounce > time.Minute {
		return fmt.Errorf("debounce too long (maximum 1m), got %v", c.Debounce)
	}

	if err := c.AlertThresholds.Validate(); err != nil {
		return fmt.Errorf("alert_thresholds: %w", err)
	}

	if c.MaxActiveAlerts <= 0 {
		return fmt.Errorf("max_active_alerts must be positive, got %d", c.MaxActiveAlerts)
	}
	if c.MaxActiveAlerts > 10000 {
		return fmt.Errorf("max_active_alerts too large (maximum 10000), got %d", c.MaxActiveAlerts)
	}
	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	out := *c
	out.WatchPaths = append([]string(nil), c.WatchPaths...)
	out.Extensions = append([]string(nil), c.Extensions...)
	out.Ignore = append([]string(nil), c.Ignore...)
	return &out
}

// Roots resolves WatchPaths against ProjectRoot.
func (c *Config) Roots() []string {
	root := c.ProjectRoot
	if root == "" {
		root = "."
	}
	out := make([]string, 0, len(c.WatchPaths))
	for _, p := range c.WatchPaths {
		if filepath.IsAbs(p) {
			out = append(out, filepath.Clean(p))
			continue
		}
		out = append(out, filepath.Join(root, p))
	}
	return out
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseDurationOrMillis accepts Go durations ("5s") or bare milliseconds ("5000").
func parseDurationOrMillis(val string) (time.Duration, error) {
	if ms, err := strconv.Atoi(val); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(val)
}
