package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"forsysrank/internal/forsys"

	"gopkg.in/yaml.v3"
)

// Config holds all forsysrank configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// How the engine output is laid out
	Engine EngineConfig `yaml:"engine"`

	// Optional ceilings for budget selection
	Budget BudgetConfig `yaml:"budget"`

	// Execution settings
	Execution ExecutionConfig `yaml:"execution"`

	// Scenario set persistence
	Store StoreConfig `yaml:"store"`

	// Drop-box directory watcher
	Inbox InboxConfig `yaml:"inbox"`

	// Prometheus textfile output
	Metrics MetricsConfig `yaml:"metrics"`

	// Rendering defaults
	Output OutputConfig `yaml:"output"`

	Logging LoggingConfig `yaml:"logging"`
}

// EngineConfig names the priorities and fields the engine was run with.
type EngineConfig struct {
	Priorities     []string `yaml:"priorities"`
	ProjectIDField string   `yaml:"project_id_field"`
	AreaField      string   `yaml:"area_field"`
	CostField      string   `yaml:"cost_field"`
}

// BudgetConfig holds the ceilings. Nil means no limit.
type BudgetConfig struct {
	MaxArea *float64 `yaml:"max_area,omitempty"`
	MaxCost *float64 `yaml:"max_cost,omitempty"`
}

// ExecutionConfig configures how a parse runs.
type ExecutionConfig struct {
	Workers int    `yaml:"workers"`
	Timeout string `yaml:"timeout"`
}

// StoreConfig configures the SQLite store.
type StoreConfig struct {
	Driver       string `yaml:"driver"` // sqlite (pure Go) or sqlite3 (cgo)
	DatabasePath string `yaml:"database_path"`
}

// InboxConfig configures the watched directory.
type InboxConfig struct {
	Dir      string `yaml:"dir"`
	Debounce string `yaml:"debounce"`
	Save     bool   `yaml:"save"`
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Textfile string `yaml:"textfile"`
}

// OutputConfig configures rendering.
type OutputConfig struct {
	Format string `yaml:"format"` // json, table, markdown
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "forsysrank",
		Version: "0.3.0",

		Engine: EngineConfig{
			ProjectIDField: "proj_id",
			AreaField:      "area",
			CostField:      "cost",
		},

		Execution: ExecutionConfig{
			Workers: 1,
			Timeout: "60s",
		},

		Store: StoreConfig{
			Driver:       "sqlite",
			DatabasePath: ".forsys/scenarios.db",
		},

		Inbox: InboxConfig{
			Dir:      ".forsys/inbox",
			Debounce: "500ms",
			Save:     true,
		},

		Metrics: MetricsConfig{
			Enabled:  false,
			Textfile: ".forsys/metrics/forsysrank.prom",
		},

		Output: OutputConfig{
			Format: "json",
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
// Unparseable numeric values are ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FORSYS_PRIORITIES"); v != "" {
		c.Engine.Priorities = splitList(v)
	}
	if v := os.Getenv("FORSYS_MAX_AREA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Budget.MaxArea = &f
		}
	}
	if v := os.Getenv("FORSYS_MAX_COST"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Budget.MaxCost = &f
		}
	}
	if v := os.Getenv("FORSYS_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Execution.Workers = n
		}
	}
	if path := os.Getenv("FORSYS_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if dir := os.Getenv("FORSYS_INBOX"); dir != "" {
		c.Inbox.Dir = dir
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the configuration for errors. Engine priorities are not
// required here since they may come from the command line.
func (c *Config) Validate() error {
	if c.Execution.Workers < 0 {
		return fmt.Errorf("execution.workers must not be negative")
	}
	if c.Budget.MaxArea != nil && *c.Budget.MaxArea < 0 {
		return fmt.Errorf("budget.max_area must not be negative")
	}
	if c.Budget.MaxCost != nil && *c.Budget.MaxCost < 0 {
		return fmt.Errorf("budget.max_cost must not be negative")
	}

	switch c.Store.Driver {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("unsupported store driver: %s", c.Store.Driver)
	}

	switch c.Output.Format {
	case "json", "table", "markdown":
	default:
		return fmt.Errorf("unsupported output format: %s", c.Output.Format)
	}

	if c.Metrics.Enabled && c.Metrics.Textfile == "" {
		return fmt.Errorf("metrics.textfile is required when metrics are enabled")
	}
	return nil
}

// Params converts the engine and budget sections into pipeline parameters.
func (c *Config) Params() forsys.Params {
	return forsys.Params{
		Priorities:     append([]string(nil), c.Engine.Priorities...),
		ProjectIDField: c.Engine.ProjectIDField,
		AreaField:      c.Engine.AreaField,
		CostField:      c.Engine.CostField,
		MaxArea:        c.Budget.MaxArea,
		MaxCost:        c.Budget.MaxCost,
		Workers:        c.Execution.Workers,
	}
}

// GetTimeout returns the parse timeout as a duration.
func (c *Config) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Execution.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// GetInboxDebounce returns the inbox debounce window as a duration.
func (c *Config) GetInboxDebounce() time.Duration {
	d, err := time.ParseDuration(c.Inbox.Debounce)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}

// DefaultConfigPath returns the default path to .forsys/config.yaml.
func DefaultConfigPath() string {
	root, err := FindWorkspaceRoot()
	if err != nil {
		return filepath.Join(".forsys", "config.yaml")
	}
	return filepath.Join(root, ".forsys", "config.yaml")
}

// FindWorkspaceRoot attempts to find the project root by looking for a .forsys directory.
// If not found, returns the current working directory.
func FindWorkspaceRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	originalDir := dir
	for {
		if _, err := os.Stat(filepath.Join(dir, ".forsys")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return originalDir, nil
}

// ResolvePath makes a relative path absolute against the workspace root.
func ResolvePath(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
