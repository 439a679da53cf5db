package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/jamesainslie/manifestsync/pkg/manifestsync/journal"
	"github.com/jamesainslie/manifestsync/pkg/manifestsync/logging"
	"github.com/jamesainslie/manifestsync/pkg/manifestsync/syncer"
)

// ErrUnknownTask is returned when a named task is not configured.
var ErrUnknownTask = errors.New("unknown task")

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size" yaml:"max_size"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	Daily      bool   `mapstructure:"daily" yaml:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level" yaml:"level"`
	Path       string            `mapstructure:"path" yaml:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation" yaml:"rotation"`
	Components map[string]string `mapstructure:"components" yaml:"components"`
}

// HistoryConfig configures the run journal.
type HistoryConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	Path          string `mapstructure:"path" yaml:"path"`
	RetentionDays int    `mapstructure:"retention_days" yaml:"retention_days"`
}

// WatchConfig configures sync --watch.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// Config is the resolved application configuration.
type Config struct {
	Variant      string        `mapstructure:"variant" yaml:"variant"`
	Exclude      []string      `mapstructure:"exclude" yaml:"exclude"`
	Output       string        `mapstructure:"output" yaml:"output"`
	SniffContent bool          `mapstructure:"sniff_content" yaml:"sniff_content"`
	Tasks        []syncer.Task `mapstructure:"tasks" yaml:"tasks"`
	History      HistoryConfig `mapstructure:"history" yaml:"history"`
	Watch        WatchConfig   `mapstructure:"watch" yaml:"watch"`
	Logging      LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// File is the config file that was read; empty when none was found.
	File string `mapstructure:"-" yaml:"-"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("variant", DefaultVariant)
	v.SetDefault("exclude", []string{})
	v.SetDefault("output", DefaultOutput)
	v.SetDefault("sniff_content", false)
	v.SetDefault("tasks", []map[string]any{})

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", journal.DefaultDir())
	v.SetDefault("history.retention_days", DefaultRetentionDays)

	v.SetDefault("watch.debounce", DefaultDebounce)

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.rotation.max_size", DefaultLogMaxSize)
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", map[string]string{})
}

// NewViper returns a viper instance with defaults, environment binding and
// the config file read. cfgFile overrides the search path and must exist.
func NewViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		dir, err := ConfigDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return v, nil
}

// Load resolves v into a Config.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	path, err := ExpandPath(cfg.History.Path)
	if err != nil {
		return nil, err
	}
	cfg.History.Path = path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if _, err := syncer.LookupVariant(c.Variant); err != nil {
		return fmt.Errorf("invalid variant: %w", err)
	}
	if c.History.RetentionDays < 0 {
		return fmt.Errorf("history.retention_days must not be negative: %d", c.History.RetentionDays)
	}

	seen := make(map[string]bool, len(c.Tasks))
	for i, t := range c.Tasks {
		if t.Name == "" {
			return fmt.Errorf("tasks[%d]: name is required", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("tasks[%d]: duplicate name %q", i, t.Name)
		}
		seen[t.Name] = true
		if err := t.Validate(); err != nil {
			return fmt.Errorf("task %s: %w", t.Name, err)
		}
		if t.Variant != "" {
			if _, err := syncer.LookupVariant(t.Variant); err != nil {
				return fmt.Errorf("task %s: %w", t.Name, err)
			}
		}
	}
	return nil
}

// Task returns the configured task called name with paths expanded and
// the default variant applied.
func (c *Config) Task(name string) (syncer.Task, error) {
	for _, t := range c.Tasks {
		if t.Name != name {
			continue
		}
		if t.Variant == "" {
			t.Variant = c.Variant
		}
		for _, p := range []*string{&t.Base, &t.Directory, &t.XMLFile} {
			expanded, err := ExpandPath(*p)
			if err != nil {
				return syncer.Task{}, err
			}
			*p = expanded
		}
		return t, nil
	}
	return syncer.Task{}, fmt.Errorf("%w: %s (configured: %s)", ErrUnknownTask, name, strings.Join(c.TaskNames(), ", "))
}

// TaskNames returns the configured task names in file order.
func (c *Config) TaskNames() []string {
	names := make([]string, 0, len(c.Tasks))
	for _, t := range c.Tasks {
		names = append(names, t.Name)
	}
	return names
}

// LogConfig converts the logging section for logging.Init. verbose adds
// debug output on stderr.
func (c *Config) LogConfig(verbose bool) (logging.Config, error) {
	maxSize := uint64(0)
	if c.Logging.Rotation.MaxSize != "" {
		n, err := humanize.ParseBytes(c.Logging.Rotation.MaxSize)
		if err != nil {
			return logging.Config{}, fmt.Errorf("invalid logging.rotation.max_size: %w", err)
		}
		maxSize = n
	}

	path, err := ExpandPath(c.Logging.Path)
	if err != nil {
		return logging.Config{}, err
	}

	out := logging.Config{
		Level: c.Logging.Level,
		Path:  path,
		Rotation: logging.RotationConfig{
			MaxSize:    int64(maxSize),
			MaxAge:     c.Logging.Rotation.MaxAge,
			MaxBackups: c.Logging.Rotation.MaxBackups,
			Daily:      c.Logging.Rotation.Daily,
		},
		Components: c.Logging.Components,
	}
	if verbose {
		out.ConsoleLevel = "debug"
	}
	return out, nil
}

// Excludes returns the configured exclude patterns with duplicates removed.
func (c *Config) Excludes(extra ...string) []string {
	out := slices.Clone(c.Exclude)
	for _, p := range extra {
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

// ConfigDir returns $XDG_CONFIG_HOME/manifestsync, falling back to
// ~/.config/manifestsync.
func ConfigDir() (string, error) {
	if home := os.Getenv("XDG_CONFIG_HOME"); home != "" {
		return filepath.Join(home, "manifestsync"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "manifestsync"), nil
}

// ConfigPath returns the default config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// StateDir returns $XDG_STATE_HOME/manifestsync.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "manifestsync")
}

// WriteDefault writes a commented default config file. It returns the
// path and whether a file was created; an existing file is left untouched.
func WriteDefault() (string, bool, error) {
	path, err := ConfigPath()
	if err != nil {
		return "", false, err
	}

	if _, err := os.Stat(path); err == nil {
		return path, false, nil
	} else if !os.IsNotExist(err) {
		return "", false, fmt.Errorf("failed to check config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create config directory: %w", err)
	}

	content := fmt.Sprintf(`# manifestsync configuration

# Variant used by "sync" when --variant is not given: sync or ensure
variant: %s

# Extra glob patterns, relative to the synchronized directory, never added
exclude: []

# Report format: pretty, table, plain, json or yaml
output: %s

# Guess the type of files with unknown extensions from their content
sniff_content: false

# Named tasks for "manifestsync run"
tasks: []
#  - name: system
#    base: ~/src/webapp
#    directory: ~/src/webapp/system
#    xml_file: ~/src/webapp/manifest.xml
#    variant: ensure

history:
  enabled: true
  path: %s
  retention_days: %d

watch:
  debounce: %s

logging:
  # debug, info, warn or error
  level: %s
  # Empty means $XDG_STATE_HOME/manifestsync/manifestsync.log
  path: ""
  rotation:
    max_size: %s
    max_age: 30
    max_backups: 5
    daily: true
  components:
    sync: %s
    audit: %s
    watcher: %s
`, DefaultVariant, DefaultOutput, journal.DefaultDir(), DefaultRetentionDays, DefaultDebounce,
		DefaultLogLevel, DefaultLogMaxSize,
		DefaultComponents["sync"], DefaultComponents["audit"], DefaultComponents["watcher"])

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", false, fmt.Errorf("failed to write default config: %w", err)
	}
	return path, true, nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, path[1:]), nil
}
