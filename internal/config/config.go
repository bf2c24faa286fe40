package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and file locations.
type Paths struct {
	ExperimentRoot string `toml:"experiment_root" env:"TRIALREC_EXPERIMENT_ROOT"`
	LogDir         string `toml:"log_dir" env:"TRIALREC_LOG_DIR"`
	JournalPath    string `toml:"journal_path" env:"TRIALREC_JOURNAL_PATH"`
}

// Session contains per-session recording behaviour.
type Session struct {
	ExperimentName string   `toml:"experiment_name" env:"TRIALREC_EXPERIMENT"`
	CustomHeaders  []string `toml:"custom_headers"`
	SettingsToLog  []string `toml:"settings_to_log"`
	// EndOnClose runs EndExperiment automatically when the orchestrator is closed.
	EndOnClose bool `toml:"end_on_close" env:"TRIALREC_END_ON_CLOSE"`
	// LockSessionDir takes an advisory lock on the session folder for the
	// lifetime of the session.
	LockSessionDir bool `toml:"lock_session_dir"`
}

// Output controls how result files are rendered.
type Output struct {
	Delimiter string `toml:"delimiter"`
	// FloatPrecision is the number of decimals written for movement samples.
	// Zero selects the shortest representation that round-trips.
	FloatPrecision int `toml:"float_precision"`
}

// Preflight contains thresholds for the checks run when a session starts.
type Preflight struct {
	Enabled    bool `toml:"enabled"`
	MinFreeMiB int  `toml:"min_free_mib"`
}

// Journal controls the SQLite command journal.
type Journal struct {
	Enabled bool `toml:"enabled" env:"TRIALREC_JOURNAL"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic" env:"TRIALREC_NTFY_TOPIC"`
	RequestTimeout int    `toml:"request_timeout"`
	SessionEnd     bool   `toml:"session_end"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" env:"TRIALREC_LOG_FORMAT"`
	Level  string `toml:"level" env:"TRIALREC_LOG_LEVEL"`
}

// Config encapsulates all configuration values for trialrec.
//
// Configuration sections by subsystem:
//   - Paths: experiment root, log directory, journal database
//   - Session: experiment name, extra result columns, teardown behaviour
//   - Output: delimiter and float formatting for CSV files
//   - Preflight: disk checks at session start
//   - Journal: command outcome journal
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Session       Session       `toml:"session"`
	Output        Output        `toml:"output"`
	Preflight     Preflight     `toml:"preflight"`
	Journal       Journal       `toml:"journal"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. Environment
// variables prefixed with TRIALREC_ override file values. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, "", false, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("trialrec.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the experiment root and log directory.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ExperimentRoot, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Journal.Enabled && c.Paths.JournalPath != "" {
		if err := os.MkdirAll(filepath.Dir(c.Paths.JournalPath), 0o755); err != nil {
			return fmt.Errorf("create journal directory: %w", err)
		}
	}
	return nil
}

// ExperimentDir returns the directory holding the settings file and session
// folders for the configured experiment.
func (c *Config) ExperimentDir() string {
	return filepath.Join(c.Paths.ExperimentRoot, c.Session.ExperimentName)
}

// Delimiter returns the configured field delimiter as a rune.
func (c *Config) Delimiter() rune {
	for _, r := range c.Output.Delimiter {
		return r
	}
	return ','
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
