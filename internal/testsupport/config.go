package testsupport

import (
	"path/filepath"
	"testing"

	"trialrec/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.ExperimentRoot = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.JournalPath = filepath.Join(base, "journal", "journal.db")
	cfgVal.Session.ExperimentName = "test_experiment"
	cfgVal.Preflight.MinFreeMiB = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithExperiment sets the experiment folder name.
func WithExperiment(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Session.ExperimentName = name
	}
}

// WithCustomHeaders sets the extra result columns.
func WithCustomHeaders(headers ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Session.CustomHeaders = headers
	}
}

// WithSettingsToLog sets the settings copied into each result row.
func WithSettingsToLog(keys ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Session.SettingsToLog = keys
	}
}

// WithoutJournal disables the command journal.
func WithoutJournal() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Journal.Enabled = false
	}
}

// WithNtfyTopic points notifications at topic, typically an httptest server.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
		b.cfg.Notifications.RequestTimeout = 5
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ExperimentRoot)
}
