package config

import (
	"fmt"
	"strings"

	"trialrec/internal/textutil"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSession()
	c.normalizeOutput()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.ExperimentRoot) == "" {
		c.Paths.ExperimentRoot = defaultExperimentRoot
	}
	if c.Paths.ExperimentRoot, err = expandPath(c.Paths.ExperimentRoot); err != nil {
		return fmt.Errorf("paths.experiment_root: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.JournalPath) == "" {
		c.Paths.JournalPath = defaultJournalPath
	}
	if c.Paths.JournalPath, err = expandPath(c.Paths.JournalPath); err != nil {
		return fmt.Errorf("paths.journal_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeSession() {
	name := textutil.SanitizeFileName(c.Session.ExperimentName)
	if name == "" {
		name = defaultExperimentName
	}
	c.Session.ExperimentName = name
	c.Session.CustomHeaders = compactStrings(c.Session.CustomHeaders)
	c.Session.SettingsToLog = compactStrings(c.Session.SettingsToLog)
}

func (c *Config) normalizeOutput() {
	if c.Output.Delimiter == "" {
		c.Output.Delimiter = defaultDelimiter
	}
	if c.Output.FloatPrecision < 0 {
		c.Output.FloatPrecision = defaultFloatPrecision
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// compactStrings trims entries and drops blanks and duplicates, keeping order.
func compactStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
