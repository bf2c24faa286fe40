package config

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateOutput(); err != nil {
		return err
	}
	if err := c.validatePreflight(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateOutput() error {
	if utf8.RuneCountInString(c.Output.Delimiter) != 1 {
		return fmt.Errorf("output.delimiter must be a single character, got %q", c.Output.Delimiter)
	}
	switch c.Output.Delimiter {
	case "\"", "\r", "\n":
		return fmt.Errorf("output.delimiter %q is not allowed", c.Output.Delimiter)
	}
	if c.Output.FloatPrecision > maxFloatPrecision {
		return fmt.Errorf("output.float_precision must be at most %d", maxFloatPrecision)
	}
	return nil
}

func (c *Config) validatePreflight() error {
	if c.Preflight.MinFreeMiB < 0 {
		return errors.New("preflight.min_free_mib must be non-negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
