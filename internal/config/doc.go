// Package config loads, normalizes, and validates trialrec configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and applies TRIALREC_* environment overrides on
// top of the file values. The Config type centralizes every knob the
// orchestrator, worker, and CLI need: where experiment data lands, which extra
// columns the results file carries, and how logs and notifications are routed.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
