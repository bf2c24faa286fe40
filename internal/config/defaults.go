package config

const (
	defaultConfigPath     = "~/.config/trialrec/config.toml"
	defaultExperimentRoot = "~/trialrec/data"
	defaultLogDir         = "~/.local/share/trialrec/logs"
	defaultJournalPath    = "~/.local/share/trialrec/journal.db"
	defaultExperimentName = "experiment"
	defaultDelimiter      = ","
	defaultFloatPrecision = 6
	maxFloatPrecision     = 17
	defaultMinFreeMiB     = 256
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultNotifyTimeout  = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ExperimentRoot: defaultExperimentRoot,
			LogDir:         defaultLogDir,
			JournalPath:    defaultJournalPath,
		},
		Session: Session{
			ExperimentName: defaultExperimentName,
			EndOnClose:     true,
			LockSessionDir: true,
		},
		Output: Output{
			Delimiter:      defaultDelimiter,
			FloatPrecision: defaultFloatPrecision,
		},
		Preflight: Preflight{
			Enabled:    true,
			MinFreeMiB: defaultMinFreeMiB,
		},
		Journal: Journal{
			Enabled: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			SessionEnd:     true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
