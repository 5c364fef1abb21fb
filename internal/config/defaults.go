package config

const (
	defaultConfigPath     = "~/.config/musicality/config.toml"
	defaultRunsDir        = "temp/runs"
	defaultRoundsDir      = "datasets/musicality_rounds"
	defaultStateDir       = "~/.local/share/musicality"
	defaultTopN           = 3
	defaultWorkers        = 4
	defaultTimeoutSeconds = 0
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			RunsDir:   defaultRunsDir,
			RoundsDir: defaultRoundsDir,
			StateDir:  defaultStateDir,
		},
		Scoring: Scoring{
			TopN:           defaultTopN,
			Workers:        defaultWorkers,
			TimeoutSeconds: defaultTimeoutSeconds,
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
