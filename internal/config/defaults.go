package config

const (
	defaultDataDir          = "~/.local/share/grimoire/data"
	defaultArtifactsDir     = "~/.local/share/grimoire/artifacts"
	defaultLogDir           = "~/.local/share/grimoire/logs"
	defaultEnvironment      = "development"
	defaultCallbackTimeout  = 5
	defaultHistoryRetention = 100
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:      defaultDataDir,
			ArtifactsDir: defaultArtifactsDir,
			LogDir:       defaultLogDir,
		},
		Pipeline: Pipeline{
			Environment:      defaultEnvironment,
			CallbackTimeout:  defaultCallbackTimeout,
			HistoryRetention: defaultHistoryRetention,
			BypassEnabled:    true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
