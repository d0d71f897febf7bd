package config

const (
	defaultConfigPath           = "~/.config/merchbatch/config.toml"
	defaultStateDir             = "~/.local/share/merchbatch"
	defaultLogDir               = "~/.local/share/merchbatch/logs"
	defaultUploadDir            = "~/.local/share/merchbatch/uploads"
	defaultAPIBind              = "127.0.0.1:5000"
	defaultDelaySeconds         = 2
	defaultMode                 = "live"
	defaultPollIntervalMillis   = 1000
	defaultStubDurationSeconds  = 5
	defaultMaxUploadMiB         = 64
	defaultItemTimeoutSeconds   = 300
	defaultShutdownGraceSeconds = 10
	defaultNotifyTimeout        = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:  defaultStateDir,
			LogDir:    defaultLogDir,
			UploadDir: defaultUploadDir,
			APIBind:   defaultAPIBind,
		},
		Job: Job{
			DefaultDelaySeconds: defaultDelaySeconds,
			DefaultMode:         defaultMode,
			PollIntervalMillis:  defaultPollIntervalMillis,
			StubDurationSeconds: defaultStubDurationSeconds,
			MaxUploadMiB:        defaultMaxUploadMiB,
		},
		Processor: Processor{
			ItemTimeoutSeconds:   defaultItemTimeoutSeconds,
			ShutdownGraceSeconds: defaultShutdownGraceSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			RunStarted:     true,
			RunCompleted:   true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
