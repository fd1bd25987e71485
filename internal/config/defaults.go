package config

const (
	defaultStateDir              = "~/.local/share/mouthsync"
	defaultLogDir                = "~/.local/share/mouthsync/logs"
	defaultLogRetentionDays      = 30
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultRecognizer            = RecognizerPocketSphinx
	defaultExtendedShapes        = "GHX"
	defaultPollIntervalMS        = 2000
	defaultPollTimeoutMS         = 1000
	defaultMode                  = ModeBone
	defaultHoldFrameThreshold    = 4
	defaultFPS                   = 24
	defaultNotifyRequestTimeout  = 10
	defaultHistoryRetentionDays  = 90
	defaultHistoryEnabled        = true
	defaultNotifyOnCancelEnabled = true
)

// Animation modes.
const (
	ModeBone  = "bone"
	ModeLayer = "layer"
)

// Rhubarb recognizers.
const (
	RecognizerPocketSphinx = "pocketSphinx"
	RecognizerPhonetic     = "phonetic"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Rhubarb: Rhubarb{
			Recognizer:     defaultRecognizer,
			ExtendedShapes: defaultExtendedShapes,
			PollIntervalMS: defaultPollIntervalMS,
			PollTimeoutMS:  defaultPollTimeoutMS,
		},
		Animation: Animation{
			Mode:               defaultMode,
			HoldFrameThreshold: defaultHoldFrameThreshold,
			DefaultFPS:         defaultFPS,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			OnCancel:       defaultNotifyOnCancelEnabled,
		},
		History: History{
			Enabled:       defaultHistoryEnabled,
			RetentionDays: defaultHistoryRetentionDays,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
