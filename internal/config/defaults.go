package config

const (
	defaultDataDir               = "~/.local/share/cadence"
	defaultLogDir                = "~/.local/share/cadence/logs"
	defaultAPIBind               = "127.0.0.1:7610"
	defaultAutoLinkThreshold     = 70
	defaultReviewFloor           = 30
	defaultMaxRangeDays          = 366
	defaultImportPageSize        = 250
	defaultImportRequestTimeout  = 30
	defaultImportEventBuffer     = 64
	defaultCalendarID            = "primary"
	defaultDrivePageSize         = 100
	defaultTrackSearchBaseURL    = "https://api.spotify.com/v1"
	defaultTrackSearchDelayMS    = 200
	defaultTrackSearchLimit      = 5
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	maxImportPageSize            = 2500
	maxTrackSearchLimit          = 50
	maxAutoLinkThresholdCeiling  = 100
)

// DefaultLessonKeywords is the vocabulary a calendar summary must contain for
// the event to count as a lesson.
var DefaultLessonKeywords = []string{
	"lesson", "lessons", "guitar", "piano", "bass", "drum", "drums",
	"ukulele", "vocal", "vocals", "voice", "singing", "violin", "music",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Matching: Matching{
			AutoLinkThreshold: defaultAutoLinkThreshold,
			ReviewFloor:       defaultReviewFloor,
		},
		Import: Import{
			MaxRangeDays:          defaultMaxRangeDays,
			PageSize:              defaultImportPageSize,
			RequestTimeoutSeconds: defaultImportRequestTimeout,
			LessonKeywords:        append([]string(nil), DefaultLessonKeywords...),
			EventBuffer:           defaultImportEventBuffer,
		},
		Google: Google{
			CalendarID:    defaultCalendarID,
			DrivePageSize: defaultDrivePageSize,
		},
		TrackSearch: TrackSearch{
			BaseURL:        defaultTrackSearchBaseURL,
			RequestDelayMS: defaultTrackSearchDelayMS,
			Limit:          defaultTrackSearchLimit,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
