package config

// defaults holds the built-in value of every known setting. The Go type of
// each entry decides how the typed getters read it.
var defaults = map[string]any{
	"BOT_NAME": "crawlrt",

	"REACTOR":    "adapter",
	"EVENT_LOOP": "",

	"LOG_LEVEL": "INFO",
	"LOG_FILE":  "",
	// rotation of LOG_FILE
	"LOG_FILE_MAX_MB":  200,
	"LOG_FILE_BACKUPS": 0,

	"MEMUSAGE_ENABLED":                true,
	"MEMUSAGE_NOTIFY_MAIL":            []string{},
	"MEMUSAGE_LIMIT_MB":               0,
	"MEMUSAGE_WARNING_MB":             0,
	"MEMUSAGE_CHECK_INTERVAL_SECONDS": 60.0,

	"MAIL_HOST":  "localhost",
	"MAIL_PORT":  25,
	"MAIL_FROM":  "crawlrt@localhost",
	"MAIL_USER":  "",
	"MAIL_PASS":  "",
	"MAIL_DEBUG": false,
	// messages per second
	"MAIL_RATE": 1.0,

	"STATUS_ENABLED": false,
	"STATUS_HOST":    "127.0.0.1",
	"STATUS_PORT":    []int{6023, 6073},

	"STATS_DSN":   "",
	"STATS_TABLE": "crawl_stats",
}
