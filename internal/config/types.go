package config

// Config is the daemon configuration. YAML and JSON are both accepted;
// YAML is normalized and decoded with the same strict JSON decoder.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	// Timezone localizes timers that do not reference a calendar.
	// Empty means the process-local timezone.
	Timezone string `json:"timezone,omitempty"`

	// Poll is the sampling interval of the driving loop. Default "1s".
	Poll string `json:"poll,omitempty"`

	// Heartbeat throttles cycle-watermark writes. Default "15s".
	Heartbeat string `json:"heartbeat,omitempty"`

	// Strategy keys the cycle bookkeeping record. Default "default".
	Strategy string `json:"strategy,omitempty"`

	Logging LoggingConfig `json:"logging"`

	// Calendars are named market schedules referenced by timers and
	// the watchdog.
	Calendars map[string]CalendarConfig `json:"calendars,omitempty"`

	Timers []TimerConfig `json:"timers"`

	Watchdog *WatchdogConfig `json:"watchdog,omitempty"`
	Notifier *NotifierConfig `json:"notifier,omitempty"`
	Storage  *StorageConfig  `json:"storage,omitempty"`
}

type LoggingConfig struct {
	Level   string            `json:"level,omitempty"`
	Console bool              `json:"console"`
	File    LoggingFileConfig `json:"file,omitempty"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// TimerConfig declares one recurring trigger.
type TimerConfig struct {
	Name string `json:"name"`

	// When is "session-start", "session-end", or a clock time
	// ("09:30", "09:30:00").
	When   string `json:"when"`
	Offset string `json:"offset,omitempty"`
	Repeat string `json:"repeat,omitempty"`

	// ISO weekday numbers (1=Mon..7=Sun), ascending.
	Weekdays  []int `json:"weekdays,omitempty"`
	WeekCarry bool  `json:"week_carry,omitempty"`

	Monthdays []int `json:"monthdays,omitempty"`
	// MonthCarry is a pointer so "omitted" defaults to true, matching
	// the usual give-me-the-first-day-back expectation for monthly jobs.
	MonthCarry *bool `json:"month_carry,omitempty"`

	// Calendar names the market schedule the timer follows. Empty
	// means the plain top-level timezone (sessions end at midnight).
	Calendar string `json:"calendar,omitempty"`

	// TradingDaysOnly vetoes dates the referenced calendar has no
	// session on (holidays, weekends outside the weekly table).
	TradingDaysOnly bool `json:"trading_days_only,omitempty"`

	// Cheat evaluates this timer before the others on every sample.
	Cheat bool `json:"cheat,omitempty"`
}

// CalendarConfig declares one market schedule.
type CalendarConfig struct {
	Timezone string `json:"timezone"`
	Open     string `json:"open"`
	Close    string `json:"close"`

	// Pre/Post are extended-hours bands, included in the session only
	// when early_trading/late_trading is set.
	Pre          string `json:"pre,omitempty"`
	Post         string `json:"post,omitempty"`
	EarlyTrading bool   `json:"early_trading,omitempty"`
	LateTrading  bool   `json:"late_trading,omitempty"`

	// ISO weekdays with a session; empty means Mon..Fri.
	Weekdays []int `json:"weekdays,omitempty"`

	// Holidays are "2006-01-02" dates with no session.
	Holidays []string `json:"holidays,omitempty"`

	// EarlyCloses maps "2006-01-02" to the overriding close time.
	EarlyCloses map[string]string `json:"early_closes,omitempty"`
}

// WatchdogConfig controls the frozen-cycle watchdog.
type WatchdogConfig struct {
	Enabled bool `json:"enabled"`

	// ResetTimes are fixed daily reset points ("HH:MM").
	ResetTimes []string `json:"reset_times,omitempty"`

	// Probe is the liveness check period. Default "1m".
	Probe string `json:"probe,omitempty"`

	// CycleMult: a cycle older than cycle_mult x its candle period is
	// considered frozen. Default 2.
	CycleMult int `json:"cycle_mult,omitempty"`

	// Market names the calendar that gates probing (closed market =
	// no probe). Required when enabled.
	Market string `json:"market"`

	// Secondary, if set, is merged with Market for the informational
	// combined-schedule view logged at debug level.
	Secondary string `json:"secondary,omitempty"`
}

// NotifierConfig controls the async notification pipeline.
type NotifierConfig struct {
	Enabled         bool                `json:"enabled"`
	Workers         int                 `json:"workers,omitempty"`
	QueueSize       int                 `json:"queue_size,omitempty"`
	RatePerSec      int                 `json:"rate_per_sec,omitempty"`
	RetryMax        int                 `json:"retry_max,omitempty"`
	RetryBase       string              `json:"retry_base,omitempty"`
	RetryMaxDelay   string              `json:"retry_max_delay,omitempty"`
	DedupWindow     string              `json:"dedup_window,omitempty"`
	DedupMaxEntries int                 `json:"dedup_max_entries,omitempty"`
	Telegram        *TelegramSinkConfig `json:"telegram,omitempty"`
}

// TelegramSinkConfig is the outbound Telegram destination.
type TelegramSinkConfig struct {
	Token    string `json:"token"`
	ChatID   int64  `json:"chat_id"`
	ThreadID int    `json:"thread_id,omitempty"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./tickwatch_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}
