package config

import (
	"fmt"
	"strings"
	"time"

	"tickwatch/internal/calendar"
	"tickwatch/internal/timer"
)

// Validate checks the whole document and reports the first problem
// with a path-qualified error. It parses every derived field the app
// will build from, so a config that validates also builds.
func (c *Config) Validate() error {
	if _, err := ParseDurationField("poll", c.Poll); err != nil {
		return err
	}
	if _, err := ParseDurationField("heartbeat", c.Heartbeat); err != nil {
		return err
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}

	for name, cc := range c.Calendars {
		if err := validateCalendar(name, cc); err != nil {
			return err
		}
	}

	if len(c.Timers) == 0 {
		return fmt.Errorf("timers: at least one timer is required")
	}
	seen := map[string]bool{}
	for i, tc := range c.Timers {
		path := fmt.Sprintf("timers[%d]", i)
		if strings.TrimSpace(tc.Name) == "" {
			return fmt.Errorf("%s: name is required", path)
		}
		if seen[tc.Name] {
			return fmt.Errorf("%s: duplicate timer name %q", path, tc.Name)
		}
		seen[tc.Name] = true

		w, err := timer.ParseWhen(tc.When)
		if err != nil {
			return fmt.Errorf("%s.when: %w", path, err)
		}
		// Offset may be negative (fire before the target).
		if _, err := ParseSignedDurationField(path+".offset", tc.Offset); err != nil {
			return err
		}
		if _, err := ParseDurationField(path+".repeat", tc.Repeat); err != nil {
			return err
		}
		if err := checkDayList(path+".weekdays", tc.Weekdays, 1, 7); err != nil {
			return err
		}
		if err := checkDayList(path+".monthdays", tc.Monthdays, 1, 31); err != nil {
			return err
		}

		if tc.Calendar != "" {
			if _, ok := c.Calendars[tc.Calendar]; !ok {
				return fmt.Errorf("%s.calendar: unknown calendar %q", path, tc.Calendar)
			}
		} else {
			if w == timer.SessionStart || w == timer.SessionEnd {
				return fmt.Errorf("%s.when: %q needs a calendar with session hours", path, tc.When)
			}
			if tc.TradingDaysOnly {
				return fmt.Errorf("%s.trading_days_only: needs a calendar", path)
			}
		}
	}

	if wd := c.Watchdog; wd != nil && wd.Enabled {
		if wd.Market == "" {
			return fmt.Errorf("watchdog.market: required when enabled")
		}
		if _, ok := c.Calendars[wd.Market]; !ok {
			return fmt.Errorf("watchdog.market: unknown calendar %q", wd.Market)
		}
		if wd.Secondary != "" {
			if _, ok := c.Calendars[wd.Secondary]; !ok {
				return fmt.Errorf("watchdog.secondary: unknown calendar %q", wd.Secondary)
			}
		}
		for i, rt := range wd.ResetTimes {
			if _, err := calendar.ParseTimeOfDay(rt); err != nil {
				return fmt.Errorf("watchdog.reset_times[%d]: %w", i, err)
			}
		}
		if _, err := ParseDurationField("watchdog.probe", wd.Probe); err != nil {
			return err
		}
		if wd.CycleMult < 0 {
			return fmt.Errorf("watchdog.cycle_mult: must be >= 0")
		}
	}

	if n := c.Notifier; n != nil && n.Enabled {
		if n.Telegram == nil || strings.TrimSpace(n.Telegram.Token) == "" || n.Telegram.ChatID == 0 {
			return fmt.Errorf("notifier.telegram: token and chat_id are required when enabled")
		}
		for _, f := range []struct{ path, raw string }{
			{"notifier.retry_base", n.RetryBase},
			{"notifier.retry_max_delay", n.RetryMaxDelay},
			{"notifier.dedup_window", n.DedupWindow},
		} {
			if _, err := ParseDurationField(f.path, f.raw); err != nil {
				return err
			}
		}
	}

	if st := c.Storage; st != nil {
		switch strings.ToLower(strings.TrimSpace(st.Driver)) {
		case "", "none", "file", "sqlite":
		default:
			return fmt.Errorf("storage.driver: unknown driver %q", st.Driver)
		}
		if _, err := ParseDurationField("storage.busy_timeout", st.BusyTimeout); err != nil {
			return err
		}
	}

	return nil
}

func validateCalendar(name string, cc CalendarConfig) error {
	path := "calendars." + name
	if cc.Timezone == "" {
		return fmt.Errorf("%s.timezone: required", path)
	}
	if _, err := time.LoadLocation(cc.Timezone); err != nil {
		return fmt.Errorf("%s.timezone: %w", path, err)
	}
	for _, f := range []struct{ field, raw string }{
		{"open", cc.Open}, {"close", cc.Close},
	} {
		if f.raw == "" {
			return fmt.Errorf("%s.%s: required", path, f.field)
		}
		if _, err := calendar.ParseTimeOfDay(f.raw); err != nil {
			return fmt.Errorf("%s.%s: %w", path, f.field, err)
		}
	}
	for _, f := range []struct{ field, raw string }{
		{"pre", cc.Pre}, {"post", cc.Post},
	} {
		if f.raw == "" {
			continue
		}
		if _, err := calendar.ParseTimeOfDay(f.raw); err != nil {
			return fmt.Errorf("%s.%s: %w", path, f.field, err)
		}
	}
	if cc.EarlyTrading && cc.Pre == "" {
		return fmt.Errorf("%s.early_trading: needs a pre band", path)
	}
	if cc.LateTrading && cc.Post == "" {
		return fmt.Errorf("%s.late_trading: needs a post band", path)
	}
	if err := checkDayList(path+".weekdays", cc.Weekdays, 1, 7); err != nil {
		return err
	}
	for i, h := range cc.Holidays {
		if _, err := calendar.ParseDate(h); err != nil {
			return fmt.Errorf("%s.holidays[%d]: %w", path, i, err)
		}
	}
	for d, tod := range cc.EarlyCloses {
		if _, err := calendar.ParseDate(d); err != nil {
			return fmt.Errorf("%s.early_closes[%s]: %w", path, d, err)
		}
		if _, err := calendar.ParseTimeOfDay(tod); err != nil {
			return fmt.Errorf("%s.early_closes[%s]: %w", path, d, err)
		}
	}
	return nil
}

func checkDayList(path string, days []int, lo, hi int) error {
	prev := 0
	for _, d := range days {
		if d < lo || d > hi {
			return fmt.Errorf("%s: day %d out of range %d..%d", path, d, lo, hi)
		}
		if d <= prev {
			return fmt.Errorf("%s: days must be strictly ascending", path)
		}
		prev = d
	}
	return nil
}
