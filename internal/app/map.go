package app

import (
	"fmt"
	"strings"
	"time"

	"tickwatch/internal/calendar"
	"tickwatch/internal/config"
	"tickwatch/internal/notifier"
	"tickwatch/internal/storage"
	"tickwatch/internal/timer"
	"tickwatch/internal/watchdog"
)

// The map* helpers translate the file config into component configs.
// Validation already ran; errors here still carry the config path so a
// bad hot-reload that slipped through stays diagnosable.

func mapCalendar(name string, cc config.CalendarConfig) (*calendar.Market, error) {
	path := func(f string) string { return fmt.Sprintf("calendars.%s.%s", name, f) }

	open, err := calendar.ParseTimeOfDay(cc.Open)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path("open"), err)
	}
	cl, err := calendar.ParseTimeOfDay(cc.Close)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path("close"), err)
	}

	var pre, post calendar.TimeOfDay
	if strings.TrimSpace(cc.Pre) != "" {
		if pre, err = calendar.ParseTimeOfDay(cc.Pre); err != nil {
			return nil, fmt.Errorf("%s: %w", path("pre"), err)
		}
	}
	if strings.TrimSpace(cc.Post) != "" {
		if post, err = calendar.ParseTimeOfDay(cc.Post); err != nil {
			return nil, fmt.Errorf("%s: %w", path("post"), err)
		}
	}

	holidays := make([]calendar.Date, 0, len(cc.Holidays))
	for _, h := range cc.Holidays {
		d, err := calendar.ParseDate(h)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path("holidays"), err)
		}
		holidays = append(holidays, d)
	}

	var earlyCloses map[calendar.Date]calendar.TimeOfDay
	if len(cc.EarlyCloses) > 0 {
		earlyCloses = make(map[calendar.Date]calendar.TimeOfDay, len(cc.EarlyCloses))
		for ds, ts := range cc.EarlyCloses {
			d, err := calendar.ParseDate(ds)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path("early_closes"), err)
			}
			tod, err := calendar.ParseTimeOfDay(ts)
			if err != nil {
				return nil, fmt.Errorf("%s[%s]: %w", path("early_closes"), ds, err)
			}
			earlyCloses[d] = tod
		}
	}

	return calendar.NewMarket(calendar.MarketConfig{
		Name:         name,
		Timezone:     cc.Timezone,
		Hours:        calendar.Hours{Open: open, Close: cl, Pre: pre, Post: post},
		Weekdays:     cc.Weekdays,
		Holidays:     holidays,
		EarlyCloses:  earlyCloses,
		EarlyTrading: cc.EarlyTrading,
		LateTrading:  cc.LateTrading,
	})
}

func mapTimer(tc config.TimerConfig, topTimezone string, cals map[string]*calendar.Market) (timer.Config, error) {
	path := func(f string) string { return fmt.Sprintf("timer %q: %s", tc.Name, f) }

	w, err := timer.ParseWhen(tc.When)
	if err != nil {
		return timer.Config{}, fmt.Errorf("%s: %w", path("when"), err)
	}

	// Offset may be negative (fire ahead of the target).
	offset, err := config.ParseSignedDurationField(path("offset"), tc.Offset)
	if err != nil {
		return timer.Config{}, err
	}
	repeat, err := config.ParseDurationField(path("repeat"), tc.Repeat)
	if err != nil {
		return timer.Config{}, err
	}

	var src calendar.Source
	var allow func(calendar.Date) bool
	if tc.Calendar != "" {
		m, ok := cals[tc.Calendar]
		if !ok {
			return timer.Config{}, fmt.Errorf("%s: unknown calendar %q", path("calendar"), tc.Calendar)
		}
		src = m
		if tc.TradingDaysOnly {
			allow = m.IsTradingDay
		}
	} else {
		tz, err := calendar.NewTimezone(topTimezone)
		if err != nil {
			return timer.Config{}, fmt.Errorf("timezone: %w", err)
		}
		src = tz
	}

	monthCarry := true
	if tc.MonthCarry != nil {
		monthCarry = *tc.MonthCarry
	}

	return timer.Config{
		Name:       tc.Name,
		When:       w,
		Offset:     offset,
		Repeat:     repeat,
		Weekdays:   tc.Weekdays,
		WeekCarry:  tc.WeekCarry,
		Monthdays:  tc.Monthdays,
		MonthCarry: monthCarry,
		Allow:      allow,
		Source:     src,
		Cheat:      tc.Cheat,
	}, nil
}

func mapWatchdog(wc config.WatchdogConfig, strategy string) (watchdog.Config, error) {
	resetTimes := make([]calendar.TimeOfDay, 0, len(wc.ResetTimes))
	for _, rt := range wc.ResetTimes {
		tod, err := calendar.ParseTimeOfDay(rt)
		if err != nil {
			return watchdog.Config{}, fmt.Errorf("watchdog.reset_times: %w", err)
		}
		resetTimes = append(resetTimes, tod)
	}
	probe, err := config.ParseDurationOrDefault("watchdog.probe", wc.Probe, time.Minute)
	if err != nil {
		return watchdog.Config{}, err
	}
	return watchdog.Config{
		ResetTimes: resetTimes,
		Probe:      probe,
		CycleMult:  wc.CycleMult,
		Strategy:   strategy,
	}, nil
}

func mapNotifier(nc config.NotifierConfig) (notifier.Config, error) {
	retryBase, err := config.ParseDurationField("notifier.retry_base", nc.RetryBase)
	if err != nil {
		return notifier.Config{}, err
	}
	retryMaxDelay, err := config.ParseDurationField("notifier.retry_max_delay", nc.RetryMaxDelay)
	if err != nil {
		return notifier.Config{}, err
	}
	dedupWindow, err := config.ParseDurationField("notifier.dedup_window", nc.DedupWindow)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		Enabled:         nc.Enabled,
		Workers:         nc.Workers,
		QueueSize:       nc.QueueSize,
		RatePerSec:      nc.RatePerSec,
		RetryMax:        nc.RetryMax,
		RetryBase:       retryBase,
		RetryMaxDelay:   retryMaxDelay,
		DedupWindow:     dedupWindow,
		DedupMaxEntries: nc.DedupMaxEntries,
	}, nil
}

func mapStorage(sc *config.StorageConfig) (storage.Config, bool, error) {
	if sc == nil {
		return storage.Config{}, false, nil
	}
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	busy, err := config.ParseDurationField("storage.busy_timeout", sc.BusyTimeout)
	if err != nil {
		return storage.Config{}, false, err
	}
	return storage.Config{
		Driver:      driver,
		Path:        sc.Path,
		BusyTimeout: busy,
	}, true, nil
}
