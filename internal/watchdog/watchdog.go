// Package watchdog detects frozen processing cycles and schedules
// fixed daily resets.
//
// It never resets anything itself: reasons are latched and the driving
// loop collects them via Consume, so the reset action stays in one
// place. Probing is gated on the market being open: a loop that is
// idle because the market is closed is not frozen.
package watchdog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"tickwatch/internal/calendar"
	"tickwatch/internal/storage"
	logx "tickwatch/pkg/logx"
)

const (
	defaultProbe     = time.Minute
	defaultCycleMult = 2
)

type Config struct {
	// ResetTimes are fixed daily reset points in the market's timezone.
	ResetTimes []calendar.TimeOfDay

	// Probe is the liveness check period.
	Probe time.Duration

	// CycleMult: a cycle record older than CycleMult x its candle
	// period means the processing loop froze.
	CycleMult int

	// Strategy keys the cycle record to read.
	Strategy string
}

// Watchdog latches reset requests from cron schedules and liveness
// probes. Safe for concurrent use.
type Watchdog struct {
	cfg       Config
	market    *calendar.Market
	secondary *calendar.Market
	store     storage.Store
	log       logx.Logger
	clock     func() time.Time

	c *cron.Cron

	mu      sync.Mutex
	pending bool
	reason  string
}

func New(cfg Config, market, secondary *calendar.Market, store storage.Store, log logx.Logger) *Watchdog {
	if cfg.Probe <= 0 {
		cfg.Probe = defaultProbe
	}
	if cfg.CycleMult <= 0 {
		cfg.CycleMult = defaultCycleMult
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Watchdog{
		cfg:       cfg,
		market:    market,
		secondary: secondary,
		store:     store,
		log:       log,
		clock:     time.Now,
	}
}

// SetClock overrides the time source (tests).
func (w *Watchdog) SetClock(clock func() time.Time) {
	if clock != nil {
		w.clock = clock
	}
}

func (w *Watchdog) Start(ctx context.Context) error {
	// Seconds field enabled so a reset time like "09:15:30" keeps its
	// seconds instead of silently truncating to the minute.
	w.c = cron.New(cron.WithSeconds(), cron.WithLocation(w.market.Location()))

	for _, rt := range w.cfg.ResetTimes {
		spec := fmt.Sprintf("%d %d %d * * *", rt.Second(), rt.Minute(), rt.Hour())
		if _, err := w.c.AddFunc(spec, func() { w.latch("daily reset") }); err != nil {
			return fmt.Errorf("watchdog: reset time %s: %w", rt, err)
		}
	}
	if _, err := w.c.AddFunc(fmt.Sprintf("@every %s", w.cfg.Probe), func() { w.probe(ctx) }); err != nil {
		return fmt.Errorf("watchdog: probe schedule: %w", err)
	}

	w.logMergedSchedule()

	w.c.Start()
	w.log.Info("watchdog started",
		logx.Int("reset_times", len(w.cfg.ResetTimes)),
		logx.Duration("probe", w.cfg.Probe),
		logx.String("market", w.market.Name()),
	)
	return nil
}

func (w *Watchdog) Stop(ctx context.Context) {
	if w.c == nil {
		return
	}
	select {
	case <-w.c.Stop().Done():
	case <-ctx.Done():
	}
	w.c = nil
	w.log.Info("watchdog stopped")
}

// RequestReset latches a manual reset request.
func (w *Watchdog) RequestReset(reason string) {
	if reason == "" {
		reason = "manual"
	}
	w.latch(reason)
}

// Consume returns and clears the pending reset request.
func (w *Watchdog) Consume() (bool, string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.pending {
		return false, ""
	}
	w.pending = false
	reason := w.reason
	w.reason = ""
	return true, reason
}

func (w *Watchdog) latch(reason string) {
	w.mu.Lock()
	if !w.pending {
		w.pending = true
		w.reason = reason
	}
	w.mu.Unlock()
	w.log.Info("reset latched", logx.String("reason", reason))
}

// probe compares the persisted cycle watermark against the wall clock.
func (w *Watchdog) probe(ctx context.Context) {
	now := w.clock()

	if !w.market.IsOpen(now) {
		w.log.Debug("market closed; skipping liveness probe", logx.Time("at", now))
		return
	}
	if w.store == nil {
		return
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	rec, ok, err := w.store.GetCycle(cctx, w.cfg.Strategy)
	cancel()
	if err != nil {
		w.log.Warn("cycle lookup failed; skipping probe", logx.Err(err))
		return
	}
	if !ok || rec.CandlePeriod <= 0 {
		// No record yet is not a frozen cycle.
		return
	}

	elapsed := now.Sub(rec.LastCycle)
	limit := time.Duration(w.cfg.CycleMult) * rec.CandlePeriod
	w.log.Debug("liveness probe",
		logx.Duration("elapsed", elapsed),
		logx.Duration("limit", limit),
	)
	if elapsed > limit {
		w.log.Warn("frozen cycles detected",
			logx.Duration("elapsed", elapsed),
			logx.Duration("limit", limit),
			logx.String("strategy", w.cfg.Strategy),
		)
		w.latch("frozen cycles")
	}
}

// logMergedSchedule prints the combined open intervals of the primary
// and secondary markets. Informational only: open/closed decisions are
// always made against the primary market alone.
func (w *Watchdog) logMergedSchedule() {
	if w.secondary == nil || !w.log.Enabled(logx.LevelDebug) {
		return
	}
	now := w.clock()
	spans := calendar.Merged(now.AddDate(0, 0, -7), now.AddDate(0, 0, 7), w.market, w.secondary)
	w.log.Debug("merged market schedule (informational)",
		logx.Int("intervals", len(spans)),
		logx.String("primary", w.market.Name()),
		logx.String("secondary", w.secondary.Name()),
	)
}
