// Package runner drives timer evaluation off a wall-clock poll ticker
// and fans results out to the event bus and the store.
package runner

import (
	"context"
	"sync"
	"time"

	"tickwatch/internal/eventbus"
	"tickwatch/internal/storage"
	"tickwatch/internal/timer"
	"tickwatch/internal/watchdog"
	logx "tickwatch/pkg/logx"
)

const (
	defaultPoll      = time.Second
	defaultHeartbeat = 15 * time.Second
	defaultStrategy  = "default"
)

type Config struct {
	// Poll is the sampling interval.
	Poll time.Duration

	// Heartbeat throttles cycle-watermark writes.
	Heartbeat time.Duration

	// Strategy keys the cycle record.
	Strategy string
}

// Runner samples the clock and feeds every tick, in order, to each
// timer. Cheat timers are evaluated first on every sample so that
// pre-open triggers see the tick before the regular ones do.
type Runner struct {
	cfg    Config
	timers []*timer.Timer
	bus    eventbus.Bus
	store  storage.Store
	wd     *watchdog.Watchdog
	log    logx.Logger
	clock  func() time.Time

	// Loop-goroutine state. Only cycle() and its callees touch these.
	seq     int
	candles int64
	long    int64

	lastBeat time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New orders the timers cheat-first (stable within each group) and
// returns a stopped runner. bus is required; store and wd may be nil.
func New(cfg Config, timers []*timer.Timer, bus eventbus.Bus, store storage.Store, wd *watchdog.Watchdog, log logx.Logger) *Runner {
	if cfg.Poll <= 0 {
		cfg.Poll = defaultPoll
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = defaultHeartbeat
	}
	if cfg.Strategy == "" {
		cfg.Strategy = defaultStrategy
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	ordered := make([]*timer.Timer, 0, len(timers))
	for _, t := range timers {
		if t.Cheat() {
			ordered = append(ordered, t)
		}
	}
	for _, t := range timers {
		if !t.Cheat() {
			ordered = append(ordered, t)
		}
	}

	return &Runner{
		cfg:    cfg,
		timers: ordered,
		bus:    bus,
		store:  store,
		wd:     wd,
		log:    log,
		clock:  time.Now,
	}
}

// SetClock overrides the time source (tests).
func (r *Runner) SetClock(clock func() time.Time) {
	if clock != nil {
		r.clock = clock
	}
}

func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	for _, t := range r.timers {
		if err := t.Start(); err != nil {
			return err
		}
	}

	lctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true
	r.lastBeat = time.Time{}

	go r.loop(lctx)

	r.log.Info("runner started",
		logx.Int("timers", len(r.timers)),
		logx.Duration("poll", r.cfg.Poll),
		logx.Duration("heartbeat", r.cfg.Heartbeat),
	)
	return nil
}

func (r *Runner) Stop(ctx context.Context) {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
	}
	r.log.Info("runner stopped")
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)

	tick := time.NewTicker(r.cfg.Poll)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			r.cycle(ctx, r.clock())
		}
	}
}

// cycle is one full pass over the timers at sample instant now.
func (r *Runner) cycle(ctx context.Context, now time.Time) {
	began := r.clock()

	for _, t := range r.timers {
		fired, err := t.Check(now)
		if err != nil {
			r.log.Error("timer check failed",
				logx.String("timer", t.Name()),
				logx.Time("at", now),
				logx.Err(err),
			)
			r.bus.Publish(eventbus.Event{
				Type:  eventbus.TypeTimerError,
				Time:  now,
				Timer: t.Name(),
				Err:   err,
			})
			continue
		}
		if !fired {
			continue
		}
		when, _ := t.LastFired()
		r.fire(ctx, t.Name(), now, when)
	}

	r.consumeWatchdog(now)
	r.heartbeat(ctx, now, r.clock().Sub(began))
}

func (r *Runner) fire(ctx context.Context, name string, now, when time.Time) {
	seq := r.seq
	r.seq++
	r.log.Info("timer fired",
		logx.String("timer", name),
		logx.Time("when", when),
		logx.Time("at", now),
		logx.Int("seq", seq),
	)
	r.bus.Publish(eventbus.Event{
		Type:  eventbus.TypeTimerFired,
		Time:  now,
		Timer: name,
		When:  when,
	})
	if r.store == nil {
		return
	}
	err := r.store.AppendFire(ctx, storage.FireRecord{
		At:    now,
		Timer: name,
		When:  when,
		Seq:   seq,
	})
	if err != nil {
		r.log.Warn("fire journal append failed", logx.Err(err))
	}
}

// consumeWatchdog collects a latched reset and restarts all timers
// from a clean slate.
func (r *Runner) consumeWatchdog(now time.Time) {
	if r.wd == nil {
		return
	}
	reset, reason := r.wd.Consume()
	if !reset {
		return
	}
	r.log.Warn("resetting timers", logx.String("reason", reason))
	for _, t := range r.timers {
		if err := t.Start(); err != nil {
			r.log.Error("timer reset failed",
				logx.String("timer", t.Name()),
				logx.Err(err),
			)
		}
	}
	r.bus.Publish(eventbus.Event{
		Type:  eventbus.TypeWatchdogReset,
		Time:  now,
		Timer: reason,
	})
}

// heartbeat persists the cycle watermark the watchdog probes against.
// Writes are throttled to the heartbeat period; counters accumulate
// every cycle regardless.
func (r *Runner) heartbeat(ctx context.Context, now time.Time, took time.Duration) {
	r.candles++
	if took > r.cfg.Poll {
		r.long++
	}
	if r.store == nil {
		return
	}
	if !r.lastBeat.IsZero() && now.Sub(r.lastBeat) < r.cfg.Heartbeat {
		return
	}
	r.lastBeat = now

	err := r.store.PutCycle(ctx, storage.CycleRecord{
		Strategy:     r.cfg.Strategy,
		LastCycle:    now,
		CandlePeriod: r.cfg.Poll,
		Candles:      r.candles,
		LongCandles:  r.long,
	})
	if err != nil {
		r.log.Warn("cycle watermark write failed", logx.Err(err))
	}
}
