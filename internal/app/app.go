// Package app assembles the daemon: config, logging, calendars,
// timers, storage, watchdog, notifier and the driving loop.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"tickwatch/internal/calendar"
	"tickwatch/internal/config"
	"tickwatch/internal/eventbus"
	"tickwatch/internal/notifier"
	"tickwatch/internal/runner"
	"tickwatch/internal/storage"
	"tickwatch/internal/timer"
	"tickwatch/internal/watchdog"
	logx "tickwatch/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	logs *logx.Service
	log  logx.Logger

	bus   eventbus.Bus
	store storage.Store

	calendars map[string]*calendar.Market
	timers    []*timer.Timer

	notif *notifier.Service
	wd    *watchdog.Watchdog
	run   *runner.Runner

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		logs:    logSvc,
		log:     log,
		bus:     eventbus.New(),
	}
	if err := a.build(cfg); err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	return a, nil
}

// build constructs every component from a validated config.
func (a *App) build(cfg *config.Config) error {
	a.calendars = make(map[string]*calendar.Market, len(cfg.Calendars))
	for name, cc := range cfg.Calendars {
		m, err := mapCalendar(name, cc)
		if err != nil {
			return err
		}
		a.calendars[name] = m
	}

	a.timers = make([]*timer.Timer, 0, len(cfg.Timers))
	for _, tc := range cfg.Timers {
		tcfg, err := mapTimer(tc, cfg.Timezone, a.calendars)
		if err != nil {
			return err
		}
		t, err := timer.New(tcfg)
		if err != nil {
			return err
		}
		a.timers = append(a.timers, t)
	}

	if sc, enabled, err := mapStorage(cfg.Storage); err != nil {
		return err
	} else if enabled {
		st, err := storage.Open(sc, a.log.With(logx.String("comp", "storage")))
		if err != nil {
			return err
		}
		a.store = st
		a.log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	if cfg.Notifier != nil && cfg.Notifier.Enabled {
		ncfg, err := mapNotifier(*cfg.Notifier)
		if err != nil {
			return err
		}
		var sink notifier.Sink
		if tg := cfg.Notifier.Telegram; tg != nil {
			sink, err = notifier.NewTelegramSink(notifier.TelegramConfig{
				Token:    tg.Token,
				ChatID:   tg.ChatID,
				ThreadID: tg.ThreadID,
			})
			if err != nil {
				return fmt.Errorf("notifier.telegram: %w", err)
			}
		}
		a.notif = notifier.New(ncfg, sink, a.log.With(logx.String("comp", "notifier")))
	}

	strategy := strings.TrimSpace(cfg.Strategy)
	if strategy == "" {
		strategy = "default"
	}

	if wc := cfg.Watchdog; wc != nil && wc.Enabled {
		wcfg, err := mapWatchdog(*wc, strategy)
		if err != nil {
			return err
		}
		market, ok := a.calendars[wc.Market]
		if !ok {
			return fmt.Errorf("watchdog.market: unknown calendar %q", wc.Market)
		}
		var secondary *calendar.Market
		if wc.Secondary != "" {
			if secondary, ok = a.calendars[wc.Secondary]; !ok {
				return fmt.Errorf("watchdog.secondary: unknown calendar %q", wc.Secondary)
			}
		}
		a.wd = watchdog.New(wcfg, market, secondary, a.store,
			a.log.With(logx.String("comp", "watchdog")))
	}

	poll, err := config.ParseDurationOrDefault("poll", cfg.Poll, time.Second)
	if err != nil {
		return err
	}
	heartbeat, err := config.ParseDurationOrDefault("heartbeat", cfg.Heartbeat, 15*time.Second)
	if err != nil {
		return err
	}
	a.run = runner.New(runner.Config{
		Poll:      poll,
		Heartbeat: heartbeat,
		Strategy:  strategy,
	}, a.timers, a.bus, a.store, a.wd, a.log.With(logx.String("comp", "runner")))

	return nil
}

func (a *App) Start(ctx context.Context) error {
	rctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.notif != nil && a.notif.Enabled() {
		a.notif.Start(rctx)
	}
	if a.wd != nil {
		if err := a.wd.Start(rctx); err != nil {
			cancel()
			return err
		}
	}
	if err := a.run.Start(rctx); err != nil {
		cancel()
		return err
	}

	events, unsub := a.bus.Subscribe(128)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer unsub()
		a.eventLoop(rctx, events)
	}()

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	sub := a.cfgm.Subscribe(8)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(rctx, sub)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(rctx); err != nil {
			a.log.Warn("config watch ended", logx.Err(err))
		}
	}()

	a.log.Info("app started",
		logx.Int("timers", len(a.timers)),
		logx.Int("calendars", len(a.calendars)),
	)
	return nil
}

// eventLoop forwards bus events to the notifier and the debug log.
func (a *App) eventLoop(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			if a.notif == nil || !a.notif.Enabled() {
				continue
			}
			n, ok := formatEvent(e)
			if !ok {
				continue
			}
			if err := a.notif.Notify(ctx, n); err != nil {
				a.log.Debug("notification dropped", logx.Err(err))
			}
		}
	}
}

// formatEvent renders a bus event as an outbound notification.
func formatEvent(e eventbus.Event) (notifier.Notification, bool) {
	switch e.Type {
	case eventbus.TypeTimerFired:
		return notifier.Notification{
			Text: fmt.Sprintf("timer %s fired (target %s)",
				e.Timer, e.When.Format(time.RFC3339)),
			Key: "fired:" + e.Timer,
		}, true
	case eventbus.TypeTimerError:
		return notifier.Notification{
			Text:     fmt.Sprintf("timer %s check failed: %v", e.Timer, e.Err),
			Key:      "error:" + e.Timer,
			Priority: 5,
		}, true
	case eventbus.TypeWatchdogReset:
		return notifier.Notification{
			Text:     "watchdog reset: " + e.Timer,
			Key:      "reset",
			Priority: 9,
		}, true
	}
	return notifier.Notification{}, false
}

// reloadLoop applies hot-reloadable sections of a published config.
// Timer, calendar, watchdog and storage changes need a restart; only
// logging and notifier settings apply live.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the newest config.
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						cfg = newer
					}
				default:
					goto APPLY
				}
			}
		APPLY:
			a.logs.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
			})
			if a.notif != nil && cfg.Notifier != nil {
				if ncfg, err := mapNotifier(*cfg.Notifier); err != nil {
					a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
				} else {
					a.notif.Apply(ncfg)
				}
			}
			a.log.Info("config reloaded (timers and calendars need a restart to change)")
		}
	}
}

func (a *App) Stop(ctx context.Context) error {
	a.log.Info("stopping")
	if a.cancel != nil {
		a.cancel()
	}

	if a.run != nil {
		a.run.Stop(ctx)
	}
	if a.wd != nil {
		a.wd.Stop(ctx)
	}
	if a.notif != nil {
		a.notif.Stop(ctx)
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("stop deadline reached (continuing)")
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
	}

	a.log.Info("stopped")
	return a.logs.Close()
}
