package runner

import (
	"context"
	"sync"
	"testing"
	"time"

	"tickwatch/internal/calendar"
	"tickwatch/internal/eventbus"
	"tickwatch/internal/storage"
	"tickwatch/internal/timer"
	"tickwatch/internal/watchdog"
	logx "tickwatch/pkg/logx"
)

type fakeStore struct {
	mu     sync.Mutex
	fires  []storage.FireRecord
	cycles []storage.CycleRecord
}

func (s *fakeStore) AppendFire(_ context.Context, e storage.FireRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fires = append(s.fires, e)
	return nil
}

func (s *fakeStore) PutCycle(_ context.Context, rec storage.CycleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles = append(s.cycles, rec)
	return nil
}

func (s *fakeStore) GetCycle(context.Context, string) (storage.CycleRecord, bool, error) {
	return storage.CycleRecord{}, false, nil
}

func (s *fakeStore) Close() error { return nil }

func newTimer(t *testing.T, name string, tod calendar.TimeOfDay, cheat bool) *timer.Timer {
	t.Helper()
	tm, err := timer.New(timer.Config{
		Name:   name,
		When:   timer.At(tod),
		Source: calendar.InLocation(time.UTC),
		Cheat:  cheat,
	})
	if err != nil {
		t.Fatalf("timer.New(%s): %v", name, err)
	}
	return tm
}

func drainEvents(ch <-chan eventbus.Event) []eventbus.Event {
	var out []eventbus.Event
	for {
		select {
		case e := <-ch:
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestCycleFiresAndJournals(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(16)
	defer unsub()

	st := &fakeStore{}
	tm := newTimer(t, "noon", calendar.TOD(12, 0, 0), false)
	r := New(Config{Strategy: "s"}, []*timer.Timer{tm}, bus, st, nil, logx.Nop())
	if err := tm.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx := context.Background()
	r.cycle(ctx, time.Date(2025, time.August, 4, 11, 0, 0, 0, time.UTC))
	r.cycle(ctx, time.Date(2025, time.August, 4, 12, 0, 0, 0, time.UTC))

	var fired int
	for _, e := range drainEvents(events) {
		if e.Type == eventbus.TypeTimerFired {
			fired++
			if e.Timer != "noon" {
				t.Fatalf("event timer = %q", e.Timer)
			}
		}
	}
	if fired != 1 {
		t.Fatalf("fired events = %d, want 1", fired)
	}

	if len(st.fires) != 1 {
		t.Fatalf("journaled fires = %d, want 1", len(st.fires))
	}
	rec := st.fires[0]
	if rec.Timer != "noon" || rec.Seq != 0 {
		t.Fatalf("fire record = %+v", rec)
	}
	want := time.Date(2025, time.August, 4, 12, 0, 0, 0, time.UTC)
	if !rec.When.Equal(want) {
		t.Fatalf("fire target = %v, want %v", rec.When, want)
	}
}

func TestCheatTimersEvaluateFirst(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(16)
	defer unsub()

	regular := newTimer(t, "regular", calendar.TOD(10, 0, 0), false)
	cheat := newTimer(t, "cheat", calendar.TOD(10, 0, 0), true)
	r := New(Config{}, []*timer.Timer{regular, cheat}, bus, nil, nil, logx.Nop())
	for _, tm := range []*timer.Timer{regular, cheat} {
		if err := tm.Start(); err != nil {
			t.Fatalf("Start: %v", err)
		}
	}

	r.cycle(context.Background(), time.Date(2025, time.August, 4, 10, 0, 0, 0, time.UTC))

	got := drainEvents(events)
	if len(got) != 2 {
		t.Fatalf("events = %d, want 2", len(got))
	}
	if got[0].Timer != "cheat" || got[1].Timer != "regular" {
		t.Fatalf("order = %s, %s", got[0].Timer, got[1].Timer)
	}
}

func TestHeartbeatThrottlesWrites(t *testing.T) {
	t.Parallel()
	st := &fakeStore{}
	tm := newTimer(t, "noon", calendar.TOD(12, 0, 0), false)
	r := New(Config{Poll: time.Second, Heartbeat: 10 * time.Second, Strategy: "hb"},
		[]*timer.Timer{tm}, eventbus.New(), st, nil, logx.Nop())
	if err := tm.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx := context.Background()
	base := time.Date(2025, time.August, 4, 9, 0, 0, 0, time.UTC)
	r.cycle(ctx, base)                    // first cycle always writes
	r.cycle(ctx, base.Add(time.Second))   // throttled
	r.cycle(ctx, base.Add(5*time.Second)) // throttled
	r.cycle(ctx, base.Add(10*time.Second))

	if len(st.cycles) != 2 {
		t.Fatalf("cycle writes = %d, want 2", len(st.cycles))
	}
	last := st.cycles[len(st.cycles)-1]
	if last.Strategy != "hb" || last.CandlePeriod != time.Second {
		t.Fatalf("cycle record = %+v", last)
	}
	if last.Candles != 4 {
		t.Fatalf("candles = %d, want 4", last.Candles)
	}
}

func TestWatchdogResetRestartsTimers(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(16)
	defer unsub()

	market, err := calendar.NewMarket(calendar.MarketConfig{
		Name:     "m",
		Timezone: "UTC",
		Hours:    calendar.Hours{Open: calendar.TOD(9, 30, 0), Close: calendar.TOD(16, 0, 0)},
	})
	if err != nil {
		t.Fatalf("NewMarket: %v", err)
	}
	wd := watchdog.New(watchdog.Config{Strategy: "s"}, market, nil, nil, logx.Nop())

	tm := newTimer(t, "noon", calendar.TOD(12, 0, 0), false)
	r := New(Config{}, []*timer.Timer{tm}, bus, nil, wd, logx.Nop())
	if err := tm.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx := context.Background()
	at := time.Date(2025, time.August, 4, 12, 0, 0, 0, time.UTC)
	r.cycle(ctx, at)

	wd.RequestReset("frozen cycles")
	// The latched reset is consumed at the end of the next cycle; the
	// wiped once-per-day latch makes the cycle after that fire again.
	r.cycle(ctx, at.Add(time.Minute))
	r.cycle(ctx, at.Add(2*time.Minute))

	var fired, resets int
	for _, e := range drainEvents(events) {
		switch e.Type {
		case eventbus.TypeTimerFired:
			fired++
		case eventbus.TypeWatchdogReset:
			resets++
			if e.Timer != "frozen cycles" {
				t.Fatalf("reset reason = %q", e.Timer)
			}
		}
	}
	if fired != 2 || resets != 1 {
		t.Fatalf("fired = %d, resets = %d", fired, resets)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	t.Parallel()
	tm := newTimer(t, "noon", calendar.TOD(12, 0, 0), false)
	r := New(Config{Poll: 10 * time.Millisecond}, []*timer.Timer{tm},
		eventbus.New(), nil, nil, logx.Nop())

	ctx := context.Background()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.Start(ctx); err != nil { // idempotent
		t.Fatalf("second Start: %v", err)
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	r.Stop(stopCtx)
	r.Stop(stopCtx) // idempotent
}
