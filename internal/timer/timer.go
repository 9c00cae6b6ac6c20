package timer

import (
	"errors"
	"fmt"
	"time"

	"tickwatch/internal/calendar"
)

// Config is a timer definition. Immutable after New.
type Config struct {
	Name string

	// When is the daily target; Offset shifts it (wall-clock add).
	When   When
	Offset time.Duration

	// Repeat re-arms the timer at this interval after a fire, bounded
	// by the session end. Zero fires at most once per matching day.
	Repeat time.Duration

	// Weekdays restricts firing to these ISO weekdays (1=Mon..7=Sun),
	// sorted ascending; empty = no restriction. WeekCarry makes a day
	// skipped earlier in the same week grant eligibility today.
	Weekdays  []int
	WeekCarry bool

	// Monthdays/MonthCarry: same semantics over days of the month.
	Monthdays  []int
	MonthCarry bool

	// Allow, when set, is asked once per new calendar date; false
	// vetoes the whole date.
	Allow func(calendar.Date) bool

	// Source localizes targets and supplies session boundaries.
	Source calendar.Source

	// Cheat asks the driving loop to evaluate this timer ahead of the
	// others on every sample. The evaluator itself ignores it.
	Cheat bool
}

// Timer evaluates one trigger definition against sampled timestamps.
// Not safe for concurrent use; see the package contract.
type Timer struct {
	cfg Config

	rstWhen calendar.TimeOfDay // daily reset target, resolved at Start
	when    calendar.TimeOfDay // current target
	dwhen   time.Time          // resolved target instant; zero = needs recompute

	lastCall calendar.Date // date whose outcome is already decided
	curDate  calendar.Date
	nextEOS  time.Time

	monthMask dayMask
	weekMask  dayMask

	lastWhen time.Time
	fired    bool
}

// New validates the definition. Symbolic targets are resolved later, in
// Start, so that session times are read exactly once per run.
func New(cfg Config) (*Timer, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("timer %q: source is required", cfg.Name)
	}
	if cfg.Repeat < 0 {
		return nil, fmt.Errorf("timer %q: repeat must be >= 0", cfg.Name)
	}
	if err := checkFilter(cfg.Weekdays, 1, 7); err != nil {
		return nil, fmt.Errorf("timer %q: weekdays: %w", cfg.Name, err)
	}
	if err := checkFilter(cfg.Monthdays, 1, 31); err != nil {
		return nil, fmt.Errorf("timer %q: monthdays: %w", cfg.Name, err)
	}
	return &Timer{cfg: cfg}, nil
}

func checkFilter(days []int, lo, hi int) error {
	prev := 0
	for _, d := range days {
		if d < lo || d > hi {
			return fmt.Errorf("day %d out of range %d..%d", d, lo, hi)
		}
		if d <= prev {
			return errors.New("days must be strictly ascending")
		}
		prev = d
	}
	return nil
}

func (t *Timer) Name() string { return t.cfg.Name }
func (t *Timer) Cheat() bool  { return t.cfg.Cheat }

// LastFired reports the target instant of the most recent fire.
func (t *Timer) LastFired() (time.Time, bool) {
	return t.lastWhen, t.fired
}

// Start resolves the target time and clears all evaluation state.
func (t *Timer) Start() error {
	switch t.cfg.When.kind {
	case whenAt:
		t.rstWhen = t.cfg.When.tod
	case whenSessionStart, whenSessionEnd:
		start, end, ok := t.cfg.Source.Sessions()
		if !ok {
			return fmt.Errorf("timer %q: %s target: %w", t.cfg.Name, t.cfg.When, calendar.ErrNoSession)
		}
		if t.cfg.When.kind == whenSessionStart {
			t.rstWhen = start
		} else {
			t.rstWhen = end
		}
	}

	t.resetWhen(calendar.Date{})
	t.nextEOS = time.Time{}
	t.curDate = calendar.Date{}
	t.monthMask = newDayMask(t.cfg.Monthdays, t.cfg.MonthCarry)
	t.weekMask = newDayMask(t.cfg.Weekdays, t.cfg.WeekCarry)
	t.lastWhen = time.Time{}
	t.fired = false
	return nil
}

// resetWhen puts the target back at its daily reset value and records
// which date (if any) is already decided.
func (t *Timer) resetWhen(d calendar.Date) {
	t.when = t.rstWhen
	t.dwhen = time.Time{}
	t.lastCall = d
}

// Check evaluates one sampled timestamp. Timestamps must be
// non-decreasing. It returns true when the timer fires at this sample.
func (t *Timer) Check(now time.Time) (bool, error) {
	lt := now.In(t.cfg.Source.Location())
	d := calendar.DateOf(lt)

	// This date's outcome is settled and no repeat is pending.
	if d == t.lastCall {
		return false, nil
	}

	// Session rollover: refresh the boundary and force the daily
	// target reset. A failed lookup must surface: assuming a boundary
	// here risks double-firing across an undetected session end.
	if lt.After(t.nextEOS) {
		eos, err := t.cfg.Source.NextSessionEnd(lt)
		if err != nil {
			return false, fmt.Errorf("timer %q: next session end: %w", t.cfg.Name, err)
		}
		t.nextEOS = eos
		t.resetWhen(calendar.Date{})
	}

	// Date rollover: month filter, then week filter, then the veto
	// predicate. Each mask is consumed exactly once per new date.
	if d.After(t.curDate) {
		t.curDate = d
		ok := t.monthMask.eligible(int(d.Month), d.Day)
		if ok {
			_, week := d.ISOWeek()
			ok = t.weekMask.eligible(week, d.ISOWeekday())
		}
		if ok && t.cfg.Allow != nil {
			ok = t.cfg.Allow(d)
		}
		if !ok {
			t.resetWhen(d) // this date won't make it
			return false, nil
		}
	}

	if t.dwhen.IsZero() {
		t.dwhen = t.cfg.Source.Localize(d, t.when+calendar.TimeOfDay(t.cfg.Offset))
	}

	if lt.Before(t.dwhen) {
		return false, nil
	}

	t.lastWhen = t.dwhen
	t.fired = true

	if t.cfg.Repeat <= 0 {
		t.resetWhen(d)
		return true, nil
	}

	// Re-arm within the session: advance past the sample, give up for
	// the day once the next slot would land beyond the session end.
	// lastCall stays untouched so repeats keep firing on this date.
	dwhen := t.dwhen
	for {
		dwhen = dwhen.Add(t.cfg.Repeat)
		if !dwhen.Before(t.nextEOS) {
			t.resetWhen(d)
			break
		}
		if dwhen.After(lt) {
			t.dwhen = dwhen
			break
		}
	}
	return true, nil
}
