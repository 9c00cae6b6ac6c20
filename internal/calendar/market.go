package calendar

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoUpcomingSession is returned when no session end exists within
// the configured lookahead horizon (e.g. an all-holiday table).
var ErrNoUpcomingSession = errors.New("calendar: no session end within lookahead horizon")

const defaultLookaheadDays = 370

// Hours is the daily session template of a market.
// Pre/Post are optional extended-hours bands; zero means absent.
type Hours struct {
	Open  TimeOfDay
	Close TimeOfDay
	Pre   TimeOfDay
	Post  TimeOfDay
}

// MarketConfig describes one market's trading schedule.
type MarketConfig struct {
	Name     string
	Timezone string
	Hours    Hours

	// Weekdays with a session, ISO numbering (1=Mon..7=Sun).
	// Empty means Monday through Friday.
	Weekdays []int

	Holidays    []Date
	EarlyCloses map[Date]TimeOfDay

	// EarlyTrading/LateTrading widen the session with the Pre/Post bands.
	EarlyTrading bool
	LateTrading  bool

	// LookaheadDays bounds the next-session-end scan. 0 means default.
	LookaheadDays int
}

// Market is a Source backed by a weekly session table.
type Market struct {
	name        string
	loc         *time.Location
	hours       Hours
	weekdays    [8]bool // indexed by ISO weekday 1..7
	holidays    map[Date]struct{}
	earlyCloses map[Date]TimeOfDay
	early, late bool
	lookahead   int
}

func NewMarket(cfg MarketConfig) (*Market, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("calendar: market %q timezone: %w", cfg.Name, err)
	}
	if cfg.Hours.Open >= cfg.Hours.Close {
		return nil, fmt.Errorf("calendar: market %q: open %s is not before close %s",
			cfg.Name, cfg.Hours.Open, cfg.Hours.Close)
	}
	if cfg.EarlyTrading && (cfg.Hours.Pre == 0 || cfg.Hours.Pre >= cfg.Hours.Open) {
		return nil, fmt.Errorf("calendar: market %q: early trading needs a pre band before open", cfg.Name)
	}
	if cfg.LateTrading && cfg.Hours.Post <= cfg.Hours.Close {
		return nil, fmt.Errorf("calendar: market %q: late trading needs a post band after close", cfg.Name)
	}

	m := &Market{
		name:        cfg.Name,
		loc:         loc,
		hours:       cfg.Hours,
		holidays:    make(map[Date]struct{}, len(cfg.Holidays)),
		earlyCloses: make(map[Date]TimeOfDay, len(cfg.EarlyCloses)),
		early:       cfg.EarlyTrading,
		late:        cfg.LateTrading,
		lookahead:   cfg.LookaheadDays,
	}
	if m.lookahead <= 0 {
		m.lookahead = defaultLookaheadDays
	}

	if len(cfg.Weekdays) == 0 {
		for wd := 1; wd <= 5; wd++ {
			m.weekdays[wd] = true
		}
	} else {
		for _, wd := range cfg.Weekdays {
			if wd < 1 || wd > 7 {
				return nil, fmt.Errorf("calendar: market %q: weekday %d out of range 1..7", cfg.Name, wd)
			}
			m.weekdays[wd] = true
		}
	}
	for _, h := range cfg.Holidays {
		m.holidays[h] = struct{}{}
	}
	for d, tod := range cfg.EarlyCloses {
		if tod <= m.sessionOpen() {
			return nil, fmt.Errorf("calendar: market %q: early close %s on %s precedes open", cfg.Name, tod, d)
		}
		m.earlyCloses[d] = tod
	}
	return m, nil
}

func (m *Market) Name() string             { return m.name }
func (m *Market) Location() *time.Location { return m.loc }

// Sessions reports the effective session start and end times of day,
// widened by the pre/post bands when extended trading is enabled.
func (m *Market) Sessions() (TimeOfDay, TimeOfDay, bool) {
	return m.sessionOpen(), m.sessionClose(), true
}

func (m *Market) sessionOpen() TimeOfDay {
	if m.early && m.hours.Pre > 0 {
		return m.hours.Pre
	}
	return m.hours.Open
}

func (m *Market) sessionClose() TimeOfDay {
	if m.late && m.hours.Post > 0 {
		return m.hours.Post
	}
	return m.hours.Close
}

// closeOn resolves the session end for one date, honoring early closes.
// An early close overrides the post band as well.
func (m *Market) closeOn(d Date) TimeOfDay {
	if tod, ok := m.earlyCloses[d]; ok {
		return tod
	}
	return m.sessionClose()
}

// IsTradingDay reports whether the market holds a session on d.
func (m *Market) IsTradingDay(d Date) bool {
	if !m.weekdays[d.ISOWeekday()] {
		return false
	}
	_, holiday := m.holidays[d]
	return !holiday
}

// NextSessionEnd returns the first end-of-session boundary after at.
func (m *Market) NextSessionEnd(at time.Time) (time.Time, error) {
	d := DateOf(at.In(m.loc))
	for i := 0; i < m.lookahead; i++ {
		if m.IsTradingDay(d) {
			end := m.closeOn(d).On(d, m.loc)
			if end.After(at) {
				return end, nil
			}
		}
		d = d.Next()
	}
	return time.Time{}, fmt.Errorf("market %q: %w", m.name, ErrNoUpcomingSession)
}

// NextOpen returns the first session open at or after t.
func (m *Market) NextOpen(t time.Time) (time.Time, error) {
	d := DateOf(t.In(m.loc))
	for i := 0; i < m.lookahead; i++ {
		if m.IsTradingDay(d) {
			open := m.sessionOpen().On(d, m.loc)
			if !open.Before(t) {
				return open, nil
			}
		}
		d = d.Next()
	}
	return time.Time{}, fmt.Errorf("market %q: %w", m.name, ErrNoUpcomingSession)
}

// IsOpen reports whether the market is trading at t.
func (m *Market) IsOpen(t time.Time) bool {
	lt := t.In(m.loc)
	d := DateOf(lt)
	if !m.IsTradingDay(d) {
		return false
	}
	open := m.sessionOpen().On(d, m.loc)
	close := m.closeOn(d).On(d, m.loc)
	return !lt.Before(open) && lt.Before(close)
}

func (m *Market) Localize(d Date, tod TimeOfDay) time.Time {
	return tod.On(d, m.loc)
}
