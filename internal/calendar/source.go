package calendar

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoSession is returned when a session-relative target time is
// requested from a source that has no session schedule.
var ErrNoSession = errors.New("calendar: source has no session schedule")

// Source localizes timer targets and supplies session boundaries.
//
// Sessions reports the published session start/end times of day;
// ok=false means the source has no session concept (plain timezone).
// NextSessionEnd returns the first end-of-session boundary after at.
type Source interface {
	Location() *time.Location
	Sessions() (start, end TimeOfDay, ok bool)
	NextSessionEnd(at time.Time) (time.Time, error)
	Localize(d Date, tod TimeOfDay) time.Time
}

// Timezone is a Source with no session schedule: every calendar day is
// one session ending at EndOfDay.
type Timezone struct {
	loc *time.Location
}

// NewTimezone resolves an IANA timezone name. An empty name means the
// process-local timezone.
func NewTimezone(name string) (*Timezone, error) {
	if name == "" {
		return &Timezone{loc: time.Local}, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("calendar: load timezone %q: %w", name, err)
	}
	return &Timezone{loc: loc}, nil
}

// InLocation wraps an existing *time.Location.
func InLocation(loc *time.Location) *Timezone {
	if loc == nil {
		loc = time.UTC
	}
	return &Timezone{loc: loc}
}

func (z *Timezone) Location() *time.Location { return z.loc }

func (z *Timezone) Sessions() (TimeOfDay, TimeOfDay, bool) { return 0, 0, false }

func (z *Timezone) NextSessionEnd(at time.Time) (time.Time, error) {
	return EndOfDay.On(DateOf(at.In(z.loc)), z.loc), nil
}

func (z *Timezone) Localize(d Date, tod TimeOfDay) time.Time {
	return tod.On(d, z.loc)
}
