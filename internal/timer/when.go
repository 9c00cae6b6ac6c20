package timer

import (
	"fmt"
	"strings"

	"tickwatch/internal/calendar"
)

type whenKind int

const (
	whenAt whenKind = iota
	whenSessionStart
	whenSessionEnd
)

// When is the timer's daily target: an absolute time of day, or a
// reference to the source's session start/end resolved once at Start.
type When struct {
	kind whenKind
	tod  calendar.TimeOfDay
}

// At targets an absolute time of day.
func At(tod calendar.TimeOfDay) When {
	return When{kind: whenAt, tod: tod}
}

// SessionStart and SessionEnd target the source's published session
// boundaries. Starting a timer with one of these against a source
// without a session schedule fails with calendar.ErrNoSession.
var (
	SessionStart = When{kind: whenSessionStart}
	SessionEnd   = When{kind: whenSessionEnd}
)

// ParseWhen accepts "session-start", "session-end", or a clock time
// ("15:04" / "15:04:05").
func ParseWhen(s string) (When, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "session-start":
		return SessionStart, nil
	case "session-end":
		return SessionEnd, nil
	}
	tod, err := calendar.ParseTimeOfDay(s)
	if err != nil {
		return When{}, fmt.Errorf("invalid when %q: %w", s, err)
	}
	return At(tod), nil
}

func (w When) String() string {
	switch w.kind {
	case whenSessionStart:
		return "session-start"
	case whenSessionEnd:
		return "session-end"
	default:
		return w.tod.String()
	}
}
