package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock offset from local midnight.
type TimeOfDay time.Duration

// EndOfDay is the last representable instant of a calendar day.
const EndOfDay = TimeOfDay(24*time.Hour - time.Nanosecond)

// TOD builds a TimeOfDay from clock components.
func TOD(hour, min, sec int) TimeOfDay {
	return TimeOfDay(time.Duration(hour)*time.Hour +
		time.Duration(min)*time.Minute +
		time.Duration(sec)*time.Second)
}

// ParseTimeOfDay accepts "15:04" or "15:04:05".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time of day %q, expected HH:MM or HH:MM:SS", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	sec := 0
	if len(parts) == 3 {
		sec, err = strconv.Atoi(parts[2])
		if err != nil || sec < 0 || sec > 59 {
			return 0, fmt.Errorf("invalid second in %q", s)
		}
	}
	return TOD(h, m, sec), nil
}

func (t TimeOfDay) Hour() int   { return int(time.Duration(t) / time.Hour) }
func (t TimeOfDay) Minute() int { return int(time.Duration(t) % time.Hour / time.Minute) }
func (t TimeOfDay) Second() int { return int(time.Duration(t) % time.Minute / time.Second) }

func (t TimeOfDay) String() string {
	if t == EndOfDay {
		return "23:59:59.999999999"
	}
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}

// On combines the time-of-day with a date in the given location.
// Wall-clock semantics: components are normalized by time.Date, so a
// TimeOfDay past midnight (e.g. after adding an offset) rolls into the
// next calendar day the way naive datetime arithmetic would.
func (t TimeOfDay) On(d Date, loc *time.Location) time.Time {
	nsec := int(time.Duration(t) % time.Second)
	sec := int(time.Duration(t) / time.Second)
	return time.Date(d.Year, d.Month, d.Day, 0, 0, sec, nsec, loc)
}

// Date is a calendar date without a time component.
// The zero value sorts before every real date and acts as a "never" sentinel.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf extracts the calendar date of t in t's own location.
// Callers localize first: DateOf(t.In(loc)).
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate accepts "2006-01-02".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) After(o Date) bool {
	if d.Year != o.Year {
		return d.Year > o.Year
	}
	if d.Month != o.Month {
		return d.Month > o.Month
	}
	return d.Day > o.Day
}

// Next returns the following calendar day.
func (d Date) Next() Date {
	t := time.Date(d.Year, d.Month, d.Day+1, 0, 0, 0, 0, time.UTC)
	return DateOf(t)
}

// ISOWeek reports the ISO-8601 year and week number.
func (d Date) ISOWeek() (year, week int) {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).ISOWeek()
}

// ISOWeekday reports the ISO day of week, Monday=1 .. Sunday=7.
func (d Date) ISOWeekday() int {
	wd := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Weekday()
	if wd == time.Sunday {
		return 7
	}
	return int(wd)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}
