package calendar

import (
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want TimeOfDay
	}{
		{raw: "09:30", want: TOD(9, 30, 0)},
		{raw: "16:00:30", want: TOD(16, 0, 30)},
		{raw: "00:00", want: 0},
		{raw: "23:59:59", want: TOD(23, 59, 59)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.raw)
			if err != nil {
				t.Fatalf("ParseTimeOfDay(%q): %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("ParseTimeOfDay(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}

	for _, raw := range []string{"24:00", "09:60", "0930", "09:30:60", ""} {
		if _, err := ParseTimeOfDay(raw); err == nil {
			t.Fatalf("ParseTimeOfDay(%q): expected error", raw)
		}
	}
}

func TestTimeOfDayOnNormalizesOverflow(t *testing.T) {
	t.Parallel()
	d := Date{Year: 2025, Month: time.August, Day: 4}

	got := TOD(9, 30, 0).On(d, time.UTC)
	want := time.Date(2025, time.August, 4, 9, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("On = %v, want %v", got, want)
	}

	// A target past midnight (e.g. 23:30 plus a one-hour offset) lands
	// on the next calendar day.
	got = (TOD(23, 30, 0) + TimeOfDay(time.Hour)).On(d, time.UTC)
	want = time.Date(2025, time.August, 5, 0, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("overflow On = %v, want %v", got, want)
	}
}

func TestDateOrdering(t *testing.T) {
	t.Parallel()
	a := Date{Year: 2025, Month: time.August, Day: 4}
	b := Date{Year: 2025, Month: time.August, Day: 5}
	if !b.After(a) || a.After(b) || a.After(a) {
		t.Fatal("After ordering broken")
	}
	if !a.After(Date{}) {
		t.Fatal("real date does not sort after the zero date")
	}
	if a.Next() != b {
		t.Fatalf("Next = %v, want %v", a.Next(), b)
	}
	// Month rollover.
	eom := Date{Year: 2025, Month: time.August, Day: 31}
	if got := eom.Next(); got != (Date{Year: 2025, Month: time.September, Day: 1}) {
		t.Fatalf("Next across month = %v", got)
	}
}

func TestISOWeekday(t *testing.T) {
	t.Parallel()
	// 2025-08-04 is a Monday, 2025-08-10 a Sunday.
	mon := Date{Year: 2025, Month: time.August, Day: 4}
	sun := Date{Year: 2025, Month: time.August, Day: 10}
	if mon.ISOWeekday() != 1 {
		t.Fatalf("Monday = %d", mon.ISOWeekday())
	}
	if sun.ISOWeekday() != 7 {
		t.Fatalf("Sunday = %d", sun.ISOWeekday())
	}
	if _, w := mon.ISOWeek(); w != 32 {
		t.Fatalf("week = %d, want 32", w)
	}
}

func TestParseDate(t *testing.T) {
	t.Parallel()
	d, err := ParseDate("2025-12-25")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d != (Date{Year: 2025, Month: time.December, Day: 25}) {
		t.Fatalf("ParseDate = %v", d)
	}
	if _, err := ParseDate("25/12/2025"); err == nil {
		t.Fatal("expected error")
	}
}
