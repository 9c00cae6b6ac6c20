package calendar

import (
	"errors"
	"testing"
	"time"
)

func newTestMarket(t *testing.T, mutate func(*MarketConfig)) *Market {
	t.Helper()
	cfg := MarketConfig{
		Name:     "test",
		Timezone: "UTC",
		Hours: Hours{
			Open:  TOD(9, 30, 0),
			Close: TOD(16, 0, 0),
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	m, err := NewMarket(cfg)
	if err != nil {
		t.Fatalf("NewMarket: %v", err)
	}
	return m
}

func TestNewMarketValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*MarketConfig)
	}{
		{name: "bad timezone", mutate: func(c *MarketConfig) { c.Timezone = "Not/AZone" }},
		{name: "open after close", mutate: func(c *MarketConfig) { c.Hours.Open = TOD(17, 0, 0) }},
		{name: "early trading without pre", mutate: func(c *MarketConfig) { c.EarlyTrading = true }},
		{name: "late trading without post", mutate: func(c *MarketConfig) { c.LateTrading = true }},
		{name: "weekday out of range", mutate: func(c *MarketConfig) { c.Weekdays = []int{8} }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := MarketConfig{
				Name:     "bad",
				Timezone: "UTC",
				Hours:    Hours{Open: TOD(9, 30, 0), Close: TOD(16, 0, 0)},
			}
			tt.mutate(&cfg)
			if _, err := NewMarket(cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestMarketTradingDays(t *testing.T) {
	t.Parallel()
	m := newTestMarket(t, func(c *MarketConfig) {
		c.Holidays = []Date{{Year: 2025, Month: time.August, Day: 6}}
	})

	tests := []struct {
		d    Date
		want bool
	}{
		{Date{Year: 2025, Month: time.August, Day: 4}, true}, // Monday
		{Date{Year: 2025, Month: time.August, Day: 6}, false}, // holiday
		{Date{Year: 2025, Month: time.August, Day: 9}, false}, // Saturday
		{Date{Year: 2025, Month: time.August, Day: 7}, true},
	}
	for _, tt := range tests {
		if got := m.IsTradingDay(tt.d); got != tt.want {
			t.Fatalf("IsTradingDay(%v) = %v, want %v", tt.d, got, tt.want)
		}
	}
}

func TestMarketNextSessionEnd(t *testing.T) {
	t.Parallel()
	m := newTestMarket(t, func(c *MarketConfig) {
		c.Holidays = []Date{{Year: 2025, Month: time.August, Day: 6}}
	})

	at := time.Date(2025, time.August, 4, 10, 0, 0, 0, time.UTC) // Monday mid-session
	end, err := m.NextSessionEnd(at)
	if err != nil {
		t.Fatalf("NextSessionEnd: %v", err)
	}
	want := time.Date(2025, time.August, 4, 16, 0, 0, 0, time.UTC)
	if !end.Equal(want) {
		t.Fatalf("NextSessionEnd = %v, want %v", end, want)
	}

	// After the close, the boundary belongs to the next trading day,
	// skipping the holiday Wednesday.
	at = time.Date(2025, time.August, 5, 16, 0, 0, 0, time.UTC)
	end, err = m.NextSessionEnd(at)
	if err != nil {
		t.Fatalf("NextSessionEnd: %v", err)
	}
	want = time.Date(2025, time.August, 7, 16, 0, 0, 0, time.UTC)
	if !end.Equal(want) {
		t.Fatalf("NextSessionEnd = %v, want %v", end, want)
	}
}

func TestMarketNextSessionEndExhausted(t *testing.T) {
	t.Parallel()
	m := newTestMarket(t, func(c *MarketConfig) {
		c.Weekdays = []int{1}
		c.LookaheadDays = 3
	})
	// Tuesday with a 3-day lookahead never reaches the next Monday.
	at := time.Date(2025, time.August, 5, 10, 0, 0, 0, time.UTC)
	if _, err := m.NextSessionEnd(at); !errors.Is(err, ErrNoUpcomingSession) {
		t.Fatalf("err = %v, want ErrNoUpcomingSession", err)
	}
}

func TestMarketEarlyClose(t *testing.T) {
	t.Parallel()
	halfDay := Date{Year: 2025, Month: time.November, Day: 28}
	m := newTestMarket(t, func(c *MarketConfig) {
		c.EarlyCloses = map[Date]TimeOfDay{halfDay: TOD(13, 0, 0)}
	})

	at := time.Date(2025, time.November, 28, 10, 0, 0, 0, time.UTC)
	end, err := m.NextSessionEnd(at)
	if err != nil {
		t.Fatalf("NextSessionEnd: %v", err)
	}
	want := time.Date(2025, time.November, 28, 13, 0, 0, 0, time.UTC)
	if !end.Equal(want) {
		t.Fatalf("NextSessionEnd = %v, want %v", end, want)
	}

	if m.IsOpen(time.Date(2025, time.November, 28, 14, 0, 0, 0, time.UTC)) {
		t.Fatal("open after an early close")
	}
}

func TestMarketExtendedHours(t *testing.T) {
	t.Parallel()
	m := newTestMarket(t, func(c *MarketConfig) {
		c.Hours.Pre = TOD(4, 0, 0)
		c.Hours.Post = TOD(20, 0, 0)
		c.EarlyTrading = true
		c.LateTrading = true
	})

	start, end, ok := m.Sessions()
	if !ok {
		t.Fatal("Sessions not ok")
	}
	if start != TOD(4, 0, 0) || end != TOD(20, 0, 0) {
		t.Fatalf("Sessions = %v..%v", start, end)
	}

	if !m.IsOpen(time.Date(2025, time.August, 4, 5, 0, 0, 0, time.UTC)) {
		t.Fatal("closed during pre-market")
	}
	if !m.IsOpen(time.Date(2025, time.August, 4, 19, 0, 0, 0, time.UTC)) {
		t.Fatal("closed during post-market")
	}
}

func TestMarketIsOpen(t *testing.T) {
	t.Parallel()
	m := newTestMarket(t, nil)
	tests := []struct {
		at   time.Time
		want bool
	}{
		{time.Date(2025, time.August, 4, 9, 29, 0, 0, time.UTC), false},
		{time.Date(2025, time.August, 4, 9, 30, 0, 0, time.UTC), true},
		{time.Date(2025, time.August, 4, 15, 59, 0, 0, time.UTC), true},
		{time.Date(2025, time.August, 4, 16, 0, 0, 0, time.UTC), false}, // close is exclusive
		{time.Date(2025, time.August, 9, 12, 0, 0, 0, time.UTC), false}, // Saturday
	}
	for _, tt := range tests {
		if got := m.IsOpen(tt.at); got != tt.want {
			t.Fatalf("IsOpen(%v) = %v, want %v", tt.at, got, tt.want)
		}
	}
}

func TestMarketNextOpen(t *testing.T) {
	t.Parallel()
	m := newTestMarket(t, nil)
	// Friday evening: next open is Monday.
	at := time.Date(2025, time.August, 8, 18, 0, 0, 0, time.UTC)
	open, err := m.NextOpen(at)
	if err != nil {
		t.Fatalf("NextOpen: %v", err)
	}
	want := time.Date(2025, time.August, 11, 9, 30, 0, 0, time.UTC)
	if !open.Equal(want) {
		t.Fatalf("NextOpen = %v, want %v", open, want)
	}
}

func TestTimezoneSource(t *testing.T) {
	t.Parallel()
	z := InLocation(time.UTC)
	if _, _, ok := z.Sessions(); ok {
		t.Fatal("timezone source reports sessions")
	}
	at := time.Date(2025, time.August, 4, 10, 0, 0, 0, time.UTC)
	end, err := z.NextSessionEnd(at)
	if err != nil {
		t.Fatalf("NextSessionEnd: %v", err)
	}
	if DateOf(end) != (Date{Year: 2025, Month: time.August, Day: 4}) {
		t.Fatalf("session end %v left the day", end)
	}
	if !end.After(at) {
		t.Fatal("session end not after the sample")
	}
}
