package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl + snapshot)
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// CycleRecord is the last-cycle bookkeeping of one strategy's
// processing loop. The watchdog compares LastCycle against the wall
// clock to detect frozen loops.
type CycleRecord struct {
	Strategy     string
	LastCycle    time.Time
	CandlePeriod time.Duration
	Candles      int64
	LongCandles  int64
}

// FireRecord is one timer fire, kept append-only for audit.
// Keep it compact and schema-stable.
type FireRecord struct {
	At    time.Time // sample that triggered the fire
	Timer string
	When  time.Time // resolved target instant
	Seq   int       // monotonic fire ordinal within the process run
}
