package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "tickwatch/pkg/logx"
)

func openTestStore(t *testing.T, dir string) Store {
	t.Helper()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "tickwatch")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return st
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none"} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%q): %v", driver, err)
		}
		if st != nil {
			t.Fatalf("Open(%q) returned a store", driver)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "postgres", Path: "x"}, logx.Nop()); err == nil {
		t.Fatal("expected error")
	}
}

func TestFileStoreCycleRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	st := openTestStore(t, dir)
	defer st.Close()

	ctx := context.Background()
	rec := CycleRecord{
		Strategy:     "intraday",
		LastCycle:    time.Date(2025, time.August, 4, 10, 0, 0, 0, time.UTC),
		CandlePeriod: time.Minute,
		Candles:      42,
		LongCandles:  3,
	}
	if err := st.PutCycle(ctx, rec); err != nil {
		t.Fatalf("PutCycle: %v", err)
	}

	got, ok, err := st.GetCycle(ctx, "intraday")
	if err != nil || !ok {
		t.Fatalf("GetCycle: %v, ok=%v", err, ok)
	}
	if !got.LastCycle.Equal(rec.LastCycle) || got.CandlePeriod != rec.CandlePeriod {
		t.Fatalf("round trip = %+v", got)
	}
	if got.Candles != 42 || got.LongCandles != 3 {
		t.Fatalf("counters = %d/%d", got.Candles, got.LongCandles)
	}

	if _, ok, err := st.GetCycle(ctx, "unknown"); err != nil || ok {
		t.Fatalf("GetCycle(unknown) = ok=%v, err=%v", ok, err)
	}
}

func TestFileStoreCycleSurvivesReopen(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ctx := context.Background()

	st := openTestStore(t, dir)
	rec := CycleRecord{
		Strategy:     "swing",
		LastCycle:    time.Date(2025, time.August, 4, 12, 0, 0, 0, time.UTC),
		CandlePeriod: 5 * time.Minute,
	}
	if err := st.PutCycle(ctx, rec); err != nil {
		t.Fatalf("PutCycle: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// The journal replays on open.
	st = openTestStore(t, dir)
	defer st.Close()
	got, ok, err := st.GetCycle(ctx, "swing")
	if err != nil || !ok {
		t.Fatalf("GetCycle after reopen: %v, ok=%v", err, ok)
	}
	if !got.LastCycle.Equal(rec.LastCycle) {
		t.Fatalf("LastCycle = %v, want %v", got.LastCycle, rec.LastCycle)
	}
}

func TestFileStoreAppendFire(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	st := openTestStore(t, dir)
	defer st.Close()

	ctx := context.Background()
	at := time.Date(2025, time.August, 4, 9, 30, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := st.AppendFire(ctx, FireRecord{
			At:    at.Add(time.Duration(i) * time.Hour),
			Timer: "open-bell",
			When:  at,
			Seq:   i,
		})
		if err != nil {
			t.Fatalf("AppendFire: %v", err)
		}
	}

	f, err := os.Open(filepath.Join(dir, "tickwatch.fires.jsonl"))
	if err != nil {
		t.Fatalf("open fires journal: %v", err)
	}
	defer f.Close()

	var lines int
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e struct {
			Timer string `json:"timer"`
			Seq   int    `json:"seq"`
		}
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("line %d: %v", lines, err)
		}
		if e.Timer != "open-bell" || e.Seq != lines {
			t.Fatalf("line %d = %+v", lines, e)
		}
		lines++
	}
	if lines != 3 {
		t.Fatalf("lines = %d, want 3", lines)
	}
}

func TestFileStoreRejectsEmptyStrategy(t *testing.T) {
	t.Parallel()
	st := openTestStore(t, t.TempDir())
	defer st.Close()
	if err := st.PutCycle(context.Background(), CycleRecord{}); err == nil {
		t.Fatal("expected error for empty strategy")
	}
}
