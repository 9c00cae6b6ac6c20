package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "tickwatch/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.fires.jsonl          (append-only JSON Lines)
//   - <prefix>.cycles.snapshot.json (periodic snapshot)
//   - <prefix>.cycles.journal.jsonl (append-only journal)
//
// The journal is periodically compacted into the snapshot.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	fireFile *os.File

	cycleSnapshotPath string
	cycleJournalFile  *os.File
	cycles            map[string]cycleRecord

	cycleWrites int
}

// cycleRecord is the on-disk form of CycleRecord.
type cycleRecord struct {
	Strategy    string `json:"strategy"`
	LastCycle   int64  `json:"last_cycle"` // unix milli
	CandlePerMS int64  `json:"candle_period_ms"`
	Candles     int64  `json:"candles,omitempty"`
	LongCandles int64  `json:"long_candles,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	firePath := prefix + ".fires.jsonl"
	snapPath := prefix + ".cycles.snapshot.json"
	journalPath := prefix + ".cycles.journal.jsonl"

	ff, err := os.OpenFile(firePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	// Load cycles from snapshot + journal.
	cycles := map[string]cycleRecord{}
	_ = loadCycleSnapshot(snapPath, cycles)
	_ = replayCycleJournal(journalPath, cycles)

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		_ = ff.Close()
		return nil, err
	}

	return &fileStore{
		log:               log,
		fireFile:          ff,
		cycleSnapshotPath: snapPath,
		cycleJournalFile:  jf,
		cycles:            cycles,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err1, err2 error
	if s.fireFile != nil {
		err1 = s.fireFile.Close()
		s.fireFile = nil
	}
	if s.cycleJournalFile != nil {
		err2 = s.cycleJournalFile.Close()
		s.cycleJournalFile = nil
	}
	if err1 != nil {
		return err1
	}
	return err2
}

func (s *fileStore) AppendFire(ctx context.Context, e FireRecord) error {
	_ = ctx
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fireFile == nil {
		return errors.New("fire log closed")
	}
	return json.NewEncoder(s.fireFile).Encode(struct {
		At    string `json:"at"`
		Timer string `json:"timer"`
		When  string `json:"when"`
		Seq   int    `json:"seq"`
	}{
		At:    e.At.Format(time.RFC3339Nano),
		Timer: e.Timer,
		When:  e.When.Format(time.RFC3339Nano),
		Seq:   e.Seq,
	})
}

func (s *fileStore) PutCycle(ctx context.Context, rec CycleRecord) error {
	_ = ctx
	key := strings.TrimSpace(rec.Strategy)
	if key == "" {
		return errors.New("cycle record needs a strategy")
	}
	r := cycleRecord{
		Strategy:    key,
		LastCycle:   rec.LastCycle.UnixMilli(),
		CandlePerMS: rec.CandlePeriod.Milliseconds(),
		Candles:     rec.Candles,
		LongCandles: rec.LongCandles,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cycleJournalFile == nil {
		return errors.New("cycle journal closed")
	}
	s.cycles[key] = r

	if err := json.NewEncoder(s.cycleJournalFile).Encode(r); err != nil {
		return err
	}
	s.cycleWrites++
	if s.cycleWrites%1000 == 0 {
		// Best-effort compact.
		if err := s.compactLocked(); err != nil {
			s.log.Debug("cycle compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) GetCycle(ctx context.Context, strategy string) (CycleRecord, bool, error) {
	_ = ctx
	key := strings.TrimSpace(strategy)
	if key == "" {
		return CycleRecord{}, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.cycles[key]
	if !ok {
		return CycleRecord{}, false, nil
	}
	return CycleRecord{
		Strategy:     r.Strategy,
		LastCycle:    time.UnixMilli(r.LastCycle),
		CandlePeriod: time.Duration(r.CandlePerMS) * time.Millisecond,
		Candles:      r.Candles,
		LongCandles:  r.LongCandles,
	}, true, nil
}

func (s *fileStore) compactLocked() error {
	tmp := s.cycleSnapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(s.cycles); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.cycleSnapshotPath); err != nil {
		return err
	}
	// Truncate journal.
	if err := s.cycleJournalFile.Truncate(0); err != nil {
		return err
	}
	_, err = s.cycleJournalFile.Seek(0, 2)
	return err
}

func loadCycleSnapshot(path string, out map[string]cycleRecord) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var m map[string]cycleRecord
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return err
	}
	for k, v := range m {
		out[k] = v
	}
	return nil
}

func replayCycleJournal(path string, out map[string]cycleRecord) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r cycleRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		if r.Strategy == "" {
			continue
		}
		out[r.Strategy] = r
	}
	return sc.Err()
}
