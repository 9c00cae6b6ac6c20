//go:build sqlite
// +build sqlite

package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "tickwatch/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AppendFire(ctx context.Context, e FireRecord) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fires(at, timer, target, seq) VALUES(?,?,?,?)`,
		e.At.Format(time.RFC3339Nano), e.Timer, e.When.Format(time.RFC3339Nano), e.Seq,
	)
	return err
}

func (s *sqliteStore) PutCycle(ctx context.Context, rec CycleRecord) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	key := strings.TrimSpace(rec.Strategy)
	if key == "" {
		return errors.New("cycle record needs a strategy")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cycles(strategy, last_cycle, candle_period_ms, candles, long_candles)
		 VALUES(?,?,?,?,?)
		 ON CONFLICT(strategy) DO UPDATE SET
		   last_cycle=excluded.last_cycle,
		   candle_period_ms=excluded.candle_period_ms,
		   candles=excluded.candles,
		   long_candles=excluded.long_candles`,
		key, rec.LastCycle.UnixMilli(), rec.CandlePeriod.Milliseconds(),
		rec.Candles, rec.LongCandles,
	)
	return err
}

func (s *sqliteStore) GetCycle(ctx context.Context, strategy string) (CycleRecord, bool, error) {
	if s == nil || s.db == nil {
		return CycleRecord{}, false, ErrDisabled
	}
	key := strings.TrimSpace(strategy)
	if key == "" {
		return CycleRecord{}, false, nil
	}
	var (
		ms      int64
		perMS   int64
		candles sql.NullInt64
		longCnd sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT last_cycle, candle_period_ms, candles, long_candles FROM cycles WHERE strategy = ?`,
		key,
	).Scan(&ms, &perMS, &candles, &longCnd)
	if errors.Is(err, sql.ErrNoRows) {
		return CycleRecord{}, false, nil
	}
	if err != nil {
		return CycleRecord{}, false, err
	}
	return CycleRecord{
		Strategy:     key,
		LastCycle:    time.UnixMilli(ms),
		CandlePeriod: time.Duration(perMS) * time.Millisecond,
		Candles:      candles.Int64,
		LongCandles:  longCnd.Int64,
	}, true, nil
}
