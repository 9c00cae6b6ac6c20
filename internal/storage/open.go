package storage

import (
	"context"
	"errors"
	"strings"

	logx "tickwatch/pkg/logx"
)

// Store is the minimal persistence API used by the runner and watchdog.
type Store interface {
	PutCycle(ctx context.Context, rec CycleRecord) error
	GetCycle(ctx context.Context, strategy string) (rec CycleRecord, ok bool, err error)
	AppendFire(ctx context.Context, e FireRecord) error
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
