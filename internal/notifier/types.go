package notifier

import (
	"context"
	"time"
)

// Config controls the async notification pipeline.
type Config struct {
	Enabled         bool
	Workers         int
	QueueSize       int
	RatePerSec      int
	RetryMax        int
	RetryBase       time.Duration
	RetryMaxDelay   time.Duration
	DedupWindow     time.Duration
	DedupMaxEntries int
}

// Notification is one outbound message.
// Key groups duplicates for dedup; empty disables dedup for the message.
type Notification struct {
	Text     string
	Key      string
	Priority int
}

// Sink is the outbound transport.
type Sink interface {
	Send(ctx context.Context, text string) error
}

type HistoryItem struct {
	At   time.Time
	Text string
}
