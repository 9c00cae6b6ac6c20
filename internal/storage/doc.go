// Package storage persists tickwatch state across runs.
//
// It currently supports:
//   - Cycle bookkeeping (last processed cycle per strategy, read by
//     the watchdog to detect frozen loops)
//   - Fire audit appends (every timer fire, for inspection)
package storage
