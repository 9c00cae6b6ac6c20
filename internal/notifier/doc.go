// Package notifier delivers timer-fire and watchdog-reset messages to
// an external sink (Telegram) without ever blocking the sampling loop.
//
// Pipeline: bounded queue -> worker pool -> rate limit -> retry with
// jittered backoff. Duplicate messages inside the dedup window are
// suppressed in-memory.
package notifier
