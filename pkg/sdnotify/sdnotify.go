// Package sdnotify wraps the systemd readiness/watchdog protocol so the
// daemon can report liveness when run as a Type=notify unit. All calls
// are no-ops outside systemd (NOTIFY_SOCKET unset).
package sdnotify

import (
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Ready tells systemd the daemon finished starting up.
func Ready() {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
}

// Stopping tells systemd a clean shutdown has begun.
func Stopping() {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
}

// Ping sends a watchdog keepalive.
func Ping() {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
}

// WatchdogInterval returns the recommended ping interval (half the unit's
// WatchdogSec) and whether the watchdog is enabled at all.
func WatchdogInterval() (time.Duration, bool) {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d / 2, true
}
