// Package watchdog keeps the service supervisor convinced the main loop is
// alive. The loop kicks once per iteration; long-running steps kick too.
package watchdog

import (
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Watchdog is kicked by the main loop.
type Watchdog interface {
	Kick() error
}

// Nop never complains.
type Nop struct{}

func (Nop) Kick() error { return nil }

// Counter records kicks. It is a test double.
type Counter struct {
	Kicks int
	Err   error
}

func (c *Counter) Kick() error {
	c.Kicks++
	return c.Err
}

type notifyFunc func(unsetEnvironment bool, state string) (bool, error)

// Systemd talks sd_notify. Kicks are throttled to half the configured
// watchdog interval so a fast loop does not flood the notify socket.
type Systemd struct {
	interval time.Duration
	last     time.Time
	now      func() time.Time
	notify   notifyFunc
}

// NewSystemd reads WATCHDOG_USEC from the environment. When the watchdog is
// not enabled Kick is a no-op but Ready and Stopping still notify.
func NewSystemd() (*Systemd, error) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return nil, fmt.Errorf("read watchdog interval: %w", err)
	}
	return &Systemd{interval: interval, now: time.Now, notify: daemon.SdNotify}, nil
}

// Interval returns the supervisor's timeout, 0 if disabled.
func (s *Systemd) Interval() time.Duration { return s.interval }

// Kick sends WATCHDOG=1 when at least half the interval has passed.
func (s *Systemd) Kick() error {
	if s.interval <= 0 {
		return nil
	}
	now := s.now()
	if !s.last.IsZero() && now.Sub(s.last) < s.interval/2 {
		return nil
	}
	if _, err := s.notify(false, daemon.SdNotifyWatchdog); err != nil {
		return fmt.Errorf("watchdog notify: %w", err)
	}
	s.last = now
	return nil
}

// Ready tells the supervisor startup finished. It reports whether a
// supervisor was listening.
func (s *Systemd) Ready() (bool, error) {
	return s.notify(false, daemon.SdNotifyReady)
}

// Stopping announces an orderly shutdown.
func (s *Systemd) Stopping() (bool, error) {
	return s.notify(false, daemon.SdNotifyStopping)
}

// Status publishes a free-form status line.
func (s *Systemd) Status(msg string) (bool, error) {
	return s.notify(false, "STATUS="+msg)
}
