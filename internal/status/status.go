// Package status holds a thread-safe view of the display loop for the HTTP
// server and MQTT lifecycle events. The loop writes; handlers read.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/orbs-display/internal/button"
)

// Config is the part of the configuration shown in status output.
type Config struct {
	LoopMs       int64
	DebounceMs   int64
	CycleDelayMs int64
	Broker       string
	HTTPAddr     string
	CustomClocks int
}

// Queue mirrors the task scheduler's counters.
type Queue struct {
	Len       int
	Running   int
	Capacity  int
	Submitted int
	Rejected  int
	Completed int
	Failed    int
	Bytes     int64
}

// Press is the last dispatched press.
type Press struct {
	Button button.ID
	State  button.State
	At     time.Time
}

// Snapshot is a point-in-time copy of the loop state.
type Snapshot struct {
	Widget        string
	Frame         []string
	Frames        int
	Queue         Queue
	Presses       [button.Count]int
	LastPress     *Press
	Iterations    uint64
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Brightness    int
	Config        Config
}

// Uptime returns the time since the loop started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds the snapshot behind an RWMutex. It also serves as the
// display's screen, keeping the last frame drawn.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{StartTime: startTime, Config: cfg},
		now:  time.Now,
	}
}

// SetClock replaces the clock used to stamp snapshots.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	t.now = now
	t.mu.Unlock()
}

// Draw records a rendered frame.
func (t *Tracker) Draw(widget string, lines []string) {
	frame := append([]string(nil), lines...)
	t.mu.Lock()
	t.snap.Widget = widget
	t.snap.Frame = frame
	t.snap.Frames++
	t.mu.Unlock()
}

// SetBrightness records the backlight level and reports whether it
// changed.
func (t *Tracker) SetBrightness(level int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.snap.Brightness == level {
		return false
	}
	t.snap.Brightness = level
	return true
}

// RecordPress counts a dispatched press.
func (t *Tracker) RecordPress(id button.ID, state button.State, at time.Time) {
	if id < 0 || int(id) >= button.Count {
		return
	}
	t.mu.Lock()
	t.snap.Presses[id]++
	t.snap.LastPress = &Press{Button: id, State: state, At: at}
	t.mu.Unlock()
}

// UpdateLoop records per-iteration counters.
func (t *Tracker) UpdateLoop(iterations uint64, q Queue) {
	t.mu.Lock()
	t.snap.Iterations = iterations
	t.snap.Queue = q
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a copy; Now is stamped at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	now := t.now
	t.mu.RUnlock()
	s.Frame = append([]string(nil), s.Frame...)
	if s.LastPress != nil {
		p := *s.LastPress
		s.LastPress = &p
	}
	s.Now = now()
	return s
}
