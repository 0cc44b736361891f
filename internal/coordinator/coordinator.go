// Package coordinator runs the display's main loop: button polling and
// dispatch, task scheduling, periodic jobs, widget cycling and the watchdog,
// in that fixed order on every iteration.
package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/sweeney/orbs-display/internal/button"
	"github.com/sweeney/orbs-display/internal/input"
	"github.com/sweeney/orbs-display/internal/mqtt"
	"github.com/sweeney/orbs-display/internal/status"
	"github.com/sweeney/orbs-display/internal/task"
	"github.com/sweeney/orbs-display/internal/watchdog"
	"github.com/sweeney/orbs-display/internal/widget"
)

// ErrRestart is returned from Step and Run when the process must restart:
// after a factory reset or a configuration change.
var ErrRestart = errors.New("restart required")

// Poller is a debounced button; *button.Button satisfies it.
type Poller interface {
	Poll(now time.Duration) button.State
}

// Options wires a Coordinator. Only Widgets, Scheduler and Buttons are
// required; everything else has a harmless default.
type Options struct {
	Buttons   [button.Count]Poller
	Widgets   *widget.Set
	Scheduler *task.Scheduler
	Factory   *task.Factory
	Watchdog  watchdog.Watchdog
	Publisher mqtt.Publisher
	Tracker   *status.Tracker

	// ConfigChanged reports an edited configuration file.
	ConfigChanged func() bool

	// FS and StateDir are erased by the factory reset.
	FS       afero.Fs
	StateDir string

	CycleDelay   time.Duration
	CustomClocks int
	Jobs         []*Job

	// Now is wall time for widgets and timers; Uptime is the monotonic
	// clock the button edges are stamped with.
	Now    func() time.Time
	Uptime func() time.Duration

	Log zerolog.Logger
}

// Coordinator owns every main-loop object. Apart from the inbox methods it
// must only be used from the loop goroutine.
type Coordinator struct {
	opts       Options
	cycle      *input.CycleTimer
	dispatcher *input.Dispatcher
	inbox      chan command
	iterations uint64
	bytes      int64
	log        zerolog.Logger
}

// InboxSize bounds out-of-loop requests waiting for the next iteration.
const InboxSize = 16

// New builds a coordinator. The cycle timer starts at Now().
func New(o Options) *Coordinator {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Uptime == nil {
		start := time.Now()
		o.Uptime = func() time.Duration { return time.Since(start) }
	}
	if o.Watchdog == nil {
		o.Watchdog = watchdog.Nop{}
	}
	if o.FS == nil {
		o.FS = afero.NewOsFs()
	}
	c := &Coordinator{
		opts:  o,
		cycle: input.NewCycleTimer(o.Now()),
		inbox: make(chan command, InboxSize),
		log:   o.Log.With().Str("component", "loop").Logger(),
	}
	c.dispatcher = input.NewDispatcher(o.Widgets, c.cycle, o.Log)
	if o.Factory != nil && o.Factory.Kick == nil {
		// batch downloads kick between files
		o.Factory.Kick = c.kick
	}
	return c
}

func (c *Coordinator) kick() {
	if err := c.opts.Watchdog.Kick(); err != nil {
		c.log.Error().Err(err).Msg("watchdog kick failed")
	}
}

// Cycle exposes the auto-advance timer.
func (c *Coordinator) Cycle() *input.CycleTimer { return c.cycle }

// CustomClocks is the number of custom clock slots.
func (c *Coordinator) CustomClocks() int { return c.opts.CustomClocks }

// Run steps the loop on every tick until ctx is cancelled or a step asks
// for a restart.
func (c *Coordinator) Run(ctx context.Context, tick <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			if err := c.Step(c.opts.Now()); err != nil {
				return err
			}
		}
	}
}

// Step runs one loop iteration at now.
func (c *Coordinator) Step(now time.Time) error {
	c.iterations++

	// 1. input
	if err := c.drainInbox(now); err != nil {
		return err
	}
	up := c.opts.Uptime()
	for i, b := range c.opts.Buttons {
		if b == nil {
			continue
		}
		if err := c.handlePress(button.ID(i), b.Poll(up), now, false); err != nil {
			return err
		}
	}

	// 2. background work
	c.opts.Scheduler.Tick()

	// 3. periodic work and rendering
	for _, j := range c.opts.Jobs {
		j.maybeRun(now)
	}
	if c.opts.ConfigChanged != nil && c.opts.ConfigChanged() {
		c.log.Warn().Msg("configuration changed, restarting")
		return ErrRestart
	}
	if c.cycle.Due(now, c.opts.CycleDelay) {
		c.opts.Widgets.Next()
		c.cycle.Reset(now)
	}
	c.opts.Widgets.UpdateCurrent(now)
	c.updateTracker()

	// 4. watchdog
	c.kick()
	return nil
}

func (c *Coordinator) handlePress(id button.ID, state button.State, now time.Time, simulated bool) error {
	if state == button.Nothing {
		return nil
	}
	if !simulated && input.IsFactoryReset(id, state) {
		c.publishButton(id, state, "reset", now, simulated)
		return c.factoryReset()
	}
	action := c.dispatcher.Dispatch(id, state, now)
	if action == input.ActionNone {
		return nil
	}
	if c.opts.Tracker != nil {
		c.opts.Tracker.RecordPress(id, state, now)
	}
	c.publishButton(id, state, string(action), now, simulated)
	return nil
}

func (c *Coordinator) publishButton(id button.ID, state button.State, action string, now time.Time, simulated bool) {
	if c.opts.Publisher == nil {
		return
	}
	ev := mqtt.ButtonEvent{
		Timestamp: now,
		Button:    id,
		State:     state,
		Action:    action,
		Simulated: simulated,
	}
	if w := c.opts.Widgets.Current(); w != nil {
		ev.Widget = w.Name()
	}
	if err := c.opts.Publisher.PublishButton(ev); err != nil {
		c.log.Warn().Err(err).Msg("publish button event failed")
	}
}

// factoryReset erases persisted state and asks for a restart. Erase errors
// are logged; the restart happens regardless.
func (c *Coordinator) factoryReset() error {
	c.log.Warn().Str("dir", c.opts.StateDir).Msg("factory reset requested")
	if c.opts.StateDir != "" {
		if err := c.opts.FS.RemoveAll(c.opts.StateDir); err != nil {
			c.log.Error().Err(err).Msg("erase state failed")
		} else if err := c.opts.FS.MkdirAll(c.opts.StateDir, 0o755); err != nil {
			c.log.Error().Err(err).Msg("recreate state dir failed")
		}
	}
	return ErrRestart
}

func (c *Coordinator) updateTracker() {
	if c.opts.Tracker == nil {
		return
	}
	s := c.opts.Scheduler
	st := s.Stats()
	c.opts.Tracker.UpdateLoop(c.iterations, status.Queue{
		Len:       s.Len(),
		Running:   s.Running(),
		Capacity:  s.Capacity(),
		Submitted: st.Submitted,
		Rejected:  st.Rejected,
		Completed: st.Completed,
		Failed:    st.Failed,
		Bytes:     c.bytes,
	})
	if cs, ok := c.opts.Publisher.(mqtt.ConnectionStatus); ok {
		c.opts.Tracker.SetMQTTConnected(cs.IsConnected())
	}
}

// TaskFinished publishes a completion event and accounts downloaded
// bytes. Install it as the scheduler's OnFinish observer.
func (c *Coordinator) TaskFinished(t *task.Task) {
	res := t.Result()
	c.bytes += res.Bytes
	ev := c.log.Info()
	if res.Err != nil {
		ev = c.log.Warn().Err(res.Err)
	}
	ev.Str("task", t.ID().String()).Str("kind", t.Kind()).
		Str("size", humanize.Bytes(uint64(max(res.Bytes, 0)))).Msg("task finished")
	if c.opts.Publisher == nil {
		return
	}
	err := c.opts.Publisher.PublishTask(mqtt.TaskEvent{
		Timestamp: c.opts.Now(),
		ID:        t.ID().String(),
		Kind:      t.Kind(),
		Err:       res.Err,
		Bytes:     res.Bytes,
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("publish task event failed")
	}
}
