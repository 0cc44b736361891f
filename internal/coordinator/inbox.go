package coordinator

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/sweeney/orbs-display/internal/button"
	"github.com/sweeney/orbs-display/internal/task"
	"github.com/sweeney/orbs-display/internal/widget"
)

// BatchFiles is the number of images in a clock face.
const BatchFiles = 12

var (
	// ErrInboxFull means the loop has not caught up with earlier requests.
	ErrInboxFull = errors.New("loop inbox full")
	// ErrBadRequest covers malformed fetch requests.
	ErrBadRequest = errors.New("bad fetch request")
)

// ClockFace describes a custom clock being installed.
type ClockFace struct {
	Slot            int
	Name            string
	Author          string
	SecondHandColor string
	OverrideColor   string
}

// FetchRequest asks the loop to download a set of images.
type FetchRequest struct {
	URL string
	// Dir is resolved under the state dir; ".." segments are rejected.
	Dir string
	// Clock, if set, selects the downloaded face when the batch succeeds.
	// Dir is then derived from the slot.
	Clock *ClockFace
}

// ClockDir is where custom clock slot n is stored under stateDir.
func ClockDir(stateDir string, n int) string {
	return path.Join("/", stateDir, fmt.Sprintf("CustomClock%d", n))
}

// StateSubdir confines a client supplied directory to stateDir. Absolute
// paths are taken relative to stateDir; ".." segments and the state dir
// itself are rejected.
func StateSubdir(stateDir, dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return "", fmt.Errorf("%w: empty dir", ErrBadRequest)
	}
	for _, seg := range strings.Split(strings.ReplaceAll(dir, "\\", "/"), "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: dir %q leaves the state dir", ErrBadRequest, dir)
		}
	}
	rel := path.Clean("/" + dir)
	if rel == "/" {
		return "", fmt.Errorf("%w: dir %q names the state dir itself", ErrBadRequest, dir)
	}
	return path.Join("/", stateDir, rel), nil
}

type command interface {
	apply(c *Coordinator, now time.Time) error
}

type pressCommand struct {
	id    button.ID
	state button.State
}

// Simulated presses are dispatched like physical ones but never trigger
// the factory reset; that needs the physical button.
func (p pressCommand) apply(c *Coordinator, now time.Time) error {
	return c.handlePress(p.id, p.state, now, true)
}

type fetchCommand struct {
	ctx   context.Context
	req   FetchRequest
	reply chan error
}

func (f fetchCommand) apply(c *Coordinator, now time.Time) error {
	if err := f.ctx.Err(); err != nil {
		// the requester gave up; do not start a download nobody waits for
		c.log.Debug().Err(err).Str("url", f.req.URL).Msg("stale fetch request dropped")
		f.reply <- err
		return nil
	}
	f.reply <- c.submitFetch(f.req)
	return nil
}

func (c *Coordinator) send(cmd command) error {
	select {
	case c.inbox <- cmd:
		return nil
	default:
		return ErrInboxFull
	}
}

// drainInbox applies every queued command without blocking.
func (c *Coordinator) drainInbox(now time.Time) error {
	for {
		select {
		case cmd := <-c.inbox:
			if err := cmd.apply(c, now); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// InjectButton queues a classified press as if it came from the hardware.
// Safe to call from any goroutine.
func (c *Coordinator) InjectButton(id button.ID, state button.State) error {
	if id < 0 || int(id) >= button.Count || state == button.Nothing {
		return fmt.Errorf("%w: press %v/%v", ErrBadRequest, id, state)
	}
	return c.send(pressCommand{id: id, state: state})
}

// RequestFetch asks the loop to submit a batch download and waits for the
// submission verdict (not for the download). It returns task.ErrQueueFull
// when the scheduler is at capacity. Safe to call from any goroutine.
func (c *Coordinator) RequestFetch(ctx context.Context, req FetchRequest) error {
	reply := make(chan error, 1)
	if err := c.send(fetchCommand{ctx: ctx, req: req, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) submitFetch(req FetchRequest) error {
	if c.opts.Factory == nil {
		return fmt.Errorf("%w: downloads disabled", ErrBadRequest)
	}
	if strings.TrimSpace(req.URL) == "" {
		return fmt.Errorf("%w: empty url", ErrBadRequest)
	}
	if strings.TrimSpace(c.opts.StateDir) == "" {
		return fmt.Errorf("%w: no state dir configured", ErrBadRequest)
	}
	var dir string
	if req.Clock != nil {
		if req.Clock.Slot < 0 || req.Clock.Slot >= c.opts.CustomClocks {
			return fmt.Errorf("%w: custom clock %d out of range", ErrBadRequest, req.Clock.Slot)
		}
		dir = ClockDir(c.opts.StateDir, req.Clock.Slot)
	} else {
		var err error
		if dir, err = StateSubdir(c.opts.StateDir, req.Dir); err != nil {
			return err
		}
	}
	face := req.Clock
	t := c.opts.Factory.NewBatchFetch(dir, req.URL, BatchFiles, func(res task.Result) {
		c.batchDone(face, res)
	})
	if t == nil {
		return fmt.Errorf("%w: %q", ErrBadRequest, req.URL)
	}
	if err := c.opts.Scheduler.TrySubmit(t); err != nil {
		return err
	}
	c.log.Info().Str("url", req.URL).Str("dir", dir).Str("task", t.ID().String()).Msg("download queued")
	return nil
}

// batchDone runs on the loop when a download finishes.
func (c *Coordinator) batchDone(face *ClockFace, res task.Result) {
	if res.Err != nil {
		c.log.Warn().Err(res.Err).Msg("download failed")
		c.opts.Widgets.SetClearScreensOnDrawCurrent()
		return
	}
	if res.Warning != nil {
		c.log.Warn().Err(res.Warning).Msg("download cleanup incomplete")
	}
	if face != nil {
		if clock, ok := c.opts.Widgets.ByName(widget.ClockName).(*widget.Clock); ok {
			clock.SetCustomClock(face.Slot, face.SecondHandColor, face.OverrideColor)
		}
		c.log.Info().Int("slot", face.Slot).Str("name", face.Name).Str("author", face.Author).Msg("custom clock installed")
	}
	c.opts.Widgets.SwitchToByName(widget.ClockName)
	c.cycle.Reset(c.opts.Now())
}
