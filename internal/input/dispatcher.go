// Package input routes classified button presses to widget navigation or to
// the active widget.
package input

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/orbs-display/internal/button"
)

// ResetButton is the button whose VeryLong press erases settings and restarts.
const ResetButton = button.Left

// Widgets is the part of the widget set the dispatcher drives.
type Widgets interface {
	Next()
	Prev()
	ButtonPressed(id button.ID, state button.State)
}

// Action describes what an accepted dispatch did.
type Action string

const (
	ActionNone    Action = ""
	ActionPrev    Action = "prev"
	ActionNext    Action = "next"
	ActionForward Action = "forward"
)

// Dispatcher maps (button, state) pairs onto widget actions.
type Dispatcher struct {
	widgets Widgets
	cycle   *CycleTimer
	log     zerolog.Logger
}

// NewDispatcher creates a dispatcher driving widgets and resetting cycle.
func NewDispatcher(widgets Widgets, cycle *CycleTimer, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{widgets: widgets, cycle: cycle, log: log}
}

// IsFactoryReset reports whether the pair triggers the factory reset path.
// Callers check this before Dispatch on every poll.
func IsFactoryReset(id button.ID, state button.State) bool {
	return id == ResetButton && state == button.VeryLong
}

// Dispatch handles one classified press. Nothing is a no-op. A short press
// on an outer button navigates; everything else goes to the active widget.
// Every accepted dispatch resets the cycle timer.
func (d *Dispatcher) Dispatch(id button.ID, state button.State, now time.Time) Action {
	if state == button.Nothing {
		return ActionNone
	}
	if id < 0 || int(id) >= button.Count {
		return ActionNone
	}

	d.cycle.Reset(now)

	switch {
	case id == button.Left && state == button.Short:
		d.log.Info().Msg("left short press, previous widget")
		d.widgets.Prev()
		return ActionPrev
	case id == button.Right && state == button.Short:
		d.log.Info().Msg("right short press, next widget")
		d.widgets.Next()
		return ActionNext
	}

	d.log.Info().Stringer("button", id).Stringer("state", state).Msg("button pressed")
	d.widgets.ButtonPressed(id, state)
	return ActionForward
}
