// Package gpio delivers button edges from hardware.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"time"

	"github.com/sweeney/orbs-display/internal/button"
)

// EdgeHandler receives raw level changes. It is called from the event
// delivery context, never from the main loop.
type EdgeHandler interface {
	OnRawEdge(pressed bool, at time.Duration)
}

// Source is a set of button lines delivering edges into a Bank.
type Source interface {
	// Levels returns the current logical level of each button (true = pressed).
	Levels() ([button.Count]bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Default pin definitions (BCM numbering).
const (
	DefaultPinLeft   = 21
	DefaultPinMiddle = 22
	DefaultPinRight  = 23
)

// Pins maps button IDs to line offsets. When the display is mounted rotated
// (rotation 1 or 2) the outer buttons are physically swapped.
func Pins(left, middle, right, rotation int) [button.Count]int {
	if rotation == 1 || rotation == 2 {
		left, right = right, left
	}
	var p [button.Count]int
	p[button.Left] = left
	p[button.Middle] = middle
	p[button.Right] = right
	return p
}

// Bank is a fixed table of button contexts indexed by pin. A single event
// handler serves every line and looks the target up here, so there is no
// per-button handler function.
type Bank struct {
	pins     [button.Count]int
	handlers [button.Count]EdgeHandler
}

// NewBank binds each pin to the handler at the same index.
func NewBank(pins [button.Count]int, handlers [button.Count]EdgeHandler) *Bank {
	return &Bank{pins: pins, handlers: handlers}
}

// Pins returns the bound line offsets in button order.
func (b *Bank) Pins() []int {
	return b.pins[:]
}

// Deliver forwards an edge on pin to its button. Unknown pins are ignored.
func (b *Bank) Deliver(pin int, pressed bool, at time.Duration) {
	for i := range b.pins {
		if b.pins[i] == pin {
			if h := b.handlers[i]; h != nil {
				h.OnRawEdge(pressed, at)
			}
			return
		}
	}
}
