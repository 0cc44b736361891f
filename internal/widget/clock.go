package widget

import (
	"fmt"
	"time"

	"github.com/sweeney/orbs-display/internal/button"
)

// ClockName is the name of the clock widget.
const ClockName = "Clock"

// Built-in clock faces. Custom faces follow them.
var builtinFaces = []string{"digital", "analog", "morph"}

// Clock shows the time on a selectable face. Custom faces are image sets
// downloaded into /CustomClock<N>/.
type Clock struct {
	loc          *time.Location
	customClocks int
	face         int
	format24     bool

	secondHandColor string
	overrideColor   string

	now   time.Time
	shown string
	dirty bool
}

// NewClock creates a clock widget with customClocks custom face slots.
func NewClock(loc *time.Location, customClocks int) *Clock {
	if loc == nil {
		loc = time.Local
	}
	return &Clock{loc: loc, customClocks: customClocks, format24: true, dirty: true}
}

func (c *Clock) Name() string { return ClockName }

func (c *Clock) faces() int { return len(builtinFaces) + c.customClocks }

// FaceName returns the name of the selected face.
func (c *Clock) FaceName() string {
	if c.face < len(builtinFaces) {
		return builtinFaces[c.face]
	}
	return fmt.Sprintf("custom%d", c.face-len(builtinFaces))
}

// SetCustomClock selects custom face n with optional colour overrides.
func (c *Clock) SetCustomClock(n int, secondHandColor, overrideColor string) bool {
	if n < 0 || n >= c.customClocks {
		return false
	}
	c.face = len(builtinFaces) + n
	c.secondHandColor = secondHandColor
	c.overrideColor = overrideColor
	c.dirty = true
	return true
}

func (c *Clock) Update(now time.Time) {
	c.now = now.In(c.loc)
	if s := c.timeString(); s != c.shown {
		c.shown = s
		c.dirty = true
	}
}

func (c *Clock) timeString() string {
	if c.format24 {
		return c.now.Format("15:04")
	}
	return c.now.Format("3:04 PM")
}

func (c *Clock) Draw(screen Screen, force bool) {
	if !force && !c.dirty {
		return
	}
	lines := []string{c.shown, c.now.Format("Monday 2 January"), "face: " + c.FaceName()}
	if c.overrideColor != "" {
		lines = append(lines, "color: "+c.overrideColor)
	}
	screen.Draw(c.Name(), lines)
	c.dirty = false
}

// ButtonPressed: middle short cycles faces, middle medium toggles 12/24h.
func (c *Clock) ButtonPressed(id button.ID, state button.State) {
	if id != button.Middle {
		return
	}
	switch state {
	case button.Short:
		c.face = (c.face + 1) % c.faces()
		c.dirty = true
	case button.Medium:
		c.format24 = !c.format24
		c.shown = c.timeString()
		c.dirty = true
	}
}
