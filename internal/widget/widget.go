// Package widget holds the set of display widgets the input dispatcher and
// the coordinator drive. Widgets draw to a Screen; they never block.
package widget

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/orbs-display/internal/button"
)

// Screen receives rendered frames.
type Screen interface {
	Draw(widget string, lines []string)
}

// Widget is one page of the display.
type Widget interface {
	Name() string
	// Update refreshes internal state; it must return quickly.
	Update(now time.Time)
	// Draw renders to screen. With force false a widget may skip drawing
	// when nothing changed.
	Draw(screen Screen, force bool)
	ButtonPressed(id button.ID, state button.State)
}

// Set is an ordered ring of widgets with one current widget.
type Set struct {
	widgets   []Widget
	current   int
	screen    Screen
	forceDraw bool
	log       zerolog.Logger
}

// NewSet creates an empty set drawing to screen.
func NewSet(screen Screen, log zerolog.Logger) *Set {
	return &Set{screen: screen, forceDraw: true, log: log}
}

// Add appends a widget.
func (s *Set) Add(w Widget) {
	s.widgets = append(s.widgets, w)
}

// Len returns the number of widgets.
func (s *Set) Len() int { return len(s.widgets) }

// Current returns the active widget, or nil for an empty set.
func (s *Set) Current() Widget {
	if len(s.widgets) == 0 {
		return nil
	}
	return s.widgets[s.current]
}

// Next activates the following widget, wrapping around.
func (s *Set) Next() {
	if len(s.widgets) == 0 {
		return
	}
	s.switchTo((s.current + 1) % len(s.widgets))
}

// Prev activates the preceding widget, wrapping around.
func (s *Set) Prev() {
	if len(s.widgets) == 0 {
		return
	}
	s.switchTo((s.current - 1 + len(s.widgets)) % len(s.widgets))
}

// ByName returns the widget called name, or nil.
func (s *Set) ByName(name string) Widget {
	for _, w := range s.widgets {
		if w.Name() == name {
			return w
		}
	}
	return nil
}

// SwitchToByName activates the widget called name and forces a redraw. It
// reports false when no such widget exists.
func (s *Set) SwitchToByName(name string) bool {
	for i, w := range s.widgets {
		if w.Name() == name {
			s.switchTo(i)
			return true
		}
	}
	return false
}

func (s *Set) switchTo(i int) {
	s.current = i
	s.forceDraw = true
	s.log.Debug().Str("widget", s.widgets[i].Name()).Msg("switched widget")
}

// ButtonPressed forwards a press to the active widget.
func (s *Set) ButtonPressed(id button.ID, state button.State) {
	if w := s.Current(); w != nil {
		w.ButtonPressed(id, state)
	}
}

// SetClearScreensOnDrawCurrent forces the next draw to be a full redraw.
func (s *Set) SetClearScreensOnDrawCurrent() {
	s.forceDraw = true
}

// UpdateCurrent updates and draws the active widget.
func (s *Set) UpdateCurrent(now time.Time) {
	w := s.Current()
	if w == nil {
		return
	}
	w.Update(now)
	w.Draw(s.screen, s.forceDraw)
	s.forceDraw = false
}
