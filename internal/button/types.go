// Package button turns raw, possibly noisy pin transitions into classified
// press events.
//
// This package has NO external dependencies and never logs. Time is always
// injected as a monotonic offset (the same clock the kernel uses to stamp
// GPIO edge events).
package button

import (
	"fmt"
	"strings"
	"time"
)

// State is the classification of a completed press.
type State int

const (
	Nothing State = iota
	Short
	Medium
	Long
	VeryLong
)

var stateNames = [...]string{
	Nothing:  "nothing",
	Short:    "short",
	Medium:   "medium",
	Long:     "long",
	VeryLong: "very_long",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// ParseState parses the names used by the web endpoint ("short", "medium",
// "long", "very_long"). Anything else yields Nothing and an error.
func ParseState(s string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "short":
		return Short, nil
	case "medium":
		return Medium, nil
	case "long":
		return Long, nil
	case "very_long", "verylong", "very-long":
		return VeryLong, nil
	}
	return Nothing, fmt.Errorf("unknown button state %q", s)
}

// ID identifies one of the three physical buttons.
type ID int

const (
	Left ID = iota
	Middle
	Right
)

// Count is the number of physical buttons.
const Count = 3

var idNames = [Count]string{"left", "middle", "right"}

func (id ID) String() string {
	if id < 0 || int(id) >= Count {
		return fmt.Sprintf("button(%d)", int(id))
	}
	return idNames[id]
}

// ParseID parses "left", "middle" or "right".
func ParseID(s string) (ID, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range idNames {
		if n == name {
			return ID(i), nil
		}
	}
	return -1, fmt.Errorf("unknown button %q", s)
}

// Thresholds configures debounce and press classification.
//
// A press shorter than Medium is Short, shorter than Long is Medium, shorter
// than VeryLong is Long, anything else is VeryLong.
type Thresholds struct {
	Debounce time.Duration
	Medium   time.Duration
	Long     time.Duration
	VeryLong time.Duration
}

// DefaultThresholds matches the device firmware.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Debounce: 30 * time.Millisecond,
		Medium:   500 * time.Millisecond,
		Long:     2500 * time.Millisecond,
		VeryLong: 10 * time.Second,
	}
}

// Validate checks the thresholds are strictly increasing.
func (t Thresholds) Validate() error {
	if t.Debounce < 0 {
		return fmt.Errorf("debounce must be >= 0, got %v", t.Debounce)
	}
	if !(t.Debounce < t.Medium && t.Medium < t.Long && t.Long < t.VeryLong) {
		return fmt.Errorf("thresholds must increase: debounce=%v medium=%v long=%v very_long=%v",
			t.Debounce, t.Medium, t.Long, t.VeryLong)
	}
	return nil
}

// Classify maps a press duration to its bucket.
func (t Thresholds) Classify(d time.Duration) State {
	switch {
	case d < t.Medium:
		return Short
	case d < t.Long:
		return Medium
	case d < t.VeryLong:
		return Long
	default:
		return VeryLong
	}
}
