package gpio

import (
	"errors"
	"testing"
	"time"

	"github.com/sweeney/orbs-display/internal/button"
)

type recorder struct {
	edges []bool
	times []time.Duration
}

func (r *recorder) OnRawEdge(pressed bool, at time.Duration) {
	r.edges = append(r.edges, pressed)
	r.times = append(r.times, at)
}

func TestPinsRotation(t *testing.T) {
	tests := []struct {
		rotation  int
		wantLeft  int
		wantRight int
	}{
		{0, 21, 23},
		{1, 23, 21},
		{2, 23, 21},
		{3, 21, 23},
	}
	for _, tt := range tests {
		p := Pins(21, 22, 23, tt.rotation)
		if p[button.Left] != tt.wantLeft || p[button.Right] != tt.wantRight {
			t.Errorf("rotation %d: expected left=%d right=%d, got left=%d right=%d",
				tt.rotation, tt.wantLeft, tt.wantRight, p[button.Left], p[button.Right])
		}
		if p[button.Middle] != 22 {
			t.Errorf("rotation %d: middle moved to %d", tt.rotation, p[button.Middle])
		}
	}
}

func TestBankDeliverByPin(t *testing.T) {
	var left, middle, right recorder
	bank := NewBank(Pins(21, 22, 23, 0), [button.Count]EdgeHandler{&left, &middle, &right})

	bank.Deliver(22, true, time.Second)
	bank.Deliver(23, false, 2*time.Second)
	bank.Deliver(99, true, 3*time.Second) // unknown pin

	if len(left.edges) != 0 {
		t.Errorf("left: expected no edges, got %d", len(left.edges))
	}
	if len(middle.edges) != 1 || !middle.edges[0] || middle.times[0] != time.Second {
		t.Errorf("middle: unexpected edges %v at %v", middle.edges, middle.times)
	}
	if len(right.edges) != 1 || right.edges[0] {
		t.Errorf("right: unexpected edges %v", right.edges)
	}
}

func TestFakeSourceDrivesButtons(t *testing.T) {
	th := button.DefaultThresholds()
	var handlers [button.Count]EdgeHandler
	buttons := [button.Count]*button.Button{}
	for i := range buttons {
		buttons[i] = button.New(th)
		handlers[i] = buttons[i]
	}
	f := NewFakeSource(NewBank(Pins(21, 22, 23, 0), handlers))

	f.Tap(button.Right, time.Hour, 100*time.Millisecond)
	if got := buttons[button.Right].Poll(time.Hour + time.Second); got != button.Short {
		t.Errorf("right: expected short, got %s", got)
	}
	if got := buttons[button.Left].Poll(time.Hour + time.Second); got != button.Nothing {
		t.Errorf("left: expected nothing, got %s", got)
	}

	f.Press(button.Middle, 2*time.Hour)
	levels, err := f.Levels()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !levels[button.Middle] || levels[button.Right] {
		t.Errorf("unexpected levels %v", levels)
	}
}

func TestFakeSourceErrorAndClose(t *testing.T) {
	f := NewFakeSource(NewBank(Pins(1, 2, 3, 0), [button.Count]EdgeHandler{}))
	f.ReadError = errors.New("simulated error")
	if _, err := f.Levels(); err == nil || err.Error() != "simulated error" {
		t.Errorf("expected simulated error, got %v", err)
	}
	// Deliver to a nil handler must not panic.
	f.Press(button.Left, time.Second)

	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.Closed {
		t.Error("should be closed after Close()")
	}
}
