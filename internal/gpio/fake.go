package gpio

import (
	"time"

	"github.com/sweeney/orbs-display/internal/button"
)

// FakeSource is a test double that injects scripted edges into a Bank.
type FakeSource struct {
	bank   *Bank
	levels [button.Count]bool

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Levels()
	ReadError error
}

// NewFakeSource creates a FakeSource delivering into bank.
func NewFakeSource(bank *Bank) *FakeSource {
	return &FakeSource{bank: bank}
}

// Press delivers a pressed edge for id at the given monotonic time.
func (f *FakeSource) Press(id button.ID, at time.Duration) {
	f.edge(id, true, at)
}

// Release delivers a released edge for id at the given monotonic time.
func (f *FakeSource) Release(id button.ID, at time.Duration) {
	f.edge(id, false, at)
}

// Tap delivers a press at down and a release at down+held.
func (f *FakeSource) Tap(id button.ID, down, held time.Duration) {
	f.Press(id, down)
	f.Release(id, down+held)
}

func (f *FakeSource) edge(id button.ID, pressed bool, at time.Duration) {
	f.levels[id] = pressed
	f.bank.Deliver(f.bank.pins[id], pressed, at)
}

// Levels returns the last scripted level of each button.
func (f *FakeSource) Levels() ([button.Count]bool, error) {
	if f.ReadError != nil {
		return [button.Count]bool{}, f.ReadError
	}
	return f.levels, nil
}

// Close marks the source as closed.
func (f *FakeSource) Close() error {
	f.Closed = true
	return nil
}
