package button

import (
	"sync/atomic"
	"time"
)

// ringSize is the number of raw edges buffered between two polls.
// Must be a power of two.
const ringSize = 16

const levelBit = uint64(1) << 63

// encodeEdge packs a level and a non-negative timestamp into one word so the
// interrupt side publishes both with a single atomic store.
func encodeEdge(pressed bool, at time.Duration) uint64 {
	w := uint64(at) &^ levelBit
	if pressed {
		w |= levelBit
	}
	return w
}

func decodeEdge(w uint64) (bool, time.Duration) {
	return w&levelBit != 0, time.Duration(w &^ levelBit)
}

// Button is a debounced push button.
//
// OnRawEdge is the only method that may be called from the interrupt side;
// it touches the edge ring and the raw level word and nothing else. Poll and
// the remaining fields belong to the main loop.
type Button struct {
	thresholds Thresholds

	// interrupt side
	ring [ringSize]atomic.Uint64
	head atomic.Uint32
	tail atomic.Uint32
	raw  atomic.Uint64

	// poll side
	pressed    bool
	changedAt  time.Duration
	pressStart time.Duration
	reported   bool
}

// New creates a released button with the given thresholds.
func New(t Thresholds) *Button {
	return &Button{thresholds: t}
}

// Thresholds returns the configured thresholds.
func (b *Button) Thresholds() Thresholds {
	return b.thresholds
}

// OnRawEdge records a raw level change. It does not allocate, log or block.
// When more than ringSize edges arrive between polls the newest edges are
// dropped from the ring; the raw level word still carries the latest level so
// Poll resynchronises.
func (b *Button) OnRawEdge(pressed bool, at time.Duration) {
	w := encodeEdge(pressed, at)
	b.raw.Store(w)
	head := b.head.Load()
	if head-b.tail.Load() >= ringSize {
		return
	}
	b.ring[head&(ringSize-1)].Store(w)
	b.head.Store(head + 1)
}

// Poll consumes the edges recorded since the previous poll and returns the
// classification of the most recently completed press, or Nothing.
//
// A press still held at poll time yields Nothing until release, except that
// a press held past the VeryLong threshold is reported once while held; its
// release then yields Nothing.
func (b *Button) Poll(now time.Duration) State {
	result := Nothing

	tail := b.tail.Load()
	head := b.head.Load()
	for tail != head {
		pressed, at := decodeEdge(b.ring[tail&(ringSize-1)].Load())
		tail++
		if s := b.accept(pressed, at); s != Nothing {
			result = s
		}
	}
	b.tail.Store(tail)

	// Edges rejected inside the debounce window (or dropped on overflow) leave
	// the raw level out of step with the stable one. Once it has settled for
	// a full debounce period it is taken as a real transition.
	pressed, at := decodeEdge(b.raw.Load())
	if pressed != b.pressed && now-at >= b.thresholds.Debounce {
		if s := b.transition(pressed, at); s != Nothing {
			result = s
		}
	}

	if result == Nothing && b.pressed && !b.reported && now-b.pressStart >= b.thresholds.VeryLong {
		b.reported = true
		return VeryLong
	}
	return result
}

// Pressed reports the debounced level as of the last poll.
func (b *Button) Pressed() bool {
	return b.pressed
}

func (b *Button) accept(pressed bool, at time.Duration) State {
	if pressed == b.pressed {
		return Nothing
	}
	if at-b.changedAt < b.thresholds.Debounce {
		return Nothing
	}
	return b.transition(pressed, at)
}

func (b *Button) transition(pressed bool, at time.Duration) State {
	b.pressed = pressed
	b.changedAt = at
	if pressed {
		b.pressStart = at
		b.reported = false
		return Nothing
	}
	held := at - b.pressStart
	if b.reported || held < b.thresholds.Debounce {
		// already reported, or a glitch shorter than the debounce window
		return Nothing
	}
	return b.thresholds.Classify(held)
}
