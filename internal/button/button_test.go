package button

import (
	"testing"
	"time"
)

// base keeps test timestamps well clear of zero, like a real monotonic clock.
const base = time.Hour

func ms(n int) time.Duration { return base + time.Duration(n)*time.Millisecond }

func testThresholds() Thresholds {
	return Thresholds{
		Debounce: 30 * time.Millisecond,
		Medium:   500 * time.Millisecond,
		Long:     2500 * time.Millisecond,
		VeryLong: 10 * time.Second,
	}
}

func TestPollNothingWithoutEdges(t *testing.T) {
	b := New(testThresholds())
	for i := 0; i < 5; i++ {
		if got := b.Poll(ms(i * 100)); got != Nothing {
			t.Errorf("poll %d: expected Nothing, got %s", i, got)
		}
	}
}

func TestPollHeld1200msIsMedium(t *testing.T) {
	b := New(testThresholds())
	b.OnRawEdge(true, ms(0))
	if got := b.Poll(ms(600)); got != Nothing {
		t.Fatalf("while held: expected Nothing, got %s", got)
	}
	b.OnRawEdge(false, ms(1200))
	if got := b.Poll(ms(1220)); got != Medium {
		t.Fatalf("expected Medium, got %s", got)
	}
	if got := b.Poll(ms(1240)); got != Nothing {
		t.Errorf("second poll: expected Nothing, got %s", got)
	}
}

func TestClassificationBuckets(t *testing.T) {
	tests := []struct {
		name string
		held time.Duration
		want State
	}{
		{"short", 100 * time.Millisecond, Short},
		{"just under medium", 499 * time.Millisecond, Short},
		{"medium boundary", 500 * time.Millisecond, Medium},
		{"medium", 2 * time.Second, Medium},
		{"long boundary", 2500 * time.Millisecond, Long},
		{"long", 5 * time.Second, Long},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(testThresholds())
			b.OnRawEdge(true, base)
			b.OnRawEdge(false, base+tt.held)
			if got := b.Poll(base + tt.held + 50*time.Millisecond); got != tt.want {
				t.Errorf("held %v: expected %s, got %s", tt.held, tt.want, got)
			}
		})
	}
}

func TestOnePerCompletedPress(t *testing.T) {
	b := New(testThresholds())
	presses := []struct {
		down, up int
		want     State
	}{
		{0, 100, Short},
		{1000, 1800, Medium},
		{3000, 6000, Long},
		{7000, 7200, Short},
	}
	for i, p := range presses {
		b.OnRawEdge(true, ms(p.down))
		if got := b.Poll(ms(p.down + 50)); got != Nothing {
			t.Errorf("press %d held: expected Nothing, got %s", i, got)
		}
		b.OnRawEdge(false, ms(p.up))
		if got := b.Poll(ms(p.up + 50)); got != p.want {
			t.Errorf("press %d: expected %s, got %s", i, p.want, got)
		}
		if got := b.Poll(ms(p.up + 100)); got != Nothing {
			t.Errorf("press %d repeat poll: expected Nothing, got %s", i, got)
		}
	}
}

func TestBounceIsFiltered(t *testing.T) {
	b := New(testThresholds())
	// Contact bounce around the press.
	b.OnRawEdge(true, ms(0))
	b.OnRawEdge(false, ms(2))
	b.OnRawEdge(true, ms(3))
	b.OnRawEdge(false, ms(5))
	b.OnRawEdge(true, ms(6))
	if got := b.Poll(ms(100)); got != Nothing {
		t.Fatalf("after bouncy press: expected Nothing, got %s", got)
	}
	if !b.Pressed() {
		t.Fatal("expected button to be pressed")
	}
	// Contact bounce around the release.
	b.OnRawEdge(false, ms(700))
	b.OnRawEdge(true, ms(702))
	b.OnRawEdge(false, ms(704))
	if got := b.Poll(ms(800)); got != Medium {
		t.Fatalf("expected Medium, got %s", got)
	}
	if got := b.Poll(ms(900)); got != Nothing {
		t.Errorf("expected Nothing after release, got %s", got)
	}
}

func TestShortPulseSettlesAsNothing(t *testing.T) {
	b := New(testThresholds())
	b.OnRawEdge(true, ms(0))
	b.OnRawEdge(false, ms(10)) // inside the debounce window, rejected by the ring pass

	if got := b.Poll(ms(20)); got != Nothing {
		t.Fatalf("before settle: expected Nothing, got %s", got)
	}
	if got := b.Poll(ms(60)); got != Nothing {
		t.Fatalf("after settle: expected Nothing, got %s", got)
	}
	if b.Pressed() {
		t.Error("expected released after settle")
	}
}

func TestIsolatedGlitchIgnored(t *testing.T) {
	b := New(testThresholds())
	b.OnRawEdge(true, ms(0))
	b.OnRawEdge(false, ms(2))
	for _, at := range []int{50, 100, 1000} {
		if got := b.Poll(ms(at)); got != Nothing {
			t.Errorf("poll at %dms: expected Nothing, got %s", at, got)
		}
	}

	// A real press afterwards still classifies.
	b.OnRawEdge(true, ms(2000))
	b.OnRawEdge(false, ms(2100))
	if got := b.Poll(ms(2200)); got != Short {
		t.Errorf("real press: expected Short, got %s", got)
	}
}

func TestPressAtDebounceBoundaryIsShort(t *testing.T) {
	b := New(testThresholds())
	b.OnRawEdge(true, ms(0))
	b.OnRawEdge(false, ms(30))
	if got := b.Poll(ms(100)); got != Short {
		t.Errorf("expected Short, got %s", got)
	}
}

func TestMultiplePressesBetweenPollsReportsLatest(t *testing.T) {
	b := New(testThresholds())
	b.OnRawEdge(true, ms(0))
	b.OnRawEdge(false, ms(100))
	b.OnRawEdge(true, ms(200))
	b.OnRawEdge(false, ms(1000))
	if got := b.Poll(ms(1100)); got != Medium {
		t.Errorf("expected latest press (Medium), got %s", got)
	}
}

func TestVeryLongReportedOnceWhileHeld(t *testing.T) {
	b := New(testThresholds())
	b.OnRawEdge(true, ms(0))

	if got := b.Poll(ms(9999)); got != Nothing {
		t.Fatalf("before threshold: expected Nothing, got %s", got)
	}
	if got := b.Poll(ms(10000)); got != VeryLong {
		t.Fatalf("at threshold: expected VeryLong, got %s", got)
	}
	for i := 1; i <= 5; i++ {
		if got := b.Poll(ms(10000 + i*1000)); got != Nothing {
			t.Errorf("held poll %d: expected Nothing, got %s", i, got)
		}
	}
	b.OnRawEdge(false, ms(20000))
	if got := b.Poll(ms(20100)); got != Nothing {
		t.Errorf("release after VeryLong: expected Nothing, got %s", got)
	}

	// The next press is classified normally.
	b.OnRawEdge(true, ms(21000))
	b.OnRawEdge(false, ms(21100))
	if got := b.Poll(ms(21200)); got != Short {
		t.Errorf("next press: expected Short, got %s", got)
	}
}

func TestVeryLongReleasedBeforePoll(t *testing.T) {
	b := New(testThresholds())
	b.OnRawEdge(true, ms(0))
	b.OnRawEdge(false, ms(12000))
	if got := b.Poll(ms(12050)); got != VeryLong {
		t.Errorf("expected VeryLong, got %s", got)
	}
	if got := b.Poll(ms(13000)); got != Nothing {
		t.Errorf("expected Nothing, got %s", got)
	}
}

func TestRingOverflowResyncs(t *testing.T) {
	b := New(testThresholds())
	// Far more edges than the ring holds; the last one is a release.
	level := true
	for i := 0; i < ringSize*3; i++ {
		b.OnRawEdge(level, ms(i*100))
		level = !level
	}
	last := (ringSize*3 - 1) * 100
	b.Poll(ms(last + 100))
	if b.Pressed() {
		t.Error("expected released after resync")
	}
	if got := b.Poll(ms(last + 200)); got != Nothing {
		t.Errorf("expected Nothing, got %s", got)
	}
}

func TestEdgeEncoding(t *testing.T) {
	for _, pressed := range []bool{true, false} {
		at := 123456789 * time.Nanosecond
		gotPressed, gotAt := decodeEdge(encodeEdge(pressed, at))
		if gotPressed != pressed || gotAt != at {
			t.Errorf("roundtrip(%v, %v): got (%v, %v)", pressed, at, gotPressed, gotAt)
		}
	}
}

func TestThresholdsValidate(t *testing.T) {
	if err := DefaultThresholds().Validate(); err != nil {
		t.Errorf("defaults: unexpected error: %v", err)
	}
	bad := DefaultThresholds()
	bad.Long = bad.Medium
	if err := bad.Validate(); err == nil {
		t.Error("expected error for non-increasing thresholds")
	}
}

func TestParse(t *testing.T) {
	id, err := ParseID("Right")
	if err != nil || id != Right {
		t.Errorf("ParseID(Right): got (%v, %v)", id, err)
	}
	if _, err := ParseID("up"); err == nil {
		t.Error("expected error for unknown button")
	}
	s, err := ParseState("very_long")
	if err != nil || s != VeryLong {
		t.Errorf("ParseState(very_long): got (%v, %v)", s, err)
	}
	if _, err := ParseState("nothing"); err == nil {
		t.Error("expected error for nothing state")
	}
	if Middle.String() != "middle" || Medium.String() != "medium" {
		t.Errorf("unexpected names: %s %s", Middle, Medium)
	}
}
