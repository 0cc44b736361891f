package internal

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/sweeney/orbs-display/internal/button"
	"github.com/sweeney/orbs-display/internal/coordinator"
	"github.com/sweeney/orbs-display/internal/gpio"
	"github.com/sweeney/orbs-display/internal/mqtt"
	"github.com/sweeney/orbs-display/internal/status"
	"github.com/sweeney/orbs-display/internal/task"
	"github.com/sweeney/orbs-display/internal/watchdog"
	"github.com/sweeney/orbs-display/internal/weather"
	"github.com/sweeney/orbs-display/internal/widget"
)

const forecast = `{
  "currently": {"summary": "Drizzle", "icon": "rain", "temperature": 9.6},
  "daily": {"data": [
    {"icon": "rain", "temperatureHigh": 11.2, "temperatureLow": 6.1},
    {"icon": "sleet", "temperatureHigh": 4.0, "temperatureLow": -1.5},
    {"icon": "wind", "temperatureHigh": 8.0, "temperatureLow": 3.0},
    {"icon": "fog", "temperatureHigh": 7.0, "temperatureLow": 1.0}
  ]}
}`

var start = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// rig wires real buttons, the edge bank, the scheduler and the widgets the
// way the daemon does, with fakes only at the hardware and network edges.
type rig struct {
	src     *gpio.FakeSource
	coord   *coordinator.Coordinator
	set     *widget.Set
	wx      *widget.Weather
	tr      *task.FakeTransport
	fs      afero.Fs
	pub     *mqtt.FakePublisher
	wd      *watchdog.Counter
	tracker *status.Tracker
	now     time.Time
}

func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{
		tr:  task.NewFakeTransport(),
		fs:  afero.NewMemMapFs(),
		pub: mqtt.NewFakePublisher(),
		wd:  &watchdog.Counter{},
		now: start,
	}
	clockFn := func() time.Time { return r.now }

	var (
		pollers  [button.Count]coordinator.Poller
		handlers [button.Count]gpio.EdgeHandler
	)
	for i := range pollers {
		b := button.New(button.DefaultThresholds())
		pollers[i] = b
		handlers[i] = b
	}
	r.src = gpio.NewFakeSource(gpio.NewBank(gpio.Pins(17, 27, 22, 0), handlers))

	r.tracker = status.NewTracker(start, status.Config{})
	r.tracker.SetClock(clockFn)

	factory := &task.Factory{Transport: r.tr, FS: r.fs, ChunkSize: 128}
	var coord *coordinator.Coordinator
	sched := task.NewScheduler(task.Config{
		Capacity: 4,
		OnFinish: func(tk *task.Task) { coord.TaskFinished(tk) },
	}, clockFn)

	settings := weather.Settings{APIURL: "https://wx.example/forecast", APIKey: "k", Name: "London"}
	r.tr.Set(settings.URL(), 200, forecast)

	var feed *weather.Feed
	r.wx = widget.NewWeather(func() bool { return feed.Refresh() })
	feed = weather.NewFeed(settings, factory, sched, r.wx.SetModel, zerolog.Nop())

	r.set = widget.NewSet(r.tracker, zerolog.Nop())
	r.set.Add(widget.NewClock(time.UTC, 3))
	r.set.Add(r.wx)

	coord = coordinator.New(coordinator.Options{
		Buttons:      pollers,
		Widgets:      r.set,
		Scheduler:    sched,
		Factory:      factory,
		Watchdog:     r.wd,
		Publisher:    r.pub,
		Tracker:      r.tracker,
		FS:           r.fs,
		StateDir:     "/state",
		CycleDelay:   time.Minute,
		CustomClocks: 3,
		Now:          clockFn,
		Uptime:       func() time.Duration { return r.now.Sub(start) },
		Log:          zerolog.Nop(),
	})
	r.coord = coord
	return r
}

// runUntil steps the loop every 20ms until elapsed since start reaches d.
func (r *rig) runUntil(t *testing.T, d time.Duration) error {
	t.Helper()
	for r.now.Sub(start) < d {
		r.now = r.now.Add(20 * time.Millisecond)
		if err := r.coord.Step(r.now); err != nil {
			return err
		}
	}
	return nil
}

func (r *rig) mustRunUntil(t *testing.T, d time.Duration) {
	t.Helper()
	if err := r.runUntil(t, d); err != nil {
		t.Fatalf("step: %v", err)
	}
}

func TestIntegrationNavigateAndRefreshWeather(t *testing.T) {
	r := newRig(t)
	r.mustRunUntil(t, time.Second)
	if got := r.set.Current().Name(); got != widget.ClockName {
		t.Fatalf("initial widget: got %q", got)
	}

	// Right short press: next widget.
	r.src.Tap(button.Right, time.Second, 120*time.Millisecond)
	r.mustRunUntil(t, 1500*time.Millisecond)
	if got := r.set.Current().Name(); got != widget.WeatherName {
		t.Fatalf("after right tap: got %q, want %q", got, widget.WeatherName)
	}
	if snap := r.tracker.Snapshot(); snap.Frame[0] != "no weather data" {
		t.Errorf("frame before refresh: %q", snap.Frame)
	}

	// Middle short press on the weather widget: refresh through the scheduler.
	r.mustRunUntil(t, 2*time.Second)
	r.src.Tap(button.Middle, 2*time.Second, 80*time.Millisecond)
	r.mustRunUntil(t, 3*time.Second)

	if len(r.tr.Requested) != 1 {
		t.Fatalf("requests: got %d, want 1", len(r.tr.Requested))
	}
	m, ok := r.wx.Model()
	if !ok {
		t.Fatal("weather model not delivered")
	}
	if m.City != "London" {
		t.Errorf("city: got %q", m.City)
	}
	snap := r.tracker.Snapshot()
	if snap.Widget != widget.WeatherName || snap.Frame[0] != "London" {
		t.Errorf("frame after refresh: %s %q", snap.Widget, snap.Frame)
	}
	if snap.Queue.Completed != 1 || snap.Queue.Len != 0 {
		t.Errorf("queue: %+v", snap.Queue)
	}

	if len(r.pub.Buttons) != 2 {
		t.Fatalf("button events: got %d, want 2", len(r.pub.Buttons))
	}
	if ev := r.pub.Buttons[0]; ev.Button != button.Right || ev.State != button.Short || ev.Action != "next" {
		t.Errorf("first event: %+v", ev)
	}
	if ev := r.pub.Buttons[1]; ev.Button != button.Middle || ev.Action != "forward" || ev.Widget != widget.WeatherName {
		t.Errorf("second event: %+v", ev)
	}
	if len(r.pub.Tasks) != 1 || r.pub.Tasks[0].Err != nil || r.pub.Tasks[0].Kind != "fetch" {
		t.Errorf("task events: %+v", r.pub.Tasks)
	}
	if r.wd.Kicks == 0 {
		t.Error("watchdog never kicked")
	}
}

func TestIntegrationBounceCountsOnce(t *testing.T) {
	r := newRig(t)
	r.mustRunUntil(t, time.Second)

	// Contact bounce on the right button: edges inside the debounce window
	// are dropped and the press classifies once.
	base := time.Second
	r.src.Press(button.Right, base)
	r.src.Release(button.Right, base+5*time.Millisecond)
	r.src.Press(button.Right, base+10*time.Millisecond)
	r.src.Release(button.Right, base+200*time.Millisecond)
	r.mustRunUntil(t, 2*time.Second)

	if len(r.pub.Buttons) != 1 {
		t.Fatalf("button events: got %d, want 1", len(r.pub.Buttons))
	}
	if got := r.set.Current().Name(); got != widget.WeatherName {
		t.Errorf("widget: got %q, want %q", got, widget.WeatherName)
	}
	if p := r.tracker.Snapshot().Presses; p[button.Right] != 1 {
		t.Errorf("right presses: got %d, want 1", p[button.Right])
	}
}

func TestIntegrationFactoryReset(t *testing.T) {
	r := newRig(t)
	if err := afero.WriteFile(r.fs, "/state/CustomClock0/0.jpg", []byte("img"), 0o644); err != nil {
		t.Fatal(err)
	}
	r.mustRunUntil(t, time.Second)

	// Hold the left button past the very-long threshold without releasing.
	r.src.Press(button.Left, time.Second)
	err := r.runUntil(t, 15*time.Second)
	if !errors.Is(err, coordinator.ErrRestart) {
		t.Fatalf("got %v, want ErrRestart", err)
	}
	held := r.now.Sub(start) - time.Second
	if held < button.DefaultThresholds().VeryLong {
		t.Errorf("reset after %v, before the very-long threshold", held)
	}
	if ok, _ := afero.Exists(r.fs, "/state/CustomClock0/0.jpg"); ok {
		t.Error("state not erased")
	}
	if ok, _ := afero.DirExists(r.fs, "/state"); !ok {
		t.Error("state dir not recreated")
	}
	if len(r.pub.Buttons) != 1 || r.pub.Buttons[0].Action != "reset" {
		t.Errorf("events: %+v", r.pub.Buttons)
	}
}

func TestIntegrationAutoAdvance(t *testing.T) {
	r := newRig(t)
	r.mustRunUntil(t, 59*time.Second)
	if got := r.set.Current().Name(); got != widget.ClockName {
		t.Fatalf("before cycle delay: got %q", got)
	}
	r.mustRunUntil(t, 61*time.Second)
	if got := r.set.Current().Name(); got != widget.WeatherName {
		t.Errorf("after cycle delay: got %q, want %q", got, widget.WeatherName)
	}
	if !strings.EqualFold(r.tracker.Snapshot().Widget, widget.WeatherName) {
		t.Errorf("tracker widget: %q", r.tracker.Snapshot().Widget)
	}
}
