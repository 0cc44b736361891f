package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/orbs-display/internal/config"
	"github.com/sweeney/orbs-display/internal/coordinator"
	"github.com/sweeney/orbs-display/internal/widget"
)

func TestSignalName(t *testing.T) {
	tests := []struct {
		sig  os.Signal
		want string
	}{
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGTERM, "SIGTERM"},
		{syscall.SIGHUP, "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := signalName(tt.sig); got != tt.want {
			t.Errorf("signalName(%v): got %q, want %q", tt.sig, got, tt.want)
		}
	}
}

func TestExitCode(t *testing.T) {
	if got := exitCode(nil); got != 0 {
		t.Errorf("nil: got %d, want 0", got)
	}
	if got := exitCode(fmt.Errorf("loop: %w", coordinator.ErrRestart)); got != exitRestart {
		t.Errorf("restart: got %d, want %d", got, exitRestart)
	}
	if got := exitCode(errors.New("boom")); got != 1 {
		t.Errorf("error: got %d, want 1", got)
	}
}

func TestShutdownReason(t *testing.T) {
	stopped := make(chan string, 1)
	if got := shutdownReason(coordinator.ErrRestart, stopped); got != "RESTART" {
		t.Errorf("restart: got %q", got)
	}
	if got := shutdownReason(errors.New("boom"), stopped); got != "ERROR" {
		t.Errorf("error: got %q", got)
	}
	if got := shutdownReason(nil, stopped); got != "UNKNOWN" {
		t.Errorf("no signal: got %q", got)
	}
	stopped <- "SIGTERM"
	if got := shutdownReason(nil, stopped); got != "SIGTERM" {
		t.Errorf("signal: got %q", got)
	}
}

func TestBuildWidgets(t *testing.T) {
	clock := widget.NewClock(time.UTC, 2)
	wx := widget.NewWeather(func() bool { return false })

	set := widget.NewSet(nil, zerolog.Nop())
	if err := buildWidgets(set, []string{widget.WeatherName, widget.ClockName}, clock, wx); err != nil {
		t.Fatalf("buildWidgets: %v", err)
	}
	if set.Len() != 2 {
		t.Fatalf("widgets: got %d, want 2", set.Len())
	}
	if got := set.Current().Name(); got != widget.WeatherName {
		t.Errorf("first widget: got %q, want %q", got, widget.WeatherName)
	}

	err := buildWidgets(widget.NewSet(nil, zerolog.Nop()), []string{"Clock", "Stocks"}, clock, wx)
	if err == nil || !strings.Contains(err.Error(), "Stocks") {
		t.Errorf("unknown widget: got %v", err)
	}
}

func TestWriteLevels(t *testing.T) {
	var buf bytes.Buffer
	writeLevels(&buf, [3]int{17, 27, 22}, [3]bool{false, true, false})
	out := buf.String()
	for _, want := range []string{"left   (pin 17): released", "middle (pin 27): pressed", "right  (pin 22): released"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCheckConfigPrintsEffectiveValues(t *testing.T) {
	path := writeConfig(t, "loop_interval: 50ms\nwidgets:\n  custom_clocks: 4\n")

	var buf bytes.Buffer
	if err := newApp(&buf).Run([]string{"orbs-display", "--config", path, "check-config"}); err != nil {
		t.Fatalf("check-config: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"loop_interval: 50ms", "custom_clocks: 4", "state_dir: /var/lib/orbs-display"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCheckConfigRejectsInvalid(t *testing.T) {
	path := writeConfig(t, "rotation: 7\n")

	var buf bytes.Buffer
	err := newApp(&buf).Run([]string{"orbs-display", "-c", path, "check-config"})
	if !errors.Is(err, config.ErrInvalid) {
		t.Errorf("got %v, want ErrInvalid", err)
	}
}

func TestCheckConfigRejectsUnknownKey(t *testing.T) {
	path := writeConfig(t, "loop_intervall: 50ms\n")

	var buf bytes.Buffer
	if err := newApp(&buf).Run([]string{"orbs-display", "-c", path, "check-config"}); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestConfigFromEnv(t *testing.T) {
	path := writeConfig(t, "state_dir: /tmp/orbs\n")
	t.Setenv("ORBS_CONFIG", path)

	var buf bytes.Buffer
	if err := newApp(&buf).Run([]string{"orbs-display", "check-config"}); err != nil {
		t.Fatalf("check-config: %v", err)
	}
	if !strings.Contains(buf.String(), "state_dir: /tmp/orbs") {
		t.Errorf("ORBS_CONFIG not honoured:\n%s", buf.String())
	}
}

func TestMissingExplicitConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")

	var buf bytes.Buffer
	err := newApp(&buf).Run([]string{"orbs-display", "-c", path, "check-config"})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("got %v, want ErrNotExist", err)
	}
}

func TestDimmingFromConfig(t *testing.T) {
	d := config.Default().Display
	d.Night.Enabled = true
	got := dimming(d)
	if got.Level(12) != 255 || got.Level(23) != 40 || got.Level(3) != 40 {
		t.Errorf("unexpected levels from %+v", got)
	}
}
