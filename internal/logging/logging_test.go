package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWriter(&buf, "debug", false)
	if err != nil {
		t.Fatal(err)
	}
	log.Debug().Str("button", "left").Msg("pressed")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("not JSON: %q", buf.String())
	}
	if line["button"] != "left" || line["message"] != "pressed" || line["level"] != "debug" {
		t.Errorf("unexpected line %v", line)
	}
	if _, ok := line["time"]; !ok {
		t.Error("expected timestamp")
	}
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, _ := NewWriter(&buf, "warn", false)
	log.Info().Msg("quiet")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn, got %q", buf.String())
	}
	log.Warn().Msg("loud")
	if !strings.Contains(buf.String(), "loud") {
		t.Error("warn should pass")
	}
}

func TestUnknownLevelFallsBack(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWriter(&buf, "chatty", false)
	if err == nil {
		t.Error("expected error for unknown level")
	}
	if log.GetLevel() != zerolog.InfoLevel {
		t.Errorf("expected info, got %v", log.GetLevel())
	}
}

func TestConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	log, _ := NewWriter(&buf, "info", true)
	log.Info().Str("widget", "Clock").Msg("switched")
	out := buf.String()
	if strings.HasPrefix(out, "{") || !strings.Contains(out, "switched") || !strings.Contains(out, "widget=") {
		t.Errorf("unexpected console output %q", out)
	}
}
