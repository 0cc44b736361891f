// Package mqtt publishes display events with an abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/orbs-display/internal/button"
)

// Topics are derived from a configurable prefix.
type Topics struct {
	Events string
	System string
}

// NewTopics returns the topics under prefix.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = "orbs"
	}
	return Topics{
		Events: prefix + "/display/events",
		System: prefix + "/display/system",
	}
}

// Publisher publishes events to MQTT. Implementations must not block the
// main loop; errors are reported but never fatal.
type Publisher interface {
	PublishButton(event ButtonEvent) error
	PublishTask(event TaskEvent) error
	PublishSystem(event SystemEvent) error
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// ButtonEvent is a dispatched press.
type ButtonEvent struct {
	Timestamp time.Time
	Button    button.ID
	State     button.State
	Action    string // "prev", "next", "forward", "reset"
	Widget    string // widget current after dispatch
	Simulated bool   // injected over HTTP
}

// TaskEvent is a finished background task.
type TaskEvent struct {
	Timestamp time.Time
	ID        string
	Kind      string
	Err       error
	Bytes     int64
}

// SystemEvent represents a lifecycle event (STARTUP, SHUTDOWN, HEARTBEAT).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string
	Reason     string
	RawPayload []byte // pre-formatted JSON; FormatSystemPayload returns it as is
	Retained   bool
}

type buttonPayload struct {
	Button buttonInner `json:"button"`
}

type buttonInner struct {
	Timestamp string `json:"timestamp"`
	Name      string `json:"name"`
	State     string `json:"state"`
	Action    string `json:"action,omitempty"`
	Widget    string `json:"widget,omitempty"`
	Simulated bool   `json:"simulated,omitempty"`
}

// FormatButtonPayload creates the JSON payload for a button event.
func FormatButtonPayload(event ButtonEvent) ([]byte, error) {
	return json.Marshal(buttonPayload{Button: buttonInner{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Name:      event.Button.String(),
		State:     event.State.String(),
		Action:    event.Action,
		Widget:    event.Widget,
		Simulated: event.Simulated,
	}})
}

type taskPayload struct {
	Task taskInner `json:"task"`
}

type taskInner struct {
	Timestamp string `json:"timestamp"`
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	Bytes     int64  `json:"bytes"`
}

// FormatTaskPayload creates the JSON payload for a task completion.
func FormatTaskPayload(event TaskEvent) ([]byte, error) {
	inner := taskInner{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		ID:        event.ID,
		Kind:      event.Kind,
		OK:        event.Err == nil,
		Bytes:     event.Bytes,
	}
	if event.Err != nil {
		inner.Error = event.Err.Error()
	}
	return json.Marshal(taskPayload{Task: inner})
}

// SystemPayload is used for events without a status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	inner := SystemPayloadInner{Event: event.Event, Reason: event.Reason}
	if !event.Timestamp.IsZero() {
		inner.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(SystemPayload{System: inner})
}

// WillPayload is registered with the broker and published if the
// connection drops without a clean disconnect.
func WillPayload() []byte {
	b, _ := FormatSystemPayload(SystemEvent{Event: "OFFLINE", Reason: "connection lost"})
	return b
}
