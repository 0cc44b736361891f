package status

import (
	"encoding/json"
	"time"

	"github.com/dustin/go-humanize"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Widget        string     `json:"widget"`
	Frame         []string   `json:"frame"`
	Frames        int        `json:"frames"`
	Brightness    int        `json:"brightness"`
	Iterations    uint64     `json:"iterations"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	Started       string     `json:"started"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Tasks         TasksJSON  `json:"tasks"`
	Buttons       ButtonJSON `json:"buttons"`
	Config        ConfigJSON `json:"config"`
}

type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

type TasksJSON struct {
	Queued     int    `json:"queued"`
	Running    int    `json:"running"`
	Capacity   int    `json:"capacity"`
	Submitted  int    `json:"submitted"`
	Rejected   int    `json:"rejected"`
	Completed  int    `json:"completed"`
	Failed     int    `json:"failed"`
	Downloaded string `json:"downloaded"`
}

type ButtonJSON struct {
	Left   int        `json:"left"`
	Middle int        `json:"middle"`
	Right  int        `json:"right"`
	Last   *PressJSON `json:"last,omitempty"`
}

type PressJSON struct {
	Name      string `json:"name"`
	State     string `json:"state"`
	Timestamp string `json:"timestamp"`
}

type ConfigJSON struct {
	LoopMs       int64  `json:"loop_ms"`
	DebounceMs   int64  `json:"debounce_ms"`
	CycleDelayMs int64  `json:"cycle_delay_ms"`
	Broker       string `json:"broker"`
	HTTPAddr     string `json:"http_addr"`
	CustomClocks int    `json:"custom_clocks"`
}

func buildInner(snap Snapshot) StatusInner {
	frame := snap.Frame
	if frame == nil {
		frame = []string{}
	}
	inner := StatusInner{
		Widget:        snap.Widget,
		Frame:         frame,
		Frames:        snap.Frames,
		Brightness:    snap.Brightness,
		Iterations:    snap.Iterations,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		Started:       humanize.RelTime(snap.StartTime, snap.Now, "ago", "from now"),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Tasks: TasksJSON{
			Queued:     snap.Queue.Len - snap.Queue.Running,
			Running:    snap.Queue.Running,
			Capacity:   snap.Queue.Capacity,
			Submitted:  snap.Queue.Submitted,
			Rejected:   snap.Queue.Rejected,
			Completed:  snap.Queue.Completed,
			Failed:     snap.Queue.Failed,
			Downloaded: humanize.Bytes(uint64(max(snap.Queue.Bytes, 0))),
		},
		Buttons: ButtonJSON{
			Left:   snap.Presses[0],
			Middle: snap.Presses[1],
			Right:  snap.Presses[2],
		},
		Config: ConfigJSON{
			LoopMs:       snap.Config.LoopMs,
			DebounceMs:   snap.Config.DebounceMs,
			CycleDelayMs: snap.Config.CycleDelayMs,
			Broker:       snap.Config.Broker,
			HTTPAddr:     snap.Config.HTTPAddr,
			CustomClocks: snap.Config.CustomClocks,
		},
	}
	if p := snap.LastPress; p != nil {
		inner.Buttons.Last = &PressJSON{
			Name:      p.Button.String(),
			State:     p.State.String(),
			Timestamp: p.At.UTC().Format(time.RFC3339),
		}
	}
	return inner
}

// FormatJSON returns the indented status document for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the status document for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
