// Package config loads the daemon's YAML configuration. Values are read
// once at startup; a changed file means the process must restart.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/afero"
	yaml "go.yaml.in/yaml/v3"

	"github.com/sweeney/orbs-display/internal/button"
	"github.com/sweeney/orbs-display/internal/gpio"
)

// DefaultPath is used when no --config flag is given.
const DefaultPath = "/etc/orbs-display/config.yaml"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Duration is a time.Duration written as a Go duration string ("500ms").
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

type Buttons struct {
	Chip     string   `yaml:"chip"`
	Left     int      `yaml:"left"`
	Middle   int      `yaml:"middle"`
	Right    int      `yaml:"right"`
	Debounce Duration `yaml:"debounce"`
	Medium   Duration `yaml:"medium"`
	Long     Duration `yaml:"long"`
	VeryLong Duration `yaml:"very_long"`
}

// Thresholds returns the press classification thresholds.
func (b Buttons) Thresholds() button.Thresholds {
	return button.Thresholds{
		Debounce: b.Debounce.D(),
		Medium:   b.Medium.D(),
		Long:     b.Long.D(),
		VeryLong: b.VeryLong.D(),
	}
}

type Widgets struct {
	CycleDelay   Duration `yaml:"cycle_delay"`
	Order        []string `yaml:"order"`
	CustomClocks int      `yaml:"custom_clocks"`
	Timezone     string   `yaml:"timezone"`
}

// Display sets the backlight. During the night range, which may cross
// midnight, the night brightness replaces the day level.
type Display struct {
	Brightness int    `yaml:"brightness"`
	Night      Night  `yaml:"night"`
	Check      string `yaml:"check"`
}

type Night struct {
	Enabled    bool `yaml:"enabled"`
	StartHour  int  `yaml:"start_hour"`
	EndHour    int  `yaml:"end_hour"`
	Brightness int  `yaml:"brightness"`
}

type Tasks struct {
	Capacity    int      `yaml:"capacity"`
	Concurrency int      `yaml:"concurrency"`
	TickBudget  Duration `yaml:"tick_budget"`
	Timeout     Duration `yaml:"timeout"`
	ChunkSize   int      `yaml:"chunk_size"`
	MaxBody     int64    `yaml:"max_body"`
}

type Weather struct {
	APIURL  string  `yaml:"api_url"`
	APIKey  string  `yaml:"api_key"`
	Lat     float64 `yaml:"lat"`
	Lon     float64 `yaml:"lon"`
	Name    string  `yaml:"name"`
	Units   string  `yaml:"units"`
	Lang    string  `yaml:"lang"`
	Refresh string  `yaml:"refresh"`
}

type MQTT struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	Heartbeat   string `yaml:"heartbeat"`
	Buffer      int    `yaml:"buffer"`
}

type HTTP struct {
	Addr       string  `yaml:"addr"`
	ButtonRate float64 `yaml:"button_rate"`
}

type Log struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// Config is the complete daemon configuration.
type Config struct {
	LoopInterval Duration `yaml:"loop_interval"`
	StateDir     string   `yaml:"state_dir"`
	Rotation     int      `yaml:"rotation"`
	Buttons      Buttons  `yaml:"buttons"`
	Widgets      Widgets  `yaml:"widgets"`
	Display      Display  `yaml:"display"`
	Tasks        Tasks    `yaml:"tasks"`
	Weather      Weather  `yaml:"weather"`
	MQTT         MQTT     `yaml:"mqtt"`
	HTTP         HTTP     `yaml:"http"`
	Log          Log      `yaml:"log"`
}

// Default returns a configuration usable without a file.
func Default() Config {
	th := button.DefaultThresholds()
	return Config{
		LoopInterval: Duration(20 * time.Millisecond),
		StateDir:     "/var/lib/orbs-display",
		Buttons: Buttons{
			Chip:     "gpiochip0",
			Left:     gpio.DefaultPinLeft,
			Middle:   gpio.DefaultPinMiddle,
			Right:    gpio.DefaultPinRight,
			Debounce: Duration(th.Debounce),
			Medium:   Duration(th.Medium),
			Long:     Duration(th.Long),
			VeryLong: Duration(th.VeryLong),
		},
		Widgets: Widgets{
			Order:        []string{"Clock", "Weather"},
			CustomClocks: 10,
		},
		Display: Display{
			Brightness: 255,
			Night:      Night{StartHour: 22, EndHour: 7, Brightness: 40},
			Check:      "@every 1m",
		},
		Tasks: Tasks{
			Capacity:   4,
			TickBudget: Duration(50 * time.Millisecond),
			Timeout:    Duration(30 * time.Second),
			ChunkSize:  1024,
			MaxBody:    64 * 1024,
		},
		Weather: Weather{
			APIURL:  "https://api.pirateweather.net/forecast/",
			Units:   "metric",
			Lang:    "en",
			Refresh: "@every 10m",
		},
		MQTT: MQTT{
			ClientID:    "orbs-display",
			TopicPrefix: "orbs",
			Heartbeat:   "@every 15m",
			Buffer:      100,
		},
		HTTP: HTTP{Addr: ":8080", ButtonRate: 5},
		Log:  Log{Level: "info"},
	}
}

// Load reads path from fs over the defaults. Unknown keys are rejected.
func Load(fs afero.Fs, path string) (Config, error) {
	cfg := Default()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ParseSchedule parses a cron descriptor. An empty expression yields nil.
func ParseSchedule(expr string) (cron.Schedule, error) {
	if expr == "" {
		return nil, nil
	}
	return cron.ParseStandard(expr)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks ranges and orderings.
func (c Config) Validate() error {
	if c.LoopInterval <= 0 {
		return invalid("loop_interval must be positive")
	}
	if err := c.Buttons.Thresholds().Validate(); err != nil {
		return invalid("buttons: %v", err)
	}
	if c.Rotation < 0 || c.Rotation > 3 {
		return invalid("rotation must be 0..3, got %d", c.Rotation)
	}
	if c.Tasks.Capacity < 1 {
		return invalid("tasks.capacity must be at least 1")
	}
	if c.Tasks.Concurrency < 0 {
		return invalid("tasks.concurrency must not be negative")
	}
	if c.Tasks.ChunkSize < 1 {
		return invalid("tasks.chunk_size must be positive")
	}
	if c.Widgets.CycleDelay < 0 {
		return invalid("widgets.cycle_delay must not be negative")
	}
	if c.Widgets.CustomClocks < 0 {
		return invalid("widgets.custom_clocks must not be negative")
	}
	if len(c.Widgets.Order) == 0 {
		return invalid("widgets.order must name at least one widget")
	}
	if c.Widgets.Timezone != "" {
		if _, err := time.LoadLocation(c.Widgets.Timezone); err != nil {
			return invalid("widgets.timezone: %v", err)
		}
	}
	if c.Display.Brightness < 0 || c.Display.Brightness > 255 {
		return invalid("display.brightness must be 0..255, got %d", c.Display.Brightness)
	}
	if n := c.Display.Night; n.Brightness < 0 || n.Brightness > 255 {
		return invalid("display.night.brightness must be 0..255, got %d", n.Brightness)
	}
	if n := c.Display.Night; n.StartHour < 0 || n.StartHour > 23 || n.EndHour < 0 || n.EndHour > 23 {
		return invalid("display.night hours must be 0..23, got %d-%d", n.StartHour, n.EndHour)
	}
	if _, err := ParseSchedule(c.Display.Check); err != nil {
		return invalid("display.check: %v", err)
	}
	switch c.Weather.Units {
	case "metric", "imperial":
	default:
		return invalid("weather.units must be metric or imperial, got %q", c.Weather.Units)
	}
	if _, err := ParseSchedule(c.Weather.Refresh); err != nil {
		return invalid("weather.refresh: %v", err)
	}
	if _, err := ParseSchedule(c.MQTT.Heartbeat); err != nil {
		return invalid("mqtt.heartbeat: %v", err)
	}
	if c.MQTT.Buffer < 0 {
		return invalid("mqtt.buffer must not be negative")
	}
	if c.HTTP.ButtonRate < 0 {
		return invalid("http.button_rate must not be negative")
	}
	return nil
}
