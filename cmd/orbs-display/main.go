// Command orbs-display drives a three-button clock and weather display:
// it debounces the buttons, runs background downloads cooperatively and
// keeps the systemd watchdog fed.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/urfave/cli"
	yaml "go.yaml.in/yaml/v3"

	"github.com/sweeney/orbs-display/internal/button"
	"github.com/sweeney/orbs-display/internal/config"
	"github.com/sweeney/orbs-display/internal/coordinator"
	"github.com/sweeney/orbs-display/internal/gpio"
	"github.com/sweeney/orbs-display/internal/logging"
	"github.com/sweeney/orbs-display/internal/mqtt"
	"github.com/sweeney/orbs-display/internal/status"
	"github.com/sweeney/orbs-display/internal/task"
	"github.com/sweeney/orbs-display/internal/watchdog"
	"github.com/sweeney/orbs-display/internal/weather"
	"github.com/sweeney/orbs-display/internal/web"
	"github.com/sweeney/orbs-display/internal/widget"
)

var version = "dev"

// exitRestart tells the supervisor the process asked to be restarted.
const exitRestart = 3

type globalFlags struct {
	configPath string
	logLevel   string
	logConsole bool
}

func main() {
	err := newApp(os.Stdout).Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "orbs-display: %v\n", err)
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, coordinator.ErrRestart):
		return exitRestart
	default:
		return 1
	}
}

func newApp(out io.Writer) *cli.App {
	g := &globalFlags{}
	app := cli.NewApp()
	app.Name = "orbs-display"
	app.Usage = "button, widget and download loop for the orbs display"
	app.Version = version
	app.Writer = out
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "config, c",
			Usage:       "path to the YAML configuration",
			Value:       config.DefaultPath,
			EnvVar:      "ORBS_CONFIG",
			Destination: &g.configPath,
		},
		cli.StringFlag{
			Name:        "log-level",
			Usage:       "override log.level from the configuration",
			Destination: &g.logLevel,
		},
		cli.BoolFlag{
			Name:        "log-console",
			Usage:       "human-readable log lines",
			Destination: &g.logConsole,
		},
	}
	app.Commands = []cli.Command{
		{
			Name:   "run",
			Usage:  "run the display loop",
			Action: func(ctx *cli.Context) error { return run(g) },
		},
		{
			Name:   "check-config",
			Usage:  "validate the configuration and print the effective values",
			Action: func(ctx *cli.Context) error { return checkConfig(g, ctx.App.Writer) },
		},
		{
			Name:   "buttons",
			Usage:  "print the current button levels and exit",
			Action: func(ctx *cli.Context) error { return printButtons(g, ctx.App.Writer) },
		},
	}
	return app
}

func loadConfig(g *globalFlags) (config.Config, error) {
	cfg, err := config.Load(afero.NewOsFs(), g.configPath)
	if err != nil && errors.Is(err, os.ErrNotExist) && g.configPath == config.DefaultPath {
		// no file at the default location: run on defaults
		return config.Default(), nil
	}
	return cfg, err
}

func newLogger(g *globalFlags, cfg config.Config) zerolog.Logger {
	level := cfg.Log.Level
	if g.logLevel != "" {
		level = g.logLevel
	}
	log, err := logging.New(level, cfg.Log.Console || g.logConsole)
	if err != nil {
		log.Warn().Err(err).Msg("bad log level, using info")
	}
	return log
}

func checkConfig(g *globalFlags, out io.Writer) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(cfg)
}

func printButtons(g *globalFlags, out io.Writer) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	var handlers [button.Count]gpio.EdgeHandler
	for i := range handlers {
		handlers[i] = button.New(cfg.Buttons.Thresholds())
	}
	pins := gpio.Pins(cfg.Buttons.Left, cfg.Buttons.Middle, cfg.Buttons.Right, cfg.Rotation)
	src, err := gpio.NewRealSource(cfg.Buttons.Chip, gpio.NewBank(pins, handlers))
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer src.Close()
	levels, err := src.Levels()
	if err != nil {
		return fmt.Errorf("read gpio: %w", err)
	}
	writeLevels(out, pins, levels)
	return nil
}

func writeLevels(out io.Writer, pins [button.Count]int, levels [button.Count]bool) {
	for i, pressed := range levels {
		state := "released"
		if pressed {
			state = "pressed"
		}
		fmt.Fprintf(out, "%-6s (pin %d): %s\n", button.ID(i), pins[i], state)
	}
}

// buildWidgets adds the configured widgets to set in order.
func buildWidgets(set *widget.Set, order []string, clock *widget.Clock, wx *widget.Weather) error {
	for _, name := range order {
		switch name {
		case widget.ClockName:
			set.Add(clock)
		case widget.WeatherName:
			set.Add(wx)
		default:
			return fmt.Errorf("unknown widget %q", name)
		}
	}
	return nil
}

func dimming(d config.Display) widget.Dimming {
	return widget.Dimming{
		Day:             d.Brightness,
		Night:           d.Night.Enabled,
		NightStart:      d.Night.StartHour,
		NightEnd:        d.Night.EndHour,
		NightBrightness: d.Night.Brightness,
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// shutdownReason names why Run returned: the signal that cancelled it,
// RESTART, or ERROR.
func shutdownReason(err error, stopped <-chan string) string {
	switch {
	case errors.Is(err, coordinator.ErrRestart):
		return "RESTART"
	case err != nil:
		return "ERROR"
	}
	select {
	case s := <-stopped:
		return s
	default:
		return "UNKNOWN"
	}
}

func run(g *globalFlags) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	log := newLogger(g, cfg)
	start := time.Now()

	// Buttons and their interrupt source.
	var (
		buttons  [button.Count]*button.Button
		pollers  [button.Count]coordinator.Poller
		handlers [button.Count]gpio.EdgeHandler
	)
	for i := range buttons {
		buttons[i] = button.New(cfg.Buttons.Thresholds())
		pollers[i] = buttons[i]
		handlers[i] = buttons[i]
	}
	pins := gpio.Pins(cfg.Buttons.Left, cfg.Buttons.Middle, cfg.Buttons.Right, cfg.Rotation)
	src, err := gpio.NewRealSource(cfg.Buttons.Chip, gpio.NewBank(pins, handlers))
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer src.Close()

	tracker := status.NewTracker(start, status.Config{
		LoopMs:       cfg.LoopInterval.D().Milliseconds(),
		DebounceMs:   cfg.Buttons.Debounce.D().Milliseconds(),
		CycleDelayMs: cfg.Widgets.CycleDelay.D().Milliseconds(),
		Broker:       cfg.MQTT.Broker,
		HTTPAddr:     cfg.HTTP.Addr,
		CustomClocks: cfg.Widgets.CustomClocks,
	})

	// Background work.
	factory := &task.Factory{
		Transport: task.NewHTTPTransport(&http.Client{Timeout: cfg.Tasks.Timeout.D()}),
		FS:        afero.NewOsFs(),
		Timeout:   cfg.Tasks.Timeout.D(),
		ChunkSize: cfg.Tasks.ChunkSize,
		MaxBody:   cfg.Tasks.MaxBody,
	}
	var coord *coordinator.Coordinator
	sched := task.NewScheduler(task.Config{
		Capacity:    cfg.Tasks.Capacity,
		Concurrency: cfg.Tasks.Concurrency,
		TickBudget:  cfg.Tasks.TickBudget.D(),
		OnFinish:    func(t *task.Task) { coord.TaskFinished(t) },
	}, time.Now)

	// Widgets.
	loc := time.Local
	if cfg.Widgets.Timezone != "" {
		if loc, err = time.LoadLocation(cfg.Widgets.Timezone); err != nil {
			return fmt.Errorf("load timezone: %w", err)
		}
	}
	clock := widget.NewClock(loc, cfg.Widgets.CustomClocks)
	var feed *weather.Feed
	wx := widget.NewWeather(func() bool { return feed.Refresh() })
	feed = weather.NewFeed(weather.Settings{
		APIURL: cfg.Weather.APIURL,
		APIKey: cfg.Weather.APIKey,
		Lat:    cfg.Weather.Lat,
		Lon:    cfg.Weather.Lon,
		Name:   cfg.Weather.Name,
		Units:  cfg.Weather.Units,
		Lang:   cfg.Weather.Lang,
	}, factory, sched, wx.SetModel, log)
	set := widget.NewSet(tracker, log)
	if err := buildWidgets(set, cfg.Widgets.Order, clock, wx); err != nil {
		return err
	}

	// Publisher, watchdog, config watcher.
	var publisher mqtt.Publisher
	if cfg.MQTT.Broker != "" {
		rp := mqtt.NewRealPublisher(mqtt.Options{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topics:   mqtt.NewTopics(cfg.MQTT.TopicPrefix),
			Buffer:   cfg.MQTT.Buffer,
		}, log)
		defer rp.Close()
		publisher = rp
	}
	publishSystem := func(event, reason string) {
		if publisher == nil {
			return
		}
		snap := tracker.Snapshot()
		err := publisher.PublishSystem(mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      event,
			Reason:     reason,
			Retained:   event != "HEARTBEAT",
			RawPayload: status.FormatStatusEvent(snap, event, reason),
		})
		if err != nil {
			log.Warn().Err(err).Str("event", event).Msg("publish system event failed")
		}
	}

	var wd watchdog.Watchdog = watchdog.Nop{}
	sd, err := watchdog.NewSystemd()
	if err != nil {
		log.Warn().Err(err).Msg("systemd watchdog unavailable")
	} else {
		wd = sd
	}

	var changed func() bool
	if w, err := config.NewWatcher(g.configPath, log); err != nil {
		log.Warn().Err(err).Msg("config watcher unavailable")
	} else {
		defer w.Close()
		changed = w.Changed
	}

	refresh, _ := config.ParseSchedule(cfg.Weather.Refresh)
	heartbeat, _ := config.ParseSchedule(cfg.MQTT.Heartbeat)
	brightness, _ := config.ParseSchedule(cfg.Display.Check)
	jobs := []*coordinator.Job{
		coordinator.NewJob("weather", refresh, true, func(time.Time) { feed.Refresh() }),
		coordinator.NewJob("heartbeat", heartbeat, false, func(time.Time) { publishSystem("HEARTBEAT", "") }),
		coordinator.NewBrightnessJob(brightness, set, dimming(cfg.Display), loc),
	}

	coord = coordinator.New(coordinator.Options{
		Buttons:       pollers,
		Widgets:       set,
		Scheduler:     sched,
		Factory:       factory,
		Watchdog:      wd,
		Publisher:     publisher,
		Tracker:       tracker,
		ConfigChanged: changed,
		FS:            afero.NewOsFs(),
		StateDir:      cfg.StateDir,
		CycleDelay:    cfg.Widgets.CycleDelay.D(),
		CustomClocks:  cfg.Widgets.CustomClocks,
		Jobs:          jobs,
		Now:           time.Now,
		Uptime:        gpio.Uptime,
		Log:           log,
	})

	publishSystem("STARTUP", "")

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, coord, cfg.HTTP.ButtonRate, log)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("http server stopped")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("http server listening")
	}

	if sd != nil {
		if _, err := sd.Ready(); err != nil {
			log.Warn().Err(err).Msg("notify ready failed")
		}
	}
	log.Info().
		Str("version", version).
		Dur("loop", cfg.LoopInterval.D()).
		Ints("pins", pins[:]).
		Int("capacity", cfg.Tasks.Capacity).
		Msg("started")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	stopped := make(chan string, 1)
	go func() {
		s := <-sigCh
		stopped <- signalName(s)
		cancel()
	}()

	ticker := time.NewTicker(cfg.LoopInterval.D())
	defer ticker.Stop()
	err = coord.Run(ctx, ticker.C)

	reason := shutdownReason(err, stopped)
	log.Info().Str("reason", reason).Dur("uptime", time.Since(start)).Msg("shutting down")
	publishSystem("SHUTDOWN", reason)
	if sd != nil {
		sd.Stopping()
	}
	return err
}
