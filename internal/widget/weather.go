package widget

import (
	"fmt"
	"time"

	"github.com/sweeney/orbs-display/internal/button"
	"github.com/sweeney/orbs-display/internal/weather"
)

// WeatherName is the name of the weather widget.
const WeatherName = "Weather"

// Weather shows the last forecast delivered by the weather feed.
type Weather struct {
	model   weather.Model
	have    bool
	dirty   bool
	refresh func() bool
}

// NewWeather creates a weather widget. refresh is called on a middle short
// press to request an immediate forecast update.
func NewWeather(refresh func() bool) *Weather {
	return &Weather{refresh: refresh, dirty: true}
}

func (w *Weather) Name() string { return WeatherName }

// SetModel replaces the displayed forecast.
func (w *Weather) SetModel(m weather.Model) {
	w.model = m
	w.have = true
	w.dirty = true
}

// Model returns the displayed forecast and whether one has arrived.
func (w *Weather) Model() (weather.Model, bool) {
	return w.model, w.have
}

func (w *Weather) Update(now time.Time) {}

func (w *Weather) Draw(screen Screen, force bool) {
	if !force && !w.dirty {
		return
	}
	w.dirty = false
	if !w.have {
		screen.Draw(w.Name(), []string{"no weather data"})
		return
	}
	m := w.model
	lines := []string{
		m.City,
		fmt.Sprintf("%.0f° %s (%s)", m.Current.Temperature, m.Current.Text, m.Current.Icon),
		fmt.Sprintf("today %.0f°/%.0f°", m.TodayHigh, m.TodayLow),
	}
	for _, d := range m.Days {
		lines = append(lines, fmt.Sprintf("%s %.0f°/%.0f°", d.Icon, d.High, d.Low))
	}
	screen.Draw(w.Name(), lines)
}

func (w *Weather) ButtonPressed(id button.ID, state button.State) {
	if id == button.Middle && state == button.Short && w.refresh != nil {
		w.refresh()
	}
}
