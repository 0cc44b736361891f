package weather

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/sweeney/orbs-display/internal/task"
)

// Submitter accepts tasks; *task.Scheduler satisfies it.
type Submitter interface {
	TrySubmit(t *task.Task) error
}

// Feed refreshes the forecast by submitting fetch tasks. At most one
// refresh is outstanding at a time.
type Feed struct {
	settings  Settings
	factory   *task.Factory
	submitter Submitter
	onUpdate  func(Model)
	log       zerolog.Logger

	pending bool
	last    Model
	have    bool
	lastErr error
}

// NewFeed creates a feed. onUpdate receives every successfully parsed
// forecast on the main loop.
func NewFeed(settings Settings, factory *task.Factory, submitter Submitter, onUpdate func(Model), log zerolog.Logger) *Feed {
	return &Feed{
		settings:  settings,
		factory:   factory,
		submitter: submitter,
		onUpdate:  onUpdate,
		log:       log.With().Str("component", "weather").Logger(),
	}
}

// Refresh submits a forecast fetch. It reports false when a refresh is
// already pending, the feed is unconfigured, or the queue is full.
func (f *Feed) Refresh() bool {
	if f.pending {
		return false
	}
	if f.settings.APIKey == "" {
		f.log.Debug().Msg("no api key, skipping refresh")
		return false
	}
	t := f.factory.NewFetch(f.settings.URL(), f.complete, Preprocess)
	if t == nil {
		f.log.Error().Msg("could not build forecast request")
		return false
	}
	if err := f.submitter.TrySubmit(t); err != nil {
		f.log.Warn().Err(err).Msg("forecast refresh not queued")
		return false
	}
	f.pending = true
	return true
}

func (f *Feed) complete(res task.Result) {
	f.pending = false
	if res.Err != nil {
		f.lastErr = res.Err
		var se *task.StatusError
		if errors.As(res.Err, &se) {
			f.log.Warn().Int("code", se.Code).Msg("forecast request rejected")
		} else {
			f.log.Warn().Err(res.Err).Msg("forecast request failed")
		}
		return
	}
	m, err := Parse(res.Body, f.settings.Name)
	if err != nil {
		f.lastErr = err
		f.log.Warn().Err(err).Msg("forecast unreadable")
		return
	}
	f.last, f.have, f.lastErr = m, true, nil
	f.log.Info().Str("icon", m.Current.Icon).Float64("temp", m.Current.Temperature).Msg("forecast updated")
	if f.onUpdate != nil {
		f.onUpdate(m)
	}
}

// Pending reports whether a refresh is in flight.
func (f *Feed) Pending() bool { return f.pending }

// Last returns the most recent forecast and whether there is one.
func (f *Feed) Last() (Model, bool) { return f.last, f.have }

// Err returns the error of the last failed refresh, or nil.
func (f *Feed) Err() error { return f.lastErr }
