package widget

// Backlight is implemented by screens with adjustable brightness.
// SetBrightness reports whether the level changed.
type Backlight interface {
	SetBrightness(level int) bool
}

// Dimming picks the backlight level from the hour of day.
type Dimming struct {
	Day int

	Night           bool
	NightStart      int // hour the night range begins, inclusive
	NightEnd        int // hour it ends, exclusive; may be before NightStart
	NightBrightness int
}

// InNight reports whether hour falls in the night range. A range whose
// start is not before its end wraps past midnight.
func (d Dimming) InNight(hour int) bool {
	if !d.Night {
		return false
	}
	if d.NightStart < d.NightEnd {
		return hour >= d.NightStart && hour < d.NightEnd
	}
	return hour >= d.NightStart || hour < d.NightEnd
}

// Level returns the backlight level for hour.
func (d Dimming) Level(hour int) int {
	if d.InNight(hour) {
		return d.NightBrightness
	}
	return d.Day
}

// SetBrightness sets the screen's backlight. A change clears the screen
// and forces the current widget to redraw on its next update.
func (s *Set) SetBrightness(level int) bool {
	bl, ok := s.screen.(Backlight)
	if !ok || !bl.SetBrightness(level) {
		return false
	}
	s.log.Info().Int("level", level).Msg("brightness changed")
	s.forceDraw = true
	return true
}
