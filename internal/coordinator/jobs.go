package coordinator

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sweeney/orbs-display/internal/widget"
)

// Job is periodic work run from the loop when its schedule comes due.
// Schedules are evaluated against loop time; no cron goroutines run.
type Job struct {
	Name       string
	Schedule   cron.Schedule
	RunAtStart bool
	Run        func(now time.Time)

	next time.Time
}

// NewJob returns a job, or nil when schedule is nil.
func NewJob(name string, schedule cron.Schedule, runAtStart bool, run func(now time.Time)) *Job {
	if schedule == nil || run == nil {
		return nil
	}
	return &Job{Name: name, Schedule: schedule, RunAtStart: runAtStart, Run: run}
}

// Next returns when the job runs next; zero before the first iteration.
func (j *Job) Next() time.Time { return j.next }

func (j *Job) maybeRun(now time.Time) {
	if j == nil {
		return
	}
	if j.next.IsZero() {
		j.next = j.Schedule.Next(now)
		if !j.RunAtStart {
			return
		}
	} else if now.Before(j.next) {
		return
	} else {
		j.next = j.Schedule.Next(now)
	}
	j.Run(now)
}

// NewBrightnessJob applies dimming to set on schedule, reading the hour in
// loc. It runs once at start so the level is right from boot.
func NewBrightnessJob(schedule cron.Schedule, set *widget.Set, dimming widget.Dimming, loc *time.Location) *Job {
	if set == nil {
		return nil
	}
	if loc == nil {
		loc = time.Local
	}
	return NewJob("brightness", schedule, true, func(now time.Time) {
		set.SetBrightness(dimming.Level(now.In(loc).Hour()))
	})
}
