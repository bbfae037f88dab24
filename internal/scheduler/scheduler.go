// Package scheduler provides cron-based scheduling for recurring broadcast
// sends, such as the weekly lunch prompt.
package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
)

// WeeklyLunchSpec fires Mondays at 11:00 in the scheduler's location, just
// before the lunchtime decision window.
const WeeklyLunchSpec = "0 11 * * 1"

// Scheduler runs jobs on cron expressions.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a scheduler whose cron expressions are
// evaluated in loc. Panicking jobs are recovered and logged rather than
// taking the process down.
func NewScheduler(loc *time.Location) *Scheduler {
	// Standard 5-field cron (min, hour, dom, month, dow).
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cron.DefaultLogger)),
	)
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules task on the given cron expression. It returns an error
// if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	return err
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
