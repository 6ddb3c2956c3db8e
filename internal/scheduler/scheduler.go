// Package scheduler runs the periodic discovery jobs (scrape, sitemap
// refresh, promotion sweep) on robfig/cron in the site's time zone.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"isilanlarim/internal/logger"
)

// Job is one scheduled task. Each run must derive everything from the
// current store contents, so a missed or doubled run corrects itself.
type Job struct {
	Name       string
	Spec       string // cron spec, e.g. "0 9,17 * * *" or "@every 1h"
	RunOnStart bool
	Timeout    time.Duration
	Run        func(ctx context.Context) error
}

// Scheduler wraps robfig/cron.
type Scheduler struct {
	cron    *cron.Cron
	chain   cron.Chain
	jobs    []Job
	log     zerolog.Logger
	initial sync.WaitGroup
}

// New creates a Scheduler evaluating specs in loc. A panicking run is
// recovered and logged. A run that finds the previous run of the same job
// still going is skipped, whether that run was scheduled or the start-up one.
func New(loc *time.Location, jobs ...Job) *Scheduler {
	l := logger.For("scheduler")
	cl := cronLogger{log: l}
	return &Scheduler{
		cron:  cron.New(cron.WithLocation(loc), cron.WithLogger(cl)),
		chain: cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		jobs:  jobs,
		log:   l,
	}
}

// Start registers every job and starts the scheduler. Jobs marked
// RunOnStart also run once immediately, in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	var initial []cron.Job
	for _, j := range s.jobs {
		wrapped := s.chain.Then(cron.FuncJob(func() { s.run(ctx, j) }))
		if _, err := s.cron.AddJob(j.Spec, wrapped); err != nil {
			return fmt.Errorf("cron.AddJob %s (%q): %w", j.Name, j.Spec, err)
		}
		s.log.Info().Str("job", j.Name).Str("spec", j.Spec).Msg("job scheduled")
		if j.RunOnStart {
			initial = append(initial, wrapped)
		}
	}

	s.cron.Start()
	s.log.Info().Str("location", s.cron.Location().String()).Msg("cron started")

	for _, job := range initial {
		s.initial.Go(job.Run)
	}
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.initial.Wait()
	s.log.Info().Msg("cron stopped")
}

// Entries lists the next run time of each job, soonest first.
func (s *Scheduler) Entries() []time.Time {
	var out []time.Time
	for _, e := range s.cron.Entries() {
		out = append(out, e.Next)
	}
	return out
}

func (s *Scheduler) run(ctx context.Context, j Job) {
	if ctx.Err() != nil {
		return
	}
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	start := time.Now()
	s.log.Info().Str("job", j.Name).Msg("job started")
	if err := j.Run(ctx); err != nil {
		s.log.Error().Err(err).Str("job", j.Name).Dur("took", time.Since(start)).Msg("job failed")
		return
	}
	s.log.Info().Str("job", j.Name).Dur("took", time.Since(start)).Msg("job done")
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
