// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

// Package scheduler runs recurring background jobs on RRULE schedules.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/verveadvisory/breakout-tracker-service/internal/logging"
)

// Job is one recurring task.
type Job struct {
	Name string
	Rule *rrule.RRule
	Run  func(ctx context.Context) error
}

// Scheduler fires jobs at the occurrences of their recurrence rules. A job
// that overruns its next occurrence simply skips it; runs never overlap per
// job.
type Scheduler struct {
	mu   sync.Mutex
	jobs []Job

	now func() time.Time
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{
		now: time.Now,
	}
}

// Add registers a job with an RRULE recurrence (e.g.
// "FREQ=DAILY;BYHOUR=18;BYMINUTE=30"). Times are interpreted in UTC.
func (s *Scheduler) Add(name, rule string, run func(ctx context.Context) error) error {
	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, Job{Name: name, Rule: r, Run: run})
	return nil
}

// Start launches one goroutine per job and blocks until the context is
// cancelled and every job loop has drained.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	jobs := make([]Job, len(s.jobs))
	copy(jobs, s.jobs)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runLoop(ctx, job)
		}()
	}
	wg.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, job Job) {
	ctx = logging.AppendCtx(ctx, slog.String("job", job.Name))

	for {
		next := job.Rule.After(s.now().UTC(), false)
		if next.IsZero() {
			slog.InfoContext(ctx, "job schedule exhausted, stopping")
			return
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		start := s.now()
		if err := job.Run(ctx); err != nil {
			slog.ErrorContext(ctx, "scheduled job failed", logging.ErrKey, err)
		} else {
			slog.InfoContext(ctx, "scheduled job finished",
				"duration", time.Since(start).String())
		}
	}
}
