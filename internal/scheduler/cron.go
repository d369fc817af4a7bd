// Package scheduler adapts robfig/cron to the scheduler port.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"BioMedNews/internal/ports"
)

// Cron triggers a recurring job from a cron expression evaluated in the
// configured timezone.
type Cron struct {
	spec     string
	location *time.Location
	runner   *cron.Cron
}

var _ ports.Scheduler = (*Cron)(nil)

// New builds a scheduler from a cron expression and timezone.
func New(spec string, location *time.Location) *Cron {
	if location == nil {
		location = time.UTC
	}
	return &Cron{spec: spec, location: location}
}

// Start registers the job and begins triggering it on schedule. Starting an
// already started scheduler is a no-op.
func (c *Cron) Start(_ context.Context, job func(time.Time)) error {
	if job == nil || c.runner != nil {
		return nil
	}

	runner := cron.New(cron.WithLocation(c.location))
	if _, err := runner.AddFunc(c.spec, func() { job(time.Now().In(c.location)) }); err != nil {
		return fmt.Errorf("parse cron expression %q: %w", c.spec, err)
	}
	runner.Start()
	c.runner = runner
	return nil
}

// Stop halts triggering and waits for a running job to finish, bounded by ctx.
func (c *Cron) Stop(ctx context.Context) error {
	if c.runner == nil {
		return nil
	}
	done := c.runner.Stop()
	c.runner = nil

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
