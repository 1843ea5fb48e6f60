// Package poll runs the recurring refresh jobs that stand in for push
// notifications. Consistency is eventual within one interval; every job is
// bound to a context and stops the moment its owner goes away.
package poll

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/classpad-app/classpad-sync/internal/observability"
)

// Job is one named recurring refresh.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Poller owns a set of jobs and their lifetimes.
type Poller struct {
	logger zerolog.Logger
	jobs   []Job
}

// New constructs an empty poller.
func New(logger zerolog.Logger) *Poller {
	return &Poller{logger: logger.With().Str("component", "poller").Logger()}
}

// Add registers a job. Must be called before Start.
func (p *Poller) Add(job Job) {
	p.jobs = append(p.jobs, job)
}

// Start launches every registered job in its own goroutine. Each job runs
// once immediately and then on its interval until ctx is cancelled. Job
// errors are logged and counted, never fatal: the previously loaded state
// stays usable and the next tick retries.
func (p *Poller) Start(ctx context.Context) {
	for _, job := range p.jobs {
		go p.runJob(ctx, job)
	}
}

func (p *Poller) runJob(ctx context.Context, job Job) {
	p.execute(ctx, job)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug().Str("job", job.Name).Msg("poll job stopped")
			return
		case <-ticker.C:
			p.execute(ctx, job)
		}
	}
}

func (p *Poller) execute(ctx context.Context, job Job) {
	err := job.Run(ctx)
	observability.ObservePoll(job.Name, err)
	if err != nil && ctx.Err() == nil {
		p.logger.Warn().Err(err).Str("job", job.Name).Msg("poll job failed")
	}
}
