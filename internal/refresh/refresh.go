// Package refresh re-resolves and re-registers credentials on a
// schedule, so passwords rotated in the encrypted store propagate to
// DuckDB without restarting anything. Every cycle runs the full
// resolution pipeline from scratch; nothing is cached between cycles,
// which is what makes rotation pickup automatic.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/jkaninda/duck-rage/internal/credential"
	"github.com/jkaninda/duck-rage/internal/resolver"
)

// Job is one credential to keep registered.
type Job struct {
	Name    string
	Request credential.Request
}

// Runner drives scheduled re-registration of a fixed set of jobs.
type Runner struct {
	resolver *resolver.Resolver
	sink     resolver.Sink
	jobs     []Job
	metrics  *Metrics
	logger   *slog.Logger

	parser cron.Parser

	// healthy is true when the most recent cycle had no failures.
	healthy atomic.Bool
}

// New creates a Runner. A nil metrics disables instrumentation.
func New(res *resolver.Resolver, sink resolver.Sink, jobs []Job, metrics *Metrics, logger *slog.Logger) *Runner {
	return &Runner{
		resolver: res,
		sink:     sink,
		jobs:     jobs,
		metrics:  metrics,
		logger:   logger,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Run validates the schedule, runs one immediate cycle, then refreshes
// on schedule until ctx is canceled. Schedule accepts five-field cron
// expressions and descriptors like "@hourly" or "@every 30m".
func (r *Runner) Run(ctx context.Context, schedule string) error {
	sched, err := r.parser.Parse(schedule)
	if err != nil {
		return fmt.Errorf("parsing schedule %q: %w", schedule, err)
	}

	r.logger.InfoContext(ctx, "refresh runner started",
		slog.String("schedule", schedule),
		slog.Int("jobs", len(r.jobs)),
	)

	r.cycle(ctx)

	timer := time.NewTimer(time.Until(sched.Next(time.Now())))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresh runner stopped")
			return nil
		case <-timer.C:
			r.cycle(ctx)
			timer.Reset(time.Until(sched.Next(time.Now())))
		}
	}
}

// Healthy reports whether the most recent cycle completed without
// failures. False until the first cycle finishes cleanly.
func (r *Runner) Healthy() bool {
	return r.healthy.Load()
}

// cycle refreshes every job once. Per-job failures are logged and
// counted but never stop the cycle or the runner.
func (r *Runner) cycle(ctx context.Context) {
	start := time.Now()
	logger := r.logger.With(slog.String("run_id", uuid.NewString()))

	failures := 0
	for _, job := range r.jobs {
		if ctx.Err() != nil {
			return
		}
		status, err := r.resolver.Register(ctx, job.Request, r.sink)
		if err != nil {
			failures++
			if r.metrics != nil {
				r.metrics.Failures.Inc()
			}
			logger.ErrorContext(ctx, "refresh failed",
				slog.String("job", job.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		if r.metrics != nil {
			r.metrics.Refreshed.Inc()
		}
		logger.InfoContext(ctx, "secret refreshed",
			slog.String("job", job.Name),
			slog.String("status", status),
		)
	}

	r.healthy.Store(failures == 0)
	if r.metrics != nil {
		r.metrics.Cycles.Inc()
		r.metrics.CycleDuration.Observe(time.Since(start).Seconds())
	}
}
