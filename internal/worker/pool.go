// Package worker runs reminder jobs pulled straight from the delay queue.
//
// A Pool claims due jobs in batches, hands each to a Handler on a bounded set
// of goroutines and acknowledges the job once the handler returns. The
// handler decides the outcome; the pool never retries. A job whose ack fails
// stays claimed until its lease lapses and is then redelivered.
//
// Once the pool's context is cancelled no further job of the batch is
// started; those jobs stay leased and are redelivered after the lease. Jobs
// already running finish under a detached context bounded by JobTimeout.
package worker

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"recipescheduler/internal/queue"
	"recipescheduler/internal/types"
)

// Handler processes one claimed job. It must not return until the job is
// settled.
type Handler interface {
	HandleJob(ctx context.Context, job queue.Job) types.Outcome
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job queue.Job) types.Outcome

func (f HandlerFunc) HandleJob(ctx context.Context, job queue.Job) types.Outcome {
	return f(ctx, job)
}

// PoolConfig holds the tuning knobs for a Pool.
type PoolConfig struct {
	Concurrency  int
	BatchSize    int
	Lease        time.Duration
	PollInterval time.Duration
	// JobTimeout bounds one handler call, including calls still running
	// after shutdown began.
	JobTimeout time.Duration
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.Lease <= 0 {
		c.Lease = 5 * time.Minute
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 30 * time.Second
	}
	return c
}

// Pool is an in-process consumer of the reminder delay queue.
type Pool struct {
	source  queue.Consumer
	handler Handler
	cfg     PoolConfig
	clock   types.Clock
	logger  *slog.Logger
}

// NewPool creates a Pool. clock and logger may be nil.
func NewPool(source queue.Consumer, handler Handler, cfg PoolConfig, clock types.Clock, logger *slog.Logger) *Pool {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		source:  source,
		handler: handler,
		cfg:     cfg.withDefaults(),
		clock:   clock,
		logger:  logger,
	}
}

// RunOnce claims one batch of due jobs, processes them concurrently and
// returns how many were claimed.
func (p *Pool) RunOnce(ctx context.Context) (int, error) {
	jobs, err := p.source.Claim(ctx, p.clock.Now(), p.cfg.BatchSize, p.cfg.Lease)
	if err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)
	started := 0
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		started++
		job := job
		g.Go(func() error {
			if ctx.Err() != nil {
				p.logger.InfoContext(ctx, "leaving reminder job for redelivery", "job_key", job.Key)
				return nil
			}
			p.process(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	if skipped := len(jobs) - started; skipped > 0 {
		p.logger.InfoContext(ctx, "shutdown left claimed jobs for redelivery", "skipped", skipped)
	}
	p.logger.InfoContext(ctx, "worker batch complete", "claimed", len(jobs))
	return len(jobs), nil
}

func (p *Pool) process(ctx context.Context, job queue.Job) {
	// A started job runs to completion even when shutdown begins mid-call;
	// acking a job whose push was aborted would drop the reminder.
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.JobTimeout)
	defer cancel()

	out := p.handler.HandleJob(jobCtx, job)
	if err := p.source.Ack(jobCtx, job); err != nil {
		p.logger.WarnContext(ctx, "failed to ack reminder job",
			"job_key", job.Key,
			"outcome", out.String(),
			"error", err,
		)
	}
}

// Run calls RunOnce every poll interval until ctx is cancelled. Jobs already
// running when ctx is cancelled finish before Run returns; claimed jobs that
// had not started are left for redelivery.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.InfoContext(ctx, "worker pool started",
		"concurrency", p.cfg.Concurrency,
		"batch_size", p.cfg.BatchSize,
		"poll_interval", p.cfg.PollInterval.String(),
	)

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			p.logger.InfoContext(ctx, "worker pool stopped")
			return nil
		}

		n, err := p.RunOnce(ctx)
		if err != nil {
			p.logger.ErrorContext(ctx, "worker claim failed", "error", err)
		}
		if err == nil && n >= p.cfg.BatchSize {
			continue
		}

		select {
		case <-ctx.Done():
			p.logger.InfoContext(ctx, "worker pool stopped")
			return nil
		case <-ticker.C:
		}
	}
}
