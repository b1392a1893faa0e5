package runner

import (
	"context"
	"log/slog"
	"time"

	"modelmarket/internal/ports"
)

// Processor performs the work of one claimed run.
type Processor interface {
	Process(ctx context.Context, job ports.RunJob) error
}

// Run starts worker goroutines that claim runs and process them. It returns
// immediately; workers stop when ctx is done.
func Run(ctx context.Context, queue ports.RunQueue, processor Processor, concurrency int, pollInterval time.Duration, logger *slog.Logger) {
	if concurrency < 1 {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	jobsCh := make(chan ports.RunJob, concurrency)

	// dispatcher loop
	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		defer close(jobsCh)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for {
					job, found, err := queue.ClaimNext(ctx)
					if err != nil {
						logger.Error("run claim failed", "error", err)
						break
					}
					if !found {
						break
					}
					select {
					case jobsCh <- job:
					case <-ctx.Done():
						_ = queue.MarkFailed(context.Background(), job.ID, "shutting down")
						return
					}
				}
			}
		}
	}()

	for i := 0; i < concurrency; i++ {
		go func(idx int) {
			for job := range jobsCh {
				if err := finish(ctx, queue, processor, job); err != nil {
					logger.Warn("run failed", "worker", idx, "run_id", job.ID, "kind", job.Kind, "error", err)
				}
			}
		}(i)
	}
}

// ProcessInline claims a specific run and processes it synchronously using
// the same processor as the background workers.
func ProcessInline(ctx context.Context, queue ports.RunQueue, processor Processor, runID string) error {
	job, err := queue.StartJobForRun(ctx, runID)
	if err != nil {
		return err
	}
	return finish(ctx, queue, processor, job)
}

func finish(ctx context.Context, queue ports.RunQueue, processor Processor, job ports.RunJob) error {
	if err := processor.Process(ctx, job); err != nil {
		// the run context may be gone; record the outcome regardless
		_ = queue.MarkFailed(context.WithoutCancel(ctx), job.ID, err.Error())
		return err
	}
	return queue.MarkCompleted(context.WithoutCancel(ctx), job.ID)
}

// Sweeper forgets finished runs older than a TTL.
type Sweeper interface {
	Sweep(ctx context.Context, ttl time.Duration) (int, error)
}

// Sweep calls sweeper every interval until ctx is done.
func Sweep(ctx context.Context, sweeper Sweeper, interval, ttl time.Duration, logger *slog.Logger) {
	if interval <= 0 || ttl <= 0 {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sweeper.Sweep(ctx, ttl)
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn("run sweep failed", "error", err)
				}
				continue
			}
			if n > 0 {
				logger.Debug("expired finished runs", "count", n)
			}
		}
	}
}
