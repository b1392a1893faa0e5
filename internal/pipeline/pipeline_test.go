package pipeline

import (
	"context"
	"sync"

	"modelmarket/internal/domain"
)

// recorder is an in-memory Tracker.
type recorder struct {
	mu       sync.Mutex
	progress []int
	stages   []string
	logs     *Accumulator
	// cancelAt cancels the run the first time progress reaches this value.
	cancelAt int
	cancel   context.CancelFunc
}

func newRecorder() *recorder {
	return &recorder{logs: NewAccumulator(nil), cancelAt: -1}
}

func (r *recorder) Progress(ctx context.Context, p int, stage string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.progress = append(r.progress, p)
	r.stages = append(r.stages, stage)
	r.mu.Unlock()
	if r.cancel != nil && p >= r.cancelAt && r.cancelAt >= 0 {
		r.cancel()
	}
	return nil
}

func (r *recorder) Log(ctx context.Context, typ domain.LogType, msg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.logs.Add(typ, msg)
	return nil
}

func (r *recorder) hasLog(typ domain.LogType) bool {
	for _, e := range r.logs.Entries() {
		if e.Type == typ {
			return true
		}
	}
	return false
}

func testOptions(seed int64) Options {
	s := DefaultSettings()
	s.Latency = 0
	return Options{Rand: NewRand(seed), Sleep: NoSleep, Settings: s}
}
