// Package memory keeps session-local pipeline runs. Nothing here survives a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"modelmarket/internal/domain"
	"modelmarket/internal/pipeline"
	"modelmarket/internal/ports"
)

type run struct {
	id         string
	userID     string
	kind       domain.RunKind
	file       domain.FileRef
	model      domain.ModelInfo
	level      domain.CompressionLevel
	status     domain.RunStatus
	progress   int
	stage      string
	errMsg     string
	logs       *pipeline.Accumulator
	report     *domain.FinalReport
	result     *domain.CompressionResult
	cancel     context.CancelFunc
	createdAt  time.Time
	finishedAt time.Time
}

// Runs is a mutex-guarded registry with a FIFO queue of pending runs.
type Runs struct {
	mu    sync.Mutex
	runs  map[string]*run
	queue []string
	now   func() time.Time
}

var _ ports.RunStore = (*Runs)(nil)

func NewRuns() *Runs {
	return &Runs{runs: make(map[string]*run), now: time.Now}
}

func (s *Runs) add(r *run, inline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[r.id] = r
	if !inline {
		s.queue = append(s.queue, r.id)
	}
}

func (s *Runs) CreateVerification(ctx context.Context, nr ports.NewRun, file domain.FileRef) (domain.VerificationRun, error) {
	r := &run{
		id:        uuid.NewString(),
		userID:    nr.UserID,
		kind:      domain.KindVerification,
		file:      file,
		status:    domain.RunQueued,
		stage:     "queued",
		logs:      pipeline.NewAccumulator(s.now),
		createdAt: s.now(),
	}
	s.add(r, nr.Inline)
	return s.Verification(ctx, r.id)
}

func (s *Runs) CreateCompression(ctx context.Context, nr ports.NewRun, info domain.ModelInfo, level domain.CompressionLevel) (domain.CompressionRun, error) {
	r := &run{
		id:        uuid.NewString(),
		userID:    nr.UserID,
		kind:      domain.KindCompression,
		model:     info,
		level:     level,
		status:    domain.RunQueued,
		stage:     "queued",
		logs:      pipeline.NewAccumulator(s.now),
		createdAt: s.now(),
	}
	s.add(r, nr.Inline)
	return s.Compression(ctx, r.id)
}

func (s *Runs) get(id string, kind domain.RunKind) (*run, error) {
	r, ok := s.runs[id]
	if !ok || (kind != "" && r.kind != kind) {
		return nil, ports.ErrNotFound
	}
	return r, nil
}

func (s *Runs) Owner(ctx context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.get(id, "")
	if err != nil {
		return "", err
	}
	return r.userID, nil
}

func (s *Runs) Verification(ctx context.Context, id string) (domain.VerificationRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.get(id, domain.KindVerification)
	if err != nil {
		return domain.VerificationRun{}, err
	}
	out := domain.VerificationRun{
		ID:           r.id,
		SelectedFile: r.file,
		Logs:         r.logs.Entries(),
		Progress:     r.progress,
		Stage:        r.stage,
		Status:       r.status,
		Error:        r.errMsg,
		CreatedAt:    r.createdAt,
	}
	if r.report != nil {
		rep := *r.report
		out.Result = &rep
	}
	return out, nil
}

func (s *Runs) Compression(ctx context.Context, id string) (domain.CompressionRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.get(id, domain.KindCompression)
	if err != nil {
		return domain.CompressionRun{}, err
	}
	out := domain.CompressionRun{
		ID:               r.id,
		ModelInfo:        r.model,
		CompressionLevel: r.level,
		Logs:             r.logs.Entries(),
		Progress:         r.progress,
		Stage:            r.stage,
		Status:           r.status,
		Error:            r.errMsg,
		CreatedAt:        r.createdAt,
	}
	if r.result != nil {
		res := *r.result
		out.CompressionResult = &res
	}
	return out, nil
}

func (s *Runs) Logs(ctx context.Context, id string, offset int) ([]domain.LogEntry, error) {
	s.mu.Lock()
	r, err := s.get(id, "")
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.logs.Since(offset), nil
}

// mutate applies fn to a non-terminal run. Updates against a finished or
// cancelled run are dropped.
func (s *Runs) mutate(ctx context.Context, id string, fn func(r *run)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.get(id, "")
	if err != nil {
		return err
	}
	if r.status.Terminal() {
		return nil
	}
	fn(r)
	return nil
}

func (s *Runs) UpdateProgress(ctx context.Context, id string, progress int, stage string) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	return s.mutate(ctx, id, func(r *run) {
		r.progress = progress
		r.stage = stage
	})
}

func (s *Runs) AppendLog(ctx context.Context, id string, typ domain.LogType, message string) error {
	return s.mutate(ctx, id, func(r *run) { r.logs.Add(typ, message) })
}

func (s *Runs) SaveReport(ctx context.Context, id string, report domain.FinalReport) error {
	return s.mutate(ctx, id, func(r *run) { r.report = &report })
}

func (s *Runs) SaveCompression(ctx context.Context, id string, result domain.CompressionResult) error {
	return s.mutate(ctx, id, func(r *run) { r.result = &result })
}

func (s *Runs) Attach(ctx context.Context, id string, cancel context.CancelFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.get(id, "")
	if err != nil {
		return err
	}
	if r.status == domain.RunCancelled {
		cancel()
		return nil
	}
	r.cancel = cancel
	return nil
}

// ClaimNext pops the oldest queued run and marks it running.
func (s *Runs) ClaimNext(ctx context.Context) (ports.RunJob, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) > 0 {
		id := s.queue[0]
		s.queue = s.queue[1:]
		r, ok := s.runs[id]
		if !ok || r.status != domain.RunQueued {
			continue
		}
		r.status = domain.RunRunning
		return ports.RunJob{ID: r.id, Kind: r.kind}, true, nil
	}
	return ports.RunJob{}, false, nil
}

// StartJobForRun marks a specific queued run as running.
func (s *Runs) StartJobForRun(ctx context.Context, id string) (ports.RunJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.get(id, "")
	if err != nil {
		return ports.RunJob{}, err
	}
	if r.status != domain.RunQueued {
		return ports.RunJob{}, ports.ErrConflict
	}
	r.status = domain.RunRunning
	for i, qid := range s.queue {
		if qid == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			break
		}
	}
	return ports.RunJob{ID: r.id, Kind: r.kind}, nil
}

func (s *Runs) finish(id string, status domain.RunStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.get(id, "")
	if err != nil {
		return err
	}
	if r.status.Terminal() {
		return nil
	}
	r.status = status
	r.errMsg = reason
	r.finishedAt = s.now()
	if status == domain.RunCompleted {
		r.progress = 100
		r.stage = "completed"
	}
	r.cancel = nil
	return nil
}

func (s *Runs) MarkCompleted(ctx context.Context, id string) error {
	return s.finish(id, domain.RunCompleted, "")
}

func (s *Runs) MarkFailed(ctx context.Context, id string, reason string) error {
	return s.finish(id, domain.RunFailed, reason)
}

// Cancel stops a queued or running run. Finished runs are left untouched.
func (s *Runs) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.get(id, "")
	if err != nil {
		return err
	}
	if r.status.Terminal() {
		return nil
	}
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.status = domain.RunCancelled
	r.stage = "cancelled"
	r.finishedAt = s.now()
	r.logs.Add(domain.LogWarning, "Run cancelled")
	return nil
}

func (s *Runs) Delete(ctx context.Context, id string) (domain.FileRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.get(id, "")
	if err != nil {
		return domain.FileRef{}, err
	}
	if r.cancel != nil {
		r.cancel()
	}
	delete(s.runs, id)
	return r.file, nil
}

// Expire drops finished runs whose end is before cutoff.
func (s *Runs) Expire(ctx context.Context, cutoff time.Time) ([]domain.FileRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var files []domain.FileRef
	for id, r := range s.runs {
		if r.status.Terminal() && r.finishedAt.Before(cutoff) {
			delete(s.runs, id)
			files = append(files, r.file)
		}
	}
	return files, nil
}

// Len returns the number of tracked runs.
func (s *Runs) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}
