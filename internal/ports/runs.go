package ports

import (
	"context"
	"time"

	"modelmarket/internal/domain"
)

type RunJob struct {
	ID   string
	Kind domain.RunKind
}

// RunQueue supports claiming and finishing simulated pipeline runs.
type RunQueue interface {
	ClaimNext(ctx context.Context) (job RunJob, found bool, err error)
	StartJobForRun(ctx context.Context, runID string) (RunJob, error)
	MarkCompleted(ctx context.Context, runID string) error
	MarkFailed(ctx context.Context, runID string, reason string) error
}

// NewRun describes who starts a run and how it is processed.
type NewRun struct {
	UserID string
	// Inline runs are processed by the caller and never enter the queue.
	Inline bool
}

// RunStore keeps session-local verification and compression runs.
type RunStore interface {
	RunQueue

	CreateVerification(ctx context.Context, nr NewRun, file domain.FileRef) (domain.VerificationRun, error)
	CreateCompression(ctx context.Context, nr NewRun, info domain.ModelInfo, level domain.CompressionLevel) (domain.CompressionRun, error)
	// Owner returns the id of the user who started the run.
	Owner(ctx context.Context, runID string) (string, error)
	Verification(ctx context.Context, runID string) (domain.VerificationRun, error)
	Compression(ctx context.Context, runID string) (domain.CompressionRun, error)
	Logs(ctx context.Context, runID string, offset int) ([]domain.LogEntry, error)

	UpdateProgress(ctx context.Context, runID string, progress int, stage string) error
	AppendLog(ctx context.Context, runID string, typ domain.LogType, message string) error
	SaveReport(ctx context.Context, runID string, report domain.FinalReport) error
	SaveCompression(ctx context.Context, runID string, result domain.CompressionResult) error

	// Attach registers the cancel func of a running run.
	Attach(ctx context.Context, runID string, cancel context.CancelFunc) error
	Cancel(ctx context.Context, runID string) error
	// Delete drops the run and returns the file it was created with.
	Delete(ctx context.Context, runID string) (domain.FileRef, error)
	// Expire drops runs that finished before cutoff and returns their files.
	Expire(ctx context.Context, cutoff time.Time) ([]domain.FileRef, error)
}
