// Package runs owns the lifecycle of simulated verification and compression runs.
package runs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"modelmarket/internal/domain"
	"modelmarket/internal/pipeline"
	"modelmarket/internal/ports"
)

var (
	ErrInvalidFile    = errors.New("invalid file")
	ErrInvalidLevel   = errors.New("invalid compression level")
	ErrReportNotReady = errors.New("report not ready")
)

// FileRemover deletes spooled uploads once their run is reset.
type FileRemover interface {
	Remove(path string) error
}

type Service struct {
	runs       ports.RunStore
	verifier   *pipeline.Verifier
	compressor *pipeline.Compressor
	files      FileRemover
	logger     *slog.Logger
}

func New(runs ports.RunStore, verifier *pipeline.Verifier, compressor *pipeline.Compressor, files FileRemover, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{runs: runs, verifier: verifier, compressor: compressor, files: files, logger: logger}
}

func validateFile(f domain.FileRef) error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidFile)
	}
	if f.Size < 0 {
		return fmt.Errorf("%w: size must not be negative", ErrInvalidFile)
	}
	return nil
}

func (s *Service) StartVerification(ctx context.Context, userID string, file domain.FileRef, inline bool) (domain.VerificationRun, error) {
	if err := validateFile(file); err != nil {
		return domain.VerificationRun{}, err
	}
	return s.runs.CreateVerification(ctx, ports.NewRun{UserID: userID, Inline: inline}, file)
}

func (s *Service) StartCompression(ctx context.Context, userID string, file domain.FileRef, level domain.CompressionLevel, inline bool) (domain.CompressionRun, error) {
	if err := validateFile(file); err != nil {
		return domain.CompressionRun{}, err
	}
	if level == "" {
		level = domain.LevelBalanced
	}
	if !level.Valid() {
		return domain.CompressionRun{}, fmt.Errorf("%w: %q", ErrInvalidLevel, level)
	}
	return s.runs.CreateCompression(ctx, ports.NewRun{UserID: userID, Inline: inline}, pipeline.ModelInfoFor(file), level)
}

// owned hides runs started by other users behind ErrNotFound.
func (s *Service) owned(ctx context.Context, userID, id string) error {
	owner, err := s.runs.Owner(ctx, id)
	if err != nil {
		return err
	}
	if owner != userID {
		return ports.ErrNotFound
	}
	return nil
}

func (s *Service) Verification(ctx context.Context, userID, id string) (domain.VerificationRun, error) {
	if err := s.owned(ctx, userID, id); err != nil {
		return domain.VerificationRun{}, err
	}
	return s.runs.Verification(ctx, id)
}

func (s *Service) Compression(ctx context.Context, userID, id string) (domain.CompressionRun, error) {
	if err := s.owned(ctx, userID, id); err != nil {
		return domain.CompressionRun{}, err
	}
	return s.runs.Compression(ctx, id)
}

func (s *Service) Logs(ctx context.Context, userID, id string, offset int) ([]domain.LogEntry, error) {
	if err := s.owned(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.runs.Logs(ctx, id, offset)
}

// Report returns the finished report with its download name and JSON body.
func (s *Service) Report(ctx context.Context, userID, id string) (filename string, body []byte, err error) {
	run, err := s.Verification(ctx, userID, id)
	if err != nil {
		return "", nil, err
	}
	if run.Result == nil {
		return "", nil, ErrReportNotReady
	}
	body, err = pipeline.ExportJSON(*run.Result)
	if err != nil {
		return "", nil, fmt.Errorf("export report: %w", err)
	}
	return pipeline.ReportFilename(run.Result.VerificationID), body, nil
}

func (s *Service) Cancel(ctx context.Context, userID, id string) error {
	if err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	return s.runs.Cancel(ctx, id)
}

// Reset cancels the run if needed, forgets it and removes its spooled upload.
func (s *Service) Reset(ctx context.Context, userID, id string) error {
	if err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	file, err := s.runs.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.removeSpooled(id, file)
	return nil
}

// Sweep forgets runs that finished more than ttl ago and removes their
// spooled uploads. It returns how many runs were dropped.
func (s *Service) Sweep(ctx context.Context, ttl time.Duration) (int, error) {
	files, err := s.runs.Expire(ctx, time.Now().Add(-ttl))
	if err != nil {
		return 0, err
	}
	for _, f := range files {
		s.removeSpooled("", f)
	}
	return len(files), nil
}

func (s *Service) removeSpooled(id string, file domain.FileRef) {
	if file.Path == "" || s.files == nil {
		return
	}
	if err := s.files.Remove(file.Path); err != nil {
		s.logger.Warn("remove spooled upload", "run_id", id, "path", file.Path, "error", err)
	}
}

// Process runs a claimed job. The run gets its own cancel func so Cancel can
// stop it independently of the worker.
func (s *Service) Process(ctx context.Context, job ports.RunJob) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := s.runs.Attach(ctx, job.ID, cancel); err != nil {
		return err
	}
	t := tracker{runs: s.runs, runID: job.ID}

	var err error
	switch job.Kind {
	case domain.KindVerification:
		err = s.processVerification(runCtx, job.ID, t)
	case domain.KindCompression:
		err = s.processCompression(runCtx, job.ID, t)
	default:
		err = fmt.Errorf("unknown run kind %q", job.Kind)
	}
	if err != nil && runCtx.Err() == nil {
		_ = t.Log(runCtx, domain.LogError, "Run failed: "+err.Error())
	}
	return err
}

func (s *Service) processVerification(ctx context.Context, id string, t tracker) error {
	run, err := s.runs.Verification(ctx, id)
	if err != nil {
		return err
	}
	report, err := s.verifier.Run(ctx, run.SelectedFile, t)
	if err != nil {
		return err
	}
	s.logger.Info("verification finished", "run_id", id, "status", report.Status, "score", report.Score)
	return s.runs.SaveReport(ctx, id, report)
}

func (s *Service) processCompression(ctx context.Context, id string, t tracker) error {
	run, err := s.runs.Compression(ctx, id)
	if err != nil {
		return err
	}
	result, err := s.compressor.Run(ctx, run.ModelInfo, run.CompressionLevel, t)
	if err != nil {
		return err
	}
	s.logger.Info("compression finished", "run_id", id, "ratio", result.Ratio)
	return s.runs.SaveCompression(ctx, id, result)
}

// tracker binds pipeline side effects to one stored run.
type tracker struct {
	runs  ports.RunStore
	runID string
}

func (t tracker) Progress(ctx context.Context, progress int, stage string) error {
	return t.runs.UpdateProgress(ctx, t.runID, progress, stage)
}

func (t tracker) Log(ctx context.Context, typ domain.LogType, message string) error {
	return t.runs.AppendLog(ctx, t.runID, typ, message)
}
