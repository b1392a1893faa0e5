// Package training queues training jobs for the external trainer and tracks their progress.
package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"modelmarket/internal/domain"
	"modelmarket/internal/ports"
)

var ErrInvalidProgress = errors.New("progress must be within 0..1")

type Service struct {
	jobs    ports.TrainingRepository
	trainer ports.TrainerQueue
	logger  *slog.Logger
}

func New(jobs ports.TrainingRepository, trainer ports.TrainerQueue, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobs: jobs, trainer: trainer, logger: logger}
}

func (s *Service) Enqueue(ctx context.Context, userID string, j domain.TrainingJob) (domain.TrainingJob, error) {
	j.UserID = userID
	j.ModelName = strings.TrimSpace(j.ModelName)
	if err := j.Validate(); err != nil {
		return domain.TrainingJob{}, err
	}
	out, err := s.jobs.EnqueueTraining(ctx, j)
	if err != nil {
		return domain.TrainingJob{}, err
	}
	s.logger.Info("training job queued", "job_id", out.ID, "project_id", out.ProjectID, "user_id", userID)
	return out, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]domain.TrainingJob, error) {
	return s.jobs.ListTraining(ctx, userID)
}

func (s *Service) Get(ctx context.Context, userID, id string) (domain.TrainingJob, error) {
	return s.jobs.GetTraining(ctx, userID, id)
}

func (s *Service) Cancel(ctx context.Context, userID, id string) error {
	return s.jobs.CancelTraining(ctx, userID, id)
}

// ClaimNext hands the oldest queued job to the trainer.
func (s *Service) ClaimNext(ctx context.Context) (domain.TrainingJob, bool, error) {
	j, found, err := s.trainer.ClaimNextTraining(ctx)
	if err != nil || !found {
		return j, found, err
	}
	s.logger.Info("training job claimed", "job_id", j.ID, "attempt", j.Attempts)
	return j, true, nil
}

func (s *Service) Progress(ctx context.Context, id string, progress float64) error {
	if progress < 0 || progress > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidProgress, progress)
	}
	return s.trainer.UpdateTrainingProgress(ctx, id, progress)
}

func (s *Service) Complete(ctx context.Context, id string) error {
	if err := s.trainer.CompleteTraining(ctx, id); err != nil {
		return err
	}
	s.logger.Info("training job completed", "job_id", id)
	return nil
}

func (s *Service) Fail(ctx context.Context, id, reason string) error {
	if strings.TrimSpace(reason) == "" {
		reason = "trainer reported failure"
	}
	if err := s.trainer.FailTraining(ctx, id, reason); err != nil {
		return err
	}
	s.logger.Warn("training job failed", "job_id", id, "reason", reason)
	return nil
}
