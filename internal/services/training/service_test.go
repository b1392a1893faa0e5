package training

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"modelmarket/internal/domain"
	"modelmarket/internal/ports"
)

// fakeQueue mirrors the status transitions of the Postgres queue.
type fakeQueue struct {
	mu   sync.Mutex
	jobs []*domain.TrainingJob
}

func (f *fakeQueue) find(id string) *domain.TrainingJob {
	for _, j := range f.jobs {
		if j.ID == id {
			return j
		}
	}
	return nil
}

func (f *fakeQueue) EnqueueTraining(ctx context.Context, j domain.TrainingJob) (domain.TrainingJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j.ID = fmt.Sprintf("job-%d", len(f.jobs)+1)
	j.Status = domain.JobQueued
	f.jobs = append(f.jobs, &j)
	return j, nil
}

func (f *fakeQueue) ListTraining(ctx context.Context, userID string) ([]domain.TrainingJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.TrainingJob
	for _, j := range f.jobs {
		if j.UserID == userID {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (f *fakeQueue) GetTraining(ctx context.Context, userID, id string) (domain.TrainingJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if j := f.find(id); j != nil && j.UserID == userID {
		return *j, nil
	}
	return domain.TrainingJob{}, ports.ErrNotFound
}

func (f *fakeQueue) CancelTraining(ctx context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.find(id)
	if j == nil || j.UserID != userID {
		return ports.ErrNotFound
	}
	if j.Status != domain.JobQueued && j.Status != domain.JobRunning {
		return ports.ErrConflict
	}
	j.Status = domain.JobCancelled
	return nil
}

func (f *fakeQueue) ClaimNextTraining(ctx context.Context) (domain.TrainingJob, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jobs {
		if j.Status == domain.JobQueued {
			j.Status = domain.JobRunning
			j.Attempts++
			return *j, true, nil
		}
	}
	return domain.TrainingJob{}, false, nil
}

func (f *fakeQueue) running(id string) (*domain.TrainingJob, error) {
	j := f.find(id)
	if j == nil || j.Status != domain.JobRunning {
		return nil, ports.ErrConflict
	}
	return j, nil
}

func (f *fakeQueue) UpdateTrainingProgress(ctx context.Context, id string, progress float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, err := f.running(id)
	if err != nil {
		return err
	}
	j.Progress = progress
	return nil
}

func (f *fakeQueue) CompleteTraining(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, err := f.running(id)
	if err != nil {
		return err
	}
	j.Status, j.Progress = domain.JobCompleted, 1
	return nil
}

func (f *fakeQueue) FailTraining(ctx context.Context, id, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, err := f.running(id)
	if err != nil {
		return err
	}
	j.Status, j.Error = domain.JobFailed, reason
	return nil
}

func newService() (*Service, *fakeQueue) {
	q := &fakeQueue{}
	return New(q, q, nil), q
}

func TestTrainerLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	first, err := svc.Enqueue(ctx, "u1", domain.TrainingJob{ProjectID: "p1", ModelName: " bert "})
	if err != nil {
		t.Fatal(err)
	}
	second, _ := svc.Enqueue(ctx, "u1", domain.TrainingJob{ProjectID: "p1", ModelName: "gpt"})

	claimed, found, err := svc.ClaimNext(ctx)
	if err != nil || !found || claimed.ID != first.ID || claimed.ModelName != "bert" {
		t.Fatalf("claim = %+v %v %v", claimed, found, err)
	}
	if err := svc.Progress(ctx, claimed.ID, 0.4); err != nil {
		t.Fatal(err)
	}
	if err := svc.Progress(ctx, claimed.ID, 1.5); !errors.Is(err, ErrInvalidProgress) {
		t.Errorf("out of range err = %v", err)
	}
	if err := svc.Complete(ctx, claimed.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.Complete(ctx, claimed.ID); !errors.Is(err, ports.ErrConflict) {
		t.Errorf("double complete err = %v", err)
	}

	next, _, _ := svc.ClaimNext(ctx)
	if next.ID != second.ID {
		t.Errorf("next = %s, want %s", next.ID, second.ID)
	}
	if err := svc.Fail(ctx, next.ID, ""); err != nil {
		t.Fatal(err)
	}
	got, _ := svc.Get(ctx, "u1", next.ID)
	if got.Status != domain.JobFailed || got.Error == "" {
		t.Errorf("failed job = %+v", got)
	}

	if _, found, _ := svc.ClaimNext(ctx); found {
		t.Error("claimed from an empty queue")
	}
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	j, _ := svc.Enqueue(ctx, "u1", domain.TrainingJob{ProjectID: "p1", ModelName: "vit"})

	if err := svc.Cancel(ctx, "u2", j.ID); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("foreign cancel err = %v", err)
	}
	if err := svc.Cancel(ctx, "u1", j.ID); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := svc.ClaimNext(ctx); found {
		t.Error("cancelled job was claimed")
	}
	if err := svc.Cancel(ctx, "u1", j.ID); !errors.Is(err, ports.ErrConflict) {
		t.Errorf("second cancel err = %v", err)
	}
}

func TestEnqueueValidates(t *testing.T) {
	svc, _ := newService()
	if _, err := svc.Enqueue(context.Background(), "u1", domain.TrainingJob{ModelName: "x"}); !errors.Is(err, domain.ErrInvalidRecord) {
		t.Errorf("err = %v", err)
	}
}
