package projects

import (
	"context"
	"errors"
	"testing"

	"modelmarket/internal/domain"
	"modelmarket/internal/ports"
)

type fakeProjects struct {
	rows map[string]domain.Project
	next int
}

func newFake() *fakeProjects { return &fakeProjects{rows: map[string]domain.Project{}} }

func (f *fakeProjects) ListProjects(ctx context.Context, userID string) ([]domain.Project, error) {
	var out []domain.Project
	for _, p := range f.rows {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProjects) GetProject(ctx context.Context, userID, id string) (domain.Project, error) {
	p, ok := f.rows[id]
	if !ok || p.UserID != userID {
		return domain.Project{}, ports.ErrNotFound
	}
	return p, nil
}

func (f *fakeProjects) CreateProject(ctx context.Context, p domain.Project) (domain.Project, error) {
	f.next++
	p.ID = string(rune('a' + f.next))
	f.rows[p.ID] = p
	return p, nil
}

func (f *fakeProjects) UpdateProject(ctx context.Context, p domain.Project) (domain.Project, error) {
	f.rows[p.ID] = p
	return p, nil
}

func (f *fakeProjects) DeleteProject(ctx context.Context, userID, id string) error {
	if _, err := f.GetProject(ctx, userID, id); err != nil {
		return err
	}
	delete(f.rows, id)
	return nil
}

func TestCreateDefaults(t *testing.T) {
	svc := New(newFake())
	p, err := svc.Create(context.Background(), "u1", domain.Project{Name: "  Vision  "})
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Vision" || p.Status != domain.ProjectDraft || p.UserID != "u1" || p.BackendTasks == nil {
		t.Errorf("project = %+v", p)
	}
	if _, err := svc.Create(context.Background(), "u1", domain.Project{Name: " "}); !errors.Is(err, domain.ErrInvalidRecord) {
		t.Errorf("blank name err = %v", err)
	}
}

func TestUpdateAndOwnership(t *testing.T) {
	ctx := context.Background()
	svc := New(newFake())
	p, _ := svc.Create(ctx, "u1", domain.Project{Name: "nlp"})

	status := domain.ProjectActive
	got, err := svc.Update(ctx, "u1", p.ID, Patch{Status: &status})
	if err != nil || got.Status != domain.ProjectActive || got.Name != "nlp" {
		t.Fatalf("update = %+v, %v", got, err)
	}
	bad := domain.ProjectStatus("shipped")
	if _, err := svc.Update(ctx, "u1", p.ID, Patch{Status: &bad}); !errors.Is(err, domain.ErrInvalidRecord) {
		t.Errorf("bad status err = %v", err)
	}
	if _, err := svc.Update(ctx, "u2", p.ID, Patch{Status: &status}); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("foreign update err = %v", err)
	}
}

func TestSetTaskReplacesByName(t *testing.T) {
	ctx := context.Background()
	svc := New(newFake())
	p, _ := svc.Create(ctx, "u1", domain.Project{Name: "asr"})

	p, _ = svc.SetTask(ctx, "u1", p.ID, domain.BackendTask{Name: "train", Status: domain.TaskRunning, Progress: 10})
	p, err := svc.SetTask(ctx, "u1", p.ID, domain.BackendTask{Name: "train", Status: domain.TaskDone, Progress: 100})
	if err != nil {
		t.Fatal(err)
	}
	if len(p.BackendTasks) != 1 || p.BackendTasks[0].Status != domain.TaskDone {
		t.Errorf("tasks = %+v", p.BackendTasks)
	}
	if _, err := svc.SetTask(ctx, "u1", p.ID, domain.BackendTask{Name: "eval", Status: domain.TaskPending, Progress: 120}); !errors.Is(err, domain.ErrInvalidRecord) {
		t.Errorf("bad progress err = %v", err)
	}
}
