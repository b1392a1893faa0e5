package projects

import (
	"context"
	"fmt"
	"strings"

	"modelmarket/internal/domain"
	"modelmarket/internal/ports"
)

type Service struct {
	projects ports.ProjectRepository
}

func New(projects ports.ProjectRepository) *Service { return &Service{projects: projects} }

// Patch carries the fields of an update. Nil fields are left unchanged.
type Patch struct {
	Name         *string               `json:"name"`
	Description  *string               `json:"description"`
	Status       *domain.ProjectStatus `json:"status"`
	BackendTasks *[]domain.BackendTask `json:"backend_tasks"`
}

func (s *Service) List(ctx context.Context, userID string) ([]domain.Project, error) {
	return s.projects.ListProjects(ctx, userID)
}

func (s *Service) Get(ctx context.Context, userID, id string) (domain.Project, error) {
	return s.projects.GetProject(ctx, userID, id)
}

func (s *Service) Create(ctx context.Context, userID string, p domain.Project) (domain.Project, error) {
	p.UserID = userID
	p.Name = strings.TrimSpace(p.Name)
	if p.Status == "" {
		p.Status = domain.ProjectDraft
	}
	if p.BackendTasks == nil {
		p.BackendTasks = []domain.BackendTask{}
	}
	if err := p.Validate(); err != nil {
		return domain.Project{}, err
	}
	return s.projects.CreateProject(ctx, p)
}

func (s *Service) Update(ctx context.Context, userID, id string, patch Patch) (domain.Project, error) {
	p, err := s.projects.GetProject(ctx, userID, id)
	if err != nil {
		return domain.Project{}, err
	}
	if patch.Name != nil {
		p.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	if patch.BackendTasks != nil {
		p.BackendTasks = *patch.BackendTasks
	}
	if err := p.Validate(); err != nil {
		return domain.Project{}, err
	}
	return s.projects.UpdateProject(ctx, p)
}

// SetTask creates or replaces one backend task of the project.
func (s *Service) SetTask(ctx context.Context, userID, id string, task domain.BackendTask) (domain.Project, error) {
	if err := task.Validate(); err != nil {
		return domain.Project{}, err
	}
	p, err := s.projects.GetProject(ctx, userID, id)
	if err != nil {
		return domain.Project{}, err
	}
	tasks := make([]domain.BackendTask, 0, len(p.BackendTasks)+1)
	replaced := false
	for _, t := range p.BackendTasks {
		if t.Name == task.Name {
			t = task
			replaced = true
		}
		tasks = append(tasks, t)
	}
	if !replaced {
		tasks = append(tasks, task)
	}
	p.BackendTasks = tasks
	if err := p.Validate(); err != nil {
		return domain.Project{}, fmt.Errorf("project %s: %w", id, err)
	}
	return s.projects.UpdateProject(ctx, p)
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.projects.DeleteProject(ctx, userID, id)
}
