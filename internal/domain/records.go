package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Rows owned by the hosted database. Every field is explicit and writes go
// through Validate before reaching the adapter.

var ErrInvalidRecord = errors.New("invalid record")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRecord, fmt.Sprintf(format, args...))
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type ProjectStatus string

const (
	ProjectDraft    ProjectStatus = "draft"
	ProjectActive   ProjectStatus = "active"
	ProjectArchived ProjectStatus = "archived"
)

type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskRunning TaskStatus = "running"
	TaskDone    TaskStatus = "done"
	TaskFailed  TaskStatus = "failed"
)

// Project size limits keep a row change notification under the pg_notify payload limit.
const (
	MaxProjectDescription = 2000
	MaxBackendTasks       = 50
	MaxBackendTaskName    = 100
)

// BackendTask is one entry of a project's backend_tasks column.
type BackendTask struct {
	Name     string     `json:"name"`
	Status   TaskStatus `json:"status"`
	Progress int        `json:"progress"`
}

func (t BackendTask) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return invalid("backend task name is required")
	}
	if len(t.Name) > MaxBackendTaskName {
		return invalid("backend task name longer than %d characters", MaxBackendTaskName)
	}
	switch t.Status {
	case TaskPending, TaskRunning, TaskDone, TaskFailed:
	default:
		return invalid("backend task %q has unknown status %q", t.Name, t.Status)
	}
	if t.Progress < 0 || t.Progress > 100 {
		return invalid("backend task %q progress %d outside 0..100", t.Name, t.Progress)
	}
	return nil
}

type Project struct {
	ID           string        `json:"id"`
	UserID       string        `json:"user_id"`
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	Status       ProjectStatus `json:"status"`
	BackendTasks []BackendTask `json:"backend_tasks"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func (p Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return invalid("project name is required")
	}
	if len(p.Name) > 200 {
		return invalid("project name longer than 200 characters")
	}
	if len(p.Description) > MaxProjectDescription {
		return invalid("project description longer than %d characters", MaxProjectDescription)
	}
	if len(p.BackendTasks) > MaxBackendTasks {
		return invalid("project has more than %d backend tasks", MaxBackendTasks)
	}
	switch p.Status {
	case ProjectDraft, ProjectActive, ProjectArchived:
	default:
		return invalid("unknown project status %q", p.Status)
	}
	seen := make(map[string]bool, len(p.BackendTasks))
	for _, t := range p.BackendTasks {
		if err := t.Validate(); err != nil {
			return err
		}
		if seen[t.Name] {
			return invalid("duplicate backend task %q", t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}

type Dataset struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ProjectID *string   `json:"project_id,omitempty"`
	Name      string    `json:"name"`
	FilePath  string    `json:"file_path"`
	PublicURL string    `json:"public_url"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

func (d Dataset) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return invalid("dataset name is required")
	}
	if d.SizeBytes < 0 {
		return invalid("dataset size must not be negative")
	}
	return nil
}

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

type TrainingJob struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	ProjectID  string     `json:"project_id"`
	DatasetID  *string    `json:"dataset_id,omitempty"`
	ModelName  string     `json:"model_name"`
	Status     JobStatus  `json:"status"`
	Progress   float64    `json:"progress"`
	Attempts   int        `json:"attempts"`
	Error      string     `json:"error,omitempty"`
	QueuedAt   time.Time  `json:"queued_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func (j TrainingJob) Validate() error {
	if j.ProjectID == "" {
		return invalid("training job requires a project")
	}
	if strings.TrimSpace(j.ModelName) == "" {
		return invalid("training job requires a model name")
	}
	return nil
}

type Domain struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	RegistrableDomain string    `json:"registrable_domain"`
	Verified          bool      `json:"verified"`
	CreatedAt         time.Time `json:"created_at"`
}

type Wallet struct {
	UserID    string    `json:"user_id"`
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

type TransactionKind string

const (
	TxPurchase TransactionKind = "purchase"
	TxSpend    TransactionKind = "spend"
	TxRefund   TransactionKind = "refund"
)

type Transaction struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Kind      TransactionKind `json:"kind"`
	Amount    int64           `json:"amount"`
	Reference string          `json:"reference"`
	CreatedAt time.Time       `json:"created_at"`
}

func (t Transaction) Validate() error {
	switch t.Kind {
	case TxPurchase, TxRefund:
		if t.Amount <= 0 {
			return invalid("%s amount must be positive", t.Kind)
		}
	case TxSpend:
		if t.Amount >= 0 {
			return invalid("spend amount must be negative")
		}
	default:
		return invalid("unknown transaction kind %q", t.Kind)
	}
	return nil
}
