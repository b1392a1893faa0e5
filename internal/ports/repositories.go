package ports

import (
	"context"
	"errors"

	"modelmarket/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientFunds = errors.New("insufficient token balance")
)

// UserRepository stores accounts for the auth collaborator.
type UserRepository interface {
	CreateUser(ctx context.Context, email, passwordHash string) (domain.User, error)
	UserByEmail(ctx context.Context, email string) (domain.User, error)
	UserByID(ctx context.Context, id string) (domain.User, error)
}

type ProjectRepository interface {
	ListProjects(ctx context.Context, userID string) ([]domain.Project, error)
	GetProject(ctx context.Context, userID, id string) (domain.Project, error)
	CreateProject(ctx context.Context, p domain.Project) (domain.Project, error)
	UpdateProject(ctx context.Context, p domain.Project) (domain.Project, error)
	DeleteProject(ctx context.Context, userID, id string) error
}

type DatasetRepository interface {
	ListDatasets(ctx context.Context, userID string) ([]domain.Dataset, error)
	CreateDataset(ctx context.Context, d domain.Dataset) (domain.Dataset, error)
}

// TrainingRepository is the user-facing side of the training queue.
type TrainingRepository interface {
	EnqueueTraining(ctx context.Context, j domain.TrainingJob) (domain.TrainingJob, error)
	ListTraining(ctx context.Context, userID string) ([]domain.TrainingJob, error)
	GetTraining(ctx context.Context, userID, id string) (domain.TrainingJob, error)
	CancelTraining(ctx context.Context, userID, id string) error
}

// TrainerQueue is the side used by the external trainer.
type TrainerQueue interface {
	ClaimNextTraining(ctx context.Context) (job domain.TrainingJob, found bool, err error)
	UpdateTrainingProgress(ctx context.Context, id string, progress float64) error
	CompleteTraining(ctx context.Context, id string) error
	FailTraining(ctx context.Context, id string, reason string) error
}

// DomainRepository stores custom domains by registrable domain (eTLD+1).
type DomainRepository interface {
	GetOrCreateDomain(ctx context.Context, userID, registrable string) (domain.Domain, error)
	ListDomains(ctx context.Context, userID string) ([]domain.Domain, error)
	DeleteDomain(ctx context.Context, userID, id string) error
}

type WalletRepository interface {
	Wallet(ctx context.Context, userID string) (domain.Wallet, error)
	Transactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error)
	// ApplyTransaction records tx and moves the balance atomically. A
	// reference already recorded for the user yields ErrConflict, and so does
	// a purchase reference recorded for any user.
	ApplyTransaction(ctx context.Context, tx domain.Transaction) (domain.Wallet, error)
}

// ChangeSink receives row change notifications.
type ChangeSink interface {
	Publish(c domain.Change)
}
