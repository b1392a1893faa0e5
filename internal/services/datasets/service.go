package datasets

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"modelmarket/internal/adapters/storage"
	"modelmarket/internal/domain"
	"modelmarket/internal/ports"
)

// Store keeps the uploaded bytes.
type Store interface {
	Put(ctx context.Context, prefix, name string, r io.Reader) (storage.Object, error)
	Remove(path string) error
}

type Service struct {
	datasets ports.DatasetRepository
	store    Store
	logger   *slog.Logger
}

func New(datasets ports.DatasetRepository, store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{datasets: datasets, store: store, logger: logger}
}

func (s *Service) List(ctx context.Context, userID string) ([]domain.Dataset, error) {
	return s.datasets.ListDatasets(ctx, userID)
}

// Upload stores the file under the user's prefix and records it. The stored
// file is removed again if the record cannot be written.
func (s *Service) Upload(ctx context.Context, userID string, projectID *string, name string, r io.Reader) (domain.Dataset, error) {
	d := domain.Dataset{UserID: userID, ProjectID: projectID, Name: strings.TrimSpace(name)}
	if err := d.Validate(); err != nil {
		return domain.Dataset{}, err
	}
	obj, err := s.store.Put(ctx, "datasets/"+userID, d.Name, r)
	if err != nil {
		return domain.Dataset{}, err
	}
	d.FilePath = obj.Key
	d.PublicURL = obj.URL
	d.SizeBytes = obj.Size

	out, err := s.datasets.CreateDataset(ctx, d)
	if err != nil {
		if rmErr := s.store.Remove(obj.Path); rmErr != nil {
			s.logger.Warn("orphaned dataset file", "path", obj.Path, "error", rmErr)
		}
		return domain.Dataset{}, err
	}
	return out, nil
}
