package datasets

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"modelmarket/internal/adapters/storage"
	"modelmarket/internal/domain"
	"modelmarket/internal/ports"
)

type fakeDatasets struct {
	rows []domain.Dataset
	err  error
}

func (f *fakeDatasets) ListDatasets(ctx context.Context, userID string) ([]domain.Dataset, error) {
	return f.rows, nil
}

func (f *fakeDatasets) CreateDataset(ctx context.Context, d domain.Dataset) (domain.Dataset, error) {
	if f.err != nil {
		return domain.Dataset{}, f.err
	}
	d.ID = "d1"
	f.rows = append(f.rows, d)
	return d, nil
}

func TestUpload(t *testing.T) {
	store, err := storage.NewLocal(t.TempDir(), "https://cdn.example.com")
	if err != nil {
		t.Fatal(err)
	}
	repo := &fakeDatasets{}
	svc := New(repo, store, nil)

	d, err := svc.Upload(context.Background(), "u1", nil, "faces.zip", strings.NewReader("zipdata"))
	if err != nil {
		t.Fatal(err)
	}
	if d.SizeBytes != 7 || !strings.HasPrefix(d.PublicURL, "https://cdn.example.com/storage/datasets/u1/") {
		t.Errorf("dataset = %+v", d)
	}
	if _, err := os.Stat(store.Root() + "/" + d.FilePath); err != nil {
		t.Errorf("stored file: %v", err)
	}
}

func TestUploadRemovesFileOnRecordFailure(t *testing.T) {
	dir := t.TempDir()
	store, _ := storage.NewLocal(dir, "")
	svc := New(&fakeDatasets{err: ports.ErrNotFound}, store, nil)

	if _, err := svc.Upload(context.Background(), "u1", nil, "x.csv", strings.NewReader("a")); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	entries, _ := os.ReadDir(dir + "/datasets/u1")
	if len(entries) != 0 {
		t.Errorf("left %d files behind", len(entries))
	}
}

func TestUploadRequiresName(t *testing.T) {
	store, _ := storage.NewLocal(t.TempDir(), "")
	svc := New(&fakeDatasets{}, store, nil)
	if _, err := svc.Upload(context.Background(), "u1", nil, "  ", strings.NewReader("a")); !errors.Is(err, domain.ErrInvalidRecord) {
		t.Errorf("err = %v", err)
	}
}
