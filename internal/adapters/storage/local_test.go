package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPutAndRemove(t *testing.T) {
	l, err := NewLocal(t.TempDir(), "http://localhost:8080/")
	if err != nil {
		t.Fatal(err)
	}
	obj, err := l.Put(context.Background(), "datasets/u1", "../../train set.csv", strings.NewReader("a,b\n1,2\n"))
	if err != nil {
		t.Fatal(err)
	}
	if obj.Size != 8 {
		t.Errorf("size = %d", obj.Size)
	}
	if !strings.HasPrefix(obj.Key, "datasets/u1/") || !strings.HasSuffix(obj.Key, "-train_set.csv") {
		t.Errorf("key = %q", obj.Key)
	}
	if want := "http://localhost:8080/storage/" + obj.Key; obj.URL != want {
		t.Errorf("url = %q, want %q", obj.URL, want)
	}
	if _, err := os.Stat(obj.Path); err != nil {
		t.Fatal(err)
	}

	if err := l.Remove(obj.Key); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(obj.Path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("file still present: %v", err)
	}
	if err := l.Remove(obj.Path); err != nil {
		t.Errorf("second remove: %v", err)
	}
}

func TestRemoveOutsideRoot(t *testing.T) {
	root := t.TempDir()
	l, _ := NewLocal(filepath.Join(root, "store"), "")
	for _, p := range []string{"../escape", filepath.Join(root, "other"), ""} {
		if err := l.Remove(p); !errors.Is(err, ErrOutsideRoot) {
			t.Errorf("Remove(%q) err = %v", p, err)
		}
	}
}

func TestPutCancelled(t *testing.T) {
	l, _ := NewLocal(t.TempDir(), "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Put(ctx, "models", "m.onnx", strings.NewReader("x")); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}
