package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"modelmarket/internal/domain"
)

func TestLoadSettingsDefaults(t *testing.T) {
	s, err := LoadSettings("")
	if err != nil {
		t.Fatal(err)
	}
	if s.Steps != DefaultSteps || len(s.Architectures) == 0 {
		t.Errorf("defaults = %+v", s)
	}
}

func TestLoadSettingsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	doc := `
steps: 10
latency: 5ms
durations:
  upload: 2s
  security scan: 50ms
architectures:
  .onnx: ["TinyNet"]
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.Steps != 10 || s.Latency != 5*time.Millisecond {
		t.Errorf("steps/latency = %d/%v", s.Steps, s.Latency)
	}
	stages := s.Apply(VerificationStages())
	if stages[0].Duration != 2*time.Second || stages[1].Duration != 50*time.Millisecond {
		t.Errorf("durations not applied: %+v", stages[:2])
	}
	if stages[2].Duration != defaultStageDuration {
		t.Errorf("untouched stage changed: %v", stages[2].Duration)
	}

	info := AnalyzeFile(domain.FileRef{Name: "m.onnx", Size: 1})
	if got := AnalyzeMLModel(NewRand(1), info, s.Architectures).Architecture; got != "TinyNet" {
		t.Errorf("architecture = %q", got)
	}
}

func TestLoadSettingsRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	if err := os.WriteFile(path, []byte("durations:\n  upload: soon\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSettings(path); err == nil {
		t.Error("bad duration accepted")
	}
}

func TestAccumulatorOrderAndSince(t *testing.T) {
	a := NewAccumulator(nil)
	a.Add(domain.LogInfo, "one")
	a.Add(domain.LogSuccess, "two")
	a.Add(domain.LogError, "three")

	all := a.Entries()
	if len(all) != 3 || all[0].Message != "one" || all[2].Type != domain.LogError {
		t.Fatalf("entries = %+v", all)
	}
	if tail := a.Since(2); len(tail) != 1 || tail[0].Message != "three" {
		t.Errorf("Since(2) = %+v", tail)
	}
	if empty := a.Since(10); len(empty) != 0 {
		t.Errorf("Since(10) = %+v", empty)
	}
	all[0].Message = "mutated"
	if a.Entries()[0].Message != "one" {
		t.Error("Entries did not return a copy")
	}
}
