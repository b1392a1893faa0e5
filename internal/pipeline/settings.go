package pipeline

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Stage names of the verification sequence, in order.
const (
	StageUpload        = "upload"
	StageSecurityScan  = "security scan"
	StageArchitecture  = "architecture analysis"
	StageLayers        = "layer analysis"
	StageBenchmark     = "benchmarking"
	StageCompatibility = "compatibility check"
	StageQuality       = "quality scoring"
	StageCompression   = "compression estimate"
)

// Stage names of the compression sequence, in order.
const (
	StageModelAnalysis = "model analysis"
	StagePruning       = "pruning"
	StageQuantization  = "quantization"
	StageEncoding      = "encoding"
	StageValidation    = "validation"
)

type Stage struct {
	Name     string        `yaml:"name"`
	Start    int           `yaml:"start"`
	End      int           `yaml:"end"`
	Duration time.Duration `yaml:"duration"`
}

const defaultStageDuration = 600 * time.Millisecond

func VerificationStages() []Stage {
	return []Stage{
		{StageUpload, 0, 10, defaultStageDuration},
		{StageSecurityScan, 10, 25, defaultStageDuration},
		{StageArchitecture, 25, 40, defaultStageDuration},
		{StageLayers, 40, 55, defaultStageDuration},
		{StageBenchmark, 55, 70, defaultStageDuration},
		{StageCompatibility, 70, 80, defaultStageDuration},
		{StageQuality, 80, 90, defaultStageDuration},
		{StageCompression, 90, 100, defaultStageDuration},
	}
}

func CompressionStages() []Stage {
	return []Stage{
		{StageModelAnalysis, 0, 20, defaultStageDuration},
		{StagePruning, 20, 45, defaultStageDuration},
		{StageQuantization, 45, 70, defaultStageDuration},
		{StageEncoding, 70, 90, defaultStageDuration},
		{StageValidation, 90, 100, defaultStageDuration},
	}
}

// Settings tunes the simulated pipelines. Zero values fall back to defaults.
type Settings struct {
	Steps         int                 `yaml:"steps"`
	Latency       time.Duration       `yaml:"latency"`
	Durations     map[string]string   `yaml:"durations"`
	Architectures map[string][]string `yaml:"architectures"`
}

func DefaultSettings() Settings {
	return Settings{
		Steps:         DefaultSteps,
		Latency:       150 * time.Millisecond,
		Architectures: DefaultArchitectures,
	}
}

// LoadSettings reads a YAML settings file. An empty path yields the defaults.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read pipeline settings: %w", err)
	}
	var file Settings
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return s, fmt.Errorf("parse pipeline settings: %w", err)
	}
	if file.Steps > 0 {
		s.Steps = file.Steps
	}
	if file.Latency > 0 {
		s.Latency = file.Latency
	}
	for name, d := range file.Durations {
		if _, err := time.ParseDuration(d); err != nil {
			return s, fmt.Errorf("stage %q: %w", name, err)
		}
	}
	s.Durations = file.Durations
	if len(file.Architectures) > 0 {
		s.Architectures = file.Architectures
	}
	return s, nil
}

// Apply overrides stage durations by name.
func (s Settings) Apply(stages []Stage) []Stage {
	out := make([]Stage, len(stages))
	copy(out, stages)
	for i := range out {
		if raw, ok := s.Durations[out[i].Name]; ok {
			if d, err := time.ParseDuration(raw); err == nil {
				out[i].Duration = d
			}
		}
	}
	return out
}
