package pipeline

import (
	"context"
	"fmt"
	"math"

	"modelmarket/internal/domain"
)

var levelTargets = map[domain.CompressionLevel]float64{
	domain.LevelLight:      0.30,
	domain.LevelBalanced:   0.50,
	domain.LevelAggressive: 0.70,
	domain.LevelExtreme:    0.85,
}

var levelAccuracyLoss = map[domain.CompressionLevel]float64{
	domain.LevelLight:      0.5,
	domain.LevelBalanced:   1.5,
	domain.LevelAggressive: 3.5,
	domain.LevelExtreme:    7,
}

var levelTechniques = map[domain.CompressionLevel][]string{
	domain.LevelLight:      {"weight sharing"},
	domain.LevelBalanced:   {"weight sharing", "magnitude pruning"},
	domain.LevelAggressive: {"magnitude pruning", "int8 quantization"},
	domain.LevelExtreme:    {"structured pruning", "int4 quantization", "knowledge distillation"},
}

// ModelInfoFor describes a file for the compression page. Parameters assume FP32 weights.
func ModelInfoFor(file domain.FileRef) domain.ModelInfo {
	info := AnalyzeFile(file)
	return domain.ModelInfo{
		Name:       file.Name,
		Format:     info.Format,
		SizeBytes:  file.Size,
		SizeMB:     round2(float64(file.Size) / megabyte),
		Parameters: file.Size / 4,
	}
}

// Compress fabricates the outcome of compressing a model at level.
func Compress(r Rand, info domain.ModelInfo, level domain.CompressionLevel) domain.CompressionResult {
	target := levelTargets[level]
	ratio := math.Min(0.95, math.Max(0.05, target+r.Float64()*0.1-0.05))
	accuracy := 100 - levelAccuracyLoss[level] - r.Float64()*2
	accuracy = math.Min(100, math.Max(0, accuracy))
	return domain.CompressionResult{
		OriginalSizeMB:    info.SizeMB,
		CompressedSizeMB:  round2(info.SizeMB * (1 - ratio)),
		Ratio:             round2(ratio * 100),
		AccuracyRetention: round2(accuracy),
		SpeedUp:           round2(1 + ratio*2.5),
		Techniques:        append([]string(nil), levelTechniques[level]...),
	}
}

// Compressor drives the compression stages.
type Compressor struct {
	opts   Options
	seq    Sequencer
	stages []Stage
}

func NewCompressor(opts Options) *Compressor {
	opts.defaults()
	return &Compressor{
		opts:   opts,
		seq:    NewSequencer(opts.Settings.Steps, opts.Sleep),
		stages: opts.Settings.Apply(CompressionStages()),
	}
}

func (c *Compressor) Run(ctx context.Context, info domain.ModelInfo, level domain.CompressionLevel, t Tracker) (domain.CompressionResult, error) {
	if !level.Valid() {
		return domain.CompressionResult{}, fmt.Errorf("unknown compression level %q", level)
	}
	if err := t.Log(ctx, domain.LogInfo, fmt.Sprintf("Compressing %s (%.2f MB) at %s level", info.Name, info.SizeMB, level)); err != nil {
		return domain.CompressionResult{}, err
	}
	result := Compress(c.opts.Rand, info, level)
	messages := map[string]string{
		StageModelAnalysis: fmt.Sprintf("Estimated %d parameters", info.Parameters),
		StagePruning:       "Pruned low-magnitude weights",
		StageQuantization:  fmt.Sprintf("Quantized with %v", result.Techniques),
		StageEncoding:      fmt.Sprintf("Encoded model to %.2f MB", result.CompressedSizeMB),
		StageValidation:    fmt.Sprintf("Accuracy retention %.2f%%", result.AccuracyRetention),
	}
	for _, st := range c.stages {
		err := runStage(ctx, c.seq, st, t, func() error {
			if err := c.opts.Sleep(ctx, c.opts.Settings.Latency); err != nil {
				return err
			}
			return t.Log(ctx, domain.LogSuccess, messages[st.Name])
		})
		if err != nil {
			return domain.CompressionResult{}, err
		}
	}
	if err := t.Log(ctx, domain.LogSuccess, fmt.Sprintf("Compression finished: %.2f%% smaller, %.2fx faster", result.Ratio, result.SpeedUp)); err != nil {
		return domain.CompressionResult{}, err
	}
	return result, nil
}
