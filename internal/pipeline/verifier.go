package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"modelmarket/internal/domain"
)

// ErrThreatDetected aborts a run whose security scan found a critical threat.
var ErrThreatDetected = errors.New("threat detected")

// Tracker receives the side effects of a run. Implementations must not
// mutate state once ctx is done.
type Tracker interface {
	Progress(ctx context.Context, progress int, stage string) error
	Log(ctx context.Context, typ domain.LogType, message string) error
}

// Uploader forwards the selected file to the model backend.
type Uploader interface {
	UploadModel(ctx context.Context, file domain.FileRef) (remoteID string, err error)
}

type Options struct {
	Rand     Rand
	Sleep    Sleeper
	Settings Settings
	Uploader Uploader
	Now      func() time.Time
	Logger   *slog.Logger
}

func (o *Options) defaults() {
	if o.Rand == nil {
		o.Rand = NewRand(0)
	}
	if o.Sleep == nil {
		o.Sleep = Sleep
	}
	if o.Settings.Steps == 0 {
		o.Settings = DefaultSettings()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Verifier drives the verification stages strictly in order.
type Verifier struct {
	opts   Options
	seq    Sequencer
	stages map[string]Stage
}

func NewVerifier(opts Options) *Verifier {
	opts.defaults()
	stages := make(map[string]Stage)
	for _, s := range opts.Settings.Apply(VerificationStages()) {
		stages[s.Name] = s
	}
	return &Verifier{
		opts:   opts,
		seq:    NewSequencer(opts.Settings.Steps, opts.Sleep),
		stages: stages,
	}
}

// runStage reports the stage start, animates its progress band and then
// performs the stage work.
func runStage(ctx context.Context, seq Sequencer, st Stage, t Tracker, work func() error) error {
	if err := t.Progress(ctx, st.Start, st.Name); err != nil {
		return err
	}
	if err := seq.Advance(ctx, st.Start, st.End, st.Duration, func(p int) error {
		return t.Progress(ctx, p, st.Name)
	}); err != nil {
		return err
	}
	return work()
}

func (v *Verifier) pause(ctx context.Context) error {
	return v.opts.Sleep(ctx, v.opts.Settings.Latency)
}

func (v *Verifier) stage(ctx context.Context, name string, t Tracker, work func() error) error {
	return runStage(ctx, v.seq, v.stages[name], t, work)
}

// Run executes every stage against file and returns the aggregated report.
func (v *Verifier) Run(ctx context.Context, file domain.FileRef, t Tracker) (domain.FinalReport, error) {
	var f Findings
	r := v.opts.Rand
	logf := func(typ domain.LogType, format string, args ...any) error {
		return t.Log(ctx, typ, fmt.Sprintf(format, args...))
	}

	if err := logf(domain.LogInfo, "Starting verification of %s", file.Name); err != nil {
		return domain.FinalReport{}, err
	}

	err := v.stage(ctx, StageUpload, t, func() error {
		f.FileInfo = AnalyzeFile(file)
		if v.opts.Uploader != nil && file.Path != "" {
			id, err := v.opts.Uploader.UploadModel(ctx, file)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				v.opts.Logger.Warn("model upload failed", "file", file.Name, "error", err)
				return logf(domain.LogWarning, "Upload to model backend failed, continuing with local analysis")
			}
			if err := logf(domain.LogInfo, "Uploaded to model backend as %s", id); err != nil {
				return err
			}
		}
		return logf(domain.LogSuccess, "File received: %s (%s, %s)", f.FileInfo.Name, f.FileInfo.Type, f.FileInfo.Size)
	})
	if err != nil {
		return domain.FinalReport{}, err
	}

	err = v.stage(ctx, StageSecurityScan, t, func() error {
		if err := logf(domain.LogInfo, "Running deep security scan"); err != nil {
			return err
		}
		if err := v.pause(ctx); err != nil {
			return err
		}
		f.Security = RunDeepSecurityScan(file, v.opts.Now())
		for _, th := range f.Security.Threats {
			typ := domain.LogWarning
			if th.Severity == domain.SeverityCritical {
				typ = domain.LogError
			}
			if err := logf(typ, "Security: %s", th.Description); err != nil {
				return err
			}
		}
		if f.Security.Critical() {
			return fmt.Errorf("%w: %s", ErrThreatDetected, f.Security.Threats[len(f.Security.Threats)-1].Description)
		}
		if f.Security.Safe {
			return logf(domain.LogSuccess, "Security scan passed (%d checks)", len(f.Security.ChecksPerformed))
		}
		return nil
	})
	if err != nil {
		return domain.FinalReport{}, err
	}

	err = v.stage(ctx, StageArchitecture, t, func() error {
		if err := v.pause(ctx); err != nil {
			return err
		}
		f.ML = AnalyzeMLModel(r, f.FileInfo, v.opts.Settings.Architectures)
		return logf(domain.LogSuccess, "Detected %s architecture (%s)", f.ML.Architecture, f.ML.Framework)
	})
	if err != nil {
		return domain.FinalReport{}, err
	}

	err = v.stage(ctx, StageLayers, t, func() error {
		if err := v.pause(ctx); err != nil {
			return err
		}
		return logf(domain.LogSuccess, "Analyzed %d layers, %d parameters (%d trainable)",
			f.ML.LayerCount, f.ML.TotalParameters, f.ML.TrainableParameters)
	})
	if err != nil {
		return domain.FinalReport{}, err
	}

	err = v.stage(ctx, StageBenchmark, t, func() error {
		if err := v.pause(ctx); err != nil {
			return err
		}
		f.Performance = RunPerformanceBenchmark(r, f.ML)
		return logf(domain.LogSuccess, "Inference %.2f ms, %.2f req/s", f.Performance.InferenceTimeMs, f.Performance.ThroughputPerSec)
	})
	if err != nil {
		return domain.FinalReport{}, err
	}

	err = v.stage(ctx, StageCompatibility, t, func() error {
		if err := v.pause(ctx); err != nil {
			return err
		}
		f.Compatibility = CheckPlatformCompatibility(f.FileInfo)
		typ := domain.LogSuccess
		if !f.Compatibility.IOS || !f.Compatibility.Android || !f.Compatibility.Web || !f.Compatibility.Edge {
			typ = domain.LogWarning
		}
		return logf(typ, "Compatibility iOS=%t Android=%t Web=%t Edge=%t",
			f.Compatibility.IOS, f.Compatibility.Android, f.Compatibility.Web, f.Compatibility.Edge)
	})
	if err != nil {
		return domain.FinalReport{}, err
	}

	err = v.stage(ctx, StageQuality, t, func() error {
		if err := v.pause(ctx); err != nil {
			return err
		}
		f.Quality = AssessModelQuality(r, f.ML, f.Performance, f.Security)
		return logf(domain.LogSuccess, "Quality score %d (%s)", f.Quality.Overall, f.Quality.Grade)
	})
	if err != nil {
		return domain.FinalReport{}, err
	}

	err = v.stage(ctx, StageCompression, t, func() error {
		if err := v.pause(ctx); err != nil {
			return err
		}
		f.Compression = AnalyzeCompressionPotential(f.FileInfo, f.ML)
		return logf(domain.LogInfo, "Estimated compression %d%% (recommended: %t)", f.Compression.EstimatedRatio, f.Compression.Recommended)
	})
	if err != nil {
		return domain.FinalReport{}, err
	}

	report := Aggregate(f, v.opts.Now())
	typ := domain.LogSuccess
	if report.Status != domain.ReportVerified {
		typ = domain.LogWarning
	}
	if err := logf(typ, "Verification finished: %s, score %d (%s)", report.Status, report.Score, report.Grade); err != nil {
		return domain.FinalReport{}, err
	}
	return report, nil
}
