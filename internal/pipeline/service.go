// Package pipeline provides planning and orchestration for the conversion
// workflow: probe → classify → confirm → convert → finalize, per file, with
// split analysis and encode worker pools for batches.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"dpconv/internal/ffmpeg"
	"dpconv/internal/hwaccel"
	"dpconv/internal/model"
	"dpconv/internal/probe"
	"dpconv/internal/progress"
	"dpconv/internal/util"
)

// mediaProber is the slice of probe.Prober the pipeline needs.
type mediaProber interface {
	Probe(ctx context.Context, path string) (*probe.Descriptor, error)
	Duration(ctx context.Context, path string) (float64, bool)
}

// encodeSupervisor runs one built argument vector to completion.
type encodeSupervisor interface {
	Run(ctx context.Context, args []string, totalSeconds float64, hasTotal bool) ffmpeg.RunResult
}

// gpuSource defers hardware detection until the first encode needs it.
type gpuSource interface {
	Get(ctx context.Context) hwaccel.Capability
}

// cacheUpdater is the slice of cache.Store the pipeline writes through.
type cacheUpdater interface {
	UpsertProcessed(ctx context.Context, filePath string, processed bool, at time.Time) error
}

// Service orchestrates the probe → classify → convert → finalize workflow.
type Service struct {
	ffmpegPath  string
	ffprobePath string
	enc         model.EncodeOptions
	run         model.RunOptions

	runner    util.CmdRunner
	prober    mediaProber
	reporter  progress.Reporter
	cache     cacheUpdater
	confirmer Confirmer
	gpu       gpuSource

	newSupervisor func(onProgress func(ffmpeg.State)) encodeSupervisor
}

// Option configures a Service.
type Option func(*Service)

// WithFFmpegPath sets the ffmpeg binary path.
func WithFFmpegPath(p string) Option {
	return func(s *Service) {
		s.ffmpegPath = p
	}
}

// WithFFprobePath sets the ffprobe binary path.
func WithFFprobePath(p string) Option {
	return func(s *Service) {
		s.ffprobePath = p
	}
}

// WithEncodeOptions sets the per-run encoding configuration.
func WithEncodeOptions(o model.EncodeOptions) Option {
	return func(s *Service) {
		s.enc = o
	}
}

// WithRunOptions sets the batch behavior options.
func WithRunOptions(o model.RunOptions) Option {
	return func(s *Service) {
		s.run = o
	}
}

// WithRunner injects a custom command runner (useful for testing).
func WithRunner(r util.CmdRunner) Option {
	return func(s *Service) {
		s.runner = r
	}
}

// WithReporter attaches a progress reporter (used by TUI and plain output).
func WithReporter(rp progress.Reporter) Option {
	return func(s *Service) {
		s.reporter = rp
	}
}

// WithCache attaches the batch cache; processed rows are updated after
// each successful conversion.
func WithCache(c cacheUpdater) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithConfirmer injects the interactive confirmation source.
func WithConfirmer(c Confirmer) Option {
	return func(s *Service) {
		s.confirmer = c
	}
}

// WithGPU injects the hardware capability source.
func WithGPU(g gpuSource) Option {
	return func(s *Service) {
		s.gpu = g
	}
}

// WithSupervisorFactory overrides subprocess supervision (useful for testing).
func WithSupervisorFactory(f func(onProgress func(ffmpeg.State)) encodeSupervisor) Option {
	return func(s *Service) {
		s.newSupervisor = f
	}
}

// NewService constructs a new Service with the provided options.
// It applies sensible defaults for missing components.
func NewService(opts ...Option) *Service {
	s := &Service{}
	for _, o := range opts {
		o(s)
	}
	if s.runner == nil {
		s.runner = util.NewDefaultRunner()
	}
	if s.prober == nil {
		s.prober = &probe.Prober{FFprobePath: s.ffprobePath, Runner: s.runner}
	}
	if s.gpu == nil {
		s.gpu = &hwaccel.Lazy{FFmpegPath: s.ffmpegPath, Runner: s.runner}
	}
	if s.newSupervisor == nil {
		s.newSupervisor = func(onProgress func(ffmpeg.State)) encodeSupervisor {
			return &ffmpeg.Supervisor{FFmpegPath: s.ffmpegPath, OnProgress: onProgress}
		}
	}
	s.run.ClampJobs()
	return s
}

// capability resolves the hardware encoder lazily; software-only runs
// never touch it.
func (s *Service) capability(ctx context.Context) hwaccel.Capability {
	if !s.enc.UseGPU {
		return hwaccel.Capability{}
	}
	return s.gpu.Get(ctx)
}

// ProcessFile runs the full per-file workflow: analyze, then convert.
// It never prints; when a Reporter is present, it emits progress and a
// final Result.
func (s *Service) ProcessFile(ctx context.Context, path, jobID string) FileResult {
	a, done := s.analyze(ctx, path, jobID)
	if done != nil {
		s.emitResult(*done)
		return *done
	}
	res := s.convert(ctx, a)
	s.emitResult(res)
	return res
}

func (s *Service) emitResult(r FileResult) {
	if s.reporter == nil {
		return
	}
	stage := progress.StageCompleted
	switch r.Outcome {
	case OutcomeError:
		stage = progress.StageError
	case OutcomeSkipped, OutcomeFiltered, OutcomeInterrupted, OutcomeQuit:
		stage = progress.StageSkipped
	}
	s.reporter.Update(progress.Update{
		JobID:   r.JobID,
		Path:    r.Path,
		Stage:   stage,
		Percent: -1,
		Message: r.Message,
	})
	s.reporter.Result(progress.Result{
		JobID:      r.JobID,
		Path:       r.Path,
		OutputPath: r.OutputPath,
		Outcome:    string(r.Outcome),
		Err:        r.Err,
	})
}

func (s *Service) emitUpdate(u progress.Update) {
	if s.reporter != nil {
		s.reporter.Update(u)
	}
}

func (s *Service) emitLog(jobID, line string) {
	if s.reporter != nil {
		s.reporter.Log(progress.Log{JobID: jobID, Stream: progress.StreamStderr, Line: line})
	}
}

func (s *Service) debugf(jobID, format string, args ...any) {
	if s.run.Debug {
		s.emitLog(jobID, fmt.Sprintf(format, args...))
	}
}
