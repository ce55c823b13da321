package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dpconv/internal/ffmpeg"
	"dpconv/internal/plan"
	"dpconv/internal/probe"
	"dpconv/internal/progress"
	"dpconv/internal/util"
)

// Outcome is the final disposition of one file.
type Outcome string

const (
	OutcomeProcessed   Outcome = "processed"   // re-encoded successfully
	OutcomeRemuxed     Outcome = "remuxed"     // container rewrap, streams copied
	OutcomeSkipped     Outcome = "skipped"     // nothing to do or user declined
	OutcomeFiltered    Outcome = "filtered"    // excluded by the action filter
	OutcomeInterrupted Outcome = "interrupted" // cancelled mid-conversion
	OutcomeError       Outcome = "error"
	OutcomeQuit        Outcome = "quit" // user quit at the prompt
)

// FileResult is the outcome of processing one file.
type FileResult struct {
	Path       string
	JobID      string
	Action     plan.Action
	Outcome    Outcome
	OutputPath string
	InputSize  int64
	OutputSize int64
	Elapsed    time.Duration
	Message    string
	Err        error
}

// analysis is a probed and classified file, ready for the encode pool.
type analysis struct {
	path        string
	jobID       string
	desc        *probe.Descriptor
	action      plan.Action
	durationSec float64
	hasDuration bool
}

// analyze probes and classifies one file. It returns either an analysis to
// hand to the encode pool, or a terminal FileResult for files that need no
// conversion work (probe failures, no video, filtered, already compatible).
func (s *Service) analyze(ctx context.Context, path, jobID string) (*analysis, *FileResult) {
	terminal := func(outcome Outcome, action plan.Action, msg string, err error) *FileResult {
		return &FileResult{
			Path: path, JobID: jobID, Action: action,
			Outcome: outcome, Message: msg, Err: err,
		}
	}

	s.emitUpdate(progress.Update{
		JobID: jobID, Path: path, Stage: progress.StageProbing, Percent: -1,
		Message: "Probing " + filepath.Base(path),
	})

	desc, err := s.prober.Probe(ctx, path)
	if err != nil {
		return nil, terminal(OutcomeError, plan.Skip, "probe failed", fmt.Errorf("probe %s: %w", path, err))
	}
	if !desc.HasVideo {
		return nil, terminal(OutcomeSkipped, plan.Skip, "no video stream", nil)
	}

	action := plan.Classify(desc)
	s.emitUpdate(progress.Update{
		JobID: jobID, Path: path, Stage: progress.StageClassified, Percent: -1,
		Message: action.Describe(),
	})

	// The action filter is applied before anything else happens to the
	// file, including the interactive prompt.
	if s.enc.ActionFilter != "" && action.String() != s.enc.ActionFilter {
		return nil, terminal(OutcomeFiltered, action,
			fmt.Sprintf("action %s does not match filter %s", action, s.enc.ActionFilter), nil)
	}
	if action == plan.Skip {
		return nil, terminal(OutcomeSkipped, action, "already direct-play compatible", nil)
	}

	dur, hasDur := s.prober.Duration(ctx, path)
	return &analysis{
		path: path, jobID: jobID, desc: desc, action: action,
		durationSec: dur, hasDuration: hasDur,
	}, nil
}

// convert runs the encode half of the workflow for an analyzed file.
func (s *Service) convert(ctx context.Context, a *analysis) FileResult {
	res := FileResult{Path: a.path, JobID: a.jobID, Action: a.action}
	fail := func(msg string, err error) FileResult {
		res.Outcome = OutcomeError
		res.Message = msg
		res.Err = err
		return res
	}

	if ctx.Err() != nil {
		res.Outcome = OutcomeInterrupted
		res.Message = "not started"
		return res
	}

	if s.run.Interactive && s.confirmer != nil {
		s.emitUpdate(progress.Update{
			JobID: a.jobID, Path: a.path, Stage: progress.StageWaiting, Percent: -1,
			Message: "Waiting for confirmation",
		})
		decision, err := s.confirmer.Confirm(a.path, a.action)
		if err != nil {
			return fail("confirmation failed", err)
		}
		switch decision {
		case DecisionNo:
			res.Outcome = OutcomeSkipped
			res.Message = "declined"
			return res
		case DecisionQuit:
			res.Outcome = OutcomeQuit
			res.Message = "quit at prompt"
			return res
		}
	}

	outPath := s.outputPath(a.path)
	inPlace := samePath(a.path, outPath)
	if inPlace && !s.enc.DeleteOriginal {
		res.Outcome = OutcomeSkipped
		res.Message = "destination already exists: " + outPath
		return res
	}
	if !inPlace && util.FileExists(outPath) {
		res.Outcome = OutcomeSkipped
		res.Message = "destination already exists: " + outPath
		return res
	}

	// In-place conversion writes next to the original and swaps it in
	// after the tool exits cleanly. A crash leaves the original intact.
	workPath := outPath
	if inPlace {
		workPath = strings.TrimSuffix(outPath, ".mp4") + ".tmp.mp4"
	}
	res.OutputPath = outPath

	gpu := s.capability(ctx)
	args := ffmpeg.Build(a.path, workPath, a.action, s.enc, a.desc, gpu)
	if args == nil {
		return fail("nothing to convert", fmt.Errorf("no arguments built for %s", a.path))
	}
	s.debugf(a.jobID, "+ %s", util.ShellQuote(s.ffmpegPath, args))

	// A dry run counts as planned work, not a skip; only the invocation
	// itself is withheld.
	if s.run.DryRun {
		res.Outcome = OutcomeProcessed
		res.Message = "dry-run: " + util.ShellQuote(s.ffmpegPath, args)
		return res
	}

	sup := s.newSupervisor(func(st ffmpeg.State) {
		u := progress.Update{
			JobID: a.jobID, Path: a.path, Stage: progress.StageConverting,
			Percent: -1,
			Message: a.action.Describe(),
		}
		if p, ok := st.Percent(); ok {
			u.Percent = p
		}
		if eta, ok := st.ETA(); ok {
			u.ETA = &eta
		}
		if st.FPS > 0 {
			fps := st.FPS
			u.FPS = &fps
		}
		if st.Speed != "" {
			speed := st.Speed
			u.Speed = &speed
		}
		s.emitUpdate(u)
	})

	res.InputSize = sizeOf(a.path)
	start := time.Now()
	run := sup.Run(ctx, args, a.durationSec, a.hasDuration)
	res.Elapsed = time.Since(start)

	switch run.Class {
	case ffmpeg.Interrupted:
		_ = util.RemoveIfExists(workPath)
		res.Outcome = OutcomeInterrupted
		res.Message = "interrupted"
		return res
	case ffmpeg.Failed:
		_ = util.RemoveIfExists(workPath)
		return fail("conversion failed",
			fmt.Errorf("ffmpeg exited with code %d: %s", run.ExitCode, lastLine(run.Stderr)))
	}

	s.emitUpdate(progress.Update{
		JobID: a.jobID, Path: a.path, Stage: progress.StageFinalizing, Percent: 100,
		Message: "Finalizing",
	})
	if inPlace {
		if err := os.Rename(workPath, outPath); err != nil {
			_ = util.RemoveIfExists(workPath)
			return fail("finalize failed", fmt.Errorf("replace %s: %w", outPath, err))
		}
	} else if s.enc.DeleteOriginal {
		if err := os.Remove(a.path); err != nil {
			s.emitLog(a.jobID, fmt.Sprintf("warning: could not delete original %s: %v", a.path, err))
		}
	}

	res.OutputSize = sizeOf(outPath)

	if s.cache != nil {
		if err := s.cache.UpsertProcessed(ctx, a.path, true, time.Now()); err != nil {
			s.emitLog(a.jobID, fmt.Sprintf("warning: cache update failed: %v", err))
		}
	}

	if a.action == plan.ContainerRemux {
		res.Outcome = OutcomeRemuxed
	} else {
		res.Outcome = OutcomeProcessed
	}
	res.Message = "Saved " + filepath.Base(outPath)
	return res
}

// outputPath places the converted file next to the original, or under the
// configured output directory, always with the target container extension.
func (s *Service) outputPath(input string) string {
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	dir := s.run.OutDir
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, stem+".mp4")
}

func samePath(a, b string) bool {
	aa, errA := filepath.Abs(a)
	ba, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return aa == ba
}

func sizeOf(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
