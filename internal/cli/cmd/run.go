package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"dpconv/internal/cache"
	"dpconv/internal/config"
	"dpconv/internal/dirs"
	"dpconv/internal/lang"
	"dpconv/internal/model"
	"dpconv/internal/pipeline"
	"dpconv/internal/plan"
	"dpconv/internal/progress"
	"dpconv/internal/ui"
	"dpconv/internal/util"
	"dpconv/internal/util/deps"
	"dpconv/internal/util/format"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "run [paths...]",
		Short:         "Convert files (or a gathered cache) to the Direct Play profile",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		PreRunE:       runPreRun,
		RunE:          runExecute,
	}
	bindRunFlags(cmd.Flags())
	return cmd
}

type ctxKey string

const runInputsKey ctxKey = "runInputs"

type runInputs struct {
	Enc       model.EncodeOptions
	Run       model.RunOptions
	FromCache bool
}

func runPreRun(cmd *cobra.Command, args []string) error {
	in, err := assembleRunInputs(cmd, args)
	if err != nil {
		return &ExitError{Code: ExitCLIError, Err: err}
	}
	cmd.SetContext(context.WithValue(cmd.Context(), runInputsKey, in))
	return nil
}

// assembleRunInputs reads and validates every flag the conversion needs.
// All violations are fatal here, before any file is touched.
func assembleRunInputs(cmd *cobra.Command, args []string) (runInputs, error) {
	crf, _ := cmd.Flags().GetInt("crf")
	preset, _ := cmd.Flags().GetString("preset")
	useGPU, _ := cmd.Flags().GetBool("use-gpu")
	keep, _ := cmd.Flags().GetStringSlice("keep-languages")
	sort, _ := cmd.Flags().GetStringSlice("sort-languages")
	actionFilter, _ := cmd.Flags().GetString("action-filter")
	deleteOriginal, _ := cmd.Flags().GetBool("delete-original")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	interactive, _ := cmd.Flags().GetBool("interactive")
	debug, _ := cmd.Flags().GetBool("debug")
	limit, _ := cmd.Flags().GetInt("limit")
	jobs, _ := cmd.Flags().GetInt("jobs")
	analyzeJobs, _ := cmd.Flags().GetInt("analyze-jobs")
	fromCache, _ := cmd.Flags().GetBool("from-cache")

	if actionFilter != "" {
		a, err := plan.ParseAction(actionFilter)
		if err != nil {
			return runInputs{}, err
		}
		actionFilter = a.String()
	}

	enc := model.EncodeOptions{
		CRF:            crf,
		Preset:         preset,
		UseGPU:         useGPU,
		KeepLanguages:  normalizeLangs(keep),
		SortLanguages:  normalizeLangs(sort),
		ActionFilter:   actionFilter,
		DeleteOriginal: deleteOriginal,
	}
	if err := enc.Validate(); err != nil {
		return runInputs{}, err
	}

	run := model.RunOptions{
		OutDir:      config.Out(),
		DryRun:      dryRun,
		Interactive: interactive,
		Debug:       debug,
		Verbose:     getPersistentBool(cmd, "verbose"),
		Limit:       limit,
		CachePath:   config.CachePath(),
		EncodeJobs:  jobs,
		AnalyzeJobs: analyzeJobs,
		NoUI:        getPersistentBool(cmd, "no-ui"),
	}
	run.ClampJobs()

	if len(args) == 0 && !fromCache {
		return runInputs{}, errors.New("no inputs: pass files or directories, or use --from-cache")
	}

	return runInputs{Enc: enc, Run: run, FromCache: fromCache}, nil
}

func normalizeLangs(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, lang.Normalize(t))
	}
	return out
}

func runExecute(cmd *cobra.Command, args []string) error {
	var in runInputs
	if v := cmd.Context().Value(runInputsKey); v != nil {
		in = v.(runInputs)
	} else {
		var err error
		if in, err = assembleRunInputs(cmd, args); err != nil {
			return &ExitError{Code: ExitCLIError, Err: err}
		}
	}

	ffmpegPath, err := deps.FindFFmpeg(config.FFmpegPath())
	if err != nil {
		return &ExitError{Code: ExitMissingDep, Err: err}
	}
	ffprobePath, err := deps.FindFFprobe(config.FFprobePath())
	if err != nil {
		return &ExitError{Code: ExitMissingDep, Err: err}
	}

	if in.Run.OutDir != "" {
		if err := util.EnsureDir(in.Run.OutDir); err != nil {
			return &ExitError{Code: ExitCLIError, Err: fmt.Errorf("create output dir: %w", err)}
		}
	}

	// The cache participates when the work list comes from it, or when a
	// cache path was configured explicitly.
	var store *cache.Store
	if in.FromCache || in.Run.CachePath != "" {
		path, err := resolveCachePath(in.Run.CachePath)
		if err != nil {
			return &ExitError{Code: ExitCLIError, Err: err}
		}
		in.Run.CachePath = path
		// Reading the work list from the cache requires a gathered cache;
		// a cache used only for processed marks may start empty.
		open := cache.Open
		if in.FromCache {
			open = cache.OpenExisting
		}
		if store, err = open(path); err != nil {
			return &ExitError{Code: ExitCLIError, Err: err}
		}
		defer store.Close()
	}

	var files []string
	if in.FromCache {
		files, err = filesFromCache(cmd.Context(), store)
	} else {
		files, err = pipeline.CollectInputs(args)
	}
	if err != nil {
		return &ExitError{Code: ExitCLIError, Err: err}
	}
	if len(files) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to do.")
		return nil
	}

	newService := func(rep progress.Reporter) *pipeline.Service {
		opts := []pipeline.Option{
			pipeline.WithFFmpegPath(ffmpegPath),
			pipeline.WithFFprobePath(ffprobePath),
			pipeline.WithEncodeOptions(in.Enc),
			pipeline.WithRunOptions(in.Run),
			pipeline.WithReporter(rep),
			pipeline.WithConfirmer(&pipeline.TerminalConfirmer{In: os.Stdin, Out: os.Stderr}),
		}
		if store != nil {
			opts = append(opts, pipeline.WithCache(store))
		}
		return pipeline.NewService(opts...)
	}

	// The TUI owns the terminal, so anything that needs stdin or prints
	// commands falls back to plain output.
	useTUI := !in.Run.NoUI && !in.Run.Interactive && !in.Run.DryRun && !in.Run.Debug && isTerminal()

	var st pipeline.Stats
	if useTUI {
		st, err = ui.Run(cmd.Context(), files, func(rep progress.Reporter) ui.BatchRunner {
			return newService(rep)
		})
		if err != nil {
			if cmd.Context().Err() != nil {
				return &ExitError{Code: ExitInterrupted, Err: nil}
			}
			return &ExitError{Code: ExitCLIError, Err: err}
		}
	} else {
		rep := &progress.PlainReporter{Out: cmd.OutOrStdout(), Verbose: in.Run.Verbose}
		st = newService(rep).RunBatch(cmd.Context(), files)
	}

	fmt.Fprintln(cmd.OutOrStdout(), summaryTable(st))
	for _, r := range st.Results {
		if r.Outcome == pipeline.OutcomeError && r.Err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "failed: %s: %v\n", r.Path, r.Err)
		}
	}

	switch {
	case cmd.Context().Err() != nil:
		return &ExitError{Code: ExitInterrupted, Err: nil}
	case st.Errors > 0:
		return &ExitError{Code: ExitConvertFail,
			Err: fmt.Errorf("%d of %d files failed", st.Errors, st.Total)}
	}
	return nil
}

// filesFromCache selects the cache rows still worth converting: analyzed
// as incompatible, not yet processed, and still on disk.
func filesFromCache(ctx context.Context, store *cache.Store) ([]string, error) {
	entries, err := store.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.Processed || e.DirectPlayCompatible || !e.HasVideo {
			continue
		}
		if util.FileExists(e.FilePath) {
			files = append(files, e.FilePath)
		}
	}
	return files, nil
}

func resolveCachePath(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	return dirs.DefaultCachePath()
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func summaryTable(st pipeline.Stats) string {
	rows := [][]string{
		{"converted", strconv.Itoa(st.Converted())},
		{"  remuxed", strconv.Itoa(st.Remuxed)},
		{"skipped", strconv.Itoa(st.Skipped)},
		{"filtered", strconv.Itoa(st.Filtered)},
		{"errors", strconv.Itoa(st.Errors)},
	}
	if st.Interrupted+st.Quit > 0 {
		rows = append(rows, []string{"interrupted", strconv.Itoa(st.Interrupted + st.Quit)})
	}
	if st.Converted() > 0 {
		rows = append(rows,
			[]string{"size before", format.HumanizeBytes(st.InputBytes)},
			[]string{"size after", format.HumanizeBytes(st.OutputBytes)},
		)
	}
	rows = append(rows, []string{"elapsed", format.Clock(st.Elapsed)})
	return renderTable(
		[]string{"result", fmt.Sprintf("%d files", st.Total)},
		rows,
		[]columnAlignment{alignLeft, alignRight},
	)
}
