package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"dpconv/internal/cache"
	"dpconv/internal/config"
	"dpconv/internal/model"
	"dpconv/internal/pipeline"
	"dpconv/internal/progress"
	"dpconv/internal/util/deps"
	"dpconv/internal/util/format"
)

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "plan [paths...]",
		Short:         "Analyze files and show the required action without converting",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := analyzeArgs(cmd, args, nil)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), analysisTable(entries))
			return nil
		},
	}
	cmd.Flags().Int("limit", 0, "Stop after N files (0 = no limit)")
	cmd.Flags().Int("analyze-jobs", defaultAnalyzeJobs(), "Concurrent probes")
	return cmd
}

// analyzeArgs probes every file named by args through the analysis pool
// and returns the per-file cache entries, optionally persisting them.
func analyzeArgs(cmd *cobra.Command, args []string, store *cache.Store) ([]cache.Entry, error) {
	ffprobePath, err := deps.FindFFprobe(config.FFprobePath())
	if err != nil {
		return nil, &ExitError{Code: ExitMissingDep, Err: err}
	}

	files, err := pipeline.CollectInputs(args)
	if err != nil {
		return nil, &ExitError{Code: ExitCLIError, Err: err}
	}

	limit, _ := cmd.Flags().GetInt("limit")
	analyzeJobs, _ := cmd.Flags().GetInt("analyze-jobs")
	run := model.RunOptions{
		Limit:       limit,
		AnalyzeJobs: analyzeJobs,
		Verbose:     getPersistentBool(cmd, "verbose"),
	}
	run.ClampJobs()

	svc := pipeline.NewService(
		pipeline.WithFFprobePath(ffprobePath),
		pipeline.WithRunOptions(run),
		pipeline.WithReporter(&progress.PlainReporter{Out: cmd.ErrOrStderr(), Verbose: run.Verbose}),
	)

	var replacer pipeline.CacheReplacer
	if store != nil {
		replacer = store
	}
	entries, err := svc.Gather(cmd.Context(), files, replacer)
	if err != nil {
		return nil, &ExitError{Code: ExitCLIError, Err: err}
	}
	return entries, nil
}

func analysisTable(entries []cache.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		hdr := ""
		if e.IsHDR {
			hdr = " HDR"
		}
		rows = append(rows, []string{
			e.FileName,
			format.HumanizeBytes(e.FileSizeBytes),
			e.Container,
			e.VideoCodec + hdr,
			e.AudioCodecs + " (" + e.AudioChannels + "ch)",
			e.AudioLanguages,
			e.ActionNeeded,
		})
	}
	return renderTable(
		[]string{"file", "size", "container", "video", "audio", "languages", "action"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
	)
}
