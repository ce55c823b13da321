package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"dpconv/internal/cache"
	"dpconv/internal/config"
)

func newGatherCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gather [paths...]",
		Short:         "Analyze a library and record the results in the batch cache",
		Long:          "gather probes every video file under the given paths and writes one cache row per file: container, codecs, channel counts, languages, HDR flag and the action a later run would take. A later `dpconv run --from-cache` converts the incompatible, unprocessed entries without re-probing.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cachePath, err := resolveCachePath(config.CachePath())
			if err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}
			store, err := cache.Open(cachePath)
			if err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}
			defer store.Close()

			entries, err := analyzeArgs(cmd, args, store)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, analysisTable(entries))

			todo := 0
			for _, e := range entries {
				if !e.DirectPlayCompatible && e.HasVideo {
					todo++
				}
			}
			fmt.Fprintf(out, "%d files cached at %s, %d need conversion\n", len(entries), cachePath, todo)
			return nil
		},
	}
	cmd.Flags().Int("limit", 0, "Stop after N files (0 = no limit)")
	cmd.Flags().Int("analyze-jobs", defaultAnalyzeJobs(), "Concurrent probes")
	return cmd
}
