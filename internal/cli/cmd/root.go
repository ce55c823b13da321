// Package cmd defines the dpconv command tree.
package cmd

import (
	"context"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"dpconv/internal/config"
	"dpconv/internal/model"
)

const (
	ExitOK          = 0
	ExitCLIError    = 1
	ExitMissingDep  = 2
	ExitConvertFail = 3
	ExitInterrupted = 130
)

// ExitError wraps an error with a process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dpconv [paths...]",
		Short:         "Convert media files for Plex Direct Play",
		Long:          "dpconv probes media files with ffprobe, decides the cheapest conversion that makes each one Direct Play compatible (MP4, H.264 SDR, stereo AAC), and runs ffmpeg to produce it. Files that already comply are left alone; everything else gets a remux or transcode, never more work than needed.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		PreRunE:       runPreRun,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Bare `dpconv <paths>` behaves like `dpconv run <paths>`.
			return runExecute(cmd, args)
		},
	}

	// Persistent flags available to all subcommands
	root.PersistentFlags().StringP("out", "o", "", "Output directory (default: next to each original)")
	root.PersistentFlags().BoolP("verbose", "v", false, "Show full subprocess commands/output")
	root.PersistentFlags().String("ffmpeg", "", "Path to ffmpeg binary")
	root.PersistentFlags().String("ffprobe", "", "Path to ffprobe binary")
	root.PersistentFlags().String("cache", "", "Path to the batch cache database")
	root.PersistentFlags().Bool("no-ui", false, "Disable TUI; use plain textual output")

	// Also bind run-specific flags on root, so `dpconv <paths>` works.
	bindRunFlags(root.Flags())

	root.AddCommand(newRunCmd())
	root.AddCommand(newPlanCmd())
	root.AddCommand(newGatherCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newCompletionCmd())

	_ = config.Init(root)

	return root
}

func bindRunFlags(fs *pflag.FlagSet) {
	fs.Int("crf", 22, "x264/GPU quality (0-51, lower is better)")
	fs.String("preset", "medium", "Encoder preset (ultrafast..veryslow)")
	fs.Bool("use-gpu", false, "Use a hardware encoder when one is available")
	fs.StringSlice("keep-languages", nil, "Audio languages to keep (e.g. en,jp); others are dropped")
	fs.StringSlice("sort-languages", nil, "Audio language priority order for the output")
	fs.String("action-filter", "", "Only process files needing this action (container_remux|remux_audio|transcode_video|transcode_all)")
	fs.Bool("delete-original", false, "Delete the source file after a successful conversion")
	fs.Bool("dry-run", false, "Show the ffmpeg command without executing")
	fs.BoolP("interactive", "i", false, "Confirm each file (yes/no/all/quit)")
	fs.Bool("debug", false, "Print the exact ffmpeg argv per file")
	fs.Int("limit", 0, "Stop after N files (0 = no limit)")
	fs.Int("jobs", 1, "Concurrent encodes (max 2)")
	fs.Int("analyze-jobs", defaultAnalyzeJobs(), "Concurrent probes")
	fs.Bool("from-cache", false, "Take the work list from the gathered cache instead of paths")
}

func defaultAnalyzeJobs() int {
	n := runtime.NumCPU()
	if n > model.DefaultAnalyzeJobs {
		return model.DefaultAnalyzeJobs
	}
	if n < 1 {
		return 1
	}
	return n
}

// Execute runs the CLI with the provided context.
func Execute(ctx context.Context) error {
	root := newRootCmd()
	return root.ExecuteContext(ctx)
}

func getPersistentBool(cmd *cobra.Command, name string) bool {
	if v, err := cmd.Flags().GetBool(name); err == nil && v {
		return true
	}
	v, _ := cmd.InheritedFlags().GetBool(name)
	return v
}
