package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"dpconv/internal/config"
	"dpconv/internal/hwaccel"
	"dpconv/internal/util"
	"dpconv/internal/util/deps"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "doctor",
		Short:         "Diagnose external dependencies (ffmpeg, ffprobe, hardware encoder)",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			ffmpeg, err := deps.FindFFmpeg(config.FFmpegPath())
			if err != nil {
				return &ExitError{Code: ExitMissingDep, Err: err}
			}
			ffprobe, err := deps.FindFFprobe(config.FFprobePath())
			if err != nil {
				return &ExitError{Code: ExitMissingDep, Err: err}
			}
			fmt.Fprintf(out, "ffmpeg:  %s\n", ffmpeg)
			fmt.Fprintf(out, "ffprobe: %s\n", ffprobe)

			gpu := hwaccel.Detect(cmd.Context(), ffmpeg, util.NewDefaultRunner())
			if gpu.Available {
				fmt.Fprintf(out, "gpu:     %s (%s)\n", gpu.Platform, gpu.Encoder)
			} else {
				fmt.Fprintln(out, "gpu:     none detected, CPU encoding only")
			}

			cachePath, err := resolveCachePath(config.CachePath())
			if err == nil {
				fmt.Fprintf(out, "cache:   %s\n", cachePath)
			}
			return nil
		},
	}
}
