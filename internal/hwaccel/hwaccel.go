// Package hwaccel probes the encode tool's capability listing to decide
// whether a hardware H.264 encoder can be used.
package hwaccel

import (
	"context"
	"runtime"
	"strings"
	"sync"

	"dpconv/internal/util"
)

// Platform identifies a hardware encoder family.
type Platform string

const (
	PlatformMetal  Platform = "metal"
	PlatformNvidia Platform = "nvidia"
	PlatformIntel  Platform = "intel"
)

// Capability describes the detected hardware encoding support. Detected
// once per run and treated as immutable afterwards.
type Capability struct {
	Available bool
	Platform  Platform
	Encoder   string
	Decoder   string
}

// Detect runs the encoder capability listing once and scans it for known
// marker strings. Any failure (tool missing, non-zero exit) degrades to
// "unavailable" rather than an error: hardware acceleration is always
// optional.
func Detect(ctx context.Context, ffmpegPath string, runner util.CmdRunner) Capability {
	if runner == nil {
		runner = util.NewDefaultRunner()
	}
	res, err := runner.Run(ctx, util.CmdSpec{
		Path:          ffmpegPath,
		Args:          []string{"-encoders"},
		CaptureStdout: true,
	})
	if err != nil {
		return Capability{}
	}
	return FromListing(string(res.Stdout), runtime.GOOS)
}

// FromListing classifies a raw "-encoders" listing. Platform choice is
// strictly priority-ordered (metal > nvidia > intel), not a capability
// union: the first marker that applies wins. Exported for tests.
func FromListing(listing, goos string) Capability {
	out := strings.ToLower(listing)

	// VideoToolbox shows up in cross-compiled listings too, so require the
	// Apple platform as well.
	if strings.Contains(out, "videotoolbox") && goos == "darwin" {
		return Capability{
			Available: true,
			Platform:  PlatformMetal,
			Encoder:   "h264_videotoolbox",
			Decoder:   "h264", // software decode, hardware encode
		}
	}
	if strings.Contains(out, "h264_nvenc") {
		return Capability{
			Available: true,
			Platform:  PlatformNvidia,
			Encoder:   "h264_nvenc",
			Decoder:   "h264_cuvid",
		}
	}
	if strings.Contains(out, "h264_qsv") {
		return Capability{
			Available: true,
			Platform:  PlatformIntel,
			Encoder:   "h264_qsv",
			Decoder:   "h264_qsv",
		}
	}
	return Capability{}
}

// Lazy defers detection until the first caller needs the capability and
// shares the result process-wide.
type Lazy struct {
	FFmpegPath string
	Runner     util.CmdRunner

	once sync.Once
	cap  Capability
}

// Get returns the cached capability, detecting it on first use.
func (l *Lazy) Get(ctx context.Context) Capability {
	l.once.Do(func() {
		l.cap = Detect(ctx, l.FFmpegPath, l.Runner)
	})
	return l.cap
}
