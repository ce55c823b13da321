// Package ffmpeg constructs encode invocations for the Direct Play
// target profile and supervises their execution.
package ffmpeg

import (
	"fmt"
	"strconv"

	"dpconv/internal/hwaccel"
	"dpconv/internal/model"
	"dpconv/internal/plan"
	"dpconv/internal/probe"
)

const stereoAACBitrate = "192k"

// Software HDR→SDR tone mapping: linear light, BT.709 remap with a Hable
// tone curve, back to 8-bit 4:2:0.
const toneMapFilter = "zscale=t=linear:npl=100,format=gbrpf32le,zscale=p=bt709,tonemap=tonemap=hable:desat=0,zscale=t=bt709:m=bt709:r=tv,format=yuv420p"

// Build constructs the ffmpeg argument vector (excluding the binary) for
// the given action. Returns nil for plan.Skip: there is nothing to run.
func Build(inputPath, outputPath string, action plan.Action, opts model.EncodeOptions, desc *probe.Descriptor, gpu hwaccel.Capability) []string {
	if action == plan.Skip {
		return nil
	}

	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "warning",
		"-progress", "pipe:2",
		"-i", inputPath,
	}
	args = append(args, mapArgs(desc, opts)...)

	switch action {
	case plan.ContainerRemux:
		args = append(args, "-c:v", "copy", "-c:a", "copy")
	case plan.RemuxAudio:
		args = append(args, "-c:v", "copy")
		args = append(args, audioEncodeArgs()...)
	case plan.TranscodeVideo:
		args = append(args, "-c:a", "copy")
		args = append(args, videoEncodeArgs(opts, gpu)...)
		args = append(args, toneMapArgs(desc, opts, gpu)...)
	case plan.TranscodeAll:
		args = append(args, audioEncodeArgs()...)
		args = append(args, videoEncodeArgs(opts, gpu)...)
		args = append(args, toneMapArgs(desc, opts, gpu)...)
	}

	// Fast-start on every output so playback can begin before the file
	// finishes downloading.
	args = append(args, "-movflags", "+faststart", outputPath)
	return args
}

// mapArgs maps exactly one video stream plus the selected audio streams
// in their resolved order. An empty selection falls back to the first
// audio stream, optional-marked, so the output never silently loses all
// audio the source had.
func mapArgs(desc *probe.Descriptor, opts model.EncodeOptions) []string {
	args := []string{"-map", "0:v:0"}
	selected := plan.SelectAudio(desc.AudioStreams, opts.KeepLanguages, opts.SortLanguages)
	if len(selected) == 0 {
		return append(args, "-map", "0:a:0?")
	}
	for _, s := range selected {
		args = append(args, "-map", fmt.Sprintf("0:a:%d", s.Index))
	}
	return args
}

func audioEncodeArgs() []string {
	return []string{"-c:a", "aac", "-ac", "2", "-b:a", stereoAACBitrate}
}

func videoEncodeArgs(opts model.EncodeOptions, gpu hwaccel.Capability) []string {
	if opts.UseGPU && gpu.Available {
		return gpuEncodeArgs(gpu.Platform, opts.CRF, opts.Preset)
	}
	// GPU requested but unavailable falls through to the CPU encoder.
	return []string{"-c:v", "libx264", "-preset", opts.Preset, "-crf", strconv.Itoa(opts.CRF)}
}

// nvencPresets maps x264 preset names onto the NVENC p1..p7 scale; the
// three slowest all collapse to p7.
var nvencPresets = map[string]string{
	"ultrafast": "p1",
	"superfast": "p2",
	"veryfast":  "p3",
	"faster":    "p4",
	"fast":      "p5",
	"medium":    "p6",
	"slow":      "p7",
	"slower":    "p7",
	"veryslow":  "p7",
}

func gpuEncodeArgs(platform hwaccel.Platform, crf int, preset string) []string {
	switch platform {
	case hwaccel.PlatformMetal:
		// VideoToolbox has no CRF; remap to its 0..100 quality scale.
		quality := 100 - 2*crf
		if quality < 0 {
			quality = 0
		}
		if quality > 100 {
			quality = 100
		}
		return []string{
			"-c:v", "h264_videotoolbox",
			"-q:v", strconv.Itoa(quality),
			"-realtime", "0",
		}
	case hwaccel.PlatformNvidia:
		np, ok := nvencPresets[preset]
		if !ok {
			np = "p6"
		}
		return []string{
			"-c:v", "h264_nvenc",
			"-preset", np,
			"-cq", strconv.Itoa(crf),
			"-rc", "constqp",
		}
	case hwaccel.PlatformIntel:
		return []string{
			"-c:v", "h264_qsv",
			"-preset", preset,
			"-global_quality", strconv.Itoa(crf),
		}
	default:
		return []string{"-c:v", "libx264", "-preset", preset, "-crf", strconv.Itoa(crf)}
	}
}

// toneMapArgs converts HDR sources to SDR. The VideoToolbox path cannot
// run the zscale filter graph, so on metal only the output color tags are
// set; this asymmetry is a platform limitation, not a bug.
func toneMapArgs(desc *probe.Descriptor, opts model.EncodeOptions, gpu hwaccel.Capability) []string {
	if !desc.IsHDR {
		return nil
	}
	tags := []string{
		"-color_primaries", "bt709",
		"-color_trc", "bt709",
		"-colorspace", "bt709",
	}
	if opts.UseGPU && gpu.Available && gpu.Platform == hwaccel.PlatformMetal {
		return tags
	}
	return append([]string{"-vf", toneMapFilter}, tags...)
}
