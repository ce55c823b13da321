// Package probe inspects media files with ffprobe and produces the
// normalized stream descriptor consumed by classification and command
// building.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"dpconv/internal/lang"
	"dpconv/internal/util"
)

// Error is returned when ffprobe exits non-zero. Classification must not
// run on a failed probe, so callers treat this as fatal for the file.
type Error struct {
	Path   string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ffprobe failed for %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Prober runs ffprobe against media files.
type Prober struct {
	FFprobePath string
	Runner      util.CmdRunner
}

// New returns a Prober using the given ffprobe binary and the default
// subprocess runner.
func New(ffprobePath string) *Prober {
	return &Prober{FFprobePath: ffprobePath, Runner: util.NewDefaultRunner()}
}

// Probe extracts stream-level metadata for path into a Descriptor.
func (p *Prober) Probe(ctx context.Context, path string) (*Descriptor, error) {
	res, err := p.runner().Run(ctx, util.CmdSpec{
		Path: p.FFprobePath,
		Args: []string{
			"-v", "error",
			"-show_entries", "stream=index,codec_type,codec_name,channels,color_space,color_transfer,color_primaries,side_data_list:stream_tags=language,title",
			"-of", "json",
			path,
		},
		CaptureStdout: true,
	})
	if err != nil {
		return nil, &Error{Path: path, Stderr: strings.TrimSpace(string(res.Stderr)), Err: err}
	}
	desc, perr := ParseStreamsJSON(res.Stdout)
	if perr != nil {
		return nil, &Error{Path: path, Err: perr}
	}
	desc.Path = path
	desc.Container = strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	return desc, nil
}

// Duration returns the container-level duration of path in seconds.
// Failures are non-fatal by design; ok is false and progress display
// degrades to indeterminate.
func (p *Prober) Duration(ctx context.Context, path string) (float64, bool) {
	res, err := p.runner().Run(ctx, util.CmdSpec{
		Path: p.FFprobePath,
		Args: []string{
			"-v", "error",
			"-show_entries", "format=duration",
			"-of", "csv=p=0",
			path,
		},
		CaptureStdout: true,
	})
	if err != nil {
		return 0, false
	}
	d, perr := strconv.ParseFloat(strings.TrimSpace(string(res.Stdout)), 64)
	if perr != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

func (p *Prober) runner() util.CmdRunner {
	if p.Runner != nil {
		return p.Runner
	}
	return util.NewDefaultRunner()
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeStream struct {
	Index          int               `json:"index"`
	CodecType      string            `json:"codec_type"`
	CodecName      string            `json:"codec_name"`
	Channels       int               `json:"channels"`
	ColorSpace     string            `json:"color_space"`
	ColorTransfer  string            `json:"color_transfer"`
	ColorPrimaries string            `json:"color_primaries"`
	SideDataList   []ffprobeSideData `json:"side_data_list"`
	Tags           map[string]string `json:"tags"`
}

type ffprobeSideData struct {
	Type string `json:"side_data_type"`
}

// ParseStreamsJSON converts raw ffprobe JSON into a Descriptor without the
// path-derived fields. Exported for testing without a real ffprobe binary.
func ParseStreamsJSON(data []byte) (*Descriptor, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe JSON: %w", err)
	}

	desc := &Descriptor{}
	for i := range raw.Streams {
		s := &raw.Streams[i]
		switch s.CodecType {
		case "video":
			if desc.HasVideo {
				continue // only the first video stream matters
			}
			desc.HasVideo = true
			desc.VideoCodec = s.CodecName
			desc.IsHDR = isHDR(s)
		case "audio":
			desc.AudioStreams = append(desc.AudioStreams, AudioStream{
				Index:    len(desc.AudioStreams),
				Codec:    s.CodecName,
				Channels: s.Channels,
				Language: lang.Normalize(s.Tags["language"]),
			})
		case "subtitle":
			desc.SubtitleLanguages = append(desc.SubtitleLanguages, lang.Normalize(s.Tags["language"]))
		}
	}
	desc.HasAudio = len(desc.AudioStreams) > 0
	return desc, nil
}
