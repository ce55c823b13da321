// Package plan decides what work a media file needs to satisfy the
// Direct Play target profile (MP4 container, H.264 SDR video, AAC stereo
// audio) and selects which audio streams carry over to the output.
package plan

import "fmt"

// Action is the closed set of processing decisions. The ordering of the
// constants reflects increasing work: Skip < ContainerRemux <
// {RemuxAudio, TranscodeVideo} < TranscodeAll.
type Action int

const (
	Skip Action = iota
	ContainerRemux
	RemuxAudio
	TranscodeVideo
	TranscodeAll
)

// String returns the stable flag/cache spelling of the action.
func (a Action) String() string {
	switch a {
	case Skip:
		return "skip"
	case ContainerRemux:
		return "container_remux"
	case RemuxAudio:
		return "remux_audio"
	case TranscodeVideo:
		return "transcode_video"
	case TranscodeAll:
		return "transcode_all"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Describe returns the human-readable summary used in file info output
// and cache rows.
func (a Action) Describe() string {
	switch a {
	case Skip:
		return "Already compatible, skip processing"
	case ContainerRemux:
		return "Container remux to MP4"
	case RemuxAudio:
		return "Audio remux to stereo AAC"
	case TranscodeVideo:
		return "Video transcode to H.264 SDR"
	case TranscodeAll:
		return "Full transcode (video + audio)"
	default:
		return a.String()
	}
}

// ReencodesVideo reports whether the action re-encodes the video stream.
func (a Action) ReencodesVideo() bool {
	return a == TranscodeVideo || a == TranscodeAll
}

// ReencodesAudio reports whether the action re-encodes audio to AAC stereo.
func (a Action) ReencodesAudio() bool {
	return a == RemuxAudio || a == TranscodeAll
}

// ParseAction converts a flag value into an Action. Skip is not a valid
// filter target and is rejected alongside unknown names.
func ParseAction(s string) (Action, error) {
	switch s {
	case "container_remux":
		return ContainerRemux, nil
	case "remux_audio":
		return RemuxAudio, nil
	case "transcode_video":
		return TranscodeVideo, nil
	case "transcode_all":
		return TranscodeAll, nil
	default:
		return Skip, fmt.Errorf("invalid action %q (valid: container_remux, remux_audio, transcode_video, transcode_all)", s)
	}
}
