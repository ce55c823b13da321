package plan

import (
	"strings"

	"dpconv/internal/probe"
)

// Compatible reports whether the file already satisfies the Direct Play
// profile in all three dimensions.
func Compatible(d *probe.Descriptor) bool {
	return containerOK(d) && videoOK(d) && audioOK(d)
}

// Classify maps a probed descriptor to the required action. It is a pure
// function of the descriptor; files without a video stream must be
// rejected by the caller before classification.
func Classify(d *probe.Descriptor) Action {
	cOK := containerOK(d)
	vOK := videoOK(d)
	aOK := audioOK(d)

	switch {
	case cOK && vOK && aOK:
		return Skip
	case !cOK && vOK && aOK:
		return ContainerRemux
	case cOK && vOK && !aOK:
		return RemuxAudio
	case cOK && aOK && !vOK:
		return TranscodeVideo
	default:
		return TranscodeAll
	}
}

func containerOK(d *probe.Descriptor) bool {
	return d.Container == "mp4"
}

func videoOK(d *probe.Descriptor) bool {
	return strings.EqualFold(d.VideoCodec, "h264") && !d.IsHDR
}

func audioOK(d *probe.Descriptor) bool {
	if !d.HasAudio {
		return false
	}
	for _, s := range d.AudioStreams {
		if s.Codec != "aac" || s.Channels != 2 {
			return false
		}
	}
	return true
}
