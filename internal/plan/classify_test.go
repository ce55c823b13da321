package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dpconv/internal/probe"
)

func desc(container, videoCodec string, hdr bool, audio ...probe.AudioStream) *probe.Descriptor {
	return &probe.Descriptor{
		Container:    container,
		HasVideo:     videoCodec != "",
		VideoCodec:   videoCodec,
		IsHDR:        hdr,
		HasAudio:     len(audio) > 0,
		AudioStreams: audio,
	}
}

func aac2() probe.AudioStream   { return probe.AudioStream{Codec: "aac", Channels: 2} }
func ac3Six() probe.AudioStream { return probe.AudioStream{Codec: "ac3", Channels: 6} }

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		d    *probe.Descriptor
		want Action
	}{
		{"fully compatible", desc("mp4", "h264", false, aac2()), Skip},
		{"uppercase codec still compatible", desc("mp4", "H264", false, aac2()), Skip},
		{"mkv container only", desc("mkv", "h264", false, aac2()), ContainerRemux},
		{"webm container only", desc("webm", "h264", false, aac2()), ContainerRemux},
		{"wrong audio codec", desc("mp4", "h264", false, ac3Six()), RemuxAudio},
		{"wrong channel count", desc("mp4", "h264", false, probe.AudioStream{Codec: "aac", Channels: 6}), RemuxAudio},
		{"one bad stream among good", desc("mp4", "h264", false, aac2(), ac3Six()), RemuxAudio},
		{"hevc video", desc("mp4", "hevc", false, aac2()), TranscodeVideo},
		{"hdr h264 video", desc("mp4", "h264", true, aac2()), TranscodeVideo},
		{"video and audio wrong", desc("mp4", "hevc", false, ac3Six()), TranscodeAll},
		{"everything wrong", desc("mkv", "vp9", true, ac3Six()), TranscodeAll},
		{"bad container bad audio", desc("mkv", "h264", false, ac3Six()), TranscodeAll},
		{"no audio at all", desc("mp4", "h264", false), RemuxAudio},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.d))
		})
	}
}

func TestCompatible(t *testing.T) {
	assert.True(t, Compatible(desc("mp4", "h264", false, aac2())))
	assert.False(t, Compatible(desc("mkv", "h264", false, aac2())))
	assert.False(t, Compatible(desc("mp4", "h264", true, aac2())))
}

func TestActionStringRoundTrip(t *testing.T) {
	for _, a := range []Action{ContainerRemux, RemuxAudio, TranscodeVideo, TranscodeAll} {
		parsed, err := ParseAction(a.String())
		assert.NoError(t, err)
		assert.Equal(t, a, parsed)
	}
	_, err := ParseAction("skip")
	assert.Error(t, err)
	_, err = ParseAction("bogus")
	assert.Error(t, err)
}

func TestActionPredicates(t *testing.T) {
	assert.True(t, TranscodeVideo.ReencodesVideo())
	assert.True(t, TranscodeAll.ReencodesVideo())
	assert.False(t, RemuxAudio.ReencodesVideo())
	assert.True(t, RemuxAudio.ReencodesAudio())
	assert.True(t, TranscodeAll.ReencodesAudio())
	assert.False(t, ContainerRemux.ReencodesAudio())
}
