package probe

// AudioStream holds the parsed properties of a single audio stream.
// Index is the stream's position among the file's audio streams (the
// value used for "-map 0:a:N"), not the absolute ffprobe index.
type AudioStream struct {
	Index    int
	Codec    string
	Channels int
	Language string // normalized tag, see internal/lang
}

// Descriptor is the normalized per-file result of a probe. It is built
// once by Probe and never mutated afterwards; classifier, selector and
// builder all read from the same value.
type Descriptor struct {
	Path              string
	Container         string // lower-cased extension without dot
	HasVideo          bool
	HasAudio          bool
	VideoCodec        string // empty when no video stream
	IsHDR             bool
	AudioStreams      []AudioStream
	SubtitleLanguages []string // normalized, in stream order
}

// AudioCodecs returns the codec names of all audio streams in order.
func (d *Descriptor) AudioCodecs() []string {
	out := make([]string, len(d.AudioStreams))
	for i, s := range d.AudioStreams {
		out[i] = s.Codec
	}
	return out
}

// AudioChannels returns the channel counts of all audio streams in order.
func (d *Descriptor) AudioChannels() []int {
	out := make([]int, len(d.AudioStreams))
	for i, s := range d.AudioStreams {
		out[i] = s.Channels
	}
	return out
}

// AudioLanguages returns the normalized language tags of all audio
// streams in order.
func (d *Descriptor) AudioLanguages() []string {
	out := make([]string, len(d.AudioStreams))
	for i, s := range d.AudioStreams {
		out[i] = s.Language
	}
	return out
}
