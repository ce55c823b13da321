package ffmpeg

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// State tracks live progress of a running encode. It is mutated only by
// the supervisor's read loop while the subprocess is alive and discarded
// when it exits.
type State struct {
	Elapsed        float64 // media seconds encoded so far
	Total          float64 // media duration in seconds, 0 when unknown
	HasTotal       bool
	FPS            float64
	Bitrate        string
	Speed          string
	WallClockStart time.Time
}

// NewState starts tracking progress against an optional total duration.
func NewState(total float64, hasTotal bool) *State {
	return &State{Total: total, HasTotal: hasTotal && total > 0, WallClockStart: time.Now()}
}

var (
	timeRe    = regexp.MustCompile(`time=(\d{2}):(\d{2}):(\d{2})\.(\d{2})`)
	fpsRe     = regexp.MustCompile(`fps=\s*(\d+\.?\d*)`)
	bitrateRe = regexp.MustCompile(`bitrate=\s*([0-9.]+[kmg]?bits/s)`)
	speedRe   = regexp.MustCompile(`speed=\s*([0-9.]+x)`)
)

// ParseLine consumes one stderr line from the encode tool and reports
// whether it advanced the time cursor. The machine-readable out_time_us
// marker is the primary source; the human-readable time= form is the
// fallback. fps/bitrate/speed markers are extracted opportunistically
// either way.
func (s *State) ParseLine(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	if v, ok := strings.CutPrefix(line, "out_time_us="); ok {
		us, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return false
		}
		s.Elapsed = float64(us) / 1_000_000
		return true
	}

	advanced := false
	if m := timeRe.FindStringSubmatch(line); m != nil {
		h, _ := strconv.Atoi(m[1])
		min, _ := strconv.Atoi(m[2])
		sec, _ := strconv.Atoi(m[3])
		cs, _ := strconv.Atoi(m[4])
		s.Elapsed = float64(h*3600+min*60+sec) + float64(cs)/100
		advanced = true
	}
	if m := fpsRe.FindStringSubmatch(line); m != nil {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil {
			s.FPS = f
		}
	}
	if m := bitrateRe.FindStringSubmatch(line); m != nil {
		s.Bitrate = m[1]
	}
	if m := speedRe.FindStringSubmatch(line); m != nil {
		s.Speed = m[1]
	}
	return advanced
}

// Percent returns completion in [0,100]; ok is false when the total
// duration is unknown and progress is indeterminate.
func (s *State) Percent() (float64, bool) {
	if !s.HasTotal {
		return 0, false
	}
	p := s.Elapsed / s.Total * 100
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return p, true
}

// ETA estimates remaining wall-clock time from the ratio of media time
// encoded to wall time spent.
func (s *State) ETA() (time.Duration, bool) {
	if !s.HasTotal || s.Elapsed <= 0 {
		return 0, false
	}
	wall := time.Since(s.WallClockStart)
	if wall <= 0 {
		return 0, false
	}
	ratio := s.Elapsed / s.Total
	if ratio <= 0 {
		return 0, false
	}
	remaining := time.Duration(float64(wall)/ratio) - wall
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}
