// Package model holds the user-facing option records shared across the
// CLI, pipeline and encoder layers.
package model

import "fmt"

// Presets are the valid x264 preset names, fastest first.
var Presets = []string{
	"ultrafast", "superfast", "veryfast", "faster", "fast",
	"medium", "slow", "slower", "veryslow",
}

// ValidPreset reports whether name is one of the nine x264 presets.
func ValidPreset(name string) bool {
	for _, p := range Presets {
		if p == name {
			return true
		}
	}
	return false
}

// EncodeOptions is the per-run encoding configuration. Supplied once per
// run and read-only during processing.
type EncodeOptions struct {
	CRF            int      // 0..51, quality-driven rate control
	Preset         string   // one of Presets
	UseGPU         bool     // request a hardware encoder when available
	KeepLanguages  []string // normalized tags; empty keeps all streams
	SortLanguages  []string // normalized tags; empty preserves order
	ActionFilter   string   // plan.Action spelling, empty = no filter
	DeleteOriginal bool
}

// Validate checks numeric ranges and names. Violations are fatal at
// startup, before any file is touched.
func (o EncodeOptions) Validate() error {
	if o.CRF < 0 || o.CRF > 51 {
		return fmt.Errorf("crf must be between 0 and 51, got %d", o.CRF)
	}
	if !ValidPreset(o.Preset) {
		return fmt.Errorf("invalid preset %q", o.Preset)
	}
	return nil
}

// RunOptions controls batch behavior around the per-file encode work.
type RunOptions struct {
	OutDir      string // empty = in-place next to the original
	DryRun      bool
	Interactive bool
	Debug       bool // print the ffmpeg argv per file
	Verbose     bool
	Limit       int    // 0 = unlimited
	CachePath   string // batch cache database; empty disables caching
	EncodeJobs  int    // concurrent encodes, capped at MaxEncodeJobs
	AnalyzeJobs int    // concurrent probes
	NoUI        bool   // plain text output even on a TTY
}

// Concurrent external encodes contend for the same CPU/GPU encoder, so
// the encode pool stays small regardless of what the user asks for.
const (
	MaxEncodeJobs      = 2
	DefaultAnalyzeJobs = 8
)

// ClampJobs applies the pool-size rules to the requested worker counts.
func (o *RunOptions) ClampJobs() {
	if o.EncodeJobs < 1 {
		o.EncodeJobs = 1
	}
	if o.EncodeJobs > MaxEncodeJobs {
		o.EncodeJobs = MaxEncodeJobs
	}
	if o.AnalyzeJobs < 1 {
		o.AnalyzeJobs = DefaultAnalyzeJobs
	}
}
