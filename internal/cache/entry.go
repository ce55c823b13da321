package cache

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dpconv/internal/plan"
	"dpconv/internal/probe"
)

const timeLayout = "2006-01-02 15:04:05"

// Entry is one analyzed file in the batch cache. The analysis fields are
// denormalized from the probe descriptor so cache consumers never need to
// re-probe; the core only ever keys on FilePath and flips Processed.
type Entry struct {
	FilePath             string
	FileName             string
	FileSizeBytes        int64
	Container            string
	VideoCodec           string
	IsHDR                bool
	AudioCodecs          string // comma-joined, display form
	AudioChannels        string
	AudioLanguages       string
	HasVideo             bool
	HasAudio             bool
	DirectPlayCompatible bool
	ActionNeeded         string
	AnalysisDate         time.Time
	Processed            bool
	ProcessingDate       time.Time // zero when unprocessed
}

// NewEntry builds a cache row from a probe result and its classification.
func NewEntry(desc *probe.Descriptor, action plan.Action) Entry {
	var size int64
	if fi, err := os.Stat(desc.Path); err == nil {
		size = fi.Size()
	}

	videoCodec := desc.VideoCodec
	if videoCodec == "" {
		videoCodec = "None"
	}

	return Entry{
		FilePath:             desc.Path,
		FileName:             filepath.Base(desc.Path),
		FileSizeBytes:        size,
		Container:            strings.ToUpper(desc.Container),
		VideoCodec:           videoCodec,
		IsHDR:                desc.IsHDR,
		AudioCodecs:          joinOr(desc.AudioCodecs(), "None"),
		AudioChannels:        joinIntsOr(desc.AudioChannels(), "None"),
		AudioLanguages:       joinOr(desc.AudioLanguages(), "unknown"),
		HasVideo:             desc.HasVideo,
		HasAudio:             desc.HasAudio,
		DirectPlayCompatible: action == plan.Skip,
		ActionNeeded:         action.Describe(),
		AnalysisDate:         time.Now(),
	}
}

func joinOr(parts []string, empty string) string {
	if len(parts) == 0 {
		return empty
	}
	return strings.Join(parts, ", ")
}

func joinIntsOr(ns []int, empty string) string {
	if len(ns) == 0 {
		return empty
	}
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}
