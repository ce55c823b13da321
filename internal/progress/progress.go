package progress

import "time"

// Stage identifies a high-level step in processing one file.
type Stage string

const (
	StageProbing    Stage = "probing"
	StageClassified Stage = "classified"
	StageWaiting    Stage = "waiting"
	StageConverting Stage = "converting"
	StageFinalizing Stage = "finalizing"
	StageCompleted  Stage = "completed"
	StageSkipped    Stage = "skipped"
	StageError      Stage = "error"
)

// LogStream indicates which stream produced a log line.
type LogStream int

const (
	StreamStdout LogStream = iota
	StreamStderr
)

// Update conveys progress or stage changes for a job.
// Percent is 0..100 when known; set to a negative value (e.g., -1) to mean unknown.
type Update struct {
	JobID   string
	Path    string // input file the job is working on
	Stage   Stage
	Percent float64 // 0..100, or <0 if unknown

	ETA     *time.Duration // optional
	FPS     *float64       // optional encode frame rate
	Speed   *string        // optional, e.g., "1.2x"
	Message string         // short human-friendly status line
}

// Log is a structured log line associated with a job.
type Log struct {
	JobID  string
	Stream LogStream
	Line   string
}

// Result is emitted once per job when it completes, is skipped, or fails.
type Result struct {
	JobID      string
	Path       string
	OutputPath string
	Outcome    string // processed, remuxed, skipped, filtered, interrupted, error
	Err        error  // nil unless Outcome is "error"
}

// Reporter is implemented by the UI or any observer interested in progress events.
type Reporter interface {
	Update(u Update)
	Log(l Log)
	Result(r Result)
}
