package ui

import (
	bubblesprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"

	"dpconv/internal/progress"
)

type jobState struct {
	id      string
	path    string
	stage   progress.Stage
	status  string
	outcome string
	err     error
	done    bool

	outputPath string
	percent    float64 // -1 means unknown
	speed      string

	spinner spinner.Model
	bar     bubblesprogress.Model

	// Recent warnings (kept small)
	logsRing []string
}

func newJobState(id, path string, styles Styles) *jobState {
	sp := spinner.New()
	sp.Style = styles.Spinner
	bar := bubblesprogress.New(
		bubblesprogress.WithDefaultGradient(),
		bubblesprogress.WithWidth(40),
	)
	return &jobState{
		id:      id,
		path:    path,
		stage:   progress.StageProbing,
		status:  "Queued",
		percent: -1,
		spinner: sp,
		bar:     bar,
	}
}
