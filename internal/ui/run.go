// Package ui renders batch conversion progress with a bubbletea TUI.
package ui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"dpconv/internal/pipeline"
	"dpconv/internal/progress"
)

// Run drives the batch through the TUI and returns the batch statistics.
// newRunner receives the reporter the TUI listens on and must return the
// runner wired to it.
func Run(ctx context.Context, files []string, newRunner func(progress.Reporter) BatchRunner) (pipeline.Stats, error) {
	m := NewModel(ctx, files)
	m.runner = newRunner(m.Reporter())

	prog := tea.NewProgram(m, tea.WithContext(ctx))
	final, err := prog.Run()
	if err != nil {
		return pipeline.Stats{}, err
	}
	fm, ok := final.(*Model)
	if !ok || fm.stats == nil {
		return pipeline.Stats{}, fmt.Errorf("batch aborted before completion")
	}
	return *fm.stats, nil
}
