package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"dpconv/internal/pipeline"
	"dpconv/internal/progress"
	"dpconv/internal/util/format"
)

// BatchRunner processes the batch while the TUI renders it.
type BatchRunner interface {
	RunBatch(ctx context.Context, files []string) pipeline.Stats
}

type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	files  []string
	runner BatchRunner

	// Jobs appear as the pipeline reports them; the reporter carries the
	// file path on every event, so no pre-registration is needed.
	jobOrder []string
	jobs     map[string]*jobState

	stats    *pipeline.Stats
	stopping bool

	width, height int
	styles        Styles

	// Internal event channel used by the reporter to feed tea messages
	eventCh chan tea.Msg
}

func NewModel(ctx context.Context, files []string) *Model {
	c, cancel := context.WithCancel(ctx)
	return &Model{
		ctx:     c,
		cancel:  cancel,
		files:   files,
		jobs:    make(map[string]*jobState, len(files)),
		styles:  defaultStyles(),
		eventCh: make(chan tea.Msg, 256),
	}
}

// Reporter returns the progress sink that feeds this model. Wire it into
// the pipeline service before calling Run.
func (m *Model) Reporter() progress.Reporter {
	return teaReporter{ch: m.eventCh}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.listenEventsCmd(), m.startBatchCmd())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.stopping {
				// Second press abandons the graceful stop.
				return m, tea.Quit
			}
			// Let running conversions terminate cleanly; the batch
			// result arrives as batchDoneMsg.
			m.stopping = true
			m.cancel()
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case jobUpdateMsg:
		u := msg.U
		js := m.job(u.JobID, u.Path)
		js.stage = u.Stage
		js.percent = u.Percent
		if u.Message != "" {
			js.status = u.Message
		}
		if u.Speed != nil {
			js.speed = *u.Speed
		}
		if u.ETA != nil {
			js.status = fmt.Sprintf("%s  ETA %s", js.status, format.Clock(*u.ETA))
		}
	case jobLogMsg:
		l := msg.L
		if js, ok := m.jobs[l.JobID]; ok {
			line := strings.TrimRight(l.Line, "\r\n")
			if len(js.logsRing) >= 5 {
				js.logsRing = js.logsRing[1:]
			}
			js.logsRing = append(js.logsRing, line)
		}
	case jobResultMsg:
		r := msg.R
		js := m.job(r.JobID, r.Path)
		js.done = true
		js.err = r.Err
		js.outcome = r.Outcome
		js.outputPath = r.OutputPath
		if r.Err != nil {
			js.stage = progress.StageError
			js.status = r.Err.Error()
			js.percent = -1
		} else if js.percent > 0 {
			js.percent = 100
		}
	case batchDoneMsg:
		st := msg.Stats
		m.stats = &st
		return m, tea.Quit
	}

	// Update per-job components (spinner)
	var cmds []tea.Cmd
	for _, id := range m.jobOrder {
		js := m.jobs[id]
		var c tea.Cmd
		js.spinner, c = js.spinner.Update(msg)
		if c != nil {
			cmds = append(cmds, c)
		}
	}
	cmds = append(cmds, m.listenEventsCmd())
	return m, tea.Batch(cmds...)
}

// job returns the state for id, creating it on first sight.
func (m *Model) job(id, path string) *jobState {
	if js, ok := m.jobs[id]; ok {
		if js.path == "" {
			js.path = path
		}
		return js
	}
	js := newJobState(id, path, m.styles)
	m.jobs[id] = js
	m.jobOrder = append(m.jobOrder, id)
	return js
}

func (m *Model) listenEventsCmd() tea.Cmd {
	return func() tea.Msg {
		return <-m.eventCh
	}
}

func (m *Model) startBatchCmd() tea.Cmd {
	return func() tea.Msg {
		st := m.runner.RunBatch(m.ctx, m.files)
		return batchDoneMsg{Stats: st}
	}
}

func (m *Model) View() string {
	parts := []string{m.viewHeader(), "", m.viewJobs()}
	if summary := m.viewSummary(); summary != "" {
		parts = append(parts, summary)
	}
	return strings.Join(parts, "\n")
}

type teaReporter struct {
	ch chan tea.Msg
}

func (r teaReporter) Update(u progress.Update) {
	// Terminal stage updates must land; mid-encode ticks may be dropped
	// when the UI is behind.
	switch u.Stage {
	case progress.StageCompleted, progress.StageSkipped, progress.StageError:
		r.ch <- jobUpdateMsg{U: u}
		return
	}
	select {
	case r.ch <- jobUpdateMsg{U: u}:
	default:
	}
}

func (r teaReporter) Log(l progress.Log) {
	select {
	case r.ch <- jobLogMsg{L: l}:
	default:
	}
}

func (r teaReporter) Result(res progress.Result) {
	r.ch <- jobResultMsg{R: res}
}

func truncate(s string, n int) string {
	rs := []rune(s)
	if n <= 0 || len(rs) <= n {
		return s
	}
	return string(rs[:n-1]) + "…"
}

func shortPath(path string, n int) string {
	base := filepath.Base(path)
	if len([]rune(base)) >= n {
		return truncate(base, n)
	}
	return truncate(path, n)
}
