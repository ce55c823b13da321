package ui

import (
	"fmt"
	"strings"

	"dpconv/internal/pipeline"
	"dpconv/internal/progress"
)

func (m *Model) viewHeader() string {
	done := 0
	for _, id := range m.jobOrder {
		if m.jobs[id].done {
			done++
		}
	}
	title := m.styles.Title.Render("dpconv: Direct Play converter")
	hint := "q: stop"
	if m.stopping {
		hint = "stopping, q again to abandon"
	}
	sub := m.styles.Subtitle.Render(fmt.Sprintf("Files: %d/%d done • %s", done, len(m.files), hint))
	return title + "\n" + sub
}

func (m *Model) viewJobs() string {
	var b strings.Builder
	for _, id := range m.jobOrder {
		js := m.jobs[id]
		// Finished no-op files collapse to one line to keep big batches
		// readable.
		if js.done && js.err == nil && js.outcome != string(pipeline.OutcomeProcessed) && js.outcome != string(pipeline.OutcomeRemuxed) {
			b.WriteString(m.viewDoneLine(js))
		} else {
			b.WriteString(m.viewJob(js))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) viewDoneLine(js *jobState) string {
	return m.styles.Box.Render(fmt.Sprintf("%s  %s",
		m.styles.JobTitle.Render(shortPath(js.path, 48)),
		m.styles.Faint.Render(js.outcome+": "+js.status)))
}

func (m *Model) viewJob(js *jobState) string {
	stageStyle := m.styles.JobInfo
	switch js.stage {
	case progress.StageProbing, progress.StageClassified:
		stageStyle = m.styles.StageProbe
	case progress.StageConverting:
		stageStyle = m.styles.StageConvert
	case progress.StageFinalizing:
		stageStyle = m.styles.StageFinal
	case progress.StageCompleted:
		stageStyle = m.styles.Success
	case progress.StageSkipped:
		stageStyle = m.styles.Faint
	case progress.StageError:
		stageStyle = m.styles.Error
	}

	left := m.styles.JobTitle.Render(shortPath(js.path, 48))
	stage := stageStyle.Render(string(js.stage))
	if js.speed != "" && !js.done {
		stage += m.styles.Faint.Render(" " + js.speed)
	}

	var right string
	switch {
	case js.percent >= 0 && js.percent <= 100:
		right = fmt.Sprintf("%s %5.1f%%", js.bar.ViewAs(js.percent/100.0), js.percent)
	case js.done && js.err == nil:
		right = m.styles.Success.Render("✓ " + js.outcome)
	case js.err != nil:
		right = m.styles.Error.Render("✗ error")
	default:
		right = m.styles.Spinner.Render(js.spinner.View()) + " " + m.styles.Faint.Render("working")
	}

	lines := []string{
		fmt.Sprintf("%s  %s", left, stage),
		right,
		m.styles.JobInfo.Render(js.status),
	}
	for _, warn := range js.logsRing {
		lines = append(lines, m.styles.Warning.Render(truncate(warn, 80)))
	}
	return m.styles.Box.Render(strings.Join(lines, "\n"))
}

func (m *Model) viewSummary() string {
	if m.stats == nil {
		return ""
	}
	st := m.stats
	line := fmt.Sprintf("converted %d (remuxed %d) • skipped %d • filtered %d • errors %d",
		st.Converted(), st.Remuxed, st.Skipped, st.Filtered, st.Errors)
	if st.Interrupted > 0 || st.Quit > 0 {
		line += fmt.Sprintf(" • interrupted %d", st.Interrupted+st.Quit)
	}
	return m.styles.Subtitle.Render(line)
}
