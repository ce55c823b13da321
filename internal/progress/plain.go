package progress

import (
	"fmt"
	"io"
	"sync"
)

// PlainReporter writes one line per event, suitable for logs and
// non-interactive runs. Converting ticks are suppressed unless Verbose;
// they arrive twice a second per encode.
type PlainReporter struct {
	Out     io.Writer
	Verbose bool

	mu sync.Mutex
}

func (p *PlainReporter) Update(u Update) {
	// One line per outcome is enough for logs; stage-by-stage narration
	// is opt-in.
	if !p.Verbose {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if u.Percent >= 0 {
		fmt.Fprintf(p.Out, "%s: %s %.1f%% %s\n", u.Path, u.Stage, u.Percent, u.Message)
		return
	}
	fmt.Fprintf(p.Out, "%s: %s %s\n", u.Path, u.Stage, u.Message)
}

func (p *PlainReporter) Log(l Log) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.Out, l.Line)
}

func (p *PlainReporter) Result(r Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r.Err != nil {
		fmt.Fprintf(p.Out, "[%s] %s: %v\n", r.Outcome, r.Path, r.Err)
		return
	}
	fmt.Fprintf(p.Out, "[%s] %s\n", r.Outcome, r.Path)
}
