package ffmpeg

import (
	"bufio"
	"context"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// ExitClass classifies how a supervised encode ended.
type ExitClass int

const (
	Completed ExitClass = iota
	Failed
	Interrupted
)

func (c ExitClass) String() string {
	switch c {
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "interrupted"
	}
}

// RunResult is the outcome of one supervised invocation. Stderr carries
// the tail of the tool's diagnostics for Failed results.
type RunResult struct {
	Class    ExitClass
	ExitCode int
	Stderr   string
}

// Cap on retained stderr lines; encodes can emit a warning per frame.
const stderrTailLines = 100

const defaultGracePeriod = 5 * time.Second

// Supervisor launches encode invocations and tracks their progress.
// Cancellation arrives through the context: once the context is done no
// new subprocess is started, and a running one is terminated gracefully
// (SIGTERM, then SIGKILL after GracePeriod).
type Supervisor struct {
	FFmpegPath  string
	GracePeriod time.Duration

	// OnProgress, when set, receives state snapshots from the read loop,
	// rate-limited to at most two per second.
	OnProgress func(State)
}

// Run executes the built argument vector and blocks until the subprocess
// exits or the context is cancelled. An already-cancelled context returns
// Interrupted without spawning anything, so a stopping batch cannot fire
// off a burst of fresh encodes.
func (s *Supervisor) Run(ctx context.Context, args []string, totalSeconds float64, hasTotal bool) RunResult {
	if ctx.Err() != nil {
		return RunResult{Class: Interrupted, ExitCode: -1}
	}

	cmd := exec.Command(s.FFmpegPath, args...)
	// Own process group, so termination reaches helper processes the tool
	// spawns. A surviving descendant would hold the stderr pipe open and
	// keep Run blocked past the grace period.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return RunResult{Class: Failed, ExitCode: -1, Stderr: err.Error()}
	}
	if err := cmd.Start(); err != nil {
		return RunResult{Class: Failed, ExitCode: -1, Stderr: err.Error()}
	}

	state := NewState(totalSeconds, hasTotal)
	var tail []string
	lastEmit := time.Time{}

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		sc := bufio.NewScanner(stderr)
		buf := make([]byte, 0, 64*1024)
		sc.Buffer(buf, 1024*1024)
		for sc.Scan() {
			line := sc.Text()
			if len(tail) == stderrTailLines {
				tail = tail[1:]
			}
			tail = append(tail, line)

			state.ParseLine(line)
			if s.OnProgress != nil && time.Since(lastEmit) >= 500*time.Millisecond {
				s.OnProgress(*state)
				lastEmit = time.Now()
			}
		}
	}()

	waitDone := make(chan error, 1)
	go func() {
		<-readDone // drain stderr before Wait closes the pipe
		waitDone <- cmd.Wait()
	}()

	select {
	case waitErr := <-waitDone:
		if waitErr != nil {
			return RunResult{Class: Failed, ExitCode: cmd.ProcessState.ExitCode(), Stderr: strings.Join(tail, "\n")}
		}
		if s.OnProgress != nil {
			final := *state
			if final.HasTotal {
				final.Elapsed = final.Total
			}
			s.OnProgress(final)
		}
		return RunResult{Class: Completed, ExitCode: 0}

	case <-ctx.Done():
		s.terminate(cmd, waitDone)
		// Caller-initiated termination wins over whatever exit code the
		// subprocess produced on its way down.
		return RunResult{Class: Interrupted, ExitCode: -1, Stderr: strings.Join(tail, "\n")}
	}
}

// terminate asks the subprocess to stop, escalating to a hard kill when
// the grace period runs out.
func (s *Supervisor) terminate(cmd *exec.Cmd, waitDone <-chan error) {
	grace := s.GracePeriod
	if grace <= 0 {
		grace = defaultGracePeriod
	}
	signalGroup(cmd, syscall.SIGTERM)
	select {
	case <-waitDone:
	case <-time.After(grace):
		signalGroup(cmd, syscall.SIGKILL)
		<-waitDone
	}
}

// signalGroup delivers sig to the subprocess's process group, falling back
// to the process itself if the group signal is refused.
func signalGroup(cmd *exec.Cmd, sig syscall.Signal) {
	if pid := cmd.Process.Pid; pid > 0 {
		if err := syscall.Kill(-pid, sig); err == nil {
			return
		}
	}
	_ = cmd.Process.Signal(sig)
}
