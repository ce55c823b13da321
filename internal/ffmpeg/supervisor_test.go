package ffmpeg

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// The supervisor tests drive /bin/sh instead of a real encoder; the
// supervisor only cares about stderr lines and exit codes.

func shSupervisor() *Supervisor {
	return &Supervisor{FFmpegPath: "/bin/sh", GracePeriod: time.Second}
}

func TestRunCompleted(t *testing.T) {
	res := shSupervisor().Run(context.Background(), []string{"-c", "echo out_time_us=1000000 1>&2; exit 0"}, 10, true)
	assert.Equal(t, Completed, res.Class)
	assert.Equal(t, 0, res.ExitCode)
}

func TestRunFailedSurfacesStderr(t *testing.T) {
	res := shSupervisor().Run(context.Background(), []string{"-c", "echo boom 1>&2; exit 3"}, 0, false)
	assert.Equal(t, Failed, res.Class)
	assert.Equal(t, 3, res.ExitCode)
	assert.Contains(t, res.Stderr, "boom")
}

func TestRunRefusesWhenAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	res := shSupervisor().Run(ctx, []string{"-c", "sleep 5"}, 0, false)
	assert.Equal(t, Interrupted, res.Class)
	assert.Less(t, time.Since(start), time.Second, "must not spawn a subprocess")
}

func TestRunInterruptedInFlight(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	res := shSupervisor().Run(ctx, []string{"-c", "sleep 30"}, 0, false)
	assert.Equal(t, Interrupted, res.Class)
	// Graceful termination plus a small epsilon, far below the sleep.
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunInterruptedWithBackgroundChild(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	// The backgrounded sleep inherits the stderr pipe. Termination must
	// reach it too, or the read loop never sees EOF and Run hangs until
	// the grandchild exits on its own.
	start := time.Now()
	res := shSupervisor().Run(ctx, []string{"-c", "sleep 30 & sleep 30"}, 0, false)
	assert.Equal(t, Interrupted, res.Class)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunInterruptionBeatsExitCode(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	// The script exits zero on SIGTERM; the classification must still be
	// Interrupted because termination was caller-initiated.
	res := shSupervisor().Run(ctx, []string{"-c", "trap 'exit 0' TERM; sleep 30"}, 0, false)
	assert.Equal(t, Interrupted, res.Class)
}

func TestRunProgressCallback(t *testing.T) {
	var states []State
	sup := shSupervisor()
	sup.OnProgress = func(s State) { states = append(states, s) }

	res := sup.Run(context.Background(), []string{"-c", "echo out_time_us=5000000 1>&2; exit 0"}, 10, true)
	assert.Equal(t, Completed, res.Class)
	if assert.NotEmpty(t, states) {
		last := states[len(states)-1]
		p, ok := last.Percent()
		assert.True(t, ok)
		assert.Equal(t, 100.0, p) // final snapshot snaps to completion
	}
}
