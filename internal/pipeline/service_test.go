package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dpconv/internal/cache"
	"dpconv/internal/ffmpeg"
	"dpconv/internal/model"
	"dpconv/internal/plan"
	"dpconv/internal/probe"
	"dpconv/internal/progress"
)

type recordingReporter struct {
	mu      sync.Mutex
	updates []progress.Update
	results []progress.Result
	logs    []progress.Log
}

func (r *recordingReporter) Update(u progress.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}
func (r *recordingReporter) Log(l progress.Log) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, l)
}
func (r *recordingReporter) Result(res progress.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

type fakeProber struct {
	descs map[string]*probe.Descriptor
	errs  map[string]error
}

func (f *fakeProber) Probe(_ context.Context, path string) (*probe.Descriptor, error) {
	if err := f.errs[path]; err != nil {
		return nil, err
	}
	d, ok := f.descs[path]
	if !ok {
		return nil, errors.New("unexpected probe: " + path)
	}
	return d, nil
}

func (f *fakeProber) Duration(context.Context, string) (float64, bool) {
	return 120, true
}

// fakeSupervisor stands in for the ffmpeg subprocess. When class is
// Completed it writes the output file the real tool would have produced.
type fakeSupervisor struct {
	mu           sync.Mutex
	class        ffmpeg.ExitClass
	exitCode     int
	stderr       string
	writePartial bool // leave the output file behind on failure too
	calls        [][]string
}

func (f *fakeSupervisor) Run(_ context.Context, args []string, _ float64, _ bool) ffmpeg.RunResult {
	f.mu.Lock()
	f.calls = append(f.calls, args)
	f.mu.Unlock()
	if f.class == ffmpeg.Completed || f.writePartial {
		out := args[len(args)-1]
		if err := os.WriteFile(out, []byte("converted"), 0o644); err != nil {
			return ffmpeg.RunResult{Class: ffmpeg.Failed, ExitCode: 1, Stderr: err.Error()}
		}
	}
	return ffmpeg.RunResult{Class: f.class, ExitCode: f.exitCode, Stderr: f.stderr}
}

type fakeCache struct {
	mu        sync.Mutex
	processed []string
}

func (f *fakeCache) UpsertProcessed(_ context.Context, path string, _ bool, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, path)
	return nil
}

type decisionConfirmer struct {
	mu        sync.Mutex
	decisions []Decision
}

func (c *decisionConfirmer) Confirm(string, plan.Action) (Decision, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.decisions) == 0 {
		return DecisionYes, nil
	}
	d := c.decisions[0]
	c.decisions = c.decisions[1:]
	return d, nil
}

func compatibleDesc(path string) *probe.Descriptor {
	return &probe.Descriptor{
		Path: path, Container: "mp4", HasVideo: true, VideoCodec: "h264",
		HasAudio: true, AudioStreams: []probe.AudioStream{{Index: 0, Codec: "aac", Channels: 2, Language: "en"}},
	}
}

func remuxDesc(path string) *probe.Descriptor {
	d := compatibleDesc(path)
	d.Container = "mkv"
	return d
}

func writeInput(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("original media"), 0o644))
	return path
}

func newTestService(t *testing.T, prober *fakeProber, sup *fakeSupervisor, enc model.EncodeOptions, run model.RunOptions, extra ...Option) (*Service, *recordingReporter) {
	t.Helper()
	rep := &recordingReporter{}
	if enc.Preset == "" {
		enc.Preset = "medium"
	}
	opts := []Option{
		WithFFmpegPath("/usr/bin/ffmpeg"),
		WithFFprobePath("/usr/bin/ffprobe"),
		WithEncodeOptions(enc),
		WithRunOptions(run),
		WithReporter(rep),
		WithSupervisorFactory(func(func(ffmpeg.State)) encodeSupervisor { return sup }),
	}
	opts = append(opts, extra...)
	svc := NewService(opts...)
	svc.prober = prober
	return svc, rep
}

func TestProcessFileSkipsCompatible(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "movie.mp4")
	prober := &fakeProber{descs: map[string]*probe.Descriptor{in: compatibleDesc(in)}}
	sup := &fakeSupervisor{class: ffmpeg.Completed}
	svc, rep := newTestService(t, prober, sup, model.EncodeOptions{CRF: 22}, model.RunOptions{})

	res := svc.ProcessFile(context.Background(), in, "job1")

	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Empty(t, sup.calls)
	require.Len(t, rep.results, 1)
	assert.Equal(t, string(OutcomeSkipped), rep.results[0].Outcome)
}

func TestProcessFileNoVideo(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "audio.mkv")
	prober := &fakeProber{descs: map[string]*probe.Descriptor{in: {Path: in, Container: "mkv", HasAudio: true}}}
	svc, _ := newTestService(t, prober, &fakeSupervisor{}, model.EncodeOptions{CRF: 22}, model.RunOptions{})

	res := svc.ProcessFile(context.Background(), in, "job1")
	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Equal(t, "no video stream", res.Message)
}

func TestProcessFileProbeError(t *testing.T) {
	prober := &fakeProber{errs: map[string]error{"/media/bad.mkv": errors.New("boom")}}
	svc, _ := newTestService(t, prober, &fakeSupervisor{}, model.EncodeOptions{CRF: 22}, model.RunOptions{})

	res := svc.ProcessFile(context.Background(), "/media/bad.mkv", "job1")
	assert.Equal(t, OutcomeError, res.Outcome)
	assert.Error(t, res.Err)
}

func TestProcessFileActionFilter(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "movie.mkv")
	prober := &fakeProber{descs: map[string]*probe.Descriptor{in: remuxDesc(in)}}
	sup := &fakeSupervisor{class: ffmpeg.Completed}
	svc, _ := newTestService(t, prober, sup,
		model.EncodeOptions{CRF: 22, ActionFilter: "transcode_video"}, model.RunOptions{})

	res := svc.ProcessFile(context.Background(), in, "job1")
	assert.Equal(t, OutcomeFiltered, res.Outcome)
	assert.Empty(t, sup.calls)
}

func TestProcessFileRemux(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "movie.mkv")
	prober := &fakeProber{descs: map[string]*probe.Descriptor{in: remuxDesc(in)}}
	sup := &fakeSupervisor{class: ffmpeg.Completed}
	store := &fakeCache{}
	svc, rep := newTestService(t, prober, sup, model.EncodeOptions{CRF: 22}, model.RunOptions{},
		WithCache(store))

	res := svc.ProcessFile(context.Background(), in, "job1")

	require.Equal(t, OutcomeRemuxed, res.Outcome)
	want := filepath.Join(dir, "movie.mp4")
	assert.Equal(t, want, res.OutputPath)
	assert.FileExists(t, want)
	assert.FileExists(t, in) // original kept without --delete-original

	require.Len(t, sup.calls, 1)
	args := sup.calls[0]
	assert.Contains(t, args, "copy")
	assert.Equal(t, want, args[len(args)-1])
	require.NotEmpty(t, rep.results)
	assert.Equal(t, string(OutcomeRemuxed), rep.results[len(rep.results)-1].Outcome)
	assert.Equal(t, []string{in}, store.processed)
}

func TestProcessFileDeleteOriginal(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "movie.mkv")
	prober := &fakeProber{descs: map[string]*probe.Descriptor{in: remuxDesc(in)}}
	sup := &fakeSupervisor{class: ffmpeg.Completed}
	svc, _ := newTestService(t, prober, sup,
		model.EncodeOptions{CRF: 22, DeleteOriginal: true}, model.RunOptions{})

	res := svc.ProcessFile(context.Background(), in, "job1")

	assert.Equal(t, OutcomeRemuxed, res.Outcome)
	assert.FileExists(t, filepath.Join(dir, "movie.mp4"))
	assert.NoFileExists(t, in)
}

func TestProcessFileInPlaceSwap(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "movie.mp4")
	desc := compatibleDesc(in)
	desc.AudioStreams[0].Codec = "ac3" // audio needs a re-encode
	desc.AudioStreams[0].Channels = 6
	prober := &fakeProber{descs: map[string]*probe.Descriptor{in: desc}}
	sup := &fakeSupervisor{class: ffmpeg.Completed}
	svc, _ := newTestService(t, prober, sup,
		model.EncodeOptions{CRF: 22, DeleteOriginal: true}, model.RunOptions{})

	res := svc.ProcessFile(context.Background(), in, "job1")

	require.Equal(t, OutcomeProcessed, res.Outcome)
	assert.Equal(t, in, res.OutputPath)
	assert.NoFileExists(t, filepath.Join(dir, "movie.tmp.mp4"))

	// The subprocess wrote to the temp path, not the original.
	require.Len(t, sup.calls, 1)
	args := sup.calls[0]
	assert.Equal(t, filepath.Join(dir, "movie.tmp.mp4"), args[len(args)-1])

	data, err := os.ReadFile(in)
	require.NoError(t, err)
	assert.Equal(t, "converted", string(data))
}

func TestProcessFileInPlaceWithoutDeleteSkips(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "movie.mp4")
	desc := compatibleDesc(in)
	desc.AudioStreams[0].Codec = "ac3"
	prober := &fakeProber{descs: map[string]*probe.Descriptor{in: desc}}
	sup := &fakeSupervisor{class: ffmpeg.Completed}
	svc, _ := newTestService(t, prober, sup, model.EncodeOptions{CRF: 22}, model.RunOptions{})

	res := svc.ProcessFile(context.Background(), in, "job1")
	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Contains(t, res.Message, "destination already exists")
	assert.Empty(t, sup.calls)
}

func TestProcessFileExistingDestinationSkips(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "movie.mkv")
	writeInput(t, dir, "movie.mp4")
	prober := &fakeProber{descs: map[string]*probe.Descriptor{in: remuxDesc(in)}}
	sup := &fakeSupervisor{class: ffmpeg.Completed}
	svc, _ := newTestService(t, prober, sup, model.EncodeOptions{CRF: 22}, model.RunOptions{})

	res := svc.ProcessFile(context.Background(), in, "job1")
	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Empty(t, sup.calls)
}

func TestProcessFileFailureCleansPartialOutput(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "movie.mkv")
	prober := &fakeProber{descs: map[string]*probe.Descriptor{in: remuxDesc(in)}}
	sup := &fakeSupervisor{class: ffmpeg.Failed, exitCode: 1, stderr: "muxer exploded\n", writePartial: true}
	svc, _ := newTestService(t, prober, sup, model.EncodeOptions{CRF: 22}, model.RunOptions{})

	res := svc.ProcessFile(context.Background(), in, "job1")

	assert.Equal(t, OutcomeError, res.Outcome)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "muxer exploded")
	assert.NoFileExists(t, filepath.Join(dir, "movie.mp4"))
	assert.FileExists(t, in)
}

func TestProcessFileInterruptedCleansPartialOutput(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "movie.mkv")
	prober := &fakeProber{descs: map[string]*probe.Descriptor{in: remuxDesc(in)}}
	sup := &fakeSupervisor{class: ffmpeg.Interrupted, writePartial: true}
	svc, _ := newTestService(t, prober, sup, model.EncodeOptions{CRF: 22}, model.RunOptions{})

	res := svc.ProcessFile(context.Background(), in, "job1")

	assert.Equal(t, OutcomeInterrupted, res.Outcome)
	assert.NoFileExists(t, filepath.Join(dir, "movie.mp4"))
}

func TestProcessFileDryRun(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "movie.mkv")
	prober := &fakeProber{descs: map[string]*probe.Descriptor{in: remuxDesc(in)}}
	sup := &fakeSupervisor{class: ffmpeg.Completed}
	svc, _ := newTestService(t, prober, sup, model.EncodeOptions{CRF: 22}, model.RunOptions{DryRun: true})

	res := svc.ProcessFile(context.Background(), in, "job1")

	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.Contains(t, res.Message, "dry-run: ")
	assert.Contains(t, res.Message, "ffmpeg")
	assert.Empty(t, sup.calls)
	assert.NoFileExists(t, filepath.Join(dir, "movie.mp4"))
}

func TestProcessFileInteractiveDecline(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "movie.mkv")
	prober := &fakeProber{descs: map[string]*probe.Descriptor{in: remuxDesc(in)}}
	sup := &fakeSupervisor{class: ffmpeg.Completed}
	svc, _ := newTestService(t, prober, sup,
		model.EncodeOptions{CRF: 22}, model.RunOptions{Interactive: true},
		WithConfirmer(&decisionConfirmer{decisions: []Decision{DecisionNo}}))

	res := svc.ProcessFile(context.Background(), in, "job1")
	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Equal(t, "declined", res.Message)
	assert.Empty(t, sup.calls)
}

func TestRunBatchCountsOutcomes(t *testing.T) {
	dir := t.TempDir()
	ok := writeInput(t, dir, "a.mkv")
	already := writeInput(t, dir, "b.mp4")
	broken := writeInput(t, dir, "c.mkv")

	prober := &fakeProber{
		descs: map[string]*probe.Descriptor{
			ok:      remuxDesc(ok),
			already: compatibleDesc(already),
		},
		errs: map[string]error{broken: errors.New("unreadable")},
	}
	sup := &fakeSupervisor{class: ffmpeg.Completed}
	svc, _ := newTestService(t, prober, sup, model.EncodeOptions{CRF: 22},
		model.RunOptions{AnalyzeJobs: 2, EncodeJobs: 1})

	st := svc.RunBatch(context.Background(), []string{ok, already, broken})

	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 1, st.Remuxed)
	assert.Equal(t, 1, st.Skipped)
	assert.Equal(t, 1, st.Errors)
	assert.Equal(t, 1, st.Converted())
}

func TestRunBatchQuitStopsNewWork(t *testing.T) {
	dir := t.TempDir()
	var files []string
	descs := make(map[string]*probe.Descriptor)
	for _, name := range []string{"a.mkv", "b.mkv", "c.mkv", "d.mkv"} {
		f := writeInput(t, dir, name)
		files = append(files, f)
		descs[f] = remuxDesc(f)
	}
	prober := &fakeProber{descs: descs}
	sup := &fakeSupervisor{class: ffmpeg.Completed}
	svc, rep := newTestService(t, prober, sup, model.EncodeOptions{CRF: 22},
		model.RunOptions{Interactive: true, AnalyzeJobs: 1, EncodeJobs: 1},
		WithConfirmer(&decisionConfirmer{decisions: []Decision{DecisionQuit}}))

	st := svc.RunBatch(context.Background(), files)

	assert.Equal(t, len(files), st.Total)
	assert.Equal(t, 1, st.Quit)
	assert.Zero(t, st.Converted())
	assert.Equal(t, len(files)-1, st.Interrupted)

	// Every file reaches the reporter, including ones never started.
	rep.mu.Lock()
	defer rep.mu.Unlock()
	assert.Len(t, rep.results, len(files))
}

func TestRunBatchLimit(t *testing.T) {
	dir := t.TempDir()
	a := writeInput(t, dir, "a.mp4")
	b := writeInput(t, dir, "b.mp4")
	prober := &fakeProber{descs: map[string]*probe.Descriptor{
		a: compatibleDesc(a),
		b: compatibleDesc(b),
	}}
	svc, _ := newTestService(t, prober, &fakeSupervisor{}, model.EncodeOptions{CRF: 22},
		model.RunOptions{Limit: 1, AnalyzeJobs: 1, EncodeJobs: 1})

	st := svc.RunBatch(context.Background(), []string{a, b})
	assert.Equal(t, 1, st.Total)
}

func TestTerminalConfirmer(t *testing.T) {
	var out strings.Builder
	c := &TerminalConfirmer{In: strings.NewReader("maybe\nyes\nn\nall\nq\n"), Out: &out}

	d, err := c.Confirm("/m/a.mkv", plan.ContainerRemux)
	require.NoError(t, err)
	assert.Equal(t, DecisionYes, d) // "maybe" re-prompts, "yes" accepted

	d, _ = c.Confirm("/m/b.mkv", plan.ContainerRemux)
	assert.Equal(t, DecisionNo, d)

	d, _ = c.Confirm("/m/c.mkv", plan.ContainerRemux)
	assert.Equal(t, DecisionYes, d) // "all"

	// After "all" nothing more is read.
	d, _ = c.Confirm("/m/d.mkv", plan.ContainerRemux)
	assert.Equal(t, DecisionYes, d)

	assert.GreaterOrEqual(t, strings.Count(out.String(), "Convert?"), 4)
}

func TestTerminalConfirmerEOFQuits(t *testing.T) {
	c := &TerminalConfirmer{In: strings.NewReader(""), Out: &strings.Builder{}}
	d, err := c.Confirm("/m/a.mkv", plan.TranscodeAll)
	require.NoError(t, err)
	assert.Equal(t, DecisionQuit, d)
}

func TestCollectInputs(t *testing.T) {
	dir := t.TempDir()
	writeInput(t, dir, "b.mkv")
	writeInput(t, dir, "a.mp4")
	writeInput(t, dir, "notes.txt")
	sub := filepath.Join(dir, "season1")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	writeInput(t, sub, "ep1.m2ts")
	hidden := filepath.Join(dir, ".cache")
	require.NoError(t, os.MkdirAll(hidden, 0o755))
	writeInput(t, hidden, "thumb.mp4")

	files, err := CollectInputs([]string{dir})
	require.NoError(t, err)
	require.Len(t, files, 3)
	// Lexicographic order over absolute paths puts the subdirectory last.
	assert.Equal(t, "a.mp4", filepath.Base(files[0]))
	assert.Equal(t, "b.mkv", filepath.Base(files[1]))
	assert.Equal(t, "ep1.m2ts", filepath.Base(files[2]))

	// Explicit file arguments bypass the extension check.
	files, err = CollectInputs([]string{filepath.Join(dir, "notes.txt")})
	require.NoError(t, err)
	assert.Len(t, files, 1)

	_, err = CollectInputs([]string{filepath.Join(dir, "missing.mkv")})
	assert.Error(t, err)
}

type fakeReplacer struct {
	entries []cache.Entry
}

func (f *fakeReplacer) Replace(_ context.Context, entries []cache.Entry) error {
	f.entries = entries
	return nil
}

func TestGatherCollectsEntries(t *testing.T) {
	dir := t.TempDir()
	a := writeInput(t, dir, "a.mkv")
	b := writeInput(t, dir, "b.mp4")
	bad := writeInput(t, dir, "c.mkv")
	prober := &fakeProber{
		descs: map[string]*probe.Descriptor{
			a: remuxDesc(a),
			b: compatibleDesc(b),
		},
		errs: map[string]error{bad: errors.New("unreadable")},
	}
	svc, _ := newTestService(t, prober, &fakeSupervisor{}, model.EncodeOptions{CRF: 22},
		model.RunOptions{AnalyzeJobs: 2})

	store := &fakeReplacer{}
	entries, err := svc.Gather(context.Background(), []string{a, b, bad}, store)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, a, entries[0].FilePath)
	assert.Equal(t, plan.ContainerRemux.Describe(), entries[0].ActionNeeded)
	assert.False(t, entries[0].DirectPlayCompatible)
	assert.Equal(t, b, entries[1].FilePath)
	assert.True(t, entries[1].DirectPlayCompatible)
	assert.Equal(t, entries, store.entries)
}
