package workflow_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"transcribe/internal/config"
	"transcribe/internal/export"
	"transcribe/internal/logging"
	"transcribe/internal/services"
	"transcribe/internal/testsupport"
	"transcribe/internal/transcript"
	"transcribe/internal/whisperx"
	"transcribe/internal/workflow"
)

type fakeEngine struct {
	cfg         whisperx.Config
	payload     string
	transcribes *atomic.Int32
	err         error
}

func (f *fakeEngine) ExtractAudio(_ context.Context, _, dest string) error {
	return os.WriteFile(dest, []byte("RIFF"), 0o644)
}

func (f *fakeEngine) Transcribe(_ context.Context, source, outDir string) (whisperx.Result, string, error) {
	f.transcribes.Add(1)
	if f.err != nil {
		return whisperx.Result{}, "", f.err
	}
	jsonPath := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(source), ".wav")+".json")
	if err := os.WriteFile(jsonPath, []byte(f.payload), 0o644); err != nil {
		return whisperx.Result{}, "", err
	}
	res, err := whisperx.LoadResult(jsonPath)
	return res, jsonPath, err
}

func (f *fakeEngine) Model() string { return whisperx.ResolveModel(f.cfg.Model) }
func (f *fakeEngine) Diarize() bool { return f.cfg.Diarize }

type harness struct {
	cfg         *config.Config
	runner      *workflow.Runner
	transcribes *atomic.Int32
	configs     []whisperx.Config
	input       string
	factory     workflow.EngineFactory
}

func newHarness(t *testing.T, payload string, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	opts = append([]testsupport.ConfigOption{testsupport.WithStubbedBinaries()}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	h := &harness{cfg: cfg, transcribes: &atomic.Int32{}}
	h.input = filepath.Join(testsupport.BaseDir(cfg), "audio", "meeting.m4a")
	testsupport.WriteFile(t, h.input, 4096)
	h.factory = func(c whisperx.Config) workflow.Engine {
		h.configs = append(h.configs, c)
		return &fakeEngine{cfg: c, payload: payload, transcribes: h.transcribes}
	}
	h.useLogger(logging.NewNop())
	return h
}

func (h *harness) useLogger(logger *slog.Logger) {
	h.runner = workflow.NewRunner(h.cfg, logger).WithEngineFactory(h.factory).WithProbeRunner(probeJSON(audioProbe))
}

const audioProbe = `{"streams":[{"codec_type":"audio","codec_name":"aac","sample_rate":"44100","channels":1}],"format":{"duration":"4.0"}}`

func probeJSON(payload string) func(context.Context, string, ...string) ([]byte, error) {
	return func(context.Context, string, ...string) ([]byte, error) {
		return []byte(payload), nil
	}
}

func (h *harness) request() workflow.Request {
	return workflow.Request{
		Input:   h.input,
		Format:  export.Markdown,
		Options: h.cfg.FormatOptions(false),
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestRunWritesMarkdownNextToInput(t *testing.T) {
	h := newHarness(t, testsupport.EngineJSON)

	result, err := h.runner.Run(context.Background(), h.request())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	want := strings.TrimSuffix(h.input, ".m4a") + ".md"
	if result.Output != want {
		t.Fatalf("output = %q, want %q", result.Output, want)
	}
	got := readFile(t, want)
	if got != "# Transcript\n\nHello there.\n\nHi.\n" {
		t.Fatalf("unexpected transcript:\n%q", got)
	}
	if result.RunID == "" || result.Language != "en" || result.CacheHit {
		t.Fatalf("unexpected result: %#v", result)
	}
	if h.configs[0].Diarize {
		t.Fatal("engine should not diarize without speaker labels")
	}
}

func TestRunSpeakerLabelsUseEngineDiarization(t *testing.T) {
	h := newHarness(t, testsupport.EngineJSON, testsupport.WithHFToken("hf_test"))
	req := h.request()
	req.LabelSpeakers = true
	req.Model = "turbo"

	result, err := h.runner.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	got := readFile(t, result.Output)
	want := "# Transcript\n\n**Speaker 1:** Hello there.\n\n**Speaker 2:** Hi.\n"
	if got != want {
		t.Fatalf("unexpected transcript:\n%q", got)
	}
	if !h.configs[0].Diarize || h.configs[0].Model != "turbo" || h.configs[0].HFToken != "hf_test" {
		t.Fatalf("unexpected engine config: %#v", h.configs[0])
	}
	if result.Stats.Speakers != 2 {
		t.Fatalf("expected 2 speakers, got %d", result.Stats.Speakers)
	}
}

func TestRunWarnsWhenLanguageHasNoAlignment(t *testing.T) {
	h := newHarness(t, testsupport.EngineJSON, testsupport.WithHFToken("hf_test"))
	var logs bytes.Buffer
	h.useLogger(slog.New(slog.NewJSONHandler(&logs, nil)))

	req := h.request()
	req.LabelSpeakers = true
	req.Language = "hi"
	if _, err := h.runner.Run(context.Background(), req); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(logs.String(), `"event_type":"alignment_unavailable"`) {
		t.Fatalf("expected alignment warning, logs:\n%s", logs.String())
	}

	logs.Reset()
	req.Language = "en"
	if _, err := h.runner.Run(context.Background(), req); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if strings.Contains(logs.String(), "alignment_unavailable") {
		t.Fatalf("english has an alignment model, logs:\n%s", logs.String())
	}
}

func TestRunDiarizeRequiresToken(t *testing.T) {
	h := newHarness(t, testsupport.EngineJSON)
	req := h.request()
	req.LabelSpeakers = true

	_, err := h.runner.Run(context.Background(), req)
	if !errors.Is(err, services.ErrConfiguration) || !errors.Is(err, whisperx.ErrHuggingFaceAuth) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if services.ExitCode(err) != services.ExitUsage {
		t.Fatalf("expected usage exit code, got %d", services.ExitCode(err))
	}
	if h.transcribes.Load() != 0 {
		t.Fatal("engine must not run without a token")
	}
}

func TestRunUsesCacheOnSecondRun(t *testing.T) {
	h := newHarness(t, testsupport.EngineJSON)

	if _, err := h.runner.Run(context.Background(), h.request()); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	req := h.request()
	req.Output = filepath.Join(testsupport.BaseDir(h.cfg), "out", "second.md")
	req.Options.MinWords = 1
	result, err := h.runner.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if !result.CacheHit {
		t.Fatal("expected cache hit on second run")
	}
	if n := h.transcribes.Load(); n != 1 {
		t.Fatalf("engine ran %d times, want 1", n)
	}
	if _, err := os.Stat(req.Output); err != nil {
		t.Fatalf("expected output at override path: %v", err)
	}

	req.NoCache = true
	if _, err := h.runner.Run(context.Background(), req); err != nil {
		t.Fatalf("no-cache Run failed: %v", err)
	}
	if n := h.transcribes.Load(); n != 2 {
		t.Fatalf("--no-cache should run the engine, ran %d times", n)
	}
}

func TestRunCacheMissesAfterVADChange(t *testing.T) {
	h := newHarness(t, testsupport.EngineJSON)

	if _, err := h.runner.Run(context.Background(), h.request()); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	h.cfg.Transcription.VADMethod = "pyannote"
	result, err := h.runner.Run(context.Background(), h.request())
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if result.CacheHit {
		t.Fatal("a different vad method must not reuse the cached result")
	}
	if n := h.transcribes.Load(); n != 2 {
		t.Fatalf("engine ran %d times, want 2", n)
	}
}

func TestRunCacheDisabled(t *testing.T) {
	h := newHarness(t, testsupport.EngineJSON, testsupport.WithCacheDisabled())
	for i := 0; i < 2; i++ {
		if _, err := h.runner.Run(context.Background(), h.request()); err != nil {
			t.Fatalf("Run %d failed: %v", i, err)
		}
	}
	if n := h.transcribes.Load(); n != 2 {
		t.Fatalf("engine ran %d times, want 2", n)
	}
	if _, err := os.Stat(h.cfg.CacheDBPath()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("cache db should not exist, stat err=%v", err)
	}
}

func TestRunMissingInput(t *testing.T) {
	h := newHarness(t, testsupport.EngineJSON)
	req := h.request()
	req.Input = filepath.Join(testsupport.BaseDir(h.cfg), "missing.mp3")

	_, err := h.runner.Run(context.Background(), req)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRunRejectsDirectory(t *testing.T) {
	h := newHarness(t, testsupport.EngineJSON)
	req := h.request()
	req.Input = filepath.Dir(h.input)

	_, err := h.runner.Run(context.Background(), req)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRunRejectsInputWithoutAudio(t *testing.T) {
	h := newHarness(t, testsupport.EngineJSON)
	h.runner.WithProbeRunner(probeJSON(`{"streams":[{"codec_type":"video"}],"format":{}}`))

	_, err := h.runner.Run(context.Background(), h.request())
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if h.transcribes.Load() != 0 {
		t.Fatal("engine must not run for inputs without audio")
	}
}

func TestRunContinuesWhenProbeFails(t *testing.T) {
	h := newHarness(t, testsupport.EngineJSON)
	h.runner.WithProbeRunner(func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exec: \"ffprobe\": executable file not found in $PATH")
	})

	if _, err := h.runner.Run(context.Background(), h.request()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
}

func TestRunMalformedEngineOutput(t *testing.T) {
	payload := `{"segments":[{"start":0.0,"end":1.0,"text":"ok"},{"start":3.0,"end":2.0,"text":"bad"}]}`
	h := newHarness(t, payload)

	_, err := h.runner.Run(context.Background(), h.request())
	if !errors.Is(err, services.ErrValidation) || !errors.Is(err, transcript.ErrMalformedSegment) {
		t.Fatalf("expected malformed segment validation error, got %v", err)
	}
	var malformed *transcript.MalformedSegmentError
	if !errors.As(err, &malformed) || malformed.Index != 1 {
		t.Fatalf("expected index 1, got %v", err)
	}
	if _, statErr := os.Stat(strings.TrimSuffix(h.input, ".m4a") + ".md"); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("no output may be written for malformed input")
	}
}

func TestRunEngineFailureIsExternalTool(t *testing.T) {
	h := newHarness(t, testsupport.EngineJSON)
	h.runner.WithEngineFactory(func(c whisperx.Config) workflow.Engine {
		return &fakeEngine{cfg: c, transcribes: h.transcribes, err: errors.New("whisperx: exit status 1")}
	})

	_, err := h.runner.Run(context.Background(), h.request())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestRunRTTMAttribution(t *testing.T) {
	h := newHarness(t, testsupport.EngineJSON)
	rttm := testsupport.WriteText(t, filepath.Join(testsupport.BaseDir(h.cfg), "turns.rttm"),
		"SPEAKER meeting 1 0.00 1.50 <NA> <NA> alice <NA> <NA>\n"+
			"SPEAKER meeting 1 3.00 1.50 <NA> <NA> alice <NA> <NA>\n")
	req := h.request()
	req.LabelSpeakers = true
	req.RTTMPath = rttm

	result, err := h.runner.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if h.configs[0].Diarize {
		t.Fatal("engine diarization should be off when turns are supplied")
	}
	got := readFile(t, result.Output)
	if got != "# Transcript\n\n**Speaker 1:** Hello there.\n\n**Speaker 1:** Hi.\n" {
		t.Fatalf("unexpected transcript:\n%q", got)
	}
}

func TestRunHTMLOutput(t *testing.T) {
	h := newHarness(t, testsupport.EngineJSON)
	req := h.request()
	req.Format = export.HTML

	result, err := h.runner.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.HasSuffix(result.Output, "meeting.html") {
		t.Fatalf("unexpected output path %q", result.Output)
	}
	got := readFile(t, result.Output)
	if !strings.Contains(got, "<title>meeting</title>") || !strings.Contains(got, "<p>Hello there.</p>") {
		t.Fatalf("unexpected html:\n%s", got)
	}
}

func TestFormatFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	jsonPath := testsupport.WriteText(t, filepath.Join(testsupport.BaseDir(cfg), "meeting.json"), testsupport.EngineJSON)
	runner := workflow.NewRunner(cfg, logging.NewNop())

	opts := cfg.FormatOptions(false)
	opts.MinWords = 1
	result, err := runner.FormatFile(context.Background(), workflow.Request{
		Input:         jsonPath,
		LabelSpeakers: true,
		Format:        export.Markdown,
		Options:       opts,
	})
	if err != nil {
		t.Fatalf("FormatFile failed: %v", err)
	}
	if result.Output != filepath.Join(testsupport.BaseDir(cfg), "meeting.md") {
		t.Fatalf("unexpected output %q", result.Output)
	}
	got := readFile(t, result.Output)
	if got != "# Transcript\n\n**Speaker 1:** Hello there.\n\n**Speaker 2:** Hi.\n" {
		t.Fatalf("unexpected transcript:\n%q", got)
	}
}

func TestFormatFileMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner := workflow.NewRunner(cfg, logging.NewNop())
	_, err := runner.FormatFile(context.Background(), workflow.Request{
		Input:   filepath.Join(testsupport.BaseDir(cfg), "absent.json"),
		Options: cfg.FormatOptions(false),
	})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOutputPath(t *testing.T) {
	if got := workflow.OutputPath("/tmp/a.b/talk.mp3", export.Markdown); got != "/tmp/a.b/talk.md" {
		t.Fatalf("unexpected path %q", got)
	}
	if got := workflow.OutputPath("/tmp/talk", export.HTML); got != "/tmp/talk.html" {
		t.Fatalf("unexpected path %q", got)
	}
}
