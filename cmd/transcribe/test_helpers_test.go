package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"transcribe/internal/config"
	"transcribe/internal/testsupport"
	"transcribe/internal/whisperx"
	"transcribe/internal/workflow"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	runtimeDir string
	cacheDir   string
	binDir     string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(base, "xdg"))
	t.Setenv("HF_TOKEN", "")
	t.Setenv("HUGGING_FACE_HUB_TOKEN", "")
	t.Setenv("TRANSCRIBE_MODEL", "")

	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "config.toml"),
		runtimeDir: filepath.Join(base, "runtime"),
		cacheDir:   filepath.Join(base, "cache"),
		binDir:     filepath.Join(base, "bin"),
	}
	content := fmt.Sprintf("[paths]\nruntime_dir = %q\ncache_dir = %q\n\n[logging]\nlevel = \"warn\"\n",
		env.runtimeDir, env.cacheDir)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	for _, name := range []string{"ffmpeg", "uv", "uvx"} {
		testsupport.WriteStub(t, env.binDir, name, "#!/bin/sh\nexit 0\n")
	}
	t.Setenv("PATH", env.binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return env
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{}
	if env != nil && env.configPath != "" {
		flags = append(flags, "--config", env.configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

// stubEngine writes a fixed engine payload instead of running WhisperX.
type stubEngine struct {
	cfg   whisperx.Config
	calls *atomic.Int32
}

func (s *stubEngine) ExtractAudio(_ context.Context, _, dest string) error {
	return os.WriteFile(dest, []byte("RIFF"), 0o644)
}

func (s *stubEngine) Transcribe(_ context.Context, source, outDir string) (whisperx.Result, string, error) {
	s.calls.Add(1)
	jsonPath := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(source), ".wav")+".json")
	if err := os.WriteFile(jsonPath, []byte(testsupport.EngineJSON), 0o644); err != nil {
		return whisperx.Result{}, "", err
	}
	res, err := whisperx.LoadResult(jsonPath)
	return res, jsonPath, err
}

func (s *stubEngine) Model() string { return whisperx.ResolveModel(s.cfg.Model) }
func (s *stubEngine) Diarize() bool { return s.cfg.Diarize }

func stubRunner(t *testing.T) *atomic.Int32 {
	t.Helper()
	calls := &atomic.Int32{}
	original := newRunner
	newRunner = func(cfg *config.Config, logger *slog.Logger) *workflow.Runner {
		return workflow.NewRunner(cfg, logger).WithEngineFactory(func(c whisperx.Config) workflow.Engine {
			return &stubEngine{cfg: c, calls: calls}
		}).WithProbeRunner(func(context.Context, string, ...string) ([]byte, error) {
			return []byte(`{"streams":[{"codec_type":"audio","codec_name":"mp3"}],"format":{"duration":"4.0"}}`), nil
		})
	}
	t.Cleanup(func() { newRunner = original })
	return calls
}
