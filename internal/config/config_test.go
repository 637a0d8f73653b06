package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"transcribe/internal/config"
)

func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{"XDG_CONFIG_HOME", "XDG_CACHE_HOME", "XDG_DATA_HOME", "HF_TOKEN", "HUGGING_FACE_HUB_TOKEN", "TRANSCRIBE_MODEL"} {
		t.Setenv(key, "")
	}
	t.Chdir(t.TempDir())
	return home
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	home := isolateEnv(t)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if resolved != filepath.Join(home, ".config", "transcribe", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if cfg.Paths.RuntimeDir != filepath.Join(home, ".local", "share", "transcribe", "runtime") {
		t.Fatalf("unexpected runtime dir %q", cfg.Paths.RuntimeDir)
	}
	if cfg.Paths.CacheDir != filepath.Join(home, ".cache", "transcribe") {
		t.Fatalf("unexpected cache dir %q", cfg.Paths.CacheDir)
	}
	if cfg.CacheDBPath() != filepath.Join(home, ".cache", "transcribe", "transcripts.db") {
		t.Fatalf("unexpected cache db %q", cfg.CacheDBPath())
	}
	if cfg.Paths.LogDir != "" || cfg.Paths.LinkDir != "" {
		t.Fatalf("expected log and link dirs disabled, got %q %q", cfg.Paths.LogDir, cfg.Paths.LinkDir)
	}
	if cfg.Transcription.Model != "large-v3" {
		t.Fatalf("unexpected model %q", cfg.Transcription.Model)
	}
	if cfg.Transcription.VADMethod != "silero" {
		t.Fatalf("unexpected vad method %q", cfg.Transcription.VADMethod)
	}
	if cfg.Formatting.SilenceThresholdSeconds != 2.0 || cfg.Formatting.MinWords != 10 {
		t.Fatalf("unexpected formatting defaults %+v", cfg.Formatting)
	}
	if !cfg.Cache.Enabled {
		t.Fatal("expected cache enabled by default")
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults %+v", cfg.Logging)
	}
}

func TestLoadEnvironmentFallbacks(t *testing.T) {
	isolateEnv(t)
	xdgCache := t.TempDir()
	xdgData := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", xdgCache)
	t.Setenv("XDG_DATA_HOME", xdgData)
	t.Setenv("HUGGING_FACE_HUB_TOKEN", " hf_hub ")
	t.Setenv("TRANSCRIBE_MODEL", "turbo")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Diarization.HFToken != "hf_hub" {
		t.Fatalf("expected token from env, got %q", cfg.Diarization.HFToken)
	}
	if cfg.Transcription.Model != "turbo" {
		t.Fatalf("expected model from env, got %q", cfg.Transcription.Model)
	}
	if cfg.Paths.CacheDir != filepath.Join(xdgCache, "transcribe") {
		t.Fatalf("unexpected cache dir %q", cfg.Paths.CacheDir)
	}
	if cfg.Paths.RuntimeDir != filepath.Join(xdgData, "transcribe", "runtime") {
		t.Fatalf("unexpected runtime dir %q", cfg.Paths.RuntimeDir)
	}

	t.Setenv("HF_TOKEN", "hf_primary")
	cfg, _, _, err = config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Diarization.HFToken != "hf_primary" {
		t.Fatalf("expected HF_TOKEN to take precedence, got %q", cfg.Diarization.HFToken)
	}
}

func TestLoadFileValuesBeatEnvironment(t *testing.T) {
	home := isolateEnv(t)
	t.Setenv("HF_TOKEN", "from-env")
	t.Setenv("TRANSCRIBE_MODEL", "turbo")

	path := writeConfig(t, `
[paths]
cache_dir = "~/transcripts-cache"

[transcription]
model = "medium.en"
language = " EN "

[diarization]
hf_token = "from-file"
min_speakers = 2
max_speakers = 4

[formatting]
silence_threshold_seconds = 1.5
min_words = 5
output_format = "HTML"

[logging]
format = "JSON"
level = "DEBUG"
`)
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected explicit path to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Transcription.Model != "medium.en" || cfg.Diarization.HFToken != "from-file" {
		t.Fatalf("file values should win: %+v %+v", cfg.Transcription, cfg.Diarization)
	}
	if cfg.Transcription.Language != "en" {
		t.Fatalf("expected normalized language, got %q", cfg.Transcription.Language)
	}
	if cfg.Paths.CacheDir != filepath.Join(home, "transcripts-cache") {
		t.Fatalf("expected tilde expansion, got %q", cfg.Paths.CacheDir)
	}
	if cfg.Formatting.OutputFormat != "html" || cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("expected lowercased enums: %+v %+v", cfg.Formatting, cfg.Logging)
	}

	opts := cfg.FormatOptions(true)
	if opts.SilenceThreshold.String() != "1.5" || opts.MinWords != 5 || !opts.LabelSpeakers {
		t.Fatalf("unexpected format options %+v", opts)
	}
	if err := opts.Validate(); err != nil {
		t.Fatalf("format options should validate: %v", err)
	}
}

func TestLoadProjectFileFallback(t *testing.T) {
	isolateEnv(t)
	if err := os.WriteFile("transcribe.toml", []byte("[formatting]\nmin_words = 3\n"), 0o644); err != nil {
		t.Fatalf("write project config: %v", err)
	}
	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || filepath.Base(resolved) != "transcribe.toml" {
		t.Fatalf("expected project config, got %q exists=%v", resolved, exists)
	}
	if cfg.Formatting.MinWords != 3 {
		t.Fatalf("expected min_words from project file, got %d", cfg.Formatting.MinWords)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	isolateEnv(t)
	path := writeConfig(t, "[formatting]\nsilence_treshold_seconds = 3\n")
	_, _, _, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error for misspelled key")
	}
	if !strings.Contains(err.Error(), "silence_treshold_seconds") {
		t.Fatalf("error should name the key: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	isolateEnv(t)
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"negative silence", "[formatting]\nsilence_threshold_seconds = -1.0\n", "silence_threshold_seconds"},
		{"zero silence", "[formatting]\nsilence_threshold_seconds = 0.0\n", "silence_threshold_seconds"},
		{"negative pause", "[formatting]\npause_threshold_seconds = -0.5\n", "pause_threshold_seconds"},
		{"negative min words", "[formatting]\nmin_words = -1\n", "min_words"},
		{"bad output", "[formatting]\noutput_format = \"pdf\"\n", "output_format"},
		{"bad vad", "[transcription]\nvad_method = \"webrtc\"\n", "vad_method"},
		{"negative timeout", "[transcription]\ntimeout_minutes = -5\n", "timeout_minutes"},
		{"speaker range", "[diarization]\nmin_speakers = 5\nmax_speakers = 2\n", "min_speakers"},
		{"bad level", "[logging]\nlevel = \"trace\"\n", "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := config.Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestCreateSampleRoundTrip(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path, false); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if err := config.CreateSample(path, false); err == nil {
		t.Fatal("expected refusal to overwrite existing config")
	}
	if err := config.CreateSample(path, true); err != nil {
		t.Fatalf("CreateSample overwrite: %v", err)
	}

	var raw map[string]any
	if err := toml.Unmarshal([]byte(config.SampleConfig()), &raw); err != nil {
		t.Fatalf("sample config is not valid TOML: %v", err)
	}
	for _, section := range []string{"paths", "transcription", "diarization", "formatting", "cache", "logging"} {
		if _, ok := raw[section]; !ok {
			t.Fatalf("sample config missing [%s]", section)
		}
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample file to exist")
	}
	want := config.Default()
	if cfg.Formatting != want.Formatting {
		t.Fatalf("sample formatting %+v differs from defaults %+v", cfg.Formatting, want.Formatting)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.RuntimeDir = filepath.Join(base, "runtime")
	cfg.Paths.CacheDir = filepath.Join(base, "cache")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.RuntimeDir, cfg.Paths.CacheDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}
