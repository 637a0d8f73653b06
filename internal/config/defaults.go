package config

import (
	"os"
	"path/filepath"
	"strings"

	"transcribe/internal/transcript"
)

const (
	defaultModel            = "large-v3"
	defaultPythonVersion    = "3.12"
	defaultBatchSize        = 4
	defaultVADMethod        = "silero"
	defaultOutputFormat     = "md"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 30
)

// Default returns a Config populated with repository defaults. Model and
// directories are resolved during Load so environment fallbacks apply.
func Default() Config {
	format := transcript.DefaultOptions()
	return Config{
		Transcription: Transcription{
			BatchSize:     defaultBatchSize,
			VADMethod:     defaultVADMethod,
			PythonVersion: defaultPythonVersion,
		},
		Formatting: Formatting{
			SilenceThresholdSeconds: format.SilenceThreshold.InexactFloat64(),
			PauseThresholdSeconds:   format.PauseThreshold.InexactFloat64(),
			MinWords:                format.MinWords,
			OutputFormat:            defaultOutputFormat,
		},
		Cache: Cache{
			Enabled: true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

func defaultRuntimeDir() string {
	return filepath.Join(xdgDir("XDG_DATA_HOME", ".local/share"), "transcribe", "runtime")
}

func defaultCacheDir() string {
	return filepath.Join(xdgDir("XDG_CACHE_HOME", ".cache"), "transcribe")
}

func xdgDir(env, fallback string) string {
	if base, ok := os.LookupEnv(env); ok && strings.TrimSpace(base) != "" {
		return strings.TrimSpace(base)
	}
	return "~/" + fallback
}
