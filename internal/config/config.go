package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"

	"transcribe/internal/transcript"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	RuntimeDir string `toml:"runtime_dir"`
	CacheDir   string `toml:"cache_dir"`
	LogDir     string `toml:"log_dir"`
	// LinkDir receives a transcribe symlink on install. Empty disables linking.
	LinkDir string `toml:"link_dir"`
}

// Transcription contains WhisperX engine settings.
type Transcription struct {
	Model         string `toml:"model"`
	Language      string `toml:"language"`
	CUDA          bool   `toml:"cuda"`
	BatchSize     int    `toml:"batch_size"`
	VADMethod     string `toml:"vad_method"`
	PythonVersion string `toml:"python_version"`
	// TimeoutMinutes bounds one engine run. Zero disables the limit.
	TimeoutMinutes int `toml:"timeout_minutes"`
}

// Diarization contains speaker identification settings.
type Diarization struct {
	HFToken     string `toml:"hf_token"`
	MinSpeakers int    `toml:"min_speakers"`
	MaxSpeakers int    `toml:"max_speakers"`
}

// Formatting contains paragraph grouping settings.
type Formatting struct {
	SilenceThresholdSeconds float64 `toml:"silence_threshold_seconds"`
	PauseThresholdSeconds   float64 `toml:"pause_threshold_seconds"`
	MinWords                int     `toml:"min_words"`
	// OutputFormat is "md" or "html".
	OutputFormat string `toml:"output_format"`
}

// Cache contains engine result cache settings.
type Cache struct {
	Enabled bool `toml:"enabled"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for transcribe.
//
// Configuration sections by subsystem:
//   - Paths: runtime, cache and log directories
//   - Transcription: WhisperX model, device and VAD settings
//   - Diarization: Hugging Face token and speaker count hints
//   - Formatting: paragraph thresholds and output format
//   - Cache: engine result cache toggle
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Transcription Transcription `toml:"transcription"`
	Diarization   Diarization   `toml:"diarization"`
	Formatting    Formatting    `toml:"formatting"`
	Cache         Cache         `toml:"cache"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	if base, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && strings.TrimSpace(base) != "" {
		return expandPath(filepath.Join(base, "transcribe", "config.toml"))
	}
	return expandPath("~/.config/transcribe/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A missing file yields defaults.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strings.TrimSpace(strict.String()))
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config path %s is a directory", expanded)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("transcribe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the runtime and cache directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.RuntimeDir}
	if c.Cache.Enabled {
		dirs = append(dirs, c.Paths.CacheDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CacheDBPath returns the SQLite file holding cached engine results.
func (c *Config) CacheDBPath() string {
	return filepath.Join(c.Paths.CacheDir, "transcripts.db")
}

// FormatOptions converts the formatting section into formatter options.
func (c *Config) FormatOptions(labelSpeakers bool) transcript.Options {
	return transcript.Options{
		SilenceThreshold: decimal.NewFromFloat(c.Formatting.SilenceThresholdSeconds),
		PauseThreshold:   decimal.NewFromFloat(c.Formatting.PauseThresholdSeconds),
		MinWords:         c.Formatting.MinWords,
		LabelSpeakers:    labelSpeakers,
	}
}

// FFmpegBinary returns the ffmpeg executable name.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
// An existing file is left untouched unless overwrite is set.
func CreateSample(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(SampleConfig()), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}
