package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTranscription()
	c.normalizeDiarization()
	c.normalizeFormatting()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.RuntimeDir) == "" {
		c.Paths.RuntimeDir = defaultRuntimeDir()
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir()
	}
	var err error
	if c.Paths.RuntimeDir, err = expandPath(strings.TrimSpace(c.Paths.RuntimeDir)); err != nil {
		return fmt.Errorf("paths.runtime_dir: %w", err)
	}
	if c.Paths.CacheDir, err = expandPath(strings.TrimSpace(c.Paths.CacheDir)); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.LinkDir, err = expandPath(strings.TrimSpace(c.Paths.LinkDir)); err != nil {
		return fmt.Errorf("paths.link_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTranscription() {
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	if c.Transcription.Model == "" {
		if value, ok := os.LookupEnv("TRANSCRIBE_MODEL"); ok {
			c.Transcription.Model = strings.TrimSpace(value)
		}
	}
	if c.Transcription.Model == "" {
		c.Transcription.Model = defaultModel
	}
	c.Transcription.Language = strings.ToLower(strings.TrimSpace(c.Transcription.Language))
	c.Transcription.VADMethod = strings.ToLower(strings.TrimSpace(c.Transcription.VADMethod))
	if c.Transcription.VADMethod == "" {
		c.Transcription.VADMethod = defaultVADMethod
	}
	c.Transcription.PythonVersion = strings.TrimSpace(c.Transcription.PythonVersion)
	if c.Transcription.PythonVersion == "" {
		c.Transcription.PythonVersion = defaultPythonVersion
	}
	if c.Transcription.BatchSize == 0 {
		c.Transcription.BatchSize = defaultBatchSize
	}
}

func (c *Config) normalizeDiarization() {
	c.Diarization.HFToken = strings.TrimSpace(c.Diarization.HFToken)
	if c.Diarization.HFToken != "" {
		return
	}
	for _, key := range []string{"HF_TOKEN", "HUGGING_FACE_HUB_TOKEN"} {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			c.Diarization.HFToken = strings.TrimSpace(value)
			return
		}
	}
}

func (c *Config) normalizeFormatting() {
	format := strings.ToLower(strings.TrimSpace(c.Formatting.OutputFormat))
	switch format {
	case "", "markdown":
		format = defaultOutputFormat
	case "htm":
		format = "html"
	}
	c.Formatting.OutputFormat = format
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = defaultLogFormat
	case "json":
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
