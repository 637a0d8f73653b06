package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateDiarization(); err != nil {
		return err
	}
	if err := c.validateFormatting(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.RuntimeDir) == "" {
		return errors.New("paths.runtime_dir must be set")
	}
	if c.Cache.Enabled && strings.TrimSpace(c.Paths.CacheDir) == "" {
		return errors.New("paths.cache_dir must be set when cache.enabled is true")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	switch c.Transcription.VADMethod {
	case "silero", "pyannote":
	default:
		return fmt.Errorf("transcription.vad_method must be silero or pyannote, got %q", c.Transcription.VADMethod)
	}
	if c.Transcription.BatchSize < 1 {
		return errors.New("transcription.batch_size must be positive")
	}
	if c.Transcription.PythonVersion == "" {
		return errors.New("transcription.python_version must be set")
	}
	if c.Transcription.TimeoutMinutes < 0 {
		return errors.New("transcription.timeout_minutes must be >= 0")
	}
	return nil
}

func (c *Config) validateDiarization() error {
	if c.Diarization.MinSpeakers < 0 {
		return errors.New("diarization.min_speakers must be >= 0")
	}
	if c.Diarization.MaxSpeakers < 0 {
		return errors.New("diarization.max_speakers must be >= 0")
	}
	if c.Diarization.MinSpeakers > 0 && c.Diarization.MaxSpeakers > 0 && c.Diarization.MinSpeakers > c.Diarization.MaxSpeakers {
		return fmt.Errorf("diarization.min_speakers (%d) exceeds max_speakers (%d)", c.Diarization.MinSpeakers, c.Diarization.MaxSpeakers)
	}
	return nil
}

func (c *Config) validateFormatting() error {
	if c.Formatting.SilenceThresholdSeconds <= 0 {
		return errors.New("formatting.silence_threshold_seconds must be positive")
	}
	if c.Formatting.PauseThresholdSeconds < 0 {
		return errors.New("formatting.pause_threshold_seconds must be >= 0")
	}
	if c.Formatting.MinWords < 0 {
		return errors.New("formatting.min_words must be >= 0")
	}
	switch c.Formatting.OutputFormat {
	case "md", "html":
	default:
		return fmt.Errorf("formatting.output_format must be md or html, got %q", c.Formatting.OutputFormat)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
}
