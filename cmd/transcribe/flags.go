package main

import (
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"transcribe/internal/config"
	"transcribe/internal/export"
	"transcribe/internal/services"
	"transcribe/internal/transcript"
)

// formatFlags are shared by every command that writes a transcript.
type formatFlags struct {
	speakerID bool
	output    string
	minWords  int
	silence   float64
	pause     float64
	format    string
}

func (f *formatFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.BoolVar(&f.speakerID, "speakerid", false, "Identify speakers and label paragraphs")
	fs.StringVarP(&f.output, "output", "o", "", "Output path (default: input path with .md or .html)")
	fs.IntVar(&f.minWords, "min-words", 0, "Soft minimum words per paragraph (default from config, 10)")
	fs.Float64Var(&f.silence, "silence-threshold", 0, "Gap in seconds that always starts a new paragraph (default from config, 2.0)")
	fs.Float64Var(&f.pause, "pause-threshold", 0, "Gap in seconds that ends a paragraph once it has min-words (default from config, 0)")
	fs.StringVar(&f.format, "format", "", "Output format: md or html (default from config)")
}

// resolve layers explicitly set flags over the configuration.
func (f *formatFlags) resolve(cmd *cobra.Command, cfg *config.Config) (transcript.Options, export.Format, error) {
	opts := cfg.FormatOptions(f.speakerID)
	fs := cmd.Flags()
	if fs.Changed("min-words") {
		opts.MinWords = f.minWords
	}
	if fs.Changed("silence-threshold") {
		opts.SilenceThreshold = decimal.NewFromFloat(f.silence)
	}
	if fs.Changed("pause-threshold") {
		opts.PauseThreshold = decimal.NewFromFloat(f.pause)
	}
	if err := opts.Validate(); err != nil {
		return transcript.Options{}, "", services.Wrap(services.ErrValidation, "flags", "formatting", err.Error(), nil)
	}

	value := cfg.Formatting.OutputFormat
	if fs.Changed("format") {
		value = f.format
	}
	format, err := export.ParseFormat(value)
	if err != nil {
		return transcript.Options{}, "", services.Wrap(services.ErrValidation, "flags", "format", err.Error(), nil)
	}
	return opts, format, nil
}

// transcribeFlags adds the engine flags used by the root command.
type transcribeFlags struct {
	formatFlags
	turbo    bool
	language string
	rttm     string
	noCache  bool
}

func (f *transcribeFlags) register(cmd *cobra.Command) {
	f.formatFlags.register(cmd)
	fs := cmd.Flags()
	fs.BoolVar(&f.turbo, "turbo", false, "Use the faster large-v3-turbo model")
	fs.StringVar(&f.language, "language", "", "Spoken language (ISO code or name); empty auto-detects")
	fs.StringVar(&f.rttm, "rttm", "", "Attribute speakers from an RTTM file instead of engine diarization")
	fs.BoolVar(&f.noCache, "no-cache", false, "Ignore and do not update the engine result cache")
}
