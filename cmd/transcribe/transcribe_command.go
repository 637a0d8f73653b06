package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"transcribe/internal/config"
	"transcribe/internal/whisperx"
	"transcribe/internal/workflow"
)

// newRunner is replaced in tests to stub the engine.
var newRunner = func(cfg *config.Config, logger *slog.Logger) *workflow.Runner {
	return workflow.NewRunner(cfg, logger)
}

func runTranscribe(cmd *cobra.Command, ctx *commandContext, flags *transcribeFlags, input string) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	opts, format, err := flags.resolve(cmd, cfg)
	if err != nil {
		return err
	}
	logger, err := ctx.logger(cmd)
	if err != nil {
		return err
	}

	req := workflow.Request{
		Input:         input,
		Output:        strings.TrimSpace(flags.output),
		LabelSpeakers: flags.speakerID || strings.TrimSpace(flags.rttm) != "",
		Language:      flags.language,
		RTTMPath:      strings.TrimSpace(flags.rttm),
		Format:        format,
		Options:       opts,
		NoCache:       flags.noCache,
	}
	if flags.turbo {
		req.Model = whisperx.TurboModel
	}

	result, err := newRunner(cfg, logger).Run(cmd.Context(), req)
	if err != nil {
		return err
	}
	printSaved(cmd, result)
	return nil
}

func printSaved(cmd *cobra.Command, result workflow.Result) {
	out := cmd.OutOrStdout()
	source := ""
	if result.CacheHit {
		source = ", cached transcription"
	}
	fmt.Fprintf(out, "Saved: %s (%d paragraphs, %d words%s)\n",
		result.Output, result.Stats.Paragraphs, result.Stats.Words, source)
}
