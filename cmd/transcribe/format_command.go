package main

import (
	"strings"

	"github.com/spf13/cobra"

	"transcribe/internal/workflow"
)

func newFormatCommand(ctx *commandContext) *cobra.Command {
	flags := &formatFlags{}
	cmd := &cobra.Command{
		Use:   "format <engine.json>",
		Short: "Format an existing WhisperX JSON file without transcribing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			result, err := newRunner(cfg, logger).FormatFile(cmd.Context(), workflow.Request{
				Input:         args[0],
				Output:        strings.TrimSpace(flags.output),
				LabelSpeakers: flags.speakerID,
				Format:        format,
				Options:       opts,
			})
			if err != nil {
				return err
			}
			printSaved(cmd, result)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
