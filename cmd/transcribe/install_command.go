package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"transcribe/internal/config"
	"transcribe/internal/runtime"
)

// newInstaller is replaced in tests to stub uv.
var newInstaller = runtime.NewInstaller

func newInstallCommand(ctx *commandContext) *cobra.Command {
	var cuda bool
	var linkDir string
	var force bool

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Provision the WhisperX runtime",
		Long: "Create an isolated Python environment with uv and install WhisperX into it.\n" +
			"Running install again is a no-op unless --force is given.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}

			opts := runtime.Options{
				Dir:           cfg.Paths.RuntimeDir,
				PythonVersion: cfg.Transcription.PythonVersion,
				CUDA:          cfg.Transcription.CUDA,
				LinkDir:       cfg.Paths.LinkDir,
				Force:         force,
			}
			if cmd.Flags().Changed("cuda") {
				opts.CUDA = cuda
			}
			if cmd.Flags().Changed("link-dir") {
				expanded, err := config.ExpandPath(strings.TrimSpace(linkDir))
				if err != nil {
					return err
				}
				opts.LinkDir = expanded
			}

			handle, installed, err := newInstaller(logger).Ensure(cmd.Context(), opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if installed {
				fmt.Fprintf(out, "Installed WhisperX runtime in %s\n", handle.Dir)
			} else {
				fmt.Fprintf(out, "WhisperX runtime already installed in %s\n", handle.Dir)
			}
			fmt.Fprintf(out, "Device: %s\n", handle.Manifest.Device)
			if handle.Manifest.Link != "" {
				fmt.Fprintf(out, "Linked: %s -> %s\n", handle.Manifest.Link, handle.Manifest.LinkTarget)
			}
			if cfg.Diarization.HFToken == "" {
				fmt.Fprintln(out, "Speaker identification (--speakerid) needs a Hugging Face token; see 'transcribe status'.")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&cuda, "cuda", false, "Install CUDA-enabled PyTorch wheels")
	cmd.Flags().StringVar(&linkDir, "link-dir", "", "Directory that receives a transcribe symlink (e.g. ~/.local/bin)")
	cmd.Flags().BoolVar(&force, "force", false, "Reinstall even if a runtime is present")
	return cmd
}

func newUninstallCommand(ctx *commandContext) *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the WhisperX runtime",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			result, err := newInstaller(logger).Uninstall(cmd.Context(), runtime.UninstallOptions{
				Dir:      cfg.Paths.RuntimeDir,
				Purge:    purge,
				CacheDir: cfg.Paths.CacheDir,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(result.Removed) == 0 {
				fmt.Fprintln(out, "Nothing to remove")
			}
			for _, path := range result.Removed {
				fmt.Fprintf(out, "Removed %s\n", path)
			}
			if result.SkippedLink != "" {
				fmt.Fprintf(out, "Left %s in place (it no longer points at this install)\n", result.SkippedLink)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&purge, "purge", false, "Also remove the engine result cache")
	return cmd
}
