package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"transcribe/internal/cache"
	"transcribe/internal/config"
	"transcribe/internal/deps"
	"transcribe/internal/language"
	"transcribe/internal/preflight"
	"transcribe/internal/runtime"
	"transcribe/internal/whisperx"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var hubURL string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show dependency, runtime, and readiness status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			handle, installed := runtime.Detect(cfg.Paths.RuntimeDir)
			var lines []string

			lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
			lines = append(lines, renderDependencyTable(preflight.CheckSystemDeps(cfg, handle.WhisperX)))

			lines = append(lines, renderSectionHeader("Runtime", colorize)...)
			lines = append(lines, runtimeLines(cfg, handle, installed, colorize)...)

			lines = append(lines, renderSectionHeader("Cache", colorize)...)
			lines = append(lines, cacheLines(cmd, cfg, colorize)...)

			lines = append(lines, renderSectionHeader("Readiness", colorize)...)
			results := preflight.RunAll(cmd.Context(), cfg, preflight.Options{
				Diarize:        cfg.Diarization.HFToken != "",
				HuggingFaceURL: hubURL,
			})
			if cfg.Diarization.HFToken == "" {
				lines = append(lines, renderStatusLine("Hugging Face token", statusWarn,
					"not set; --speakerid will not work", colorize))
			}
			if len(results) == 0 && cfg.Diarization.HFToken != "" {
				lines = append(lines, renderStatusLine("Checks", statusInfo, "none", colorize))
			}
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				lines = append(lines, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}

			fmt.Fprintln(out, strings.TrimPrefix(strings.Join(lines, "\n"), "\n"))
			return nil
		},
	}
	cmd.Flags().StringVar(&hubURL, "hub-url", preflight.HuggingFaceURL, "Hugging Face hub endpoint")
	_ = cmd.Flags().MarkHidden("hub-url")
	return cmd
}

func renderDependencyTable(statuses []deps.Status) string {
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		state := "ok"
		location := s.Path
		if !s.Available {
			state = "missing"
			if s.Optional {
				state = "optional"
			}
			location = s.Detail
		}
		rows = append(rows, []string{s.Name, state, location, s.Description})
	}
	return renderTable([]string{"Tool", "Status", "Location", "Purpose"}, rows, nil)
}

func runtimeLines(cfg *config.Config, handle runtime.Handle, installed bool, colorize bool) []string {
	var lines []string
	if installed {
		detail := fmt.Sprintf("%s (%s, installed %s", handle.Dir, handle.Manifest.Device, humanize.Time(handle.Manifest.InstalledAt))
		if size := dirSize(handle.Dir); size > 0 {
			detail += ", " + humanize.Bytes(uint64(size))
		}
		detail += ")"
		lines = append(lines, renderStatusLine("WhisperX runtime", statusOK, detail, colorize))
	} else {
		lines = append(lines, renderStatusLine("WhisperX runtime", statusWarn,
			"not installed; falling back to uvx (run 'transcribe install')", colorize))
	}
	lines = append(lines, renderStatusLine("Model", statusInfo, whisperx.ResolveModel(cfg.Transcription.Model), colorize))
	lines = append(lines, renderStatusLine("Language", statusInfo, language.DisplayName(cfg.Transcription.Language), colorize))
	device := whisperx.CPUDevice
	if cfg.Transcription.CUDA {
		device = whisperx.CUDADevice
	}
	lines = append(lines, renderStatusLine("Device", statusInfo, device, colorize))
	return lines
}

func cacheLines(cmd *cobra.Command, cfg *config.Config, colorize bool) []string {
	if !cfg.Cache.Enabled {
		return []string{renderStatusLine("Engine cache", statusInfo, "disabled", colorize)}
	}
	if !fileExists(cfg.CacheDBPath()) {
		return []string{renderStatusLine("Engine cache", statusInfo, "empty", colorize)}
	}
	store, err := cache.Open(cmd.Context(), cfg.CacheDBPath())
	if err != nil {
		return []string{renderStatusLine("Engine cache", statusError, err.Error(), colorize)}
	}
	defer store.Close()
	stats, err := store.Stats(cmd.Context())
	if err != nil {
		return []string{renderStatusLine("Engine cache", statusError, err.Error(), colorize)}
	}
	detail := fmt.Sprintf("%d entries, %s (%s)", stats.Entries, humanize.Bytes(uint64(stats.PayloadBytes)), cfg.CacheDBPath())
	return []string{renderStatusLine("Engine cache", statusOK, detail, colorize)}
}

func dirSize(root string) int64 {
	var total int64
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
