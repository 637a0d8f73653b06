package preflight

import (
	"context"

	"transcribe/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Options selects which optional checks RunAll performs.
type Options struct {
	// Diarize adds the Hugging Face token and gated model checks.
	Diarize bool
	// HuggingFaceURL overrides the hub endpoint (tests).
	HuggingFaceURL string
}

// RunAll executes the preflight checks applicable to cfg.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	if cfg.Cache.Enabled {
		results = append(results, CheckDirectoryAccess("Cache directory", cfg.Paths.CacheDir))
	}
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	if opts.Diarize {
		base := opts.HuggingFaceURL
		if base == "" {
			base = HuggingFaceURL
		}
		token := cfg.Diarization.HFToken
		whoami := CheckHuggingFaceToken(ctx, base, token)
		results = append(results, whoami)
		if whoami.Passed {
			for _, repo := range DiarizationModels {
				results = append(results, CheckGatedModel(ctx, base, token, repo))
			}
		}
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
