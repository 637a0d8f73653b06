package workflow

import (
	"errors"
	"os"

	"transcribe/internal/cache"
	"transcribe/internal/logging"
	"transcribe/internal/whisperx"
)

// openCache returns nil when caching is off or the database is unusable; a
// broken cache degrades to a cache miss rather than failing the run.
func (r *Runner) openCache(job *run, req Request) *cache.Store {
	if req.NoCache || !r.cfg.Cache.Enabled {
		return nil
	}
	ctx, logger := job.stage("cache")
	store, err := cache.Open(ctx, r.cfg.CacheDBPath())
	if err != nil {
		hint := "check paths.cache_dir permissions"
		if errors.Is(err, cache.ErrSchemaMismatch) {
			hint = "run 'transcribe cache clear --reset'"
		}
		logging.WarnWithContext(logger, "cache unavailable", "cache_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, hint),
			logging.String(logging.FieldImpact, "engine output will not be cached"),
		)
		return nil
	}
	return store
}

func (r *Runner) lookup(job *run, store *cache.Store, key cache.Key) (whisperx.Result, bool) {
	ctx, logger := job.stage("cache")
	entry, ok, err := store.Get(ctx, key)
	if err != nil {
		logging.WarnWithContext(logger, "cache lookup failed", "cache_get_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "transcribing without cache"),
		)
		return whisperx.Result{}, false
	}
	if !ok {
		logger.Debug("cache miss", logging.String("key", key.String()))
		return whisperx.Result{}, false
	}
	res, err := whisperx.DecodeResult(entry.Payload)
	if err != nil {
		logging.WarnWithContext(logger, "cached result unreadable; transcribing again", "cache_entry_invalid",
			logging.String("entry_id", entry.ID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the entry will be replaced"),
		)
		return whisperx.Result{}, false
	}
	logger.Info("using cached transcription",
		logging.String("entry_id", entry.ID),
		logging.String("key", key.String()),
		logging.String(logging.FieldEventType, "cache_hit"),
	)
	return res, true
}

func (r *Runner) store(job *run, store *cache.Store, key cache.Key, input string, size int64, res whisperx.Result, jsonPath string) {
	ctx, logger := job.stage("cache")
	payload, err := os.ReadFile(jsonPath)
	if err != nil || len(payload) == 0 {
		payload, err = res.Encode()
	}
	if err != nil {
		logging.WarnWithContext(logger, "cache store skipped", "cache_put_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "next run will transcribe again"),
		)
		return
	}
	entry, err := store.Put(ctx, key, cache.Entry{
		Language:   res.Language,
		SourcePath: input,
		AudioBytes: size,
		Payload:    payload,
	})
	if err != nil {
		logging.WarnWithContext(logger, "cache store failed", "cache_put_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "next run will transcribe again"),
		)
		return
	}
	logger.Debug("engine result cached", logging.String("entry_id", entry.ID), logging.String("key", key.String()))
}
