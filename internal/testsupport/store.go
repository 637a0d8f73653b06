package testsupport

import (
	"context"
	"testing"

	"transcribe/internal/cache"
	"transcribe/internal/config"
)

// MustOpenCache opens the engine result cache for tests and registers cleanup.
func MustOpenCache(t testing.TB, cfg *config.Config) *cache.Store {
	t.Helper()

	store, err := cache.Open(context.Background(), cfg.CacheDBPath())
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
