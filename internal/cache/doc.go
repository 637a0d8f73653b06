// Package cache persists WhisperX results in SQLite so re-formatting the same
// recording with different paragraph settings skips the engine entirely.
//
// Entries are keyed by the BLAKE3 digest of the input audio plus the engine
// model and diarization flag; the payload is the engine JSON. The database
// runs in WAL mode with a busy timeout, and writes retry briefly on
// SQLITE_BUSY so concurrent runs against the same cache do not fail.
//
// The schema is versioned. A database created by an incompatible version is
// rejected with ErrSchemaMismatch; `transcribe cache clear --reset` removes it.
package cache
