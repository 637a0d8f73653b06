package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no entry matches an ID.
var ErrNotFound = errors.New("cache entry not found")

// ErrAmbiguousID is returned when an ID prefix matches several entries.
var ErrAmbiguousID = errors.New("cache id prefix is ambiguous")

const timeLayout = time.RFC3339Nano

// Key identifies one engine run over one recording.
type Key struct {
	AudioHash string
	Model     string
	Diarize   bool
	// VAD is the voice activity detection method the engine ran with.
	VAD string
}

func (k Key) String() string {
	hash := k.AudioHash
	if len(hash) > 12 {
		hash = hash[:12]
	}
	mode := "plain"
	if k.Diarize {
		mode = "diarized"
	}
	if k.VAD != "" {
		return fmt.Sprintf("%s/%s/%s/%s", hash, k.Model, mode, k.VAD)
	}
	return fmt.Sprintf("%s/%s/%s", hash, k.Model, mode)
}

// Entry is a cached engine result.
type Entry struct {
	ID           string
	Key          Key
	Language     string
	SourcePath   string
	AudioBytes   int64
	PayloadBytes int64
	// Payload is the engine JSON. List leaves it nil.
	Payload    []byte
	CreatedAt  time.Time
	AccessedAt time.Time
}

// Get returns the entry for key and refreshes its access time. The boolean is
// false on a miss.
func (s *Store) Get(ctx context.Context, key Key) (*Entry, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, language, source_path, audio_bytes, payload, created_at, accessed_at
		FROM transcripts WHERE audio_hash = ? AND model = ? AND diarize = ? AND vad = ?`,
		key.AudioHash, key.Model, boolToInt(key.Diarize), key.VAD)

	entry := Entry{Key: key}
	var created, accessed string
	if err := row.Scan(&entry.ID, &entry.Language, &entry.SourcePath, &entry.AudioBytes, &entry.Payload, &created, &accessed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	entry.PayloadBytes = int64(len(entry.Payload))
	entry.CreatedAt = parseTime(created)

	now := time.Now().UTC()
	if _, err := s.execWithRetry(ctx, "UPDATE transcripts SET accessed_at = ? WHERE id = ?", now.Format(timeLayout), entry.ID); err != nil {
		return nil, false, fmt.Errorf("cache touch: %w", err)
	}
	entry.AccessedAt = now
	return &entry, true, nil
}

// Put stores payload for key, replacing any previous entry under a fresh ID.
func (s *Store) Put(ctx context.Context, key Key, entry Entry) (*Entry, error) {
	if strings.TrimSpace(key.AudioHash) == "" || strings.TrimSpace(key.Model) == "" {
		return nil, errors.New("cache put: key requires audio hash and model")
	}
	if len(entry.Payload) == 0 {
		return nil, errors.New("cache put: empty payload")
	}
	now := time.Now().UTC()
	stored := entry
	stored.ID = uuid.NewString()
	stored.Key = key
	stored.PayloadBytes = int64(len(entry.Payload))
	stored.CreatedAt = now
	stored.AccessedAt = now

	_, err := s.execWithRetry(ctx, `
		INSERT INTO transcripts (id, audio_hash, model, diarize, vad, language, source_path, audio_bytes, payload, created_at, accessed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (audio_hash, model, diarize, vad) DO UPDATE SET
			id = excluded.id,
			language = excluded.language,
			source_path = excluded.source_path,
			audio_bytes = excluded.audio_bytes,
			payload = excluded.payload,
			created_at = excluded.created_at,
			accessed_at = excluded.accessed_at`,
		stored.ID, key.AudioHash, key.Model, boolToInt(key.Diarize), key.VAD, stored.Language, stored.SourcePath,
		stored.AudioBytes, stored.Payload, now.Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("cache put: %w", err)
	}
	return &stored, nil
}

// List returns all entries, most recently used first, without payloads.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, audio_hash, model, diarize, vad, language, source_path, audio_bytes, length(payload), created_at, accessed_at
		FROM transcripts ORDER BY accessed_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("cache list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                 Entry
			diarize           int
			created, accessed string
		)
		if err := rows.Scan(&e.ID, &e.Key.AudioHash, &e.Key.Model, &diarize, &e.Key.VAD, &e.Language, &e.SourcePath,
			&e.AudioBytes, &e.PayloadBytes, &created, &accessed); err != nil {
			return nil, fmt.Errorf("cache list scan: %w", err)
		}
		e.Key.Diarize = diarize != 0
		e.CreatedAt = parseTime(created)
		e.AccessedAt = parseTime(accessed)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cache list: %w", err)
	}
	return entries, nil
}

// Remove deletes the entry whose ID equals or uniquely starts with id.
func (s *Store) Remove(ctx context.Context, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: empty id", ErrNotFound)
	}
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM transcripts WHERE id = ? OR substr(id, 1, ?) = ? LIMIT 2", id, len(id), id)
	if err != nil {
		return "", fmt.Errorf("cache remove: %w", err)
	}
	var matches []string
	for rows.Next() {
		var match string
		if err := rows.Scan(&match); err != nil {
			_ = rows.Close()
			return "", fmt.Errorf("cache remove scan: %w", err)
		}
		matches = append(matches, match)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("cache remove: %w", err)
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguousID, id)
	}
	if _, err := s.execWithRetry(ctx, "DELETE FROM transcripts WHERE id = ?", matches[0]); err != nil {
		return "", fmt.Errorf("cache remove: %w", err)
	}
	return matches[0], nil
}

// Clear deletes every entry and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM transcripts")
	if err != nil {
		return 0, fmt.Errorf("cache clear: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cache clear: %w", err)
	}
	if _, err := s.execWithRetry(ctx, "VACUUM"); err != nil {
		return n, fmt.Errorf("cache vacuum: %w", err)
	}
	return n, nil
}

// Stats summarizes cache contents.
type Stats struct {
	Entries      int
	PayloadBytes int64
}

// Stats counts entries and payload bytes.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1), COALESCE(SUM(length(payload)), 0) FROM transcripts").
		Scan(&stats.Entries, &stats.PayloadBytes); err != nil {
		return Stats{}, fmt.Errorf("cache stats: %w", err)
	}
	return stats, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func parseTime(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
