package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// EngineJSON is a small WhisperX payload with two speakers and word timings.
const EngineJSON = `{
  "language": "en",
  "segments": [
    {"start": 0.0, "end": 1.2, "text": " Hello there.", "speaker": "SPEAKER_00",
     "words": [
       {"word": "Hello", "start": 0.0, "end": 0.5, "speaker": "SPEAKER_00"},
       {"word": "there.", "start": 0.6, "end": 1.2, "speaker": "SPEAKER_00"}
     ]},
    {"start": 3.2, "end": 4.0, "text": " Hi.", "speaker": "SPEAKER_01",
     "words": [
       {"word": "Hi.", "start": 3.2, "end": 4.0, "speaker": "SPEAKER_01"}
     ]}
  ]
}`

// WriteText writes content to path, creating parent directories.
func WriteText(t testing.TB, path, content string) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
