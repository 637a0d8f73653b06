package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"transcribe/internal/fileutil"
)

const (
	manifestName = "manifest.json"
	venvName     = "venv"
	lockName     = ".install.lock"
	linkName     = "transcribe"
)

// Manifest records a completed runtime install.
type Manifest struct {
	RuntimeDir    string    `json:"runtime_dir"`
	Python        string    `json:"python"`
	WhisperX      string    `json:"whisperx"`
	PythonVersion string    `json:"python_version"`
	Packages      []string  `json:"packages"`
	Device        string    `json:"device"`
	Link          string    `json:"link,omitempty"`
	LinkTarget    string    `json:"link_target,omitempty"`
	InstalledAt   time.Time `json:"installed_at"`
}

// Handle points at an installed runtime.
type Handle struct {
	Dir      string
	Python   string
	WhisperX string
	Manifest Manifest
}

func manifestPath(dir string) string {
	return filepath.Join(dir, manifestName)
}

func venvDir(dir string) string {
	return filepath.Join(dir, venvName)
}

func venvPython(dir string) string {
	return filepath.Join(venvDir(dir), "bin", "python")
}

func venvWhisperX(dir string) string {
	return filepath.Join(venvDir(dir), "bin", "whisperx")
}

func readManifest(dir string) (Manifest, error) {
	data, err := os.ReadFile(manifestPath(dir))
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode %s: %w", manifestPath(dir), err)
	}
	return m, nil
}

func writeManifest(dir string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return fileutil.WriteFileAtomic(manifestPath(dir), append(data, '\n'), 0o644)
}

// Detect returns the installed runtime under dir without modifying anything.
// The boolean is false when the manifest is missing, unreadable, or names a
// whisperx binary that no longer exists.
func Detect(dir string) (Handle, bool) {
	if dir == "" {
		return Handle{}, false
	}
	m, err := readManifest(dir)
	if err != nil {
		return Handle{}, false
	}
	if m.WhisperX == "" {
		return Handle{}, false
	}
	if info, err := os.Stat(m.WhisperX); err != nil || info.IsDir() {
		return Handle{}, false
	}
	return Handle{Dir: dir, Python: m.Python, WhisperX: m.WhisperX, Manifest: m}, true
}

func removeIfExists(path string) (bool, error) {
	if _, err := os.Lstat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if err := os.RemoveAll(path); err != nil {
		return false, err
	}
	return true, nil
}
