package workflow

import (
	"path/filepath"
	"strings"
	"time"

	"transcribe/internal/export"
	"transcribe/internal/transcript"
)

// SupportedExtensions lists the audio containers the engine is known to read.
// Other inputs are attempted after a warning.
var SupportedExtensions = map[string]struct{}{
	".m4a":  {},
	".mp3":  {},
	".wav":  {},
	".flac": {},
	".ogg":  {},
	".webm": {},
}

// Request describes one transcription job.
type Request struct {
	Input string
	// Output overrides the derived output path.
	Output string
	// LabelSpeakers enables diarization and speaker labels.
	LabelSpeakers bool
	// Model overrides transcription.model when set.
	Model string
	// Language overrides transcription.language when set.
	Language string
	// RTTMPath supplies diarization turns instead of engine diarization.
	RTTMPath string
	Format   export.Format
	Options  transcript.Options
	// NoCache bypasses the engine result cache for this run.
	NoCache bool
}

// Result summarizes a completed job.
type Result struct {
	RunID    string
	Input    string
	Output   string
	Language string
	CacheHit bool
	Stats    transcript.Stats
	Elapsed  time.Duration
}

// OutputPath replaces the input extension with the format's extension.
func OutputPath(input string, format export.Format) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + format.Extension()
}

func supportedExtension(path string) bool {
	_, ok := SupportedExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}
