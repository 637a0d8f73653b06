package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external dependency transcribe relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	// Path is the resolved executable location when available.
	Path   string
	Detail string
}

// Requirements lists the binaries the pipeline shells out to. uvx is only
// needed when no provisioned runtime exists.
func Requirements(ffmpeg string, runtimeInstalled bool) []Requirement {
	if strings.TrimSpace(ffmpeg) == "" {
		ffmpeg = "ffmpeg"
	}
	return []Requirement{
		{Name: "FFmpeg", Command: ffmpeg, Description: "Normalizes audio to 16kHz mono WAV"},
		{Name: "FFprobe", Command: "ffprobe", Description: "Checks inputs for an audio stream", Optional: true},
		{Name: "uv", Command: "uv", Description: "Provisions the WhisperX runtime", Optional: true},
		{Name: "uvx", Command: "uvx", Description: "Runs WhisperX without a provisioned runtime", Optional: runtimeInstalled},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		path, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Path = path
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the required dependencies that are unavailable.
func MissingRequired(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}
