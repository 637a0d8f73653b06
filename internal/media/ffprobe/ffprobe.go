package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Command is the default ffprobe executable.
const Command = "ffprobe"

// ErrNoAudio is returned by Result.Audio when the container has no audio stream.
var ErrNoAudio = errors.New("no audio stream")

// Runner executes ffprobe and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Result is the subset of ffprobe output the workflow reads.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes one elementary stream.
type Stream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	Duration   string `json:"duration"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// Format holds container metadata.
type Format struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	FormatName string `json:"format_name"`
}

// AudioInfo summarizes the first audio stream.
type AudioInfo struct {
	Codec      string
	SampleRate int
	Channels   int
	Duration   decimal.Decimal
	Streams    int
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// Inspect probes path with the given binary. A nil run uses os/exec.
func Inspect(ctx context.Context, run Runner, binary, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = Command
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}
	if run == nil {
		run = execRunner
	}

	output, err := run(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w", err)
	}
	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// Audio returns the first audio stream with the container duration as a
// fallback for streams that do not report their own.
func (r Result) Audio() (AudioInfo, error) {
	info := AudioInfo{}
	found := false
	for _, stream := range r.Streams {
		if !strings.EqualFold(stream.CodecType, "audio") {
			continue
		}
		info.Streams++
		if found {
			continue
		}
		found = true
		info.Codec = stream.CodecName
		info.Channels = stream.Channels
		info.SampleRate, _ = strconv.Atoi(strings.TrimSpace(stream.SampleRate))
		info.Duration = parseSeconds(stream.Duration)
	}
	if !found {
		return AudioInfo{}, ErrNoAudio
	}
	if info.Duration.IsZero() {
		info.Duration = parseSeconds(r.Format.Duration)
	}
	return info, nil
}

func parseSeconds(value string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}
