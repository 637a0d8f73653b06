package whisperx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"transcribe/internal/language"
)

// ErrHuggingFaceAuth indicates pyannote could not download its gated models.
var ErrHuggingFaceAuth = errors.New("hugging face authentication failed")

// AuthHelp lists the steps needed to grant access to the diarization models.
const AuthHelp = `Speaker identification requires a Hugging Face token:
  1. Create a token at https://huggingface.co/settings/tokens
  2. Accept the terms at https://huggingface.co/pyannote/speaker-diarization-3.1
  3. Accept the terms at https://huggingface.co/pyannote/segmentation-3.0
  4. Set HF_TOKEN or diarization.hf_token in the config file`

// CommandRunner executes an external command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Service provides WhisperX transcription capabilities.
type Service struct {
	cfg           Config
	ffmpegBinary  string
	commandRunner CommandRunner
}

// NewService creates a WhisperX service with the given configuration.
func NewService(cfg Config, ffmpegBinary string) *Service {
	if ffmpegBinary == "" {
		ffmpegBinary = FFmpegCommand
	}
	return &Service{
		cfg:          cfg,
		ffmpegBinary: ffmpegBinary,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner CommandRunner) {
	s.commandRunner = runner
}

// Model returns the resolved engine model name.
func (s *Service) Model() string {
	return ResolveModel(s.cfg.Model)
}

// Diarize reports whether speaker diarization is enabled.
func (s *Service) Diarize() bool {
	return s.cfg.Diarize
}

// ExtractAudio converts source into a mono 16kHz WAV at dest.
func (s *Service) ExtractAudio(ctx context.Context, source, dest string) error {
	if s.commandRunner != nil {
		_, err := s.commandRunner(ctx, s.ffmpegBinary, buildFFmpegExtractArgs(source, dest)...)
		return err
	}
	return ExtractAudio(ctx, s.ffmpegBinary, source, dest)
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	var (
		output []byte
		err    error
	)
	if s.commandRunner != nil {
		output, err = s.commandRunner(ctx, name, args...)
	} else {
		cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
		// Torch 2.6 changed torch.load default to weights_only=true, breaking pyannote checkpoints.
		if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
			cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
		}
		output, err = cmd.CombinedOutput()
	}
	if err == nil {
		return nil
	}
	detail := strings.TrimSpace(string(output))
	if s.needsHFAuth() && isAuthFailure(detail+" "+err.Error()) {
		return fmt.Errorf("%w: %s", ErrHuggingFaceAuth, lastLine(detail))
	}
	if detail == "" {
		return fmt.Errorf("%s: %w", name, err)
	}
	return fmt.Errorf("%s: %w: %s", name, err, detail)
}

func (s *Service) needsHFAuth() bool {
	return s.cfg.Diarize || s.cfg.VADMethod == VADMethodPyannote
}

func isAuthFailure(output string) bool {
	lower := strings.ToLower(output)
	for _, marker := range []string{"401", "gated", "token", "unauthorized"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func lastLine(output string) string {
	output = strings.TrimSpace(output)
	if idx := strings.LastIndexByte(output, '\n'); idx >= 0 {
		return strings.TrimSpace(output[idx+1:])
	}
	return output
}

// Transcribe runs WhisperX on source (a WAV produced by ExtractAudio) and
// decodes the JSON it writes into outputDir.
func (s *Service) Transcribe(ctx context.Context, source, outputDir string) (Result, string, error) {
	if source == "" {
		return Result{}, "", fmt.Errorf("transcribe: source path required")
	}
	if s.cfg.Diarize && strings.TrimSpace(s.cfg.HFToken) == "" {
		return Result{}, "", fmt.Errorf("%w: token not configured", ErrHuggingFaceAuth)
	}
	if outputDir == "" {
		outputDir = filepath.Dir(source)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Result{}, "", fmt.Errorf("transcribe: ensure output dir: %w", err)
	}

	name, args := s.command(source, outputDir)
	if err := s.run(ctx, name, args...); err != nil {
		return Result{}, "", fmt.Errorf("whisperx: %w", err)
	}

	baseName := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	jsonPath := filepath.Join(outputDir, baseName+".json")
	result, err := LoadResult(jsonPath)
	if err != nil {
		return Result{}, jsonPath, fmt.Errorf("whisperx output: %w", err)
	}
	return result, jsonPath, nil
}

// command returns the executable and arguments for a transcription run.
func (s *Service) command(source, outputDir string) (string, []string) {
	engineArgs := s.buildArgs(source, outputDir)
	if s.cfg.Binary != "" {
		return s.cfg.Binary, engineArgs
	}

	args := make([]string, 0, len(engineArgs)+6)
	if s.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}
	args = append(args, WhisperXCommand)
	return UVXCommand, append(args, engineArgs...)
}

// buildArgs constructs the WhisperX engine arguments.
func (s *Service) buildArgs(source, outputDir string) []string {
	batch := s.cfg.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	args := make([]string, 0, 40)
	args = append(args,
		source,
		"--model", s.Model(),
		"--batch_size", strconv.Itoa(batch),
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--segment_resolution", SegmentResolution,
		"--chunk_size", ChunkSize,
		"--beam_size", BeamSize,
		"--temperature", Temperature,
	)

	vadMethod := s.cfg.VADMethod
	if vadMethod == "" {
		vadMethod = VADMethodSilero
	}
	args = append(args, "--vad_method", vadMethod)

	if s.cfg.Diarize {
		args = append(args, "--diarize")
		if s.cfg.MinSpeakers > 0 {
			args = append(args, "--min_speakers", strconv.Itoa(s.cfg.MinSpeakers))
		}
		if s.cfg.MaxSpeakers > 0 {
			args = append(args, "--max_speakers", strconv.Itoa(s.cfg.MaxSpeakers))
		}
	}
	if s.needsHFAuth() && s.cfg.HFToken != "" {
		args = append(args, "--hf_token", s.cfg.HFToken)
	}

	if lang := language.ToISO2(s.cfg.Language); lang != "" {
		args = append(args, "--language", lang)
	}

	if s.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice, "--compute_type", CUDAComputeType)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}
	return args
}
