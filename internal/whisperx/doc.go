// Package whisperx runs the WhisperX transcription engine and decodes its
// JSON output.
//
// This package handles:
//   - Audio normalization to mono 16kHz WAV via ffmpeg
//   - WhisperX invocation, either from the provisioned runtime or via uvx
//   - Optional pyannote diarization (--diarize) with Hugging Face credentials
//   - Decoding and validating the segments/words JSON payload
//
// Timestamps are decoded as decimal values so downstream gap arithmetic is
// exact. Configuration options (model, CUDA, VAD method, diarization) are
// passed via Config.
package whisperx
