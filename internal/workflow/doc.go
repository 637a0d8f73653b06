// Package workflow runs one transcription job from an audio file to a
// written transcript.
//
// Runner.Run validates the input, consults the engine result cache, extracts
// audio with ffmpeg, runs WhisperX, attributes speakers, formats paragraphs,
// encodes the output, and writes it atomically. Every run carries a
// correlation id and each step logs under its own stage name, so a run can be
// followed through the console or the per-run log file.
//
// FormatFile covers the offline path: it re-formats an existing engine JSON
// without touching the engine or the cache.
package workflow
