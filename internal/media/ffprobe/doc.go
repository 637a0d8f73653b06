// Package ffprobe inspects input recordings before transcription.
//
// Inspect runs ffprobe and decodes its JSON into a Result; Result.Audio
// summarizes the first audio stream. The transcription workflow uses it to
// reject files without an audio track and to log the recording length.
package ffprobe
