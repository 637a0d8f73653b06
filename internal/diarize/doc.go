// Package diarize turns WhisperX results into speaker-attributed transcript
// segments.
//
// Speakers come either from labels the engine attached during its own
// diarization pass (FromEngine) or from external speaker turns, such as an
// RTTM file, matched against word timestamps (Attribute). Words are assigned
// the speaker whose turn overlaps them the most. Segments without word
// timings fall back to the turn containing their midpoint, else the nearest
// turn boundary.
//
// Consecutive words sharing a speaker inside one engine segment become one
// transcript segment, so speaker changes mid-segment surface as paragraph
// breaks downstream.
package diarize
