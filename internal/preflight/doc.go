// Package preflight provides readiness checks for the filesystem paths,
// binaries and Hugging Face credentials transcribe depends on.
//
// These checks run in two contexts:
//   - The CLI "transcribe status" command displays every result.
//   - The transcription run calls RunAll before invoking the engine so a
//     missing token or unwritable cache fails in seconds rather than after
//     minutes of model downloads.
//
// Network checks are gated on diarization being requested.
package preflight
