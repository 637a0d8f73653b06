// Package runtime provisions the isolated Python environment that hosts
// WhisperX.
//
// Ensure creates a uv-managed virtualenv under paths.runtime_dir, installs
// whisperx into it, and records the result in manifest.json. A present
// manifest whose whisperx binary still exists short-circuits the install, so
// repeated calls are cheap. Install and uninstall serialize on an exclusive
// file lock in the runtime directory.
//
// Detect is the read-only lookup used by the transcription workflow; when no
// runtime is installed the engine falls back to `uvx whisperx`.
package runtime
