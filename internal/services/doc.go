// Package services defines shared utilities consumed by the transcription
// pipeline and the CLI.
//
// Key responsibilities:
//   - Context helpers that stamp the input path, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     into process exit codes and remediation hints.
package services
