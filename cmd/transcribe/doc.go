// Command transcribe turns an audio recording into a Markdown transcript.
//
// The root command transcribes a file; subcommands manage the WhisperX
// runtime (install, uninstall), report readiness (status), maintain the
// engine result cache (cache), re-format existing engine output (format),
// and create or check the configuration file (config).
package main
