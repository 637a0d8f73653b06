// Package config loads, normalizes, and validates transcribe configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts and XDG
// base directories), reads TOML files, and honours environment fallbacks such
// as HF_TOKEN and TRANSCRIBE_MODEL. CLI flags are layered on top by the
// command package after Load returns.
package config
