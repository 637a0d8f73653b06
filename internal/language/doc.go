// Package language normalizes language hints passed to the transcription
// engine and names them for display.
package language
