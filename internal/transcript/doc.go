// Package transcript turns timestamped speech segments into a Markdown
// document.
//
// Format walks the segments once and groups them into paragraphs. A gap at or
// above the silence threshold always starts a new paragraph, as does a speaker
// change when speaker labeling is enabled. Once a paragraph reaches the
// minimum word count, any pause longer than the pause threshold also ends it.
// Render writes the result under a fixed "# Transcript" heading, prefixing
// each paragraph with a bold "Speaker N:" label when labeling is enabled.
//
// Formatting is pure: no I/O, no shared state, and identical input always
// yields byte-identical output. Segments are validated up front so a
// malformed segment fails the whole call without partial output.
package transcript
