package transcript

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Segment is a timestamped unit of transcribed speech.
type Segment struct {
	Start decimal.Decimal
	End   decimal.Decimal
	Text  string
	// Speaker is the raw diarization identifier. Empty means unknown.
	Speaker string
}

func (s Segment) validate(index int) error {
	if s.Start.IsNegative() {
		return Malformed(index, "start %s is negative", s.Start)
	}
	if s.End.LessThan(s.Start) {
		return Malformed(index, "end %s is before start %s", s.End, s.Start)
	}
	return nil
}

// words splits text on whitespace.
func words(text string) []string {
	return strings.Fields(text)
}

// Defaults used when options are not configured.
var (
	DefaultSilenceThreshold = decimal.NewFromInt(2)
	DefaultPauseThreshold   = decimal.Zero
)

// DefaultMinWords is the soft minimum paragraph size.
const DefaultMinWords = 10

// Options controls paragraph segmentation.
type Options struct {
	// SilenceThreshold is the gap, in seconds, that always forces a break.
	SilenceThreshold decimal.Decimal
	// PauseThreshold is the gap a paragraph that already has MinWords words
	// must exceed before it is broken.
	PauseThreshold decimal.Decimal
	// MinWords is the soft minimum paragraph size.
	MinWords int
	// LabelSpeakers breaks on speaker changes and prefixes paragraphs with
	// "**Speaker N:**".
	LabelSpeakers bool
}

// DefaultOptions returns the standard segmentation settings.
func DefaultOptions() Options {
	return Options{
		SilenceThreshold: DefaultSilenceThreshold,
		PauseThreshold:   DefaultPauseThreshold,
		MinWords:         DefaultMinWords,
	}
}

// Validate rejects settings that cannot produce a sensible document.
func (o Options) Validate() error {
	if !o.SilenceThreshold.IsPositive() {
		return errors.New("transcript: silence threshold must be positive")
	}
	if o.PauseThreshold.IsNegative() {
		return errors.New("transcript: pause threshold must not be negative")
	}
	if o.MinWords < 0 {
		return errors.New("transcript: min words must not be negative")
	}
	return nil
}
