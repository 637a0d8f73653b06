package diarize

import (
	"strings"

	"github.com/shopspring/decimal"

	"transcribe/internal/transcript"
	"transcribe/internal/whisperx"
)

// Plain converts engine segments to unattributed transcript segments.
func Plain(segments []whisperx.Segment) []transcript.Segment {
	out := make([]transcript.Segment, 0, len(segments))
	for _, seg := range segments {
		out = append(out, transcript.Segment{Start: seg.Start, End: seg.End, Text: seg.Text})
	}
	return out
}

// FromEngine uses the speaker labels WhisperX attached to words and segments.
// Words without a label inherit their segment's speaker.
func FromEngine(segments []whisperx.Segment) []transcript.Segment {
	out := make([]transcript.Segment, 0, len(segments))
	for _, seg := range segments {
		if len(seg.Words) == 0 {
			out = append(out, transcript.Segment{Start: seg.Start, End: seg.End, Text: seg.Text, Speaker: seg.Speaker})
			continue
		}
		speakers := make([]string, len(seg.Words))
		for i, w := range seg.Words {
			speakers[i] = w.Speaker
			if speakers[i] == "" {
				speakers[i] = seg.Speaker
			}
		}
		out = append(out, split(seg, speakers)...)
	}
	return out
}

// Attribute assigns speakers from external turns. Timed words take the
// speaker with maximum overlap; untimed words follow their neighbours;
// segments with no timed words use the midpoint rule.
func Attribute(segments []whisperx.Segment, turns []Turn) []transcript.Segment {
	out := make([]transcript.Segment, 0, len(segments))
	for _, seg := range segments {
		if !hasTimedWords(seg) {
			out = append(out, transcript.Segment{
				Start:   seg.Start,
				End:     seg.End,
				Text:    seg.Text,
				Speaker: speakerByMidpoint(seg.Start, seg.End, turns),
			})
			continue
		}
		out = append(out, split(seg, wordSpeakers(seg.Words, turns))...)
	}
	return out
}

func hasTimedWords(seg whisperx.Segment) bool {
	for _, w := range seg.Words {
		if w.Timed() {
			return true
		}
	}
	return false
}

// wordSpeakers resolves a speaker per word. Untimed words take the previous
// timed word's speaker, or the next one when they lead the segment.
func wordSpeakers(words []whisperx.Word, turns []Turn) []string {
	speakers := make([]string, len(words))
	resolved := make([]bool, len(words))
	for i, w := range words {
		if w.Timed() {
			speakers[i] = speakerByOverlap(*w.Start, *w.End, turns)
			resolved[i] = true
		}
	}
	for i := 1; i < len(words); i++ {
		if !resolved[i] && resolved[i-1] {
			speakers[i] = speakers[i-1]
			resolved[i] = true
		}
	}
	for i := len(words) - 2; i >= 0; i-- {
		if !resolved[i] && resolved[i+1] {
			speakers[i] = speakers[i+1]
			resolved[i] = true
		}
	}
	return speakers
}

// split groups consecutive words with the same speaker into segments whose
// timing stays within the parent segment. A group without timed words spans
// from the previous group to the next timed word, or to the segment end.
func split(seg whisperx.Segment, speakers []string) []transcript.Segment {
	var out []transcript.Segment
	cursor := seg.Start
	for i := 0; i < len(seg.Words); {
		j := i + 1
		for j < len(seg.Words) && speakers[j] == speakers[i] {
			j++
		}
		group := seg.Words[i:j]

		start := cursor
		if s, ok := firstStart(group); ok {
			start = clamp(s, cursor, seg.End)
		}
		end := seg.End
		if e, ok := lastEnd(group); ok {
			end = e
		} else if s, ok := firstStart(seg.Words[j:]); ok {
			end = s
		}
		end = clamp(end, start, seg.End)

		tokens := make([]string, 0, len(group))
		for _, w := range group {
			tokens = append(tokens, w.Token())
		}
		out = append(out, transcript.Segment{
			Start:   start,
			End:     end,
			Text:    strings.Join(tokens, " "),
			Speaker: speakers[i],
		})
		cursor = end
		i = j
	}
	return out
}

func firstStart(words []whisperx.Word) (decimal.Decimal, bool) {
	for _, w := range words {
		if w.Timed() {
			return *w.Start, true
		}
	}
	return decimal.Zero, false
}

func lastEnd(words []whisperx.Word) (decimal.Decimal, bool) {
	for i := len(words) - 1; i >= 0; i-- {
		if words[i].Timed() {
			return *words[i].End, true
		}
	}
	return decimal.Zero, false
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}
