package transcript_test

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"transcribe/internal/transcript"
)

func seg(start, end float64, text, speaker string) transcript.Segment {
	return transcript.Segment{
		Start:   decimal.NewFromFloat(start),
		End:     decimal.NewFromFloat(end),
		Text:    text,
		Speaker: speaker,
	}
}

func TestFormatMergesShortPause(t *testing.T) {
	segments := []transcript.Segment{
		seg(0.0, 1.0, "Hello there", ""),
		seg(1.2, 2.0, "friend.", ""),
	}
	doc, err := transcript.Format(segments, transcript.DefaultOptions())
	if err != nil {
		t.Fatalf("Format returned error: %v", err)
	}
	if len(doc.Paragraphs) != 1 {
		t.Fatalf("expected 1 paragraph, got %d", len(doc.Paragraphs))
	}
	if got := doc.Paragraphs[0].Text; got != "Hello there friend." {
		t.Fatalf("unexpected paragraph text %q", got)
	}
	if doc.Paragraphs[0].Words != 3 {
		t.Fatalf("expected 3 words, got %d", doc.Paragraphs[0].Words)
	}
}

func TestFormatBreaksOnSilenceBelowMinimum(t *testing.T) {
	segments := []transcript.Segment{
		seg(0.0, 1.0, "Part one.", ""),
		seg(5.0, 6.0, "Part two.", ""),
	}
	got, err := transcript.Render(segments, transcript.DefaultOptions())
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	want := "# Transcript\n\nPart one.\n\nPart two.\n"
	if got != want {
		t.Fatalf("unexpected markdown:\n got %q\nwant %q", got, want)
	}
}

func TestFormatLabelsSpeakers(t *testing.T) {
	opts := transcript.DefaultOptions()
	opts.LabelSpeakers = true
	segments := []transcript.Segment{
		seg(0, 1, "Hi.", "A"),
		seg(1, 2, "Hello.", "B"),
	}
	got, err := transcript.Render(segments, opts)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	want := "# Transcript\n\n**Speaker 1:** Hi.\n\n**Speaker 2:** Hello.\n"
	if got != want {
		t.Fatalf("unexpected markdown:\n got %q\nwant %q", got, want)
	}
}

func TestRenderEmptyInput(t *testing.T) {
	for _, segments := range [][]transcript.Segment{nil, {}} {
		got, err := transcript.Render(segments, transcript.DefaultOptions())
		if err != nil {
			t.Fatalf("Render returned error: %v", err)
		}
		if got != "# Transcript\n" {
			t.Fatalf("unexpected markdown for empty input: %q", got)
		}
	}
}

func TestFormatRejectsEndBeforeStart(t *testing.T) {
	segments := []transcript.Segment{
		seg(0, 1, "fine", ""),
		seg(3, 2, "broken", ""),
	}
	doc, err := transcript.Format(segments, transcript.DefaultOptions())
	if err == nil {
		t.Fatal("expected error for end before start")
	}
	if !errors.Is(err, transcript.ErrMalformedSegment) {
		t.Fatalf("expected ErrMalformedSegment, got %v", err)
	}
	var malformed *transcript.MalformedSegmentError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedSegmentError, got %T", err)
	}
	if malformed.Index != 1 {
		t.Fatalf("expected failing index 1, got %d", malformed.Index)
	}
	if len(doc.Paragraphs) != 0 {
		t.Fatalf("expected no partial output, got %d paragraphs", len(doc.Paragraphs))
	}
}

func TestFormatRejectsNegativeStart(t *testing.T) {
	_, err := transcript.Format([]transcript.Segment{seg(-0.5, 1, "early", "")}, transcript.DefaultOptions())
	if !errors.Is(err, transcript.ErrMalformedSegment) {
		t.Fatalf("expected ErrMalformedSegment, got %v", err)
	}
}

func TestFormatAllowsZeroDurationSegment(t *testing.T) {
	doc, err := transcript.Format([]transcript.Segment{seg(1, 1, "blip", "")}, transcript.DefaultOptions())
	if err != nil {
		t.Fatalf("Format returned error: %v", err)
	}
	if len(doc.Paragraphs) != 1 {
		t.Fatalf("expected 1 paragraph, got %d", len(doc.Paragraphs))
	}
}

func TestFormatSilenceThresholdIsInclusive(t *testing.T) {
	// 3.2 - 1.2 must compare equal to 2.0 exactly.
	segments := []transcript.Segment{
		seg(0, 1.2, "first", ""),
		seg(3.2, 4, "second", ""),
	}
	doc, err := transcript.Format(segments, transcript.DefaultOptions())
	if err != nil {
		t.Fatalf("Format returned error: %v", err)
	}
	if len(doc.Paragraphs) != 2 {
		t.Fatalf("expected gap equal to threshold to break, got %d paragraphs", len(doc.Paragraphs))
	}
}

func TestFormatSkipsBlankSegments(t *testing.T) {
	segments := []transcript.Segment{
		seg(0, 1, "one", ""),
		seg(1, 1.5, "   ", ""),
		seg(1.5, 5, "", ""),
		seg(2.5, 3, "two", ""),
	}
	doc, err := transcript.Format(segments, transcript.DefaultOptions())
	if err != nil {
		t.Fatalf("Format returned error: %v", err)
	}
	// The gap is measured from "one" (ends at 1.0), so 1.5s does not break.
	if len(doc.Paragraphs) != 1 || doc.Paragraphs[0].Text != "one two" {
		t.Fatalf("unexpected paragraphs: %+v", doc.Paragraphs)
	}
	if doc.Paragraphs[0].Segments != 2 {
		t.Fatalf("expected blank segments to be excluded, got %d segments", doc.Paragraphs[0].Segments)
	}
}

func TestFormatMinimumWordsAllowsPauseBreak(t *testing.T) {
	opts := transcript.DefaultOptions()
	opts.MinWords = 3
	segments := []transcript.Segment{
		seg(0, 1, "one two", ""),
		seg(1, 2, "three four", ""),     // no gap: stays together
		seg(2.1, 3, "five six", ""),     // 4 words buffered, gap 0.1 > 0: break
		seg(3, 4, "seven", ""),          // no gap
		seg(4.0, 4.5, "eight nine", ""), // 3 words buffered but gap 0: stays
	}
	doc, err := transcript.Format(segments, opts)
	if err != nil {
		t.Fatalf("Format returned error: %v", err)
	}
	want := []string{"one two three four", "five six seven eight nine"}
	if len(doc.Paragraphs) != len(want) {
		t.Fatalf("expected %d paragraphs, got %+v", len(want), doc.Paragraphs)
	}
	for i, p := range doc.Paragraphs {
		if p.Text != want[i] {
			t.Fatalf("paragraph %d: got %q want %q", i, p.Text, want[i])
		}
	}
}

func TestFormatPauseThresholdIsConfigurable(t *testing.T) {
	opts := transcript.DefaultOptions()
	opts.MinWords = 1
	opts.PauseThreshold = decimal.RequireFromString("0.5")
	segments := []transcript.Segment{
		seg(0, 1, "alpha", ""),
		seg(1.3, 2, "beta", ""),  // 0.3 <= 0.5: stays
		seg(2.6, 3, "gamma", ""), // 0.6 > 0.5: breaks
	}
	doc, err := transcript.Format(segments, opts)
	if err != nil {
		t.Fatalf("Format returned error: %v", err)
	}
	if len(doc.Paragraphs) != 2 || doc.Paragraphs[0].Text != "alpha beta" || doc.Paragraphs[1].Text != "gamma" {
		t.Fatalf("unexpected paragraphs: %+v", doc.Paragraphs)
	}
}

func TestFormatToleratesOverlap(t *testing.T) {
	opts := transcript.DefaultOptions()
	opts.MinWords = 1
	segments := []transcript.Segment{
		seg(0, 2, "overlapping", ""),
		seg(1.9, 3, "jitter", ""),
	}
	doc, err := transcript.Format(segments, opts)
	if err != nil {
		t.Fatalf("Format returned error: %v", err)
	}
	if len(doc.Paragraphs) != 1 {
		t.Fatalf("negative gap should not break, got %d paragraphs", len(doc.Paragraphs))
	}
}

func TestFormatSpeakerMappingIsStable(t *testing.T) {
	opts := transcript.DefaultOptions()
	opts.LabelSpeakers = true
	segments := []transcript.Segment{
		seg(0, 1, "a", "SPEAKER_07"),
		seg(1, 2, "b", "SPEAKER_02"),
		seg(2, 3, "c", ""),
		seg(3, 4, "d", "SPEAKER_07"),
		seg(4, 5, "e", ""),
	}
	doc, err := transcript.Format(segments, opts)
	if err != nil {
		t.Fatalf("Format returned error: %v", err)
	}
	want := []string{"Speaker 1", "Speaker 2", "Speaker 3", "Speaker 1", "Speaker 3"}
	if len(doc.Paragraphs) != len(want) {
		t.Fatalf("expected %d paragraphs, got %d", len(want), len(doc.Paragraphs))
	}
	for i, p := range doc.Paragraphs {
		if p.Label != want[i] {
			t.Fatalf("paragraph %d: got label %q want %q", i, p.Label, want[i])
		}
	}
	if got := doc.Speakers(); strings.Join(got, ",") != "Speaker 1,Speaker 2,Speaker 3" {
		t.Fatalf("unexpected speaker order %v", got)
	}
}

func TestFormatIgnoresSpeakersWhenLabelingDisabled(t *testing.T) {
	segments := []transcript.Segment{
		seg(0, 1, "Hi.", "A"),
		seg(1, 2, "Hello.", "B"),
	}
	got, err := transcript.Render(segments, transcript.DefaultOptions())
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if got != "# Transcript\n\nHi. Hello.\n" {
		t.Fatalf("unexpected markdown %q", got)
	}
}

func TestFormatCollapsesInnerWhitespace(t *testing.T) {
	doc, err := transcript.Format([]transcript.Segment{seg(0, 1, "  spaced \t out\n words ", "")}, transcript.DefaultOptions())
	if err != nil {
		t.Fatalf("Format returned error: %v", err)
	}
	if doc.Paragraphs[0].Text != "spaced out words" {
		t.Fatalf("unexpected text %q", doc.Paragraphs[0].Text)
	}
}

func TestOptionsValidate(t *testing.T) {
	opts := transcript.DefaultOptions()
	opts.SilenceThreshold = decimal.Zero
	if err := opts.Validate(); err == nil {
		t.Fatal("expected error for zero silence threshold")
	}
	opts = transcript.DefaultOptions()
	opts.PauseThreshold = decimal.NewFromInt(-1)
	if err := opts.Validate(); err == nil {
		t.Fatal("expected error for negative pause threshold")
	}
	opts = transcript.DefaultOptions()
	opts.MinWords = -1
	if err := opts.Validate(); err == nil {
		t.Fatal("expected error for negative min words")
	}
	if _, err := transcript.Format(nil, transcript.Options{}); err == nil {
		t.Fatal("expected zero-value options to be rejected")
	}
}

// randomSegments builds a well-formed sequence where every word is unique and
// encodes its segment index, e.g. "s12w3".
func randomSegments(r *rand.Rand, n int, speakers bool) []transcript.Segment {
	var out []transcript.Segment
	cursor := 0.0
	for i := 0; i < n; i++ {
		cursor += []float64{0, 0, 0.1, 0.4, 1.5, 2.0, 3.7}[r.IntN(7)]
		dur := 0.2 + float64(r.IntN(30))/10
		count := r.IntN(6)
		parts := make([]string, count)
		for w := range parts {
			parts[w] = fmt.Sprintf("s%dw%d", i, w)
		}
		speaker := ""
		if speakers {
			speaker = []string{"A", "B", "", "C"}[r.IntN(4)]
		}
		out = append(out, seg(cursor, cursor+dur, strings.Join(parts, " "), speaker))
		cursor += dur
	}
	return out
}

func segmentOfWord(word string) int {
	var s, w int
	if _, err := fmt.Sscanf(word, "s%dw%d", &s, &w); err != nil {
		return -1
	}
	return s
}

func TestFormatProperties(t *testing.T) {
	r := rand.New(rand.NewPCG(42, 7))
	for trial := 0; trial < 200; trial++ {
		labeled := trial%2 == 1
		opts := transcript.DefaultOptions()
		opts.MinWords = 1 + r.IntN(12)
		opts.LabelSpeakers = labeled
		segments := randomSegments(r, 1+r.IntN(40), labeled)

		doc, err := transcript.Format(segments, opts)
		if err != nil {
			t.Fatalf("trial %d: Format returned error: %v", trial, err)
		}

		// Word conservation, in order.
		var want []string
		for _, s := range segments {
			want = append(want, strings.Fields(s.Text)...)
		}
		var got []string
		paragraphOf := make(map[int]int)
		for pi, p := range doc.Paragraphs {
			for _, w := range strings.Fields(p.Text) {
				got = append(got, w)
				paragraphOf[segmentOfWord(w)] = pi
			}
		}
		if strings.Join(got, " ") != strings.Join(want, " ") {
			t.Fatalf("trial %d: words not conserved\n got %v\nwant %v", trial, got, want)
		}

		// Determinism.
		again, err := transcript.Format(segments, opts)
		if err != nil || again.Markdown() != doc.Markdown() {
			t.Fatalf("trial %d: formatting is not deterministic", trial)
		}

		// Walk adjacent non-blank segments.
		prev := -1
		for i, s := range segments {
			if len(strings.Fields(s.Text)) == 0 {
				continue
			}
			if prev >= 0 {
				a, b := segments[prev], s
				gap := b.Start.Sub(a.End)
				forced := gap.GreaterThanOrEqual(opts.SilenceThreshold) || (labeled && a.Speaker != b.Speaker)
				same := paragraphOf[prev] == paragraphOf[i]
				if forced && same {
					t.Fatalf("trial %d: segments %d and %d share a paragraph despite a forced break", trial, prev, i)
				}
				if !same {
					p := doc.Paragraphs[paragraphOf[prev]]
					if p.Words < opts.MinWords && !forced {
						t.Fatalf("trial %d: paragraph %d ended early with %d words", trial, paragraphOf[prev], p.Words)
					}
				}
				if same && labeled && doc.Paragraphs[paragraphOf[i]].Speaker != s.Speaker {
					t.Fatalf("trial %d: paragraph speaker does not match segment %d", trial, i)
				}
			}
			prev = i
		}

		if labeled {
			for pi, p := range doc.Paragraphs {
				if p.Label == "" {
					t.Fatalf("trial %d: paragraph %d missing label", trial, pi)
				}
			}
		}
	}
}
