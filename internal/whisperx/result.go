package whisperx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"transcribe/internal/transcript"
)

// Word is a single word with optional timing from WhisperX output. Numerals
// and symbols the aligner cannot place arrive without start/end.
type Word struct {
	Word    string           `json:"word"`
	Text    string           `json:"text,omitempty"`
	Start   *decimal.Decimal `json:"start,omitempty"`
	End     *decimal.Decimal `json:"end,omitempty"`
	Score   *float64         `json:"score,omitempty"`
	Speaker string           `json:"speaker,omitempty"`
}

// Token returns the trimmed word text, accepting either "word" or "text" keys.
func (w Word) Token() string {
	if token := strings.TrimSpace(w.Word); token != "" {
		return token
	}
	return strings.TrimSpace(w.Text)
}

// Timed reports whether the word carries both timestamps.
func (w Word) Timed() bool {
	return w.Start != nil && w.End != nil
}

// Segment is a validated transcription segment.
type Segment struct {
	Start   decimal.Decimal
	End     decimal.Decimal
	Text    string
	Speaker string
	Words   []Word
}

// Result is a decoded WhisperX payload.
type Result struct {
	Language string
	Segments []Segment
}

type rawSegment struct {
	Start   *decimal.Decimal `json:"start"`
	End     *decimal.Decimal `json:"end"`
	Text    *string          `json:"text"`
	Speaker string           `json:"speaker"`
	Words   []Word           `json:"words"`
}

type rawPayload struct {
	Language string        `json:"language"`
	Segments *[]rawSegment `json:"segments"`
}

// LoadResult reads and decodes a WhisperX JSON file.
func LoadResult(jsonPath string) (Result, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return Result{}, err
	}
	result, err := DecodeResult(data)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", jsonPath, err)
	}
	return result, nil
}

// DecodeResult decodes a WhisperX payload. Segments missing start, end or text,
// or ending before they start, are reported as malformed with their index.
func DecodeResult(data []byte) (Result, error) {
	var payload rawPayload
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return Result{}, fmt.Errorf("parse whisperx json: %w", err)
	}
	if payload.Segments == nil {
		return Result{}, fmt.Errorf("parse whisperx json: missing segments array")
	}

	result := Result{
		Language: strings.TrimSpace(payload.Language),
		Segments: make([]Segment, 0, len(*payload.Segments)),
	}
	for i, raw := range *payload.Segments {
		switch {
		case raw.Start == nil:
			return Result{}, transcript.Malformed(i, "missing start")
		case raw.End == nil:
			return Result{}, transcript.Malformed(i, "missing end")
		case raw.Text == nil:
			return Result{}, transcript.Malformed(i, "missing text")
		case raw.Start.IsNegative():
			return Result{}, transcript.Malformed(i, "negative start %s", raw.Start)
		case raw.End.LessThan(*raw.Start):
			return Result{}, transcript.Malformed(i, "end %s before start %s", raw.End, raw.Start)
		}
		words := make([]Word, 0, len(raw.Words))
		for _, w := range raw.Words {
			w.Word = norm.NFC.String(w.Word)
			w.Text = norm.NFC.String(w.Text)
			if w.Token() == "" {
				continue
			}
			words = append(words, w)
		}
		result.Segments = append(result.Segments, Segment{
			Start:   *raw.Start,
			End:     *raw.End,
			Text:    norm.NFC.String(strings.TrimSpace(*raw.Text)),
			Speaker: strings.TrimSpace(raw.Speaker),
			Words:   words,
		})
	}
	return result, nil
}

// HasSpeakers reports whether any segment or word carries a speaker label.
func (r Result) HasSpeakers() bool {
	for _, seg := range r.Segments {
		if seg.Speaker != "" {
			return true
		}
		for _, w := range seg.Words {
			if w.Speaker != "" {
				return true
			}
		}
	}
	return false
}

// Encode renders the result back to WhisperX JSON for caching.
func (r Result) Encode() ([]byte, error) {
	type wireSegment struct {
		Start   decimal.Decimal `json:"start"`
		End     decimal.Decimal `json:"end"`
		Text    string          `json:"text"`
		Speaker string          `json:"speaker,omitempty"`
		Words   []Word          `json:"words,omitempty"`
	}
	wire := struct {
		Language string        `json:"language,omitempty"`
		Segments []wireSegment `json:"segments"`
	}{Language: r.Language, Segments: make([]wireSegment, 0, len(r.Segments))}
	for _, seg := range r.Segments {
		wire.Segments = append(wire.Segments, wireSegment(seg))
	}
	return json.Marshal(wire)
}
