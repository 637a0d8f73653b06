package transcript

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Paragraph is a run of consecutive segments merged for display.
type Paragraph struct {
	Text string
	// Speaker is the raw identifier of the first segment.
	Speaker string
	// Label is the display label ("Speaker 2") when labeling is enabled.
	Label    string
	Start    decimal.Decimal
	End      decimal.Decimal
	Words    int
	Segments int
}

// Document is the ordered list of paragraphs produced by Format.
type Document struct {
	Paragraphs []Paragraph
}

// Format groups segments into paragraphs. Every segment is validated before
// any paragraph is built.
func Format(segments []Segment, opts Options) (Document, error) {
	if err := opts.Validate(); err != nil {
		return Document{}, err
	}
	for i, seg := range segments {
		if err := seg.validate(i); err != nil {
			return Document{}, err
		}
	}

	var (
		doc     Document
		labels  = newSpeakerLabels()
		current paragraphBuilder
		prevEnd decimal.Decimal
	)
	flush := func() {
		if current.empty() {
			return
		}
		doc.Paragraphs = append(doc.Paragraphs, current.build(labels, opts.LabelSpeakers))
		current = paragraphBuilder{}
	}

	for _, seg := range segments {
		tokens := words(seg.Text)
		if len(tokens) == 0 {
			continue
		}
		if !current.empty() && shouldBreak(&current, seg, prevEnd, opts) {
			flush()
		}
		current.add(seg, tokens)
		prevEnd = seg.End
	}
	flush()
	return doc, nil
}

func shouldBreak(p *paragraphBuilder, next Segment, prevEnd decimal.Decimal, opts Options) bool {
	if opts.LabelSpeakers && next.Speaker != p.speaker {
		return true
	}
	gap := next.Start.Sub(prevEnd)
	if gap.GreaterThanOrEqual(opts.SilenceThreshold) {
		return true
	}
	return p.words >= opts.MinWords && gap.GreaterThan(opts.PauseThreshold)
}

type paragraphBuilder struct {
	parts    []string
	speaker  string
	start    decimal.Decimal
	end      decimal.Decimal
	words    int
	segments int
}

func (p *paragraphBuilder) empty() bool {
	return p.segments == 0
}

func (p *paragraphBuilder) add(seg Segment, tokens []string) {
	if p.segments == 0 {
		p.speaker = seg.Speaker
		p.start = seg.Start
	}
	p.parts = append(p.parts, strings.Join(tokens, " "))
	p.end = seg.End
	p.words += len(tokens)
	p.segments++
}

func (p *paragraphBuilder) build(labels *speakerLabels, labeled bool) Paragraph {
	para := Paragraph{
		Text:     strings.Join(p.parts, " "),
		Speaker:  p.speaker,
		Start:    p.start,
		End:      p.end,
		Words:    p.words,
		Segments: p.segments,
	}
	if labeled {
		para.Label = labels.label(p.speaker)
	}
	return para
}
