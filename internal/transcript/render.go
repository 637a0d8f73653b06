package transcript

import "strings"

// Heading is the first line of every rendered transcript.
const Heading = "# Transcript"

// Markdown renders the document: the heading, then each paragraph preceded by
// a blank line. An empty document renders as the heading alone.
func (d Document) Markdown() string {
	var b strings.Builder
	b.WriteString(Heading)
	b.WriteByte('\n')
	for _, p := range d.Paragraphs {
		b.WriteByte('\n')
		if p.Label != "" {
			b.WriteString("**")
			b.WriteString(p.Label)
			b.WriteString(":** ")
		}
		b.WriteString(p.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// Render formats segments and renders them in one step.
func Render(segments []Segment, opts Options) (string, error) {
	doc, err := Format(segments, opts)
	if err != nil {
		return "", err
	}
	return doc.Markdown(), nil
}

// Stats summarizes a document for logging.
type Stats struct {
	Paragraphs int
	Words      int
	Speakers   int
}

// Stats counts paragraphs, words, and distinct speaker labels.
func (d Document) Stats() Stats {
	return Stats{
		Paragraphs: len(d.Paragraphs),
		Words:      d.Words(),
		Speakers:   len(d.Speakers()),
	}
}

// Words returns the total word count across paragraphs.
func (d Document) Words() int {
	total := 0
	for _, p := range d.Paragraphs {
		total += p.Words
	}
	return total
}

// Speakers returns the distinct display labels in order of first appearance.
func (d Document) Speakers() []string {
	var out []string
	seen := make(map[string]struct{})
	for _, p := range d.Paragraphs {
		if p.Label == "" {
			continue
		}
		if _, ok := seen[p.Label]; ok {
			continue
		}
		seen[p.Label] = struct{}{}
		out = append(out, p.Label)
	}
	return out
}
