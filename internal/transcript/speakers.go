package transcript

import "strconv"

// speakerLabels assigns display numbers to raw speaker identifiers in order
// of first appearance. A fresh instance is used for every Format call.
type speakerLabels struct {
	order []string
	index map[string]int
}

func newSpeakerLabels() *speakerLabels {
	return &speakerLabels{index: make(map[string]int)}
}

func (l *speakerLabels) label(raw string) string {
	n, ok := l.index[raw]
	if !ok {
		l.order = append(l.order, raw)
		n = len(l.order)
		l.index[raw] = n
	}
	return "Speaker " + strconv.Itoa(n)
}
