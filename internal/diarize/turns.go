package diarize

import (
	"github.com/shopspring/decimal"
)

// Turn is a contiguous span attributed to one speaker.
type Turn struct {
	Start   decimal.Decimal
	End     decimal.Decimal
	Speaker string
}

// overlap returns the length of the intersection of [start,end] with the turn.
func (t Turn) overlap(start, end decimal.Decimal) decimal.Decimal {
	lo := decimal.Max(start, t.Start)
	hi := decimal.Min(end, t.End)
	if hi.LessThanOrEqual(lo) {
		return decimal.Zero
	}
	return hi.Sub(lo)
}

// speakerByOverlap returns the speaker whose turns overlap [start,end] the
// most. Ties go to the earliest listed turn; no overlap yields "".
func speakerByOverlap(start, end decimal.Decimal, turns []Turn) string {
	best := ""
	bestOverlap := decimal.Zero
	for _, turn := range turns {
		if ov := turn.overlap(start, end); ov.GreaterThan(bestOverlap) {
			best, bestOverlap = turn.Speaker, ov
		}
	}
	return best
}

// speakerByMidpoint returns the speaker whose turn contains the midpoint of
// [start,end], falling back to the turn with the nearest boundary.
func speakerByMidpoint(start, end decimal.Decimal, turns []Turn) string {
	if len(turns) == 0 {
		return ""
	}
	mid := start.Add(end).Div(decimal.NewFromInt(2))
	best := ""
	var bestDist decimal.Decimal
	for i, turn := range turns {
		if turn.Start.LessThanOrEqual(mid) && mid.LessThanOrEqual(turn.End) {
			return turn.Speaker
		}
		dist := decimal.Min(mid.Sub(turn.Start).Abs(), mid.Sub(turn.End).Abs())
		if i == 0 || dist.LessThan(bestDist) {
			best, bestDist = turn.Speaker, dist
		}
	}
	return best
}
