package filler

import (
	"time"

	"github.com/forPelevin/recapcut/internal/types"
)

const DefaultMaxGap = 10 * time.Minute

// AuditGaps reports consecutive cuts whose source spacing falls outside [minGap, maxGap].
// A backwards jump is measured as the distance between the two cuts; overlapping cuts give a
// negative gap. A zero maxGap means DefaultMaxGap.
func AuditGaps(specs []types.ClipSpec, minGap, maxGap time.Duration) []types.GapRecord {
	if maxGap <= 0 {
		maxGap = DefaultMaxGap
	}
	var out []types.GapRecord
	for i := 1; i < len(specs); i++ {
		prev, cur := specs[i-1], specs[i]
		gap := cur.SourceOffset - prev.End()
		if gap < 0 && cur.End() <= prev.SourceOffset {
			gap = prev.SourceOffset - cur.End()
		}
		if gap < minGap || gap > maxGap {
			out = append(out, types.GapRecord{Index: i, From: prev.End(), To: cur.SourceOffset, Gap: gap})
		}
	}
	return out
}
