package storyboard

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/forPelevin/recapcut/internal/types"
)

// Strategy is the resolution plan chosen once per segment. It is one of
// BeatsWithBlocks, BeatsOnly, BlocksOnly or Unresolvable.
type Strategy interface {
	Name() string
	strategy()
}

type BeatsWithBlocks struct {
	Beats  []types.Beat
	Blocks []types.TimeBlock
}

type BeatsOnly struct {
	Beats []types.Beat
}

type BlocksOnly struct {
	Blocks []types.TimeBlock
}

type Unresolvable struct {
	Reason string
}

func (BeatsWithBlocks) Name() string { return "beats_with_blocks" }
func (BeatsOnly) Name() string       { return "beats_only" }
func (BlocksOnly) Name() string      { return "blocks_only" }
func (Unresolvable) Name() string    { return "unresolvable" }

func (BeatsWithBlocks) strategy() {}
func (BeatsOnly) strategy()       {}
func (BlocksOnly) strategy()      {}
func (Unresolvable) strategy()    {}

// Select picks the resolution strategy for seg. Beats are returned as a sorted copy; the
// segment's own slice is never reordered.
func Select(seg types.Segment) Strategy {
	if len(seg.Defects) > 0 {
		return Unresolvable{Reason: strings.Join(seg.Defects, "; ")}
	}
	beats := SortedBeats(seg.Beats)
	blocks := append([]types.TimeBlock(nil), seg.TimeBlocks...)
	switch {
	case len(beats) > 0 && len(blocks) > 0:
		return BeatsWithBlocks{Beats: beats, Blocks: blocks}
	case len(beats) > 0:
		return BeatsOnly{Beats: beats}
	case len(blocks) > 0:
		return BlocksOnly{Blocks: blocks}
	default:
		return Unresolvable{Reason: "segment has neither beats nor timeblocks"}
	}
}

func SortedBeats(in []types.Beat) []types.Beat {
	if len(in) == 0 {
		return nil
	}
	out := append([]types.Beat(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].TimelineOffset < out[j].TimelineOffset })
	return out
}

const (
	BeatLengthMin = 3000 * time.Millisecond
	BeatLengthMax = 4000 * time.Millisecond
)

// QualityWarnings lists data-quality findings that do not block processing.
func QualityWarnings(seg types.Segment) []string {
	var out []string
	for i, b := range seg.Beats {
		if b.SourceLength == 0 {
			continue
		}
		if b.SourceLength < BeatLengthMin || b.SourceLength > BeatLengthMax {
			out = append(out, fmt.Sprintf("beat %d: src_length %s outside [%s, %s]", i, b.SourceLength, BeatLengthMin, BeatLengthMax))
		}
	}
	for i := 1; i < len(seg.Beats); i++ {
		if seg.Beats[i].TimelineOffset < seg.Beats[i-1].TimelineOffset {
			out = append(out, "beats are out of timeline order; re-sorted")
			break
		}
	}
	return out
}

// Bounds limits the length of a single emitted cut.
type Bounds struct {
	Min time.Duration
	Max time.Duration
}

const (
	shortestCut = 600 * time.Millisecond
	longestCut  = 4 * time.Second
)

// BoundsFor derives cut bounds from edit rules. Missing or inverted rules fall back to the
// beat band; the upper bound never exceeds 4s.
func BoundsFor(r types.EditRules) Bounds {
	b := Bounds{Min: BeatLengthMin, Max: BeatLengthMax}
	if r.CutMin > 0 && r.CutMax >= r.CutMin {
		b = Bounds{Min: r.CutMin, Max: r.CutMax}
	}
	if b.Max > longestCut {
		b.Max = longestCut
	}
	if b.Min < shortestCut {
		b.Min = shortestCut
	}
	if b.Min > b.Max {
		b.Min = b.Max
	}
	return b
}

// Nominal is the cut length used when an anchor does not state one.
func (b Bounds) Nominal() time.Duration { return (b.Min + b.Max) / 2 }
