package filler

import (
	"math/rand/v2"
	"time"

	"github.com/forPelevin/recapcut/internal/domain/storyboard"
	"github.com/forPelevin/recapcut/internal/types"
)

const (
	// Pieces shorter than this are not worth a cut.
	minPiece = time.Second

	tailWindow = 30 * time.Second
	bucketSize = 30 * time.Second
	// A bucket holding fewer cut starts than this is underused.
	bucketLimit = 2

	// After this many overlapping candidates the next candidate is taken as is.
	relaxAfter = 8
	maxClips   = 512
)

// Gap ranges for the raw source scan: wide near the start of the film, narrow near the end.
var (
	headGap = [2]time.Duration{20 * time.Second, 45 * time.Second}
	endGap  = [2]time.Duration{5 * time.Second, 15 * time.Second}
)

type Input struct {
	Specs  []types.ClipSpec
	Target time.Duration
	// Blocks are scanned for unused material before the raw source.
	Blocks []types.TimeBlock
	// SourceDuration enables the raw source scan; zero disables it.
	SourceDuration time.Duration
	Bounds         storyboard.Bounds
	Rand           *rand.Rand
}

// Fill appends filler cuts until the total duration reaches Target. When the specs already
// cover Target the input slice is returned as is.
func Fill(in Input) []types.ClipSpec {
	acc := types.TotalDuration(in.Specs)
	if in.Target <= 0 || acc >= in.Target {
		return in.Specs
	}
	if in.Bounds.Max <= 0 {
		in.Bounds = storyboard.BoundsFor(types.EditRules{})
	}
	rng := in.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(0, 0))
	}

	f := &filler{
		out:    append([]types.ClipSpec(nil), in.Specs...),
		acc:    acc,
		target: in.Target,
		source: in.SourceDuration,
		bounds: in.Bounds,
		rng:    rng,
	}
	f.fromBlocks(in.Blocks)
	if f.acc < f.target {
		f.fromSource()
	}
	return f.out
}

type filler struct {
	out    []types.ClipSpec
	acc    time.Duration
	target time.Duration
	source time.Duration
	bounds storyboard.Bounds
	rng    *rand.Rand
}

func (f *filler) add(pos, length time.Duration) {
	f.out = append(f.out, types.ClipSpec{SourceOffset: pos, Duration: length, Origin: types.OriginFiller})
	f.acc += length
}

func (f *filler) cutLength() time.Duration {
	lo, hi := f.bounds.Min, f.bounds.Max
	if hi <= lo {
		return hi
	}
	return lo + time.Duration(f.rng.Int64N(int64(hi-lo)+1))
}

// fromBlocks walks each block front to back, skipping material already cut.
func (f *filler) fromBlocks(blocks []types.TimeBlock) {
	for _, blk := range blocks {
		end := blk.End
		if f.source > 0 && end > f.source {
			end = f.source
		}
		cursor := blk.Start
		for cursor < end && f.acc < f.target {
			if used, ok := f.usedAt(cursor); ok {
				cursor = used.End()
				continue
			}
			limit := end
			if next, ok := f.nextUsedStart(cursor); ok && next < limit {
				limit = next
			}
			length := f.cutLength()
			if cursor+length > limit {
				length = limit - cursor
			}
			if length < minPiece {
				cursor = limit
				continue
			}
			f.add(cursor, length)
			cursor += length
		}
		if f.acc >= f.target {
			return
		}
	}
}

// fromSource scans the raw source with a position-dependent gap, wrapping at the end.
func (f *filler) fromSource() {
	if f.source <= 0 {
		return
	}
	var base time.Duration
	if n := len(f.out); n > 0 {
		base = f.out[n-1].End()
	}
	for i := 0; i < maxClips && f.acc < f.target; i++ {
		length := f.cutLength()
		if length > f.source {
			length = f.source
		}
		pos := f.candidate(base, length)
		for attempt := 1; attempt < relaxAfter && f.overlaps(pos, pos+length); attempt++ {
			pos = f.candidate(pos, length)
		}
		f.add(pos, length)
		base = pos + length
	}
}

func (f *filler) candidate(base, length time.Duration) time.Duration {
	frac := float64(base) / float64(f.source)
	frac = min(max(frac, 0), 1)
	lo := lerp(headGap[0], endGap[0], frac)
	hi := lerp(headGap[1], endGap[1], frac)
	gap := lo + time.Duration(f.rng.Int64N(int64(hi-lo)+1))

	pos := (base + gap) % f.source
	if pos+length > f.source {
		pos = f.source - length
	}
	if f.source > 2*tailWindow && pos >= f.source-tailWindow {
		pos = f.remapTail(length)
	}
	return pos
}

// remapTail moves a cut out of the last tailWindow of the source into an underused bucket,
// or into the least used bucket when every bucket is busy.
func (f *filler) remapTail(length time.Duration) time.Duration {
	n := int((f.source - tailWindow) / bucketSize)
	if n < 1 {
		return 0
	}
	counts := make([]int, n)
	for _, c := range f.out {
		if b := int(c.SourceOffset / bucketSize); b < n {
			counts[b]++
		}
	}
	var under []int
	least := 0
	for b, c := range counts {
		if c < bucketLimit {
			under = append(under, b)
		}
		if c < counts[least] {
			least = b
		}
	}
	b := least
	if len(under) > 0 {
		b = under[f.rng.IntN(len(under))]
	}
	pos := time.Duration(b) * bucketSize
	if room := bucketSize - length; room > 0 {
		pos += time.Duration(f.rng.Int64N(int64(room)))
	}
	return pos
}

func (f *filler) usedAt(t time.Duration) (types.ClipSpec, bool) {
	for _, c := range f.out {
		if t >= c.SourceOffset && t < c.End() {
			return c, true
		}
	}
	return types.ClipSpec{}, false
}

func (f *filler) nextUsedStart(t time.Duration) (time.Duration, bool) {
	var next time.Duration
	found := false
	for _, c := range f.out {
		if c.SourceOffset > t && (!found || c.SourceOffset < next) {
			next, found = c.SourceOffset, true
		}
	}
	return next, found
}

func (f *filler) overlaps(start, end time.Duration) bool {
	for _, c := range f.out {
		if start < c.End() && c.SourceOffset < end {
			return true
		}
	}
	return false
}

func lerp(a, b time.Duration, t float64) time.Duration {
	return a + time.Duration(float64(b-a)*t)
}
