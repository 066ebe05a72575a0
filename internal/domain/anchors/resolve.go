package anchors

import (
	"errors"
	"fmt"
	"time"

	"github.com/forPelevin/recapcut/internal/domain/storyboard"
	"github.com/forPelevin/recapcut/internal/types"
)

var ErrUnresolvable = errors.New("segment cannot be resolved")

const (
	inferredMin = 600 * time.Millisecond
	inferredMax = 4 * time.Second
)

type Input struct {
	Strategy storyboard.Strategy
	// Target is the narration length; it bounds the beat timeline when lengths are inferred.
	Target time.Duration
	// SourceDuration is the length of the source video; zero when unknown.
	SourceDuration time.Duration
	Bounds         storyboard.Bounds
}

type Result struct {
	Specs    []types.ClipSpec
	Warnings []string
}

// Resolve turns the segment's anchors into an ordered list of cuts.
func Resolve(in Input) (Result, error) {
	if in.Bounds.Max <= 0 {
		in.Bounds = storyboard.BoundsFor(types.EditRules{})
	}

	var res Result
	switch s := in.Strategy.(type) {
	case storyboard.BeatsWithBlocks:
		res = resolveBeatsWithBlocks(s, in)
		if len(res.Specs) == 0 {
			blocks := resolveBlocks(storyboard.BlocksOnly{Blocks: s.Blocks}, in)
			res.Specs = blocks.Specs
			res.Warnings = append(res.Warnings, "no beat could be placed in its timeblock; using the timeblocks")
			res.Warnings = append(res.Warnings, blocks.Warnings...)
		}
	case storyboard.BeatsOnly:
		res = resolveBeatsOnly(s, in)
	case storyboard.BlocksOnly:
		res = resolveBlocks(s, in)
	case storyboard.Unresolvable:
		return Result{}, fmt.Errorf("%w: %s", ErrUnresolvable, s.Reason)
	default:
		return Result{}, fmt.Errorf("%w: unknown strategy %T", ErrUnresolvable, in.Strategy)
	}
	if len(res.Specs) == 0 {
		return res, fmt.Errorf("%w: no usable anchors", ErrUnresolvable)
	}
	return res, nil
}

func resolveBeatsWithBlocks(s storyboard.BeatsWithBlocks, in Input) Result {
	var res Result
	for i, b := range s.Beats {
		if b.BlockIndex < 0 || b.BlockIndex >= len(s.Blocks) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("beat %d: block_index %d out of range (%d blocks), skipped", i, b.BlockIndex, len(s.Blocks)))
			continue
		}
		blk := s.Blocks[b.BlockIndex]
		start := blk.Start + b.SourceOffset
		if start >= blk.End {
			res.Warnings = append(res.Warnings, fmt.Sprintf("beat %d: src_at %s is past the end of block %d, skipped", i, b.SourceOffset, b.BlockIndex))
			continue
		}
		length := b.SourceLength
		if length <= 0 {
			length = in.Bounds.Nominal()
		}
		if remain := blk.End - start; length > remain {
			length = remain
		}
		length = clampToSource(start, length, in.SourceDuration)
		if length <= 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("beat %d: starts after the end of the source, skipped", i))
			continue
		}
		res.Specs = append(res.Specs, Split(start, length, in.Bounds.Max, types.OriginBeat)...)
	}
	return res
}

func resolveBeatsOnly(s storyboard.BeatsOnly, in Input) Result {
	var res Result
	beats := s.Beats

	unset := 0
	for _, b := range beats {
		if b.SourceLength <= 0 {
			unset++
		}
	}
	infer := unset*2 > len(beats)
	span := timelineSpan(beats, in.Target, in.Bounds.Nominal())

	for i, b := range beats {
		length := b.SourceLength
		pos := b.SourceOffset
		if length <= 0 {
			if infer {
				length = spacing(beats, i, span)
			} else {
				length = in.Bounds.Nominal()
			}
		}
		if infer && b.SourceOffset == 0 && in.SourceDuration > length && span > 0 {
			frac := float64(b.TimelineOffset) / float64(span)
			pos = time.Duration(frac * float64(in.SourceDuration-length))
		}
		length = clampToSource(pos, length, in.SourceDuration)
		if length <= 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("beat %d: src_at %s is past the end of the source, skipped", i, pos))
			continue
		}
		res.Specs = append(res.Specs, Split(pos, length, in.Bounds.Max, types.OriginBeat)...)
	}
	if infer {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d of %d beats have no src_length; lengths inferred from beat spacing", unset, len(beats)))
	}
	return res
}

func resolveBlocks(s storyboard.BlocksOnly, in Input) Result {
	var res Result
	for i, blk := range s.Blocks {
		length := clampToSource(blk.Start, blk.Len(), in.SourceDuration)
		if length <= 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("timeblock %d: starts after the end of the source, skipped", i))
			continue
		}
		res.Specs = append(res.Specs, types.ClipSpec{SourceOffset: blk.Start, Duration: length, Origin: types.OriginBlock})
	}
	return res
}

// Split cuts [start, start+length) into equal pieces no longer than limit. The last piece
// absorbs the rounding remainder so the total is preserved exactly.
func Split(start, length, limit time.Duration, origin types.ClipOrigin) []types.ClipSpec {
	if length <= 0 {
		return nil
	}
	if limit <= 0 || length <= limit {
		return []types.ClipSpec{{SourceOffset: start, Duration: length, Origin: origin}}
	}
	n := int((length + limit - 1) / limit)
	piece := length / time.Duration(n)
	out := make([]types.ClipSpec, 0, n)
	pos := start
	for k := 0; k < n; k++ {
		d := piece
		if k == n-1 {
			d = start + length - pos
		}
		out = append(out, types.ClipSpec{SourceOffset: pos, Duration: d, Origin: origin})
		pos += d
	}
	return out
}

func timelineSpan(beats []types.Beat, target, nominal time.Duration) time.Duration {
	n := len(beats)
	if n == 0 {
		return target
	}
	if last := beats[n-1].TimelineOffset; last >= target {
		return last + nominal
	}
	return target
}

func spacing(beats []types.Beat, i int, span time.Duration) time.Duration {
	var d time.Duration
	if i+1 < len(beats) {
		d = beats[i+1].TimelineOffset - beats[i].TimelineOffset
	} else {
		d = span - beats[i].TimelineOffset
	}
	return clampDur(d, inferredMin, inferredMax)
}

func clampToSource(start, length, source time.Duration) time.Duration {
	if source <= 0 {
		return length
	}
	if start >= source {
		return 0
	}
	if start+length > source {
		return source - start
	}
	return length
}

func clampDur(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
