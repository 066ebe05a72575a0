package usecase

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/forPelevin/recapcut/internal/domain/anchors"
	"github.com/forPelevin/recapcut/internal/domain/filler"
	"github.com/forPelevin/recapcut/internal/domain/matcher"
	"github.com/forPelevin/recapcut/internal/domain/storyboard"
	"github.com/forPelevin/recapcut/internal/failure"
	"github.com/forPelevin/recapcut/internal/types"
)

// Stage names used in events, errors and the run report.
const (
	StageNarration = "narration"
	StageResolve   = "resolve"
	StageFiller    = "filler"
	StageExtract   = "extract"
	StageEffects   = "effects"
	StageConcat    = "concat"
	StageMatch     = "match"
	StageMux       = "mux"
	StageCompose   = "compose"
)

// Narration estimates further than this from the measured file are reported.
const narrationDrift = time.Second

// segmentPlan is the cut list of one segment, fitted to its narration.
type segmentPlan struct {
	index     int
	seg       types.Segment
	narration string
	target    time.Duration
	specs     []types.ClipSpec
	filler    int
	gaps      []types.GapRecord
	// rng continues the segment's random stream into effect selection.
	rng *rand.Rand
}

// segmentRand derives a per-segment stream so results do not depend on scheduling.
func segmentRand(seed uint64, index int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(index)+1))
}

func (u Usecase) plan(ctx context.Context, in RenderInput, index int, seg types.Segment, sourceDur time.Duration) (*segmentPlan, error) {
	label := seg.Label
	if err := checkpoint(ctx, label, StageNarration); err != nil {
		return nil, err
	}

	path, err := FindNarration(in.NarrationDir, label)
	if err != nil {
		return nil, failure.Wrap(failure.Data, label, StageNarration, err)
	}
	var target time.Duration
	if err := call(ctx, in.CallTimeout, func(cctx context.Context) error {
		var perr error
		target, perr = u.d.Narration.NarrationDuration(cctx, path)
		return perr
	}); err != nil {
		return nil, failure.Wrap(failure.Transcoder, label, StageNarration, err)
	}
	if target <= 0 {
		return nil, failure.Wrap(failure.Data, label, StageNarration, fmt.Errorf("narration %s has no duration", path))
	}
	if est := seg.NarrationDuration; est > 0 && absDur(est-target) > narrationDrift {
		u.warn(label, fmt.Sprintf("narration is %.2fs, storyboard expected %.2fs", target.Seconds(), est.Seconds()))
	}
	for _, w := range storyboard.QualityWarnings(seg) {
		u.warn(label, w)
	}

	if err := checkpoint(ctx, label, StageResolve); err != nil {
		return nil, err
	}
	strategy := storyboard.Select(seg)
	bounds := storyboard.BoundsFor(seg.EditRules)
	res, err := anchors.Resolve(anchors.Input{
		Strategy:       strategy,
		Target:         target,
		SourceDuration: sourceDur,
		Bounds:         bounds,
	})
	if err != nil {
		return nil, failure.Wrap(failure.Data, label, StageResolve, err)
	}
	for _, w := range res.Warnings {
		u.warn(label, w)
	}
	u.emit(types.Event{Kind: types.EventStageDone, Segment: label, Stage: StageResolve, Fields: map[string]any{
		"strategy": strategy.Name(),
		"clips":    len(res.Specs),
		"covered":  types.TotalDuration(res.Specs).Seconds(),
		"target":   target.Seconds(),
	}})

	if err := checkpoint(ctx, label, StageFiller); err != nil {
		return nil, err
	}
	rng := segmentRand(in.Seed, index)
	var blocks []types.TimeBlock
	if len(seg.Defects) == 0 {
		blocks = seg.TimeBlocks
	}
	filled := filler.Fill(filler.Input{
		Specs:          res.Specs,
		Target:         target,
		Blocks:         blocks,
		SourceDuration: sourceDur,
		Bounds:         bounds,
		Rand:           rng,
	})
	added := len(filled) - len(res.Specs)
	if added > 0 {
		u.emit(types.Event{Kind: types.EventStageDone, Segment: label, Stage: StageFiller, Fields: map[string]any{
			"added": added,
		}})
	}

	fitted := matcher.Fit(filled, target)
	fillerKept := 0
	for _, c := range fitted {
		if c.Origin == types.OriginFiller {
			fillerKept++
		}
	}
	gaps := filler.AuditGaps(fitted, in.GapMin, in.GapMax)
	for _, g := range gaps {
		u.warn(label, fmt.Sprintf("cut %d: source gap %.2fs (from %.2fs to %.2fs)", g.Index, g.Gap.Seconds(), g.From.Seconds(), g.To.Seconds()))
	}

	return &segmentPlan{
		index:     index,
		seg:       seg,
		narration: path,
		target:    target,
		specs:     fitted,
		filler:    fillerKept,
		gaps:      gaps,
		rng:       rng,
	}, nil
}

func absDur(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
