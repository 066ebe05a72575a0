package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/forPelevin/recapcut/internal/domain/compose"
	"github.com/forPelevin/recapcut/internal/domain/effects"
	"github.com/forPelevin/recapcut/internal/domain/matcher"
	"github.com/forPelevin/recapcut/internal/failure"
	"github.com/forPelevin/recapcut/internal/types"
)

// Trim and pad are re-measured; this many rounds are tried before the mux clamp takes over.
const matchRounds = 3

type clip struct {
	spec    types.ClipSpec
	path    string
	filters []types.Filter
}

// assembled is a finished segment: visual track matched to the narration and muxed with it.
type assembled struct {
	piece compose.Piece
	clips int
}

// assemble runs extract, effects, concat, match and mux for one planned segment. Everything
// except the muxed result lives in a scratch directory removed on return.
func (u Usecase) assemble(ctx context.Context, in RenderInput, p *segmentPlan, finishedDir string) (assembled, error) {
	label := p.seg.Label
	scratch := filepath.Join(in.WorkDir, fmt.Sprintf("seg-%02d", p.index+1))
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return assembled{}, failure.Wrap(failure.Resource, label, StageExtract, err)
	}
	defer os.RemoveAll(scratch)

	a := assembler{u: u, in: in, p: p, label: label, scratch: scratch}

	if err := checkpoint(ctx, label, StageExtract); err != nil {
		return assembled{}, err
	}
	clips := make([]clip, len(p.specs))
	for i, spec := range p.specs {
		path := filepath.Join(scratch, fmt.Sprintf("cut-%03d.mp4", i))
		if err := a.cut(ctx, spec, path); err != nil {
			return assembled{}, err
		}
		clips[i] = clip{spec: spec, path: path}
	}
	u.emit(types.Event{Kind: types.EventStageDone, Segment: label, Stage: StageExtract, Fields: map[string]any{
		"clips": len(clips),
	}})

	if err := checkpoint(ctx, label, StageEffects); err != nil {
		return assembled{}, err
	}
	for i := range clips {
		clips[i].filters = effects.Select(p.rng, in.Treatments, clips[i].spec.Duration)
		out, err := a.treat(ctx, clips[i].path, clips[i].filters, fmt.Sprintf("fx-%03d.mp4", i))
		if err != nil {
			return assembled{}, err
		}
		clips[i].path = out
	}

	if err := checkpoint(ctx, label, StageConcat); err != nil {
		return assembled{}, err
	}
	visual := filepath.Join(scratch, "visual.mp4")
	if err := a.concat(ctx, clips, visual); err != nil {
		return assembled{}, err
	}

	if err := checkpoint(ctx, label, StageMatch); err != nil {
		return assembled{}, err
	}
	visual, clips, err := a.match(ctx, visual, clips)
	if err != nil {
		return assembled{}, err
	}

	if err := checkpoint(ctx, label, StageMux); err != nil {
		return assembled{}, err
	}
	out := filepath.Join(finishedDir, compose.SegmentFileName(p.index, label))
	if err := call(ctx, in.CallTimeout, func(cctx context.Context) error {
		return u.d.Transcoder.Mux(cctx, visual, p.narration, p.target, out)
	}); err != nil {
		return assembled{}, failure.Wrap(failure.Transcoder, label, StageMux, err)
	}
	var final time.Duration
	if err := call(ctx, in.CallTimeout, func(cctx context.Context) error {
		var perr error
		final, perr = u.d.Transcoder.ProbeDuration(cctx, out)
		return perr
	}); err != nil {
		return assembled{}, failure.Wrap(failure.Transcoder, label, StageMux, err)
	}
	if d := absDur(final - p.target); d > a.tolerance() {
		u.warn(label, fmt.Sprintf("final length %.3fs is %.3fs off the narration", final.Seconds(), d.Seconds()))
	}
	u.emit(types.Event{Kind: types.EventStageDone, Segment: label, Stage: StageMux, Fields: map[string]any{
		"duration": final.Seconds(),
		"target":   p.target.Seconds(),
	}})

	return assembled{
		piece: compose.Piece{Label: label, Path: out, Duration: final},
		clips: len(clips),
	}, nil
}

type assembler struct {
	u       Usecase
	in      RenderInput
	p       *segmentPlan
	label   string
	scratch string
	round   int
}

func (a *assembler) tolerance() time.Duration {
	if a.in.Tolerance > 0 {
		return a.in.Tolerance
	}
	return matcher.Tolerance
}

func (a *assembler) cut(ctx context.Context, spec types.ClipSpec, out string) error {
	err := call(ctx, a.in.CallTimeout, func(cctx context.Context) error {
		return a.u.d.Transcoder.Cut(cctx, a.in.Source, spec.SourceOffset, spec.Duration, out)
	})
	return failure.Wrap(failure.Transcoder, a.label, StageExtract, err)
}

// treat applies filters to in. Without filters the clip is used as is.
func (a *assembler) treat(ctx context.Context, in string, filters []types.Filter, name string) (string, error) {
	if len(filters) == 0 {
		return in, nil
	}
	out := filepath.Join(a.scratch, name)
	if err := call(ctx, a.in.CallTimeout, func(cctx context.Context) error {
		return a.u.d.Transcoder.ApplyFilters(cctx, in, filters, out)
	}); err != nil {
		return "", failure.Wrap(failure.Transcoder, a.label, StageEffects, err)
	}
	return out, nil
}

func (a *assembler) concat(ctx context.Context, clips []clip, out string) error {
	paths := make([]string, len(clips))
	for i, c := range clips {
		paths[i] = c.path
	}
	err := call(ctx, a.in.CallTimeout, func(cctx context.Context) error {
		return a.u.d.Transcoder.Concat(cctx, paths, out, true)
	})
	return failure.Wrap(failure.Transcoder, a.label, StageConcat, err)
}

func (a *assembler) probe(ctx context.Context, path string) (time.Duration, error) {
	var d time.Duration
	err := call(ctx, a.in.CallTimeout, func(cctx context.Context) error {
		var perr error
		d, perr = a.u.d.Transcoder.ProbeDuration(cctx, path)
		return perr
	})
	if err != nil {
		return 0, failure.Wrap(failure.Transcoder, a.label, StageMatch, err)
	}
	return d, nil
}

// match brings the visual track within tolerance of the narration. Overshoot is taken off
// the last clip only; a shortfall freezes the final frame.
func (a *assembler) match(ctx context.Context, visual string, clips []clip) (string, []clip, error) {
	tol := a.tolerance()
	for a.round = 0; a.round < matchRounds; a.round++ {
		vidLen, err := a.probe(ctx, visual)
		if err != nil {
			return "", nil, err
		}
		act := matcher.Decide(vidLen, a.p.target, tol)
		if act.Op == matcher.None {
			return visual, clips, nil
		}
		a.u.emit(types.Event{Kind: types.EventStageDone, Segment: a.label, Stage: StageMatch, Fields: map[string]any{
			"op":       act.Op.String(),
			"amount":   act.Amount.Seconds(),
			"measured": vidLen.Seconds(),
		}})
		switch act.Op {
		case matcher.Trim:
			visual, clips, err = a.trim(ctx, clips, act.Amount)
		case matcher.Pad:
			visual, err = a.pad(ctx, visual, act.Amount)
		}
		if err != nil {
			return "", nil, err
		}
	}
	return visual, clips, nil
}

func (a *assembler) trim(ctx context.Context, clips []clip, amount time.Duration) (string, []clip, error) {
	specs := make([]types.ClipSpec, len(clips))
	for i, c := range clips {
		specs[i] = c.spec
	}
	trimmed := matcher.TrimLast(specs, amount)
	out := append([]clip(nil), clips[:len(trimmed)]...)
	if len(trimmed) == len(clips) && len(out) > 0 {
		last := &out[len(out)-1]
		last.spec = trimmed[len(trimmed)-1]
		raw := filepath.Join(a.scratch, fmt.Sprintf("cut-%03d-r%d.mp4", len(out)-1, a.round))
		if err := a.cut(ctx, last.spec, raw); err != nil {
			return "", nil, err
		}
		last.filters = respan(last.filters, last.spec.Duration)
		path, err := a.treat(ctx, raw, last.filters, fmt.Sprintf("fx-%03d-r%d.mp4", len(out)-1, a.round))
		if err != nil {
			return "", nil, err
		}
		last.path = path
	}
	if len(out) == 0 {
		return "", nil, failure.Wrap(failure.Data, a.label, StageMatch, errors.New("nothing left after trimming"))
	}
	visual := filepath.Join(a.scratch, fmt.Sprintf("visual-r%d.mp4", a.round))
	if err := a.concat(ctx, out, visual); err != nil {
		return "", nil, err
	}
	return visual, out, nil
}

// pad extends visual by amount. A failed freeze filter falls back to a still image of the
// last frame appended as a video-only tail.
func (a *assembler) pad(ctx context.Context, visual string, amount time.Duration) (string, error) {
	out := filepath.Join(a.scratch, fmt.Sprintf("padded-r%d.mp4", a.round))
	freeze := []types.Filter{{Kind: types.FilterFreezeTail, Span: amount}}
	err := call(ctx, a.in.CallTimeout, func(cctx context.Context) error {
		return a.u.d.Transcoder.ApplyFilters(cctx, visual, freeze, out)
	})
	if err == nil {
		return out, nil
	}
	a.u.warn(a.label, fmt.Sprintf("freeze padding failed, appending a still frame: %v", err))

	frame := filepath.Join(a.scratch, fmt.Sprintf("last-r%d.png", a.round))
	still := filepath.Join(a.scratch, fmt.Sprintf("still-r%d.mp4", a.round))
	if err := call(ctx, a.in.CallTimeout, func(cctx context.Context) error {
		if err := a.u.d.Transcoder.ExtractLastFrame(cctx, visual, frame); err != nil {
			return err
		}
		if err := a.u.d.Transcoder.StillClip(cctx, frame, amount, still); err != nil {
			return err
		}
		return a.u.d.Transcoder.Concat(cctx, []string{visual, still}, out, true)
	}); err != nil {
		return "", failure.Wrap(failure.Transcoder, a.label, StageMatch, err)
	}
	return out, nil
}

// respan updates time-dependent filters for a clip that changed length.
func respan(filters []types.Filter, clipLen time.Duration) []types.Filter {
	out := append([]types.Filter(nil), filters...)
	for i := range out {
		if out[i].Kind == types.FilterPanZoom {
			out[i].Span = clipLen
		}
	}
	return out
}
