package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/forPelevin/recapcut/internal/domain/compose"
	"github.com/forPelevin/recapcut/internal/domain/effects"
	"github.com/forPelevin/recapcut/internal/failure"
	"github.com/forPelevin/recapcut/internal/types"
)

// RenderInput is everything one render run needs. Paths are used as given.
type RenderInput struct {
	RunID        string
	Storyboard   types.Storyboard
	Source       string
	NarrationDir string
	// Selection limits the run to the named segments. Named segments must all complete.
	Selection  []string
	Output     compose.Settings
	Treatments []effects.Treatment

	Concurrency int
	CallTimeout time.Duration
	Seed        uint64
	Tolerance   time.Duration
	GapMin      time.Duration
	GapMax      time.Duration

	// WorkDir is scratch space owned by the run and removed when it ends.
	WorkDir string
	OutDir  string
}

var errAborted = errors.New("run aborted")

type segmentState struct {
	index int
	seg   types.Segment
	plan  *segmentPlan
	out   *assembled
	err   error
}

// Render assembles the selected segments and composes the final artifacts. The returned
// report is always filled in; err is non-nil unless the run completed.
func (u Usecase) Render(ctx context.Context, in RenderInput) (*types.RunReport, error) {
	report := &types.RunReport{
		RunID:     in.RunID,
		Title:     in.Storyboard.Title,
		Mode:      string(in.Output.Mode),
		StartedAt: time.Now(),
	}
	if report.Mode == "" {
		report.Mode = string(compose.Concat)
	}

	states, err := u.selectSegments(in)
	if err != nil {
		return u.finish(report, nil, types.RunFailed, err)
	}
	u.emit(types.Event{Kind: types.EventRunStarted, Message: in.Storyboard.Title, Fields: map[string]any{
		"run_id":   in.RunID,
		"segments": len(states),
		"mode":     report.Mode,
	}})

	if err := os.MkdirAll(in.WorkDir, 0o755); err != nil {
		return u.finish(report, states, types.RunFailed, failure.Wrap(failure.Resource, "", "workdir", err))
	}
	defer os.RemoveAll(in.WorkDir)

	var sourceDur time.Duration
	if err := call(ctx, in.CallTimeout, func(cctx context.Context) error {
		var perr error
		sourceDur, perr = u.d.Transcoder.ProbeDuration(cctx, in.Source)
		return perr
	}); err != nil {
		return u.finish(report, states, types.RunFailed, failure.Wrap(failure.Transcoder, "", "probe source", err))
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	ab := &aborter{cancel: cancel}
	explicit := len(in.Selection) > 0

	u.forEach(in.Concurrency, states, func(st *segmentState) {
		st.plan, st.err = u.plan(runCtx, in, st.index, st.seg, sourceDur)
		if st.err != nil && isFatal(st.err, explicit) {
			ab.abort(st.err)
		}
	})

	finishedDir := filepath.Join(in.WorkDir, "finished")
	if err := os.MkdirAll(finishedDir, 0o755); err != nil {
		return u.finish(report, states, types.RunFailed, failure.Wrap(failure.Resource, "", "workdir", err))
	}
	u.forEach(in.Concurrency, states, func(st *segmentState) {
		if st.plan == nil || st.err != nil {
			return
		}
		if err := checkpoint(runCtx, st.seg.Label, StageExtract); err != nil {
			st.err = err
			return
		}
		u.emit(types.Event{Kind: types.EventSegmentStarted, Segment: st.seg.Label, Fields: map[string]any{
			"index":  st.index,
			"clips":  len(st.plan.specs),
			"target": st.plan.target.Seconds(),
		}})
		out, err := u.assemble(runCtx, in, st.plan, finishedDir)
		if err != nil {
			st.err = err
			if isFatal(err, explicit) {
				ab.abort(err)
			}
			return
		}
		st.out = &out
		u.emit(types.Event{Kind: types.EventSegmentDone, Segment: st.seg.Label, Fields: map[string]any{
			"duration": out.piece.Duration.Seconds(),
			"target":   st.plan.target.Seconds(),
			"clips":    out.clips,
		}})
	})

	if err := ab.err(); err != nil {
		return u.finish(report, states, types.RunFailed, err)
	}
	if ctx.Err() != nil {
		return u.finish(report, states, types.RunStopped, failure.Wrap(failure.Cancelled, "", "", failure.ErrStopped))
	}

	pieces := lo.FilterMap(states, func(st *segmentState, _ int) (compose.Piece, bool) {
		if st.out == nil {
			return compose.Piece{}, false
		}
		return st.out.piece, true
	})
	if len(pieces) == 0 {
		return u.finish(report, states, types.RunFailed, errors.New("no segment could be assembled"))
	}

	settings := in.Output
	if settings.MusicPath != "" && settings.MusicSegment != "" &&
		!compose.HasSegment(lo.Map(pieces, func(p compose.Piece, _ int) string { return p.Label }), settings.MusicSegment) {
		u.warn(settings.MusicSegment, "music segment was skipped; rendering without background music")
		settings.MusicPath = ""
	}
	outputs, err := u.compose(ctx, in, settings, pieces)
	report.Outputs = outputs
	if err != nil {
		status := types.RunFailed
		if failure.IsCancelled(err) {
			status = types.RunStopped
		}
		return u.finish(report, states, status, err)
	}
	if in.Output.Mode == compose.PerSegment {
		for i, st := range lo.Filter(states, func(st *segmentState, _ int) bool { return st.out != nil }) {
			st.out.piece.Path = outputs[i]
		}
	}
	return u.finish(report, states, types.RunCompleted, nil)
}

func (u Usecase) selectSegments(in RenderInput) ([]*segmentState, error) {
	segs := in.Storyboard.Segments
	if len(segs) == 0 {
		return nil, failure.Dataf("", "storyboard has no segments")
	}
	labels := lo.Map(segs, func(s types.Segment, _ int) string { return s.Label })
	for _, want := range in.Selection {
		if !compose.HasSegment(labels, want) {
			return nil, failure.Dataf(want, "selected segment is not in the storyboard")
		}
	}
	var states []*segmentState
	for i, s := range segs {
		if len(in.Selection) > 0 && !compose.HasSegment(in.Selection, s.Label) {
			continue
		}
		states = append(states, &segmentState{index: i, seg: s})
	}
	if m := in.Output.MusicSegment; in.Output.MusicPath != "" && m != "" {
		selected := lo.Map(states, func(st *segmentState, _ int) string { return st.seg.Label })
		if !compose.HasSegment(selected, m) {
			return nil, failure.Dataf(m, "music segment is not part of the output")
		}
	}
	return states, nil
}

// forEach runs fn over states on a bounded pool. fn records its outcome on the state.
func (u Usecase) forEach(limit int, states []*segmentState, fn func(*segmentState)) {
	if limit <= 0 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for _, st := range states {
		g.Go(func() error {
			fn(st)
			return nil
		})
	}
	_ = g.Wait()
}

// compose writes the final artifacts into OutDir. Outputs already written are removed when
// the pass fails or is stopped.
func (u Usecase) compose(ctx context.Context, in RenderInput, s compose.Settings, pieces []compose.Piece) ([]string, error) {
	plan, err := compose.Plan(s, pieces)
	if err != nil {
		return nil, failure.Wrap(failure.Data, "", StageCompose, err)
	}
	if err := os.MkdirAll(in.OutDir, 0o755); err != nil {
		return nil, failure.Wrap(failure.Resource, "", StageCompose, err)
	}
	var written []string
	cleanup := func() {
		for _, p := range written {
			os.Remove(p)
		}
	}
	for i, o := range plan {
		if err := checkpoint(ctx, "", StageCompose); err != nil {
			cleanup()
			return nil, err
		}
		input := o.Inputs[0]
		if len(o.Inputs) > 1 {
			input = filepath.Join(in.WorkDir, fmt.Sprintf("joined-%02d.mp4", i))
			if err := call(ctx, in.CallTimeout, func(cctx context.Context) error {
				return u.d.Transcoder.Concat(cctx, o.Inputs, input, false)
			}); err != nil {
				cleanup()
				return nil, failure.Wrap(failure.Transcoder, "", StageCompose, err)
			}
		}
		job := o.Job
		job.Input = input
		dst := filepath.Join(in.OutDir, o.Name)
		if err := call(ctx, in.CallTimeout, func(cctx context.Context) error {
			return u.d.Transcoder.Composite(cctx, job, dst)
		}); err != nil {
			os.Remove(dst)
			cleanup()
			return nil, failure.Wrap(failure.Transcoder, "", StageCompose, err)
		}
		written = append(written, dst)
		u.emit(types.Event{Kind: types.EventStageDone, Stage: StageCompose, Message: o.Name, Fields: map[string]any{
			"duration": o.Duration.Seconds(),
			"inputs":   len(o.Inputs),
		}})
	}
	if err := checkpoint(ctx, "", StageCompose); err != nil {
		cleanup()
		return nil, err
	}
	return written, nil
}

// finish fills in the per-segment results and the run status.
func (u Usecase) finish(report *types.RunReport, states []*segmentState, status string, runErr error) (*types.RunReport, error) {
	stopped := status == types.RunStopped
	for _, st := range states {
		res := types.SegmentResult{Index: st.index, Label: st.seg.Label}
		if st.plan != nil {
			res.TargetSec = st.plan.target.Seconds()
			res.Clips = len(st.plan.specs)
			res.FillerClips = st.plan.filler
			res.GapWarnings = lo.Map(st.plan.gaps, func(g types.GapRecord, _ int) types.GapWarning {
				return types.NewGapWarning(g)
			})
		}
		switch {
		case st.out != nil && status == types.RunCompleted:
			res.Status = types.SegmentProcessed
			res.DurationSec = st.out.piece.Duration.Seconds()
			res.Clips = st.out.clips
			if report.Mode == string(compose.PerSegment) {
				res.File = st.out.piece.Path
			}
		case st.out != nil:
			// Assembled, but the run produced no artifact for it.
			res.DurationSec = st.out.piece.Duration.Seconds()
			res.Status = types.SegmentProcessed
			if stopped {
				res.Status = types.SegmentStopped
			}
		case st.err == nil:
			res.Status = types.SegmentSkipped
			res.Message = errAborted.Error()
			if stopped {
				res.Status = types.SegmentStopped
			}
		default:
			res.ErrorKind = string(failure.KindOf(st.err))
			res.Stage = failure.StageOf(st.err)
			res.Message = st.err.Error()
			switch failure.KindOf(st.err) {
			case failure.Cancelled:
				if stopped {
					res.Status = types.SegmentStopped
				} else {
					res.Status = types.SegmentSkipped
					res.Message = errAborted.Error()
				}
			case failure.Data:
				res.Status = types.SegmentSkipped
				if status == types.RunFailed && failure.KindOf(runErr) == failure.Data && errors.Is(runErr, st.err) {
					res.Status = types.SegmentFailed
				}
			default:
				res.Status = types.SegmentFailed
			}
			if res.Status == types.SegmentFailed {
				u.emit(types.Event{Kind: types.EventSegmentFailed, Segment: st.seg.Label, Stage: res.Stage, Message: res.Message})
			} else if res.Status == types.SegmentSkipped && res.ErrorKind == string(failure.Data) {
				u.warn(st.seg.Label, "segment skipped: "+res.Message)
			}
		}
		report.Segments = append(report.Segments, res)
	}

	report.Status = status
	if runErr != nil {
		report.Error = runErr.Error()
	}
	report.FinishedAt = time.Now()
	report.Finalize()
	u.emit(types.Event{Kind: types.EventRunDone, Message: status, Fields: map[string]any{
		"processed": report.Summary.Processed,
		"skipped":   report.Summary.Skipped,
		"failed":    report.Summary.Failed,
		"stopped":   report.Summary.Stopped,
		"outputs":   len(report.Outputs),
	}})
	if status == types.RunCompleted {
		return report, nil
	}
	return report, runErr
}

// isFatal reports whether a segment error ends the whole run. Data errors only do so for
// segments the user asked for by name.
func isFatal(err error, explicit bool) bool {
	switch failure.KindOf(err) {
	case failure.Cancelled:
		return false
	case failure.Data:
		return explicit
	default:
		return true
	}
}

// aborter keeps the first fatal error and stops the remaining segments.
type aborter struct {
	mu     sync.Mutex
	first  error
	cancel context.CancelCauseFunc
}

func (a *aborter) abort(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.first == nil {
		a.first = err
		a.cancel(errAborted)
	}
}

func (a *aborter) err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.first
}
