package matcher

import (
	"time"

	"github.com/forPelevin/recapcut/internal/types"
)

// Tolerance is the accepted difference between the visual track and the narration.
const Tolerance = 100 * time.Millisecond

type Op int

const (
	None Op = iota
	Trim
	Pad
)

func (o Op) String() string {
	switch o {
	case Trim:
		return "trim"
	case Pad:
		return "pad"
	default:
		return "none"
	}
}

// Action says how far the visual track must be trimmed or padded.
type Action struct {
	Op     Op
	Amount time.Duration
}

// Decide compares a measured visual length against the narration target.
func Decide(vidLen, target, tol time.Duration) Action {
	if tol <= 0 {
		tol = Tolerance
	}
	diff := vidLen - target
	switch {
	case diff > tol:
		return Action{Op: Trim, Amount: diff}
	case -diff > tol:
		return Action{Op: Pad, Amount: -diff}
	default:
		return Action{Op: None}
	}
}

// Fit plans the cut list against target: clips that would start after the target is already
// covered are dropped and the last kept clip is shortened by the overshoot. No other clip
// changes length. A shortened clip left below Tolerance is dropped instead; the shortfall is
// then within tolerance.
func Fit(specs []types.ClipSpec, target time.Duration) []types.ClipSpec {
	if target <= 0 || len(specs) == 0 {
		return specs
	}
	var acc time.Duration
	n := 0
	for n < len(specs) && acc < target {
		acc += specs[n].Duration
		n++
	}
	out := append([]types.ClipSpec(nil), specs[:n]...)
	if over := acc - target; over > 0 {
		out = TrimLast(out, over)
	}
	return out
}

// TrimLast shortens the final clip by amount, dropping it when less than Tolerance remains.
func TrimLast(specs []types.ClipSpec, amount time.Duration) []types.ClipSpec {
	if len(specs) == 0 || amount <= 0 {
		return specs
	}
	out := append([]types.ClipSpec(nil), specs...)
	last := &out[len(out)-1]
	last.Duration -= amount
	if last.Duration < Tolerance {
		out = out[:len(out)-1]
	}
	return out
}
