package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/forPelevin/recapcut/internal/failure"
	"github.com/forPelevin/recapcut/internal/ports"
	"github.com/forPelevin/recapcut/internal/types"
)

type Deps struct {
	Transcoder ports.Transcoder
	Narration  ports.NarrationProber
	ASR        ports.ASR
	Producer   ports.StoryboardProducer
	Observer   ports.Observer
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase { return Usecase{d: d} }

const DefaultCallTimeout = 10 * time.Minute

func (u Usecase) emit(ev types.Event) {
	if u.d.Observer != nil {
		u.d.Observer.OnEvent(ev)
	}
}

func (u Usecase) warn(segment, msg string) {
	u.emit(types.Event{Kind: types.EventWarning, Segment: segment, Message: msg})
}

// call runs one transcoder operation. A started operation is not interrupted by a stop
// request; only its own timeout ends it early.
func call(ctx context.Context, timeout time.Duration, op func(context.Context) error) error {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	err := op(cctx)
	if err != nil && errors.Is(cctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("timed out after %s: %w", timeout, err)
	}
	return err
}

// checkpoint reports a stop request observed between stages.
func checkpoint(ctx context.Context, segment, stage string) error {
	if ctx.Err() != nil {
		return failure.Wrap(failure.Cancelled, segment, stage, failure.ErrStopped)
	}
	return nil
}
