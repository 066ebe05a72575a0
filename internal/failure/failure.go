package failure

import (
	"context"
	"errors"
	"fmt"
)

type Kind string

const (
	// Data marks malformed or missing storyboard material; the segment cannot be processed.
	Data Kind = "data"
	// Transcoder marks a failed or timed out external media command.
	Transcoder Kind = "transcoder"
	// Resource marks scratch directory or disk failures.
	Resource Kind = "resource"
	// Cancelled marks a cooperative stop.
	Cancelled Kind = "cancelled"
)

// ErrStopped is returned when a stop was observed between pipeline stages.
var ErrStopped = errors.New("processing stopped")

// Error attaches the failure kind and the segment/stage context to an underlying error.
type Error struct {
	Kind    Kind
	Segment string
	Stage   string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Segment != "" && e.Stage != "":
		return fmt.Sprintf("segment %q: %s: %v", e.Segment, e.Stage, e.Err)
	case e.Segment != "":
		return fmt.Sprintf("segment %q: %v", e.Segment, e.Err)
	case e.Stage != "":
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *Error) Unwrap() error { return e.Err }

func Wrap(kind Kind, segment, stage string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Segment: segment, Stage: stage, Err: err}
}

func Dataf(segment, format string, args ...any) error {
	return &Error{Kind: Data, Segment: segment, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the kind of err. Context cancellation and ErrStopped count as Cancelled;
// unclassified errors report "".
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if IsCancelled(err) {
		return Cancelled
	}
	return ""
}

func IsCancelled(err error) bool {
	if errors.Is(err, ErrStopped) || errors.Is(err, context.Canceled) {
		return true
	}
	var e *Error
	return errors.As(err, &e) && e.Kind == Cancelled
}

// StageOf returns the stage recorded on err, if any.
func StageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Stage
	}
	return ""
}
