package logging

import (
	"log/slog"
	"sort"

	"github.com/forPelevin/recapcut/internal/types"
)

// Observer writes pipeline events as structured log records.
type Observer struct {
	log *slog.Logger
}

// NewObserver logs to l, or to the default logger when l is nil.
func NewObserver(l *slog.Logger) *Observer {
	if l == nil {
		l = slog.Default()
	}
	return &Observer{log: l}
}

func (o *Observer) OnEvent(ev types.Event) {
	attrs := []any{"event", string(ev.Kind)}
	if ev.Segment != "" {
		attrs = append(attrs, "segment", ev.Segment)
	}
	if ev.Stage != "" {
		attrs = append(attrs, "stage", ev.Stage)
	}
	keys := make([]string, 0, len(ev.Fields))
	for k := range ev.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, k, ev.Fields[k])
	}

	msg := ev.Message
	if msg == "" {
		msg = string(ev.Kind)
	}
	switch ev.Kind {
	case types.EventSegmentFailed:
		o.log.Error(msg, attrs...)
	case types.EventWarning:
		o.log.Warn(msg, attrs...)
	case types.EventStageDone:
		o.log.Debug(msg, attrs...)
	default:
		o.log.Info(msg, attrs...)
	}
}
