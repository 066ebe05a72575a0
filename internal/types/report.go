package types

import "time"

const (
	RunCompleted = "completed"
	RunFailed    = "failed"
	RunStopped   = "stopped"
)

const (
	SegmentProcessed = "processed"
	SegmentSkipped   = "skipped"
	SegmentFailed    = "failed"
	SegmentStopped   = "stopped"
)

type RunReport struct {
	RunID      string          `json:"run_id"`
	Title      string          `json:"title"`
	Mode       string          `json:"mode"`
	Status     string          `json:"status"`
	Error      string          `json:"error,omitempty"`
	Outputs    []string        `json:"outputs"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Summary    ReportSummary   `json:"summary"`
	Segments   []SegmentResult `json:"segments"`
}

type ReportSummary struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Stopped   int `json:"stopped"`
}

type SegmentResult struct {
	Index       int          `json:"index"`
	Label       string       `json:"label"`
	Status      string       `json:"status"`
	ErrorKind   string       `json:"error_kind,omitempty"`
	Stage       string       `json:"stage,omitempty"`
	Message     string       `json:"message,omitempty"`
	File        string       `json:"file,omitempty"`
	DurationSec float64      `json:"duration_sec"`
	TargetSec   float64      `json:"target_sec"`
	Clips       int          `json:"clips"`
	FillerClips int          `json:"filler_clips"`
	GapWarnings []GapWarning `json:"gap_warnings,omitempty"`
}

type GapWarning struct {
	Index   int     `json:"index"`
	FromSec float64 `json:"from_sec"`
	ToSec   float64 `json:"to_sec"`
	GapSec  float64 `json:"gap_sec"`
}

func NewGapWarning(g GapRecord) GapWarning {
	return GapWarning{Index: g.Index, FromSec: g.From.Seconds(), ToSec: g.To.Seconds(), GapSec: g.Gap.Seconds()}
}

// Finalize normalizes timestamps and derives the summary from the segment results.
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	var s ReportSummary
	for _, seg := range r.Segments {
		switch seg.Status {
		case SegmentProcessed:
			s.Processed++
		case SegmentSkipped:
			s.Skipped++
		case SegmentFailed:
			s.Failed++
		case SegmentStopped:
			s.Stopped++
		}
	}
	r.Summary = s
}
