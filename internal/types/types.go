package types

import (
	"time"

	"github.com/samber/lo"
)

type Transcript struct {
	Segments []Cue `json:"segments"`
}

// Cue is one ASR segment of the source audio.
type Cue struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Word  string  `json:"word"`
}

type Storyboard struct {
	Title         string
	TotalDuration time.Duration
	Segments      []Segment
}

// Segment is one narrative beat of the recap. Defects collects problems found while
// decoding it; a segment with defects is unprocessable.
type Segment struct {
	Label             string
	NarrationScript   string
	NarrationDuration time.Duration
	TimeBlocks        []TimeBlock
	Beats             []Beat
	EditRules         EditRules
	Defects           []string
}

type TimeBlock struct {
	Start  time.Duration
	End    time.Duration
	Reason string
}

func (b TimeBlock) Len() time.Duration { return b.End - b.Start }

// Beat anchors one intended cut. BlockIndex is -1 when the document omits it.
type Beat struct {
	TimelineOffset time.Duration
	BlockIndex     int
	SourceOffset   time.Duration
	SourceLength   time.Duration
	Note           string
}

type EditRules struct {
	CutMin time.Duration
	CutMax time.Duration
}

type ClipOrigin string

const (
	OriginBeat   ClipOrigin = "beat"
	OriginBlock  ClipOrigin = "block"
	OriginFiller ClipOrigin = "filler"
)

// ClipSpec describes one cut to extract from the source video.
type ClipSpec struct {
	SourceOffset time.Duration
	Duration     time.Duration
	Origin       ClipOrigin
}

func (c ClipSpec) End() time.Duration { return c.SourceOffset + c.Duration }

// GapRecord is the spacing between two consecutive source cuts. Index is the position of
// the later cut; Gap is negative when the cuts overlap.
type GapRecord struct {
	Index int
	From  time.Duration
	To    time.Duration
	Gap   time.Duration
}

type FilterKind string

const (
	FilterColor      FilterKind = "color"
	FilterZoom       FilterKind = "zoom"
	FilterPanZoom    FilterKind = "panzoom"
	FilterHFlip      FilterKind = "hflip"
	FilterFreezeTail FilterKind = "freeze_tail"
)

// Filter is a typed visual treatment; the transcoder renders it into its own syntax.
type Filter struct {
	Kind       FilterKind
	Contrast   float64
	Saturation float64
	Zoom       float64
	// PanDir is -1 (right to left) or +1 (left to right).
	PanDir int
	// Span is the clip length for time-dependent filters, or the freeze length for FilterFreezeTail.
	Span time.Duration
}

// CompositeJob describes the whole-output pass over one assembled file.
type CompositeJob struct {
	Input         string
	NarrationGain float64
	Music         string
	MusicGain     float64
	// MusicOffset and MusicWindow restrict the music to one time window. A zero window loops
	// the music under the whole input.
	MusicOffset time.Duration
	MusicWindow time.Duration
	// Watermark is an image overlaid in the WatermarkPos corner; empty draws none.
	Watermark    string
	WatermarkPos string
	LetterboxPx  int
}

type EventKind string

const (
	EventRunStarted     EventKind = "run_started"
	EventSegmentStarted EventKind = "segment_started"
	EventStageDone      EventKind = "stage_done"
	EventSegmentDone    EventKind = "segment_done"
	EventSegmentFailed  EventKind = "segment_failed"
	EventWarning        EventKind = "warning"
	EventRunDone        EventKind = "run_done"
)

type Event struct {
	Kind    EventKind
	Segment string
	Stage   string
	Message string
	Fields  map[string]any
}

// TotalDuration sums the durations of specs.
func TotalDuration(specs []ClipSpec) time.Duration {
	return lo.SumBy(specs, func(c ClipSpec) time.Duration { return c.Duration })
}
