package compose

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/forPelevin/recapcut/internal/domain/storyboard"
	"github.com/forPelevin/recapcut/internal/types"
)

type Mode string

const (
	// Concat joins all segments into one file and runs the whole-output pass once.
	Concat Mode = "concat"
	// PerSegment runs the whole-output pass on every segment and emits one file each.
	PerSegment Mode = "per_segment"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return Concat, nil
	case Concat, PerSegment:
		return m, nil
	default:
		return "", fmt.Errorf("unknown output mode %q (want concat or per_segment)", s)
	}
}

const (
	DefaultNarrationGain = 1.0
	DefaultMusicGain     = 0.1
	DefaultLetterboxPx   = 60
	DefaultWatermarkPos  = "top_left"
)

// WatermarkPositions are the corners a watermark can be placed in.
var WatermarkPositions = []string{"top_left", "top_right", "bottom_left", "bottom_right"}

func ParseWatermarkPos(s string) (string, error) {
	pos := strings.ToLower(strings.TrimSpace(s))
	if pos == "" {
		return DefaultWatermarkPos, nil
	}
	if !lo.Contains(WatermarkPositions, pos) {
		return "", fmt.Errorf("unknown watermark position %q (want one of %s)", s, strings.Join(WatermarkPositions, ", "))
	}
	return pos, nil
}

type Settings struct {
	Mode          Mode
	NarrationGain float64
	MusicPath     string
	MusicGain     float64
	// MusicSegment restricts the music to one segment's time window; empty loops it under
	// the whole output.
	MusicSegment  string
	WatermarkPath string
	WatermarkPos  string
	LetterboxPx   int
}

// Piece is one finished segment in storyboard order.
type Piece struct {
	Label    string
	Path     string
	Duration time.Duration
}

// Output is one artifact to produce: Inputs are stream-copied together and Job runs over the
// result. Job.Input is left for the caller.
type Output struct {
	Name     string
	Inputs   []string
	Duration time.Duration
	Job      types.CompositeJob
}

// Plan lays out the final artifacts.
func Plan(s Settings, pieces []Piece) ([]Output, error) {
	if len(pieces) == 0 {
		return nil, fmt.Errorf("nothing to compose")
	}
	base := types.CompositeJob{
		NarrationGain: s.NarrationGain,
		LetterboxPx:   s.LetterboxPx,
	}
	if s.WatermarkPath != "" {
		base.Watermark = s.WatermarkPath
		base.WatermarkPos = s.WatermarkPos
		if base.WatermarkPos == "" {
			base.WatermarkPos = DefaultWatermarkPos
		}
	}
	if s.MusicPath != "" {
		base.Music = s.MusicPath
		base.MusicGain = s.MusicGain
	}

	target := -1
	if s.MusicPath != "" && s.MusicSegment != "" {
		_, idx, ok := lo.FindIndexOf(pieces, func(p Piece) bool { return sameLabel(p.Label, s.MusicSegment) })
		if !ok {
			return nil, fmt.Errorf("music segment %q is not part of the output", s.MusicSegment)
		}
		target = idx
	}

	switch s.Mode {
	case PerSegment:
		out := make([]Output, 0, len(pieces))
		for i, p := range pieces {
			job := base
			if target >= 0 && i != target {
				job.Music, job.MusicGain = "", 0
			}
			out = append(out, Output{
				Name:     SegmentFileName(i, p.Label),
				Inputs:   []string{p.Path},
				Duration: p.Duration,
				Job:      job,
			})
		}
		return out, nil
	case Concat, "":
		job := base
		if target >= 0 {
			job.MusicOffset = lo.SumBy(pieces[:target], func(p Piece) time.Duration { return p.Duration })
			job.MusicWindow = pieces[target].Duration
		}
		return []Output{{
			Name:     RecapFileName,
			Inputs:   lo.Map(pieces, func(p Piece, _ int) string { return p.Path }),
			Duration: lo.SumBy(pieces, func(p Piece) time.Duration { return p.Duration }),
			Job:      job,
		}}, nil
	default:
		return nil, fmt.Errorf("unknown output mode %q", s.Mode)
	}
}

const RecapFileName = "recap.mp4"

func SegmentFileName(i int, label string) string {
	slug := storyboard.Slug(label)
	if slug == "" {
		slug = "segment"
	}
	return fmt.Sprintf("%02d-%s.mp4", i+1, slug)
}

func sameLabel(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) ||
		storyboard.Slug(a) == storyboard.Slug(b)
}

// HasSegment reports whether label names one of labels, using the same matching as Plan.
func HasSegment(labels []string, label string) bool {
	return lo.ContainsBy(labels, func(l string) bool { return sameLabel(l, label) })
}
