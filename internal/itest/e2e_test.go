//go:build integration

package itest

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/forPelevin/recapcut/internal/pipeline"
	"github.com/forPelevin/recapcut/internal/types"
)

func renderFixture(t *testing.T, mode string) (*types.RunReport, string) {
	t.Helper()
	requireFFmpeg(t)

	tmp := t.TempDir()
	src := filepath.Join(tmp, "film.mp4")
	makeSource(t, src, 150)
	narr := filepath.Join(tmp, "narration")
	if err := os.MkdirAll(narr, 0o755); err != nil {
		t.Fatalf("mkdir narration: %v", err)
	}
	makeNarration(t, filepath.Join(narr, "intro.wav"), 12)
	makeNarration(t, filepath.Join(narr, "climax.mp3"), 7.3)
	sb := filepath.Join(tmp, "storyboard.json")
	writeFile(t, sb, fixtureStoryboard)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	outDir := filepath.Join(tmp, "out")
	report, err := pipeline.Render(ctx, pipeline.Config{
		StoryboardPath: sb,
		Source:         src,
		NarrationDir:   narr,
		OutDir:         outDir,
		CacheDir:       filepath.Join(tmp, "cache"),
		DBPath:         filepath.Join(tmp, "history.db"),
		Mode:           mode,
		NarrationGain:  1,
		MusicGain:      0.1,
		LetterboxPx:    60,
		Effects:        []string{"color", "motion"},
		Concurrency:    2,
		Seed:           7,
		GapMax:         10 * time.Minute,
		FFmpegPath:     "ffmpeg",
		FFprobePath:    "ffprobe",
	})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	return report, tmp
}

func TestE2E_ConcatMatchesNarration(t *testing.T) {
	report, tmp := renderFixture(t, "concat")
	if report.Status != types.RunCompleted || len(report.Outputs) != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	for _, seg := range report.Segments {
		if math.Abs(seg.DurationSec-seg.TargetSec) > 0.1 {
			t.Fatalf("segment %s: %.3fs vs narration %.3fs", seg.Label, seg.DurationSec, seg.TargetSec)
		}
	}

	got, err := probeMedia(report.Outputs[0])
	if err != nil {
		t.Fatalf("probe output: %v", err)
	}
	// Container rounding across two segments.
	if math.Abs(got.Seconds-19.3) > 0.3 {
		t.Fatalf("recap is %.3fs, want about 19.3s", got.Seconds)
	}
	if !got.HasAudio {
		t.Fatalf("recap has no narration track")
	}

	if entries, _ := os.ReadDir(filepath.Join(tmp, "cache", "runs")); len(entries) != 0 {
		t.Fatalf("work dir left behind: %d entries", len(entries))
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(report.Outputs[0]), "report.json")); err != nil {
		t.Fatalf("missing report: %v", err)
	}
}

func TestE2E_PerSegmentOutputs(t *testing.T) {
	report, _ := renderFixture(t, "per_segment")
	if len(report.Outputs) != 2 {
		t.Fatalf("expected 2 outputs, got %v", report.Outputs)
	}
	for i, want := range []float64{12, 7.3} {
		got, err := probeMedia(report.Outputs[i])
		if err != nil {
			t.Fatalf("probe %s: %v", report.Outputs[i], err)
		}
		if math.Abs(got.Seconds-want) > 0.2 {
			t.Fatalf("%s is %.3fs, want %.1fs", filepath.Base(report.Outputs[i]), got.Seconds, want)
		}
	}
}
