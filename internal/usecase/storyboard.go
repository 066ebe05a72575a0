package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/forPelevin/recapcut/internal/domain/storyboard"
	"github.com/forPelevin/recapcut/internal/domain/subtitles"
	"github.com/forPelevin/recapcut/internal/types"
)

type StoryboardInput struct {
	Source string
	// SRTPath supplies subtitles directly and skips transcription.
	SRTPath     string
	Language    string
	CacheDir    string
	OutPath     string
	CallTimeout time.Duration
}

type StoryboardResult struct {
	Storyboard types.Storyboard
	Path       string
}

// Storyboard asks the producer for a storyboard of the source film and writes it to OutPath
// once it parses.
func (u Usecase) Storyboard(ctx context.Context, in StoryboardInput) (StoryboardResult, error) {
	if err := os.MkdirAll(in.CacheDir, 0o755); err != nil {
		return StoryboardResult{}, err
	}

	var length time.Duration
	if err := call(ctx, in.CallTimeout, func(cctx context.Context) error {
		var perr error
		length, perr = u.d.Transcoder.ProbeDuration(cctx, in.Source)
		return perr
	}); err != nil {
		return StoryboardResult{}, fmt.Errorf("probe source: %w", err)
	}

	srt, err := u.subtitles(ctx, in)
	if err != nil {
		return StoryboardResult{}, err
	}
	if strings.TrimSpace(srt) == "" {
		return StoryboardResult{}, fmt.Errorf("no speech found in %s", in.Source)
	}
	if err := writeFile(filepath.Join(in.CacheDir, "source.srt"), []byte(srt)); err != nil {
		return StoryboardResult{}, err
	}

	prompt, err := storyboard.BuildPrompt(storyboard.PromptInput{
		FilmMinutes: int(length.Round(time.Minute) / time.Minute),
		Language:    in.Language,
		SRT:         srt,
	})
	if err != nil {
		return StoryboardResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return StoryboardResult{}, err
	}

	raw, err := u.d.Producer.Produce(ctx, prompt)
	if err != nil {
		return StoryboardResult{}, fmt.Errorf("produce storyboard: %w", err)
	}
	doc := []byte(storyboard.StripFence(string(raw)))
	sb, err := storyboard.Parse(doc)
	if err != nil {
		return StoryboardResult{}, fmt.Errorf("producer returned an unusable storyboard: %w", err)
	}
	for _, seg := range sb.Segments {
		for _, w := range storyboard.QualityWarnings(seg) {
			u.warn(seg.Label, w)
		}
	}
	if err := os.MkdirAll(filepath.Dir(in.OutPath), 0o755); err != nil {
		return StoryboardResult{}, err
	}
	if err := writeFile(in.OutPath, doc); err != nil {
		return StoryboardResult{}, err
	}
	u.emit(types.Event{Kind: types.EventStageDone, Stage: "storyboard", Message: in.OutPath, Fields: map[string]any{
		"segments": len(sb.Segments),
	}})
	return StoryboardResult{Storyboard: sb, Path: in.OutPath}, nil
}

func (u Usecase) subtitles(ctx context.Context, in StoryboardInput) (string, error) {
	if in.SRTPath != "" {
		b, err := os.ReadFile(in.SRTPath)
		if err != nil {
			return "", fmt.Errorf("read subtitles: %w", err)
		}
		return string(b), nil
	}
	wav := filepath.Join(in.CacheDir, "audio.wav")
	if err := call(ctx, in.CallTimeout, func(cctx context.Context) error {
		return u.d.Transcoder.ExtractAudioMono16k(cctx, in.Source, wav)
	}); err != nil {
		return "", err
	}
	tr, err := u.d.ASR.Transcribe(ctx, wav, in.CacheDir)
	if err != nil {
		return "", err
	}
	return subtitles.RenderSRT(tr), nil
}

func writeFile(path string, b []byte) error {
	return os.WriteFile(path, b, 0o644)
}
