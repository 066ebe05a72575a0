package ports

import (
	"context"
	"time"

	"github.com/forPelevin/recapcut/internal/types"
)

// Transcoder performs the media operations. Every call blocks until the external process
// exits; outputs are written to the given paths.
type Transcoder interface {
	// Cut re-encodes [start, start+dur) of src into a standalone clip.
	Cut(ctx context.Context, src string, start, dur time.Duration, out string) error
	ProbeDuration(ctx context.Context, path string) (time.Duration, error)
	// Concat joins clips with a stream copy; videoOnly drops audio.
	Concat(ctx context.Context, clips []string, out string, videoOnly bool) error
	// ApplyFilters re-encodes in with the given filters and a standard AAC 48kHz stereo track.
	ApplyFilters(ctx context.Context, in string, filters []types.Filter, out string) error
	ExtractLastFrame(ctx context.Context, in, outImage string) error
	StillClip(ctx context.Context, image string, dur time.Duration, out string) error
	// Mux pairs the video stream of video with audio. A positive maxDur bounds the output.
	Mux(ctx context.Context, video, audio string, maxDur time.Duration, out string) error
	Composite(ctx context.Context, job types.CompositeJob, out string) error
	ExtractAudioMono16k(ctx context.Context, inMP4, outWav string) error
}

type NarrationProber interface {
	NarrationDuration(ctx context.Context, path string) (time.Duration, error)
}

type ASR interface {
	Transcribe(ctx context.Context, wavPath, cacheDir string) (types.Transcript, error)
}

// StoryboardProducer writes a storyboard document from a prompt. The returned bytes are
// parsed and validated by the caller.
type StoryboardProducer interface {
	Produce(ctx context.Context, prompt string) ([]byte, error)
}

type Observer interface {
	OnEvent(ev types.Event)
}
