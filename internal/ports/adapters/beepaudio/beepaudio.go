package beepaudio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

// DurationProber measures containers the decoders here do not handle.
type DurationProber interface {
	ProbeDuration(ctx context.Context, path string) (time.Duration, error)
}

// Adapter measures narration files by decoding them; WAV and MP3 are read in process,
// anything else goes to the fallback prober.
type Adapter struct {
	fallback DurationProber
}

func New(fallback DurationProber) *Adapter {
	return &Adapter{fallback: fallback}
}

func (a *Adapter) NarrationDuration(ctx context.Context, path string) (time.Duration, error) {
	var decode func(*os.File) (beep.StreamSeekCloser, beep.Format, error)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		decode = func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return wav.Decode(f) }
	case ".mp3":
		decode = func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return mp3.Decode(f) }
	default:
		if a.fallback == nil {
			return 0, fmt.Errorf("narration %s: unsupported format", filepath.Base(path))
		}
		return a.fallback.ProbeDuration(ctx, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	streamer, format, err := decode(f)
	if err != nil {
		f.Close()
		if a.fallback != nil {
			return a.fallback.ProbeDuration(ctx, path)
		}
		return 0, fmt.Errorf("decode narration %s: %w", filepath.Base(path), err)
	}
	defer streamer.Close()

	if format.SampleRate == 0 {
		return 0, fmt.Errorf("narration %s: zero sample rate", filepath.Base(path))
	}
	return format.SampleRate.D(streamer.Len()), nil
}
