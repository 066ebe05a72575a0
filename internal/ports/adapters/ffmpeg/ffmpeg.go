package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/recapcut/internal/types"
)

type Adapter struct {
	ffmpeg  string
	ffprobe string
}

func New(ffmpegPath, ffprobePath string) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath}
}

// Encoding shared by every re-encoded clip so that stream-copy concat works across them.
var (
	videoCodec = []string{"-c:v", "libx264", "-preset", "veryfast", "-crf", "18", "-pix_fmt", "yuv420p", "-r", "30"}
	audioCodec = []string{"-c:a", "aac", "-ar", "48000", "-ac", "2", "-b:a", "192k"}
)

func (a *Adapter) run(ctx context.Context, what string, args ...string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg, append([]string{"-hide_banner", "-y"}, args...)...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg %s: %w\n%s", what, err, string(b))
	}
	return nil
}

func (a *Adapter) ExtractAudioMono16k(ctx context.Context, inMP4, outWav string) error {
	return a.run(ctx, "extract audio",
		"-i", inMP4,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		outWav,
	)
}

func (a *Adapter) Cut(ctx context.Context, src string, start, dur time.Duration, out string) error {
	args := []string{
		"-ss", fmtSeconds(start),
		"-i", src,
		"-t", fmtSeconds(dur),
		"-map", "0:v:0",
		"-map", "0:a:0?",
		"-vf", evenDims,
	}
	args = append(args, videoCodec...)
	args = append(args, audioCodec...)
	args = append(args, out)
	return a.run(ctx, "cut", args...)
}

func (a *Adapter) ProbeDuration(ctx context.Context, path string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w\n%s", err, string(b))
	}
	s := strings.TrimSpace(string(b))
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return time.Duration(sec * float64(time.Second)), nil
}

func (a *Adapter) Concat(ctx context.Context, clips []string, out string, videoOnly bool) error {
	if len(clips) == 0 {
		return fmt.Errorf("ffmpeg concat: no inputs")
	}
	list := out + ".concat.txt"
	if err := os.WriteFile(list, []byte(concatList(clips)), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	defer os.Remove(list)

	args := []string{"-f", "concat", "-safe", "0", "-i", list, "-c", "copy"}
	if videoOnly {
		args = append(args, "-an")
	}
	args = append(args, out)
	return a.run(ctx, "concat", args...)
}

func (a *Adapter) ApplyFilters(ctx context.Context, in string, filters []types.Filter, out string) error {
	if len(filters) == 0 {
		return copyFile(in, out)
	}
	args := []string{"-i", in, "-map", "0:v:0", "-map", "0:a:0?", "-vf", VideoFilter(filters)}
	args = append(args, videoCodec...)
	args = append(args, audioCodec...)
	args = append(args, out)
	return a.run(ctx, "apply filters", args...)
}

func (a *Adapter) ExtractLastFrame(ctx context.Context, in, outImage string) error {
	return a.run(ctx, "last frame",
		"-sseof", "-1",
		"-i", in,
		"-update", "1",
		"-q:v", "2",
		outImage,
	)
}

func (a *Adapter) StillClip(ctx context.Context, image string, dur time.Duration, out string) error {
	args := []string{
		"-loop", "1",
		"-i", image,
		"-t", fmtSeconds(dur),
		"-vf", evenDims,
	}
	args = append(args, videoCodec...)
	args = append(args, out)
	return a.run(ctx, "still clip", args...)
}

func (a *Adapter) Mux(ctx context.Context, video, audio string, maxDur time.Duration, out string) error {
	args := []string{
		"-i", video,
		"-i", audio,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
	}
	args = append(args, audioCodec...)
	args = append(args, "-shortest")
	if maxDur > 0 {
		args = append(args, "-t", fmtSeconds(maxDur))
	}
	args = append(args, out)
	return a.run(ctx, "mux", args...)
}

func (a *Adapter) Composite(ctx context.Context, job types.CompositeJob, out string) error {
	if IsIdentity(job) {
		return copyFile(job.Input, out)
	}
	return a.run(ctx, "composite", CompositeArgs(job, out)...)
}

func concatList(clips []string) string {
	var b strings.Builder
	for _, c := range clips {
		if abs, err := filepath.Abs(c); err == nil {
			c = abs
		}
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(c, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}

func fmtSeconds(d time.Duration) string {
	sec := float64(d) / float64(time.Second)
	return strconv.FormatFloat(sec, 'f', 3, 64)
}
