//go:build integration

package itest

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func requireFFmpeg(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not found in PATH", bin)
		}
	}
}

func ffmpegFixture(t *testing.T, args ...string) {
	t.Helper()
	cmd := exec.Command("ffmpeg", append([]string{"-hide_banner", "-y"}, args...)...)
	if b, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("ffmpeg fixture failed: %v\n%s", err, string(b))
	}
}

// makeSource writes a test pattern film with a tone track.
func makeSource(t *testing.T, path string, seconds int) {
	t.Helper()
	ffmpegFixture(t,
		"-f", "lavfi", "-i", fmt.Sprintf("testsrc2=s=640x360:r=30:d=%d", seconds),
		"-f", "lavfi", "-i", fmt.Sprintf("sine=frequency=220:sample_rate=48000:duration=%d", seconds),
		"-shortest",
		"-c:v", "libx264", "-pix_fmt", "yuv420p",
		"-c:a", "aac",
		path,
	)
}

// makeNarration writes a mono tone standing in for synthesized speech.
func makeNarration(t *testing.T, path string, seconds float64) {
	t.Helper()
	ffmpegFixture(t,
		"-f", "lavfi", "-i", fmt.Sprintf("sine=frequency=440:sample_rate=24000:duration=%g", seconds),
		"-ac", "1",
		path,
	)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

const fixtureStoryboard = `{
  "title": "Test Pattern",
  "segments": [
    {
      "label": "Intro",
      "vo_script": "Colors appear.",
      "target_vo_duration_sec": 12,
      "source_timeblocks": [
        {"start": "00:00:10,000", "end": "00:00:20,000", "reason": "opening"},
        {"start": "00:00:40.000", "end": "00:00:48.000", "reason": "bars"}
      ]
    },
    {
      "label": "Climax",
      "vo_script": "The pattern moves.",
      "target_vo_duration_sec": 7.3,
      "source_timeblocks": [{"start": "00:01:00", "end": "00:01:20"}],
      "beats": [
        {"at_ms": 0, "block_index": 0, "src_at_ms": 0, "src_length_ms": 3500},
        {"at_ms": 3500, "block_index": 0, "src_at_ms": 5000, "src_length_ms": 3500}
      ]
    }
  ]
}`

// mustRepoRoot walks up from the test's directory to the module root.
func mustRepoRoot(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for dir := wd; ; {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("no go.mod above %s", wd)
		}
		dir = parent
	}
}
