//go:build integration

package itest

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
)

type probedMedia struct {
	Seconds  float64
	HasAudio bool
}

func probeMedia(path string) (probedMedia, error) {
	b, err := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration:stream=codec_type",
		"-of", "json",
		path,
	).CombinedOutput()
	if err != nil {
		return probedMedia{}, fmt.Errorf("ffprobe: %w\n%s", err, string(b))
	}
	var out struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
		Streams []struct {
			CodecType string `json:"codec_type"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return probedMedia{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	sec, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil {
		return probedMedia{}, fmt.Errorf("parse duration %q: %w", out.Format.Duration, err)
	}
	m := probedMedia{Seconds: sec}
	for _, s := range out.Streams {
		if s.CodecType == "audio" {
			m.HasAudio = true
		}
	}
	return m, nil
}
