package whispercpp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/forPelevin/recapcut/internal/types"
)

type Adapter struct {
	bin   string
	model string
}

func New(binPath, modelPath string) *Adapter {
	return &Adapter{bin: binPath, model: modelPath}
}

func (a *Adapter) Transcribe(ctx context.Context, wavPath, cacheDir string) (types.Transcript, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return types.Transcript{}, err
	}
	outPrefix := filepath.Join(cacheDir, "whisper")
	args := []string{
		"-m", a.model,
		"-f", wavPath,
		"-oj",
		"-of", outPrefix,
	}
	cmd := exec.CommandContext(ctx, a.bin, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper.cpp failed: %w\n%s", err, string(b))
	}

	jb, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return types.Transcript{}, err
	}
	return decodeTranscript(jb)
}

// decodeTranscript accepts both a plain {"segments": [...]} document and whisper.cpp's
// native {"transcription": [...]} output with millisecond offsets.
func decodeTranscript(jb []byte) (types.Transcript, error) {
	var doc struct {
		types.Transcript
		Transcription []struct {
			Offsets struct {
				From int64 `json:"from"`
				To   int64 `json:"to"`
			} `json:"offsets"`
			Text string `json:"text"`
		} `json:"transcription"`
	}
	if err := json.Unmarshal(jb, &doc); err != nil {
		return types.Transcript{}, fmt.Errorf("decode whisper output: %w", err)
	}

	tr := doc.Transcript
	if len(tr.Segments) == 0 {
		for _, c := range doc.Transcription {
			tr.Segments = append(tr.Segments, types.Cue{
				Start: float64(c.Offsets.From) / 1000,
				End:   float64(c.Offsets.To) / 1000,
				Text:  c.Text,
			})
		}
	}
	for i := range tr.Segments {
		tr.Segments[i].Text = strings.TrimSpace(tr.Segments[i].Text)
		for j := range tr.Segments[i].Words {
			tr.Segments[i].Words[j].Word = strings.TrimSpace(tr.Segments[i].Words[j].Word)
		}
	}
	return tr, nil
}
