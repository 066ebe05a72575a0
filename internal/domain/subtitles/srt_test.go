package subtitles

import (
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/recapcut/internal/types"
)

func TestRenderSRT_Cues(t *testing.T) {
	tr := types.Transcript{Segments: []types.Cue{
		{Start: 1, End: 2.5, Text: " Hello\nthere "},
		{Start: 3, End: 3, Text: "empty span"},
		{Start: 4, End: 5, Text: "  "},
		{Start: 61.234, End: 62, Text: "Bye."},
	}}
	want := "1\n00:00:01,000 --> 00:00:02,500\nHello there\n\n" +
		"2\n00:01:01,234 --> 00:01:02,000\nBye.\n\n"
	if got := RenderSRT(tr); got != want {
		t.Fatalf("RenderSRT() =\n%q\nwant\n%q", got, want)
	}
}

func TestRenderSRT_PacksWords(t *testing.T) {
	var words []types.Word
	for i := 0; i < 12; i++ {
		words = append(words, types.Word{Start: float64(i) * 0.5, End: float64(i)*0.5 + 0.4, Word: "word"})
	}
	got := RenderSRT(types.Transcript{Segments: []types.Cue{{Start: 0, End: 6, Words: words}}})
	if !strings.Contains(got, "1\n00:00:00,000 --> 00:00:03,900\n"+strings.Repeat("word ", 7)+"word\n") {
		t.Fatalf("first line not packed at the character budget:\n%s", got)
	}
	if !strings.Contains(got, "2\n00:00:04,000 --> 00:00:05,900\nword word word word\n") {
		t.Fatalf("second line missing:\n%s", got)
	}
}

func TestSRTTime(t *testing.T) {
	if got := srtTime(time.Hour + 61*time.Second + 234*time.Millisecond); got != "01:01:01,234" {
		t.Fatalf("unexpected srtTime: %s", got)
	}
}
