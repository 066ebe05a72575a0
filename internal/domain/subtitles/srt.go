package subtitles

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/forPelevin/recapcut/internal/types"
)

// RenderSRT renders the transcript as SubRip text. Cues with word timings are re-packed into
// short lines; cues without them are emitted as they are.
func RenderSRT(tr types.Transcript) string {
	var b strings.Builder
	n := 0
	for _, c := range tr.Segments {
		for _, ln := range cueLines(c) {
			text := strings.TrimSpace(ln.Text)
			if text == "" || ln.End <= ln.Start {
				continue
			}
			n++
			fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", n, srtTime(ln.Start), srtTime(ln.End), text)
		}
	}
	return b.String()
}

type word struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

type line struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

func cueLines(c types.Cue) []line {
	var words []word
	for _, w := range c.Words {
		text := strings.TrimSpace(w.Word)
		if text == "" || w.End < w.Start {
			continue
		}
		words = append(words, word{Start: dur(w.Start), End: dur(w.End), Text: text})
	}
	if len(words) == 0 {
		return []line{{Start: dur(c.Start), End: dur(c.End), Text: flatten(c.Text)}}
	}
	return packWords(words)
}

func packWords(words []word) []line {
	// Hard budgets keep subtitle chunks short enough for the storyboard prompt to cite.
	const (
		charBudget = 42
		wordBudget = 9
	)
	var out []line
	var cur []string
	start := words[0].Start
	curLen := 0
	for i, w := range words {
		wl := len([]rune(w.Text))
		nextLen := curLen + wl
		if curLen > 0 {
			nextLen++
		}
		if len(cur) > 0 && (len(cur) >= wordBudget || nextLen > charBudget) {
			out = append(out, line{Start: start, End: words[i-1].End, Text: strings.Join(cur, " ")})
			cur, start, curLen = nil, w.Start, 0
		}
		if curLen > 0 {
			curLen++
		}
		curLen += wl
		cur = append(cur, w.Text)
	}
	out = append(out, line{Start: start, End: words[len(words)-1].End, Text: strings.Join(cur, " ")})
	return out
}

func srtTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hs := int(d / time.Hour)
	d -= time.Duration(hs) * time.Hour
	ms := int(d / time.Minute)
	d -= time.Duration(ms) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hs, ms, s, int(d/time.Millisecond))
}

func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// dur converts ASR seconds to a duration at millisecond resolution.
func dur(sec float64) time.Duration {
	return time.Duration(math.Round(sec*1000)) * time.Millisecond
}
