package storyboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/recapcut/internal/types"
)

type document struct {
	Title         string       `json:"title"`
	TotalDuration float64      `json:"total_duration_sec"`
	Segments      []docSegment `json:"segments"`
}

type docSegment struct {
	Label           string         `json:"label"`
	VOScript        string         `json:"vo_script"`
	TargetVODurSec  float64        `json:"target_vo_duration_sec"`
	SourceTimeblock []docTimeblock `json:"source_timeblocks"`
	Beats           []docBeat      `json:"beats"`
	EditRules       docEditRules   `json:"edit_rules"`
}

type docTimeblock struct {
	Start  json.RawMessage `json:"start"`
	End    json.RawMessage `json:"end"`
	Reason string          `json:"reason"`
}

type docBeat struct {
	AtMs        float64 `json:"at_ms"`
	BlockIndex  *int    `json:"block_index"`
	SrcAtMs     float64 `json:"src_at_ms"`
	SrcLengthMs float64 `json:"src_length_ms"`
	Note        string  `json:"note"`
}

type docEditRules struct {
	CutLengthSec struct {
		Min float64 `json:"min"`
		Max float64 `json:"max"`
	} `json:"cut_length_sec"`
}

// Parse decodes a storyboard document. Structural problems (bad JSON, no segments, duplicate
// labels) fail the whole document; problems local to one segment are recorded in its Defects.
func Parse(b []byte) (types.Storyboard, error) {
	var doc document
	if err := json.Unmarshal([]byte(StripFence(string(b))), &doc); err != nil {
		return types.Storyboard{}, fmt.Errorf("decode storyboard: %w", err)
	}
	if len(doc.Segments) == 0 {
		return types.Storyboard{}, errors.New("storyboard has no segments")
	}

	sb := types.Storyboard{
		Title:         strings.TrimSpace(doc.Title),
		TotalDuration: seconds(doc.TotalDuration),
		Segments:      make([]types.Segment, 0, len(doc.Segments)),
	}
	seen := make(map[string]struct{}, len(doc.Segments))
	for i, ds := range doc.Segments {
		label := strings.TrimSpace(ds.Label)
		if label == "" {
			return types.Storyboard{}, fmt.Errorf("segment %d: label is empty", i)
		}
		key := strings.ToLower(label)
		if _, dup := seen[key]; dup {
			return types.Storyboard{}, fmt.Errorf("segment %d: duplicate label %q", i, label)
		}
		seen[key] = struct{}{}
		sb.Segments = append(sb.Segments, convertSegment(label, ds))
	}
	return sb, nil
}

func convertSegment(label string, ds docSegment) types.Segment {
	seg := types.Segment{
		Label:             label,
		NarrationScript:   strings.TrimSpace(ds.VOScript),
		NarrationDuration: seconds(ds.TargetVODurSec),
		EditRules: types.EditRules{
			CutMin: seconds(ds.EditRules.CutLengthSec.Min),
			CutMax: seconds(ds.EditRules.CutLengthSec.Max),
		},
	}

	for i, tb := range ds.SourceTimeblock {
		start, err := parseRawTimestamp(tb.Start)
		if err != nil {
			seg.Defects = append(seg.Defects, fmt.Sprintf("timeblock %d start: %v", i, err))
			continue
		}
		end, err := parseRawTimestamp(tb.End)
		if err != nil {
			seg.Defects = append(seg.Defects, fmt.Sprintf("timeblock %d end: %v", i, err))
			continue
		}
		if end <= start {
			seg.Defects = append(seg.Defects, fmt.Sprintf("timeblock %d: end %s is not after start %s", i, end, start))
			continue
		}
		seg.TimeBlocks = append(seg.TimeBlocks, types.TimeBlock{Start: start, End: end, Reason: strings.TrimSpace(tb.Reason)})
	}

	for i, b := range ds.Beats {
		if b.AtMs < 0 || b.SrcAtMs < 0 || b.SrcLengthMs < 0 {
			seg.Defects = append(seg.Defects, fmt.Sprintf("beat %d: negative offset", i))
			continue
		}
		idx := -1
		if b.BlockIndex != nil {
			idx = *b.BlockIndex
		}
		seg.Beats = append(seg.Beats, types.Beat{
			TimelineOffset: millis(b.AtMs),
			BlockIndex:     idx,
			SourceOffset:   millis(b.SrcAtMs),
			SourceLength:   millis(b.SrcLengthMs),
			Note:           strings.TrimSpace(b.Note),
		})
	}
	return seg
}

var reTimestamp = regexp.MustCompile(`^(\d+):([0-5]?\d):([0-5]?\d)(?:[.,](\d{1,3}))?$`)

// ParseTimestamp parses HH:MM:SS[.,]mmm. A bare number is read as seconds.
func ParseTimestamp(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty timestamp")
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f < 0 {
			return 0, fmt.Errorf("negative timestamp %q", s)
		}
		return seconds(f), nil
	}
	m := reTimestamp.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	h, _ := strconv.Atoi(m[1])
	mi, _ := strconv.Atoi(m[2])
	sec, _ := strconv.Atoi(m[3])
	ms := 0
	if m[4] != "" {
		frac := m[4]
		for len(frac) < 3 {
			frac += "0"
		}
		ms, _ = strconv.Atoi(frac)
	}
	return time.Duration(h)*time.Hour +
		time.Duration(mi)*time.Minute +
		time.Duration(sec)*time.Second +
		time.Duration(ms)*time.Millisecond, nil
}

func parseRawTimestamp(raw json.RawMessage) (time.Duration, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, errors.New("missing timestamp")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ParseTimestamp(s)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("invalid timestamp %s", string(raw))
	}
	if f < 0 {
		return 0, fmt.Errorf("negative timestamp %v", f)
	}
	return seconds(f), nil
}

// StripFence removes a surrounding markdown code fence, as LLM producers tend to add one.
func StripFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	if i := strings.Index(t, "\n"); i >= 0 {
		t = t[i+1:]
	} else {
		t = strings.TrimPrefix(t, "```")
	}
	if j := strings.LastIndex(t, "```"); j >= 0 {
		t = t[:j]
	}
	return strings.TrimSpace(t)
}

func seconds(f float64) time.Duration { return time.Duration(f * float64(time.Second)) }

func millis(f float64) time.Duration { return time.Duration(f * float64(time.Millisecond)) }
