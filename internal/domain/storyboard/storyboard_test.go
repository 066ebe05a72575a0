package storyboard

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forPelevin/recapcut/internal/types"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"00:01:00,000", time.Minute, false},
		{"00:02:08.5", 2*time.Minute + 8*time.Second + 500*time.Millisecond, false},
		{"01:00:00.123", time.Hour + 123*time.Millisecond, false},
		{"00:00:07", 7 * time.Second, false},
		{"12.25", 12250 * time.Millisecond, false},
		{"", 0, true},
		{"1:2", 0, true},
		{"00:61:00", 0, true},
		{"-3", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

const sampleDoc = "```json\n" + `{
  "title": "Recap",
  "total_duration_sec": 30,
  "segments": [
    {
      "label": "Intro",
      "vo_script": "It begins.",
      "target_vo_duration_sec": 12,
      "source_timeblocks": [
        {"start": "00:01:00,000", "end": "00:01:10,000", "reason": "opening"},
        {"start": "00:02:00.000", "end": "00:02:08.000", "reason": "hero"}
      ],
      "edit_rules": {"cut_length_sec": {"min": 3, "max": 4}}
    },
    {
      "label": "Climax",
      "vo_script": "It ends.",
      "target_vo_duration_sec": 7,
      "source_timeblocks": [{"start": "00:05:00", "end": "00:05:20"}],
      "beats": [
        {"at_ms": 3500, "block_index": 0, "src_at_ms": 3500, "src_length_ms": 3500},
        {"at_ms": 0, "block_index": 0, "src_at_ms": 0, "src_length_ms": 3500}
      ]
    },
    {
      "label": "Broken",
      "source_timeblocks": [{"start": "00:05:20", "end": "00:05:00"}]
    }
  ]
}` + "\n```"

func TestParse_Document(t *testing.T) {
	sb, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)

	assert.Equal(t, "Recap", sb.Title)
	assert.Equal(t, 30*time.Second, sb.TotalDuration)
	require.Len(t, sb.Segments, 3)

	intro := sb.Segments[0]
	assert.Equal(t, 12*time.Second, intro.NarrationDuration)
	require.Len(t, intro.TimeBlocks, 2)
	assert.Equal(t, time.Minute, intro.TimeBlocks[0].Start)
	assert.Equal(t, 8*time.Second, intro.TimeBlocks[1].Len())
	assert.Equal(t, 3*time.Second, intro.EditRules.CutMin)
	assert.Empty(t, intro.Defects)

	climax := sb.Segments[1]
	require.Len(t, climax.Beats, 2)
	assert.Equal(t, 0, climax.Beats[0].BlockIndex)

	broken := sb.Segments[2]
	require.Len(t, broken.Defects, 1)
	assert.Contains(t, broken.Defects[0], "not after start")
}

func TestParse_RejectsDuplicateLabels(t *testing.T) {
	_, err := Parse([]byte(`{"segments":[{"label":"A"},{"label":"a"}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate label")
}

func TestParse_RejectsEmpty(t *testing.T) {
	_, err := Parse([]byte(`{"segments":[]}`))
	assert.Error(t, err)
	_, err = Parse([]byte(`not json`))
	assert.Error(t, err)
}

func TestParse_MissingBlockIndex(t *testing.T) {
	sb, err := Parse([]byte(`{"segments":[{"label":"A","beats":[{"at_ms":0,"src_at_ms":1000,"src_length_ms":3000}]}]}`))
	require.NoError(t, err)
	assert.Equal(t, -1, sb.Segments[0].Beats[0].BlockIndex)
}

func TestSelect(t *testing.T) {
	block := types.TimeBlock{Start: 0, End: 10 * time.Second}
	beat := types.Beat{SourceLength: 3 * time.Second}

	tests := []struct {
		name string
		seg  types.Segment
		want string
	}{
		{"beats and blocks", types.Segment{Beats: []types.Beat{beat}, TimeBlocks: []types.TimeBlock{block}}, "beats_with_blocks"},
		{"beats only", types.Segment{Beats: []types.Beat{beat}}, "beats_only"},
		{"blocks only", types.Segment{TimeBlocks: []types.TimeBlock{block}}, "blocks_only"},
		{"nothing", types.Segment{}, "unresolvable"},
		{"defects", types.Segment{TimeBlocks: []types.TimeBlock{block}, Defects: []string{"bad"}}, "unresolvable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Select(tt.seg).Name())
		})
	}
}

func TestSelect_SortsCopyOfBeats(t *testing.T) {
	seg := types.Segment{Beats: []types.Beat{
		{TimelineOffset: 2 * time.Second, Note: "b"},
		{TimelineOffset: 0, Note: "a"},
	}}
	s, ok := Select(seg).(BeatsOnly)
	require.True(t, ok)
	assert.Equal(t, "a", s.Beats[0].Note)
	assert.Equal(t, "b", seg.Beats[0].Note, "caller data must keep its order")
}

func TestQualityWarnings(t *testing.T) {
	seg := types.Segment{Beats: []types.Beat{
		{TimelineOffset: time.Second, SourceLength: 5 * time.Second},
		{TimelineOffset: 0, SourceLength: 3500 * time.Millisecond},
	}}
	w := QualityWarnings(seg)
	require.Len(t, w, 2)
	assert.Contains(t, w[0], "outside")
	assert.Contains(t, w[1], "re-sorted")
}

func TestBuildPrompt(t *testing.T) {
	p, err := BuildPrompt(PromptInput{FilmMinutes: 95, SRT: "1\n00:00:01,000 --> 00:00:02,000\nHi\n"})
	require.NoError(t, err)
	assert.Contains(t, p, "95 minute film")
	assert.Contains(t, p, `language "en"`)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(p), "Hi"))
}

func TestBoundsFor(t *testing.T) {
	tests := []struct {
		name  string
		rules types.EditRules
		want  Bounds
	}{
		{"defaults", types.EditRules{}, Bounds{Min: 3 * time.Second, Max: 4 * time.Second}},
		{"custom", types.EditRules{CutMin: 2 * time.Second, CutMax: 3 * time.Second}, Bounds{Min: 2 * time.Second, Max: 3 * time.Second}},
		{"capped", types.EditRules{CutMin: 3 * time.Second, CutMax: 6 * time.Second}, Bounds{Min: 3 * time.Second, Max: 4 * time.Second}},
		{"inverted", types.EditRules{CutMin: 5 * time.Second, CutMax: 2 * time.Second}, Bounds{Min: 3 * time.Second, Max: 4 * time.Second}},
		{"tiny", types.EditRules{CutMin: 100 * time.Millisecond, CutMax: time.Second}, Bounds{Min: 600 * time.Millisecond, Max: time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BoundsFor(tt.rules))
		})
	}
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"  My Cool.Video  ": "my-cool-video",
		"___":               "",
		"abc123":            "abc123",
		"Name (v2)!":        "name-v2",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			if got := Slug(in); got != want {
				t.Fatalf("Slug(%q) = %q, want %q", in, got, want)
			}
		})
	}
}
