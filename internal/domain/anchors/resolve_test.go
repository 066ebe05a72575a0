package anchors

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forPelevin/recapcut/internal/domain/storyboard"
	"github.com/forPelevin/recapcut/internal/types"
)

func sec(f float64) time.Duration { return time.Duration(f * float64(time.Second)) }

func total(specs []types.ClipSpec) time.Duration {
	var d time.Duration
	for _, s := range specs {
		d += s.Duration
	}
	return d
}

func TestResolve_FiveBeatsInOneBlock(t *testing.T) {
	block := types.TimeBlock{Start: sec(100), End: sec(120)}
	var beats []types.Beat
	for i := 0; i < 5; i++ {
		beats = append(beats, types.Beat{
			TimelineOffset: sec(3.5 * float64(i)),
			BlockIndex:     0,
			SourceOffset:   sec(3.5 * float64(i)),
			SourceLength:   3500 * time.Millisecond,
		})
	}

	res, err := Resolve(Input{
		Strategy: storyboard.BeatsWithBlocks{Beats: beats, Blocks: []types.TimeBlock{block}},
		Target:   sec(17.5),
	})
	require.NoError(t, err)
	require.Len(t, res.Specs, 5)
	assert.Equal(t, sec(17.5), total(res.Specs))
	assert.Equal(t, sec(100), res.Specs[0].SourceOffset)
	assert.Equal(t, sec(114), res.Specs[4].SourceOffset)
	assert.Empty(t, res.Warnings)
}

func TestResolve_SplitsLongBeatsWithoutLosingDuration(t *testing.T) {
	block := types.TimeBlock{Start: 0, End: sec(60)}
	beats := []types.Beat{
		{TimelineOffset: 0, BlockIndex: 0, SourceOffset: 0, SourceLength: sec(9.7)},
		{TimelineOffset: sec(10), BlockIndex: 0, SourceOffset: sec(20), SourceLength: sec(4.2)},
		{TimelineOffset: sec(15), BlockIndex: 0, SourceOffset: sec(30), SourceLength: sec(3.3)},
	}
	res, err := Resolve(Input{Strategy: storyboard.BeatsWithBlocks{Beats: beats, Blocks: []types.TimeBlock{block}}})
	require.NoError(t, err)

	assert.Equal(t, sec(9.7)+sec(4.2)+sec(3.3), total(res.Specs))
	assert.Len(t, res.Specs, 3+2+1)
	for _, s := range res.Specs {
		assert.LessOrEqual(t, s.Duration, 4*time.Second)
	}
}

func TestResolve_FallsBackToBlocksWhenNoBeatFits(t *testing.T) {
	blocks := []types.TimeBlock{{Start: sec(60), End: sec(80)}}
	beats := []types.Beat{
		{TimelineOffset: 0, BlockIndex: -1, SourceLength: sec(3.5)},
		{TimelineOffset: sec(3.5), BlockIndex: 5, SourceLength: sec(3.5)},
	}
	res, err := Resolve(Input{
		Strategy:       storyboard.BeatsWithBlocks{Beats: beats, Blocks: blocks},
		Target:         sec(7),
		SourceDuration: sec(600),
	})
	require.NoError(t, err)
	require.Len(t, res.Specs, 1)
	assert.Equal(t, sec(60), res.Specs[0].SourceOffset)
	assert.Equal(t, sec(20), res.Specs[0].Duration)
	assert.Equal(t, types.OriginBlock, res.Specs[0].Origin)
	require.Len(t, res.Warnings, 3)
	assert.Contains(t, res.Warnings[2], "using the timeblocks")
}

func TestResolve_ClampsToBlockEndAndSkipsBadIndex(t *testing.T) {
	blocks := []types.TimeBlock{{Start: sec(10), End: sec(12)}}
	beats := []types.Beat{
		{TimelineOffset: 0, BlockIndex: 0, SourceOffset: sec(0.5), SourceLength: sec(3.5)},
		{TimelineOffset: sec(2), BlockIndex: 3, SourceLength: sec(3.5)},
		{TimelineOffset: sec(4), BlockIndex: 0, SourceOffset: sec(5), SourceLength: sec(3.5)},
	}
	res, err := Resolve(Input{Strategy: storyboard.BeatsWithBlocks{Beats: beats, Blocks: blocks}})
	require.NoError(t, err)
	require.Len(t, res.Specs, 1)
	assert.Equal(t, sec(10.5), res.Specs[0].SourceOffset)
	assert.Equal(t, sec(1.5), res.Specs[0].Duration)
	assert.Len(t, res.Warnings, 2)
}

func TestResolve_BlocksOnlyFallback(t *testing.T) {
	blocks := []types.TimeBlock{
		{Start: sec(60), End: sec(70)},
		{Start: sec(120), End: sec(128)},
	}
	res, err := Resolve(Input{Strategy: storyboard.BlocksOnly{Blocks: blocks}, Target: sec(12)})
	require.NoError(t, err)
	require.Len(t, res.Specs, 2)
	assert.Equal(t, types.ClipSpec{SourceOffset: sec(60), Duration: sec(10), Origin: types.OriginBlock}, res.Specs[0])
	assert.Equal(t, types.ClipSpec{SourceOffset: sec(120), Duration: sec(8), Origin: types.OriginBlock}, res.Specs[1])
}

func TestResolve_BeatsOnlyAbsoluteOffsets(t *testing.T) {
	beats := []types.Beat{
		{TimelineOffset: 0, SourceOffset: sec(30), SourceLength: sec(3)},
		{TimelineOffset: sec(3), SourceOffset: sec(90), SourceLength: sec(3.5)},
	}
	res, err := Resolve(Input{Strategy: storyboard.BeatsOnly{Beats: beats}, SourceDuration: sec(600)})
	require.NoError(t, err)
	require.Len(t, res.Specs, 2)
	assert.Equal(t, sec(30), res.Specs[0].SourceOffset)
	assert.Equal(t, sec(90), res.Specs[1].SourceOffset)
}

func TestResolve_BeatsOnlyInfersFromSpacing(t *testing.T) {
	beats := []types.Beat{
		{TimelineOffset: 0},
		{TimelineOffset: sec(2)},
		{TimelineOffset: sec(4.5)},
		{TimelineOffset: sec(10)},
	}
	res, err := Resolve(Input{
		Strategy:       storyboard.BeatsOnly{Beats: beats},
		Target:         sec(12),
		SourceDuration: sec(1200),
	})
	require.NoError(t, err)
	require.Len(t, res.Specs, 4)

	assert.Equal(t, sec(2), res.Specs[0].Duration)
	assert.Equal(t, sec(2.5), res.Specs[1].Duration)
	assert.Equal(t, sec(4), res.Specs[2].Duration, "spacing above 4s is clamped")
	assert.Equal(t, sec(2), res.Specs[3].Duration, "last beat runs to the end of the narration")

	// Positions spread across the source instead of all starting at zero.
	seen := map[time.Duration]bool{}
	for i, s := range res.Specs {
		seen[s.SourceOffset] = true
		if i > 0 {
			assert.Greater(t, s.SourceOffset, res.Specs[i-1].SourceOffset)
		}
	}
	assert.Len(t, seen, 4)
	assert.Greater(t, res.Specs[3].SourceOffset, sec(900))
	assert.NotEmpty(t, res.Warnings)
}

func TestResolve_Unresolvable(t *testing.T) {
	_, err := Resolve(Input{Strategy: storyboard.Unresolvable{Reason: "nothing"}})
	assert.True(t, errors.Is(err, ErrUnresolvable))

	_, err = Resolve(Input{Strategy: storyboard.BeatsWithBlocks{
		Beats:  []types.Beat{{BlockIndex: 9}},
		Blocks: []types.TimeBlock{{Start: 0, End: sec(5)}},
	}})
	assert.True(t, errors.Is(err, ErrUnresolvable))
}

func TestSplit(t *testing.T) {
	got := Split(sec(1), sec(10), sec(4), types.OriginBeat)
	require.Len(t, got, 3)
	assert.Equal(t, sec(10), total(got))
	assert.Equal(t, sec(1), got[0].SourceOffset)
	assert.Equal(t, got[0].End(), got[1].SourceOffset)
	assert.Equal(t, sec(11), got[2].End())

	assert.Len(t, Split(0, sec(4), sec(4), types.OriginBeat), 1)
	assert.Nil(t, Split(0, 0, sec(4), types.OriginBeat))
}
