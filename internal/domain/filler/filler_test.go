package filler

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forPelevin/recapcut/internal/types"
)

func sec(f float64) time.Duration { return time.Duration(f * float64(time.Second)) }

func seeded(seed uint64) *rand.Rand { return rand.New(rand.NewPCG(seed, 7)) }

func assertNoOverlap(t *testing.T, specs []types.ClipSpec) {
	t.Helper()
	for i := range specs {
		for j := i + 1; j < len(specs); j++ {
			a, b := specs[i], specs[j]
			if a.SourceOffset < b.End() && b.SourceOffset < a.End() {
				t.Fatalf("clips %d [%s,%s) and %d [%s,%s) overlap", i, a.SourceOffset, a.End(), j, b.SourceOffset, b.End())
			}
		}
	}
}

func TestFill_NoShortfallReturnsInput(t *testing.T) {
	in := []types.ClipSpec{{SourceOffset: 0, Duration: sec(4)}, {SourceOffset: sec(10), Duration: sec(4)}}
	got := Fill(Input{Specs: in, Target: sec(8), SourceDuration: sec(600), Rand: seeded(1)})
	require.Len(t, got, 2)
	assert.Same(t, &in[0], &got[0])
}

func TestFill_BeatsShortOfNarration(t *testing.T) {
	block := types.TimeBlock{Start: sec(100), End: sec(130)}
	var beats []types.ClipSpec
	for i := 0; i < 4; i++ {
		beats = append(beats, types.ClipSpec{SourceOffset: sec(100 + 3.5*float64(i)), Duration: sec(3.5), Origin: types.OriginBeat})
	}

	got := Fill(Input{
		Specs:          beats,
		Target:         sec(20),
		Blocks:         []types.TimeBlock{block},
		SourceDuration: sec(3600),
		Rand:           seeded(3),
	})

	require.GreaterOrEqual(t, len(got), 6)
	assert.Equal(t, beats, got[:4], "anchored clips keep their order")
	assert.GreaterOrEqual(t, types.TotalDuration(got), sec(20))
	for _, c := range got[4:] {
		assert.Equal(t, types.OriginFiller, c.Origin)
		assert.GreaterOrEqual(t, c.SourceOffset, sec(114))
		assert.LessOrEqual(t, c.End(), sec(130))
		assert.LessOrEqual(t, c.Duration, sec(4))
	}
	assertNoOverlap(t, got)
}

func TestFill_BlockScanSkipsUsedMaterial(t *testing.T) {
	used := []types.ClipSpec{{SourceOffset: sec(5), Duration: sec(5)}}
	got := Fill(Input{
		Specs:  used,
		Target: sec(15),
		Blocks: []types.TimeBlock{{Start: 0, End: sec(20)}},
		Rand:   seeded(9),
	})
	assert.GreaterOrEqual(t, types.TotalDuration(got), sec(15))
	assertNoOverlap(t, got)
	for _, c := range got[1:] {
		assert.GreaterOrEqual(t, c.Duration, time.Second)
	}
}

func TestFill_RawSourceScan(t *testing.T) {
	source := sec(1200)
	got := Fill(Input{Target: sec(60), SourceDuration: source, Rand: seeded(11)})

	assert.GreaterOrEqual(t, types.TotalDuration(got), sec(60))
	assertNoOverlap(t, got)
	for _, c := range got {
		assert.GreaterOrEqual(t, c.SourceOffset, time.Duration(0))
		assert.LessOrEqual(t, c.End(), source)
		assert.GreaterOrEqual(t, c.Duration, sec(3))
		assert.LessOrEqual(t, c.Duration, sec(4))
	}
	for i := 1; i < len(got); i++ {
		if got[i].SourceOffset > got[i-1].End() {
			gap := got[i].SourceOffset - got[i-1].End()
			assert.GreaterOrEqual(t, gap, sec(5), "clip %d", i)
			assert.LessOrEqual(t, gap, sec(45), "clip %d", i)
		}
	}
}

func TestFill_DeterministicForSeed(t *testing.T) {
	in := Input{Target: sec(40), SourceDuration: sec(900)}
	in.Rand = seeded(42)
	a := Fill(in)
	in.Rand = seeded(42)
	b := Fill(in)
	assert.Equal(t, a, b)
}

func TestFill_AvoidsSourceTail(t *testing.T) {
	source := sec(300)
	got := Fill(Input{Target: sec(150), SourceDuration: source, Rand: seeded(5)})
	require.NotEmpty(t, got)
	assert.GreaterOrEqual(t, types.TotalDuration(got), sec(150))
	for i, c := range got {
		assert.Less(t, c.SourceOffset, source-sec(30), "clip %d starts in the tail", i)
	}
}

func TestFill_UnknownSourceWithoutBlocks(t *testing.T) {
	in := []types.ClipSpec{{SourceOffset: 0, Duration: sec(3)}}
	got := Fill(Input{Specs: in, Target: sec(10), Rand: seeded(1)})
	assert.Equal(t, in, got)
}

func TestAuditGaps(t *testing.T) {
	specs := []types.ClipSpec{
		{SourceOffset: 0, Duration: sec(3)},
		{SourceOffset: sec(3), Duration: sec(3)},
		{SourceOffset: sec(40), Duration: sec(3)},
		{SourceOffset: sec(42), Duration: sec(3)},
		{SourceOffset: 0, Duration: sec(3)},
	}
	got := AuditGaps(specs, 0, sec(30))
	require.Len(t, got, 3)

	assert.Equal(t, 2, got[0].Index)
	assert.Equal(t, sec(34), got[0].Gap)

	assert.Equal(t, 3, got[1].Index)
	assert.Equal(t, -sec(1), got[1].Gap)

	assert.Equal(t, 4, got[2].Index)
	assert.Equal(t, sec(39), got[2].Gap)

	assert.Empty(t, AuditGaps(specs[:2], 0, 0))
}
