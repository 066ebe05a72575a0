package ffmpeg

import (
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/recapcut/internal/types"
)

func TestVideoFilter(t *testing.T) {
	tests := []struct {
		name    string
		filters []types.Filter
		want    string
	}{
		{
			name:    "color and zoom",
			filters: []types.Filter{{Kind: types.FilterColor, Contrast: 1.1, Saturation: 1.2}, {Kind: types.FilterZoom, Zoom: 1.05}},
			want:    "eq=contrast=1.1:saturation=1.2,scale=iw*1.05:ih*1.05,crop=iw/1.05:ih/1.05," + evenDims,
		},
		{
			name:    "pan right to left",
			filters: []types.Filter{{Kind: types.FilterPanZoom, Zoom: 1.08, PanDir: -1, Span: 3500 * time.Millisecond}},
			want:    `scale=iw*1.08:ih*1.08,crop=iw/1.08:ih/1.08:(iw-ow)*(1-min(t/3.5\,1)):(ih-oh)/2,` + evenDims,
		},
		{
			name:    "hflip and freeze",
			filters: []types.Filter{{Kind: types.FilterHFlip}, {Kind: types.FilterFreezeTail, Span: 1250 * time.Millisecond}},
			want:    "hflip,tpad=stop_mode=clone:stop_duration=1.25," + evenDims,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VideoFilter(tt.filters); got != tt.want {
				t.Fatalf("VideoFilter() =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestCompositeGraph_MusicWindow(t *testing.T) {
	graph, aout := CompositeGraph(types.CompositeJob{
		Input:         "in.mp4",
		NarrationGain: 1.5,
		Music:         "bgm.mp3",
		MusicGain:     0.1,
		MusicOffset:   32 * time.Second,
		MusicWindow:   17500 * time.Millisecond,
		LetterboxPx:   60,
	})
	want := strings.Join([]string{
		"[0:v]drawbox=x=0:y=0:w=iw:h=60:color=black:t=fill,drawbox=x=0:y=ih-60:w=iw:h=60:color=black:t=fill[vout]",
		"[0:a]volume=1.5[nar]",
		"[1:a]atrim=0:17.5,asetpts=PTS-STARTPTS,volume=0.1,adelay=32000:all=1[bgm]",
		"[nar][bgm]amix=inputs=2:duration=first:dropout_transition=0:normalize=0[aout]",
	}, ";")
	if graph != want {
		t.Fatalf("graph =\n%s\nwant\n%s", graph, want)
	}
	if aout != "[aout]" {
		t.Fatalf("audio out = %q", aout)
	}
}

func TestCompositeArgs_NoMusicCopiesAudio(t *testing.T) {
	args := CompositeArgs(types.CompositeJob{Input: "in.mp4", NarrationGain: 1, LetterboxPx: 40}, "out.mp4")
	joined := strings.Join(args, " ")
	if strings.Contains(joined, "stream_loop") {
		t.Fatalf("unexpected music input: %s", joined)
	}
	if !strings.Contains(joined, "-map 0:a:0? -c:a copy") {
		t.Fatalf("audio should be copied: %s", joined)
	}
	if args[len(args)-1] != "out.mp4" {
		t.Fatalf("last arg = %q", args[len(args)-1])
	}
}

func TestCompositeArgs_GlobalMusicLoops(t *testing.T) {
	args := CompositeArgs(types.CompositeJob{Input: "in.mp4", Music: "bgm.mp3", MusicGain: 0.1}, "out.mp4")
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-stream_loop -1 -i bgm.mp3") {
		t.Fatalf("music should loop: %s", joined)
	}
	if strings.Contains(joined, "atrim") || strings.Contains(joined, "adelay") {
		t.Fatalf("global music must not be windowed: %s", joined)
	}
}

func TestCompositeGraph_Watermark(t *testing.T) {
	tests := []struct {
		name string
		job  types.CompositeJob
		want []string
	}{
		{
			name: "bottom right under letterbox",
			job:  types.CompositeJob{Input: "in.mp4", NarrationGain: 1, Watermark: "logo.png", WatermarkPos: "bottom_right", LetterboxPx: 60},
			want: []string{
				"[1:v]scale=150:-1[wm]",
				"[0:v][wm]overlay=W-w-10:H-h-10[wmv]",
				"[wmv]drawbox=x=0:y=0:w=iw:h=60:color=black:t=fill,drawbox=x=0:y=ih-60:w=iw:h=60:color=black:t=fill[vout]",
			},
		},
		{
			name: "after music input, unknown corner falls back to top left",
			job:  types.CompositeJob{Input: "in.mp4", NarrationGain: 1, Music: "bgm.mp3", MusicGain: 0.1, Watermark: "logo.png", WatermarkPos: "center"},
			want: []string{
				"[2:v]scale=150:-1[wm]",
				"[0:v][wm]overlay=10:10[wmv]",
				"[wmv]null[vout]",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			graph, _ := CompositeGraph(tt.job)
			chains := strings.Split(graph, ";")
			if len(chains) < len(tt.want) {
				t.Fatalf("graph = %s", graph)
			}
			for i, want := range tt.want {
				if chains[i] != want {
					t.Fatalf("chain %d = %s, want %s", i, chains[i], want)
				}
			}
		})
	}
}

func TestCompositeArgs_WatermarkInputFollowsMusic(t *testing.T) {
	args := CompositeArgs(types.CompositeJob{
		Input: "in.mp4", NarrationGain: 1, Music: "bgm.mp3", MusicGain: 0.1, Watermark: "logo.png",
	}, "out.mp4")
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-i in.mp4 -stream_loop -1 -i bgm.mp3 -i logo.png -filter_complex") {
		t.Fatalf("unexpected input order: %s", joined)
	}

	plain := strings.Join(CompositeArgs(types.CompositeJob{Input: "in.mp4", NarrationGain: 1, LetterboxPx: 60}, "out.mp4"), " ")
	if strings.Contains(plain, "overlay") || strings.Contains(plain, "[wm]") {
		t.Fatalf("no watermark configured: %s", plain)
	}
}

func TestCompositeGraph_GainIsTakenLiterally(t *testing.T) {
	_, aout := CompositeGraph(types.CompositeJob{Input: "in.mp4", NarrationGain: 0.5, LetterboxPx: 60})
	if aout != "[aout]" {
		t.Fatalf("gain 0.5 must be applied, audio out = %q", aout)
	}
	if IsIdentity(types.CompositeJob{Input: "in.mp4"}) {
		t.Fatal("a zero narration gain is not a passthrough")
	}
}

func TestIsIdentity(t *testing.T) {
	if !IsIdentity(types.CompositeJob{Input: "a", NarrationGain: 1}) {
		t.Fatal("plain job should be identity")
	}
	if IsIdentity(types.CompositeJob{Input: "a", NarrationGain: 1, LetterboxPx: 10}) {
		t.Fatal("letterbox is not identity")
	}
	if IsIdentity(types.CompositeJob{Input: "a", NarrationGain: 1, Watermark: "logo.png"}) {
		t.Fatal("watermark is not identity")
	}
}

func TestConcatList(t *testing.T) {
	got := concatList([]string{"/tmp/a.mp4", "/tmp/it's.mp4"})
	want := "file '/tmp/a.mp4'\nfile '/tmp/it'\\''s.mp4'\n"
	if got != want {
		t.Fatalf("concatList() = %q, want %q", got, want)
	}
}
