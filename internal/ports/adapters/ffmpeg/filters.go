package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/forPelevin/recapcut/internal/types"
)

// libx264 with yuv420p needs even frame dimensions.
const evenDims = "scale=trunc(iw/2)*2:trunc(ih/2)*2,setsar=1"

// VideoFilter renders typed filters as one -vf chain.
func VideoFilter(filters []types.Filter) string {
	parts := make([]string, 0, len(filters)+1)
	for _, f := range filters {
		switch f.Kind {
		case types.FilterColor:
			parts = append(parts, fmt.Sprintf("eq=contrast=%s:saturation=%s", num(f.Contrast), num(f.Saturation)))
		case types.FilterZoom:
			z := num(f.Zoom)
			parts = append(parts, fmt.Sprintf("scale=iw*%s:ih*%s,crop=iw/%s:ih/%s", z, z, z, z))
		case types.FilterPanZoom:
			z := num(f.Zoom)
			span := num(f.Span.Seconds())
			if f.Span <= 0 {
				span = "1"
			}
			progress := fmt.Sprintf("min(t/%s\\,1)", span)
			if f.PanDir < 0 {
				progress = "1-" + progress
			}
			parts = append(parts, fmt.Sprintf("scale=iw*%s:ih*%s,crop=iw/%s:ih/%s:(iw-ow)*(%s):(ih-oh)/2", z, z, z, z, progress))
		case types.FilterHFlip:
			parts = append(parts, "hflip")
		case types.FilterFreezeTail:
			parts = append(parts, "tpad=stop_mode=clone:stop_duration="+num(f.Span.Seconds()))
		}
	}
	parts = append(parts, evenDims)
	return strings.Join(parts, ",")
}

// IsIdentity reports whether the whole-output pass would leave the input untouched.
func IsIdentity(job types.CompositeJob) bool {
	return job.Music == "" && job.Watermark == "" && job.LetterboxPx <= 0 && job.NarrationGain == 1
}

// CompositeGraph builds the filter_complex for the whole-output pass. The audio chain is
// empty when the narration passes through unchanged.
func CompositeGraph(job types.CompositeJob) (graph string, audioOut string) {
	var chains []string

	video := "[0:v]"
	if job.Watermark != "" {
		chains = append(chains, fmt.Sprintf("[%d:v]scale=%d:-1[wm]", watermarkInput(job), watermarkWidth),
			video+"[wm]overlay="+watermarkOverlay(job.WatermarkPos)+"[wmv]")
		video = "[wmv]"
	}
	if job.LetterboxPx > 0 {
		px := strconv.Itoa(job.LetterboxPx)
		chains = append(chains, video+"drawbox=x=0:y=0:w=iw:h="+px+":color=black:t=fill,"+
			"drawbox=x=0:y=ih-"+px+":w=iw:h="+px+":color=black:t=fill[vout]")
	} else {
		chains = append(chains, video+"null[vout]")
	}

	gain := job.NarrationGain
	switch {
	case job.Music != "":
		chains = append(chains, "[0:a]volume="+num(gain)+"[nar]")
		bgm := "[1:a]"
		if job.MusicWindow > 0 {
			bgm += "atrim=0:" + num(job.MusicWindow.Seconds()) + ",asetpts=PTS-STARTPTS,"
		}
		bgm += "volume=" + num(job.MusicGain)
		if job.MusicOffset > 0 {
			bgm += fmt.Sprintf(",adelay=%d:all=1", job.MusicOffset.Milliseconds())
		}
		chains = append(chains, bgm+"[bgm]")
		chains = append(chains, "[nar][bgm]amix=inputs=2:duration=first:dropout_transition=0:normalize=0[aout]")
		audioOut = "[aout]"
	case gain != 1:
		chains = append(chains, "[0:a]volume="+num(gain)+"[aout]")
		audioOut = "[aout]"
	}
	return strings.Join(chains, ";"), audioOut
}

// CompositeArgs returns the full ffmpeg argument list (without the binary and -y) for job.
func CompositeArgs(job types.CompositeJob, out string) []string {
	graph, audioOut := CompositeGraph(job)
	args := []string{"-i", job.Input}
	if job.Music != "" {
		args = append(args, "-stream_loop", "-1", "-i", job.Music)
	}
	if job.Watermark != "" {
		args = append(args, "-i", job.Watermark)
	}
	args = append(args, "-filter_complex", graph, "-map", "[vout]")
	if audioOut != "" {
		args = append(args, "-map", audioOut)
		args = append(args, audioCodec...)
	} else {
		args = append(args, "-map", "0:a:0?", "-c:a", "copy")
	}
	args = append(args, videoCodec...)
	args = append(args, "-movflags", "+faststart", out)
	return args
}

// Watermarks are scaled to this width, keeping their aspect ratio.
const watermarkWidth = 150

// watermarkInput is the input index of the watermark image; music, when present, comes first.
func watermarkInput(job types.CompositeJob) int {
	if job.Music != "" {
		return 2
	}
	return 1
}

func watermarkOverlay(pos string) string {
	switch pos {
	case "top_right":
		return "W-w-10:10"
	case "bottom_left":
		return "10:H-h-10"
	case "bottom_right":
		return "W-w-10:H-h-10"
	default:
		return "10:10"
	}
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
