package effects

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/forPelevin/recapcut/internal/types"
)

// Treatment is a per-clip visual treatment that can be switched on in configuration.
type Treatment string

const (
	Color  Treatment = "color"
	Motion Treatment = "motion"
	HFlip  Treatment = "hflip"
)

// Mandatory is the treatment set applied when configuration does not name one.
var Mandatory = []Treatment{Color, Motion}

const (
	Contrast   = 1.1
	Saturation = 1.2

	zoomMin = 1.04
	zoomMax = 1.08
	panZoom = 1.08
)

// ParseTreatments validates configured treatment names, dropping duplicates.
func ParseTreatments(names []string) ([]Treatment, error) {
	seen := map[Treatment]bool{}
	var out []Treatment
	for _, n := range names {
		t := Treatment(strings.ToLower(strings.TrimSpace(n)))
		switch t {
		case Color, Motion, HFlip:
		default:
			return nil, fmt.Errorf("unknown effect %q (want color, motion or hflip)", n)
		}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out, nil
}

// Select draws the filters for one clip. The motion treatment picks either a light static
// zoom or a light panning zoom; hflip is applied to about half of the clips. An empty
// treatment list yields no filters.
func Select(rng *rand.Rand, treatments []Treatment, clipLen time.Duration) []types.Filter {
	var out []types.Filter
	for _, t := range treatments {
		switch t {
		case Color:
			out = append(out, types.Filter{Kind: types.FilterColor, Contrast: Contrast, Saturation: Saturation})
		case Motion:
			if rng.IntN(2) == 0 {
				z := math.Round((zoomMin+rng.Float64()*(zoomMax-zoomMin))*1000) / 1000
				out = append(out, types.Filter{Kind: types.FilterZoom, Zoom: z})
				continue
			}
			dir := 1
			if rng.IntN(2) == 0 {
				dir = -1
			}
			out = append(out, types.Filter{Kind: types.FilterPanZoom, Zoom: panZoom, PanDir: dir, Span: clipLen})
		case HFlip:
			if rng.IntN(2) == 0 {
				out = append(out, types.Filter{Kind: types.FilterHFlip})
			}
		}
	}
	return out
}
