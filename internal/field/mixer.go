// File: internal/field/mixer.go
package field

import (
	"math"

	"pigmentsea/internal/state"
)

// FallbackDark is painted when no sources exist or the weight sum collapses.
var FallbackDark = state.RGB{R: 9, G: 11, B: 20}

const (
	mixExp       = 1.2
	mixGain      = 6.0
	mixScale     = 0.0016 // coarser neighborhood than the flow sampler
	mixRate      = 0.05
	pulseDistCut = 0.004
)

// Mixer computes a blended RGB color at a point and time from all active
// influence sources' gradients.
type Mixer struct {
	noise noiseField
}

func NewMixer(seed int64) *Mixer {
	return &Mixer{noise: newNoiseField(seed)}
}

// ColorAt blends each source's gradient sample, weighted by a softer falloff
// than the flow field uses.
func (m *Mixer) ColorAt(tokens []state.Token, w, h, x, y, t float64) state.RGB {
	short := math.Min(w, h)
	if len(tokens) == 0 || short <= 0 {
		return FallbackDark
	}
	var r, g, b, wsum float64
	for i := range tokens {
		tok := &tokens[i]
		ax := tok.AnchorU * w
		ay := tok.AnchorV * h
		dist := math.Max(math.Hypot(x-ax, y-ay), minDist)
		nd := dist / short
		falloff := 1.0 / (1.0 + math.Pow(nd, mixExp)*mixGain)

		offA, offB := seedOffsets(tok.NoiseSeed)
		flow := m.noise.at(x*mixScale+offA, y*mixScale+offB, t*mixRate)
		pulse := 0.5 + 0.5*math.Sin(tok.Phase+t*tok.Frequency-dist*pulseDistCut)
		idx := clamp01(flow*0.62 + pulse*0.38)

		col := SampleGradient(tok.Gradient, idx)
		weight := falloff * (0.30 + tok.Energy*0.50 + tok.Activity*0.35)
		r += float64(col.R) * weight
		g += float64(col.G) * weight
		b += float64(col.B) * weight
		wsum += weight
	}
	if wsum <= 0 {
		return FallbackDark
	}
	return state.RGB{
		R: uint8(math.Min(r/wsum, 255) + 0.5),
		G: uint8(math.Min(g/wsum, 255) + 0.5),
		B: uint8(math.Min(b/wsum, 255) + 0.5),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
