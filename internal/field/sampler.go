// File: internal/field/sampler.go
package field

import (
	"math"

	"pigmentsea/internal/state"
)

const (
	// minDist floors the anchor distance to avoid singular falloff/swirl
	// right on top of an anchor.
	minDist = 12.0

	flowExp    = 1.35
	flowGain   = 10.0
	noiseScale = 0.0042
	noiseRate  = 0.16
)

// Sampler computes a 2D flow vector at a point and time from all active
// influence sources.
type Sampler struct {
	noise noiseField
}

func NewSampler(seed int64) *Sampler {
	return &Sampler{noise: newNoiseField(seed)}
}

// VectorAt returns the falloff-weighted flow vector at canvas point (x,y) and
// time t (seconds). With no sources, or a non-positive weight sum, it returns
// the zero vector.
func (s *Sampler) VectorAt(tokens []state.Token, w, h, x, y, t float64) (float64, float64) {
	var vx, vy, wsum float64
	short := math.Min(w, h)
	if short <= 0 {
		return 0, 0
	}
	for i := range tokens {
		tok := &tokens[i]
		ax := tok.AnchorU * w
		ay := tok.AnchorV * h
		dx := x - ax
		dy := y - ay
		dist := math.Max(math.Hypot(dx, dy), minDist)
		nd := dist / short
		falloff := 1.0 / (1.0 + math.Pow(nd, flowExp)*flowGain)

		swirl := math.Atan2(dy, dx) + tok.Phase + t*tok.Frequency*signOf(tok.Momentum)

		offA, offB := seedOffsets(tok.NoiseSeed)
		noiseAngle := s.noise.at(x*noiseScale+offA, y*noiseScale+offB, t*noiseRate) * 2 * math.Pi

		// Activity shifts the blend from anchored swirl toward free noise.
		nw := 0.30 + 0.45*tok.Activity
		sw := 1.0 - nw
		bx := sw*math.Cos(swirl) + nw*math.Cos(noiseAngle)
		by := sw*math.Sin(swirl) + nw*math.Sin(noiseAngle)
		angle := math.Atan2(by, bx)

		mag := (0.5 + tok.Energy*1.6 + tok.Activity*0.8) * falloff
		vx += math.Cos(angle) * mag
		vy += math.Sin(angle) * mag
		wsum += falloff
	}
	if wsum <= 0 {
		return 0, 0
	}
	return vx / wsum, vy / wsum
}

// signOf flips the swirl direction for sell-side momentum. Zero momentum
// keeps the positive direction.
func signOf(m float64) float64 {
	if m < 0 {
		return -1
	}
	return 1
}

// JitterAt returns a small coherent jitter vector in [-1,1]^2, used to break
// up the regularity of the stroke grid.
func (s *Sampler) JitterAt(x, y, t float64) (float64, float64) {
	jx := s.noise.at(x*0.02, y*0.02, t*0.3)*2 - 1
	jy := s.noise.at(x*0.02+517.0, y*0.02+133.0, t*0.3)*2 - 1
	return jx, jy
}

// Influence returns each source's raw falloff weight at canvas point (x,y),
// in token order. Used for pointer readouts and the influence guides overlay.
func Influence(tokens []state.Token, w, h, x, y float64) []float64 {
	short := math.Min(w, h)
	out := make([]float64, len(tokens))
	if short <= 0 {
		return out
	}
	for i := range tokens {
		tok := &tokens[i]
		dist := math.Max(math.Hypot(x-tok.AnchorU*w, y-tok.AnchorV*h), minDist)
		out[i] = 1.0 / (1.0 + math.Pow(dist/short, flowExp)*flowGain)
	}
	return out
}
