// File: internal/field/noise.go
package field

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// noiseField wraps a normalized 3D simplex noise source shared by the flow
// sampler and the color mixer. Eval3 returns values in [0,1].
type noiseField struct {
	n opensimplex.Noise
}

func newNoiseField(seed int64) noiseField {
	return noiseField{n: opensimplex.NewNormalized(seed)}
}

func (nf noiseField) at(x, y, t float64) float64 {
	return nf.n.Eval3(x, y, t)
}

// seedOffsets hashes a token's noise seed into two deterministic offsets so
// every source samples its own noise neighborhood. The second axis is salted
// to decorrelate it from the first.
func seedOffsets(seed float64) (float64, float64) {
	return hashOffset(seed, 0.0), hashOffset(seed, 1.0)
}

func hashOffset(seed, salt float64) float64 {
	v := math.Sin(seed*12.9898+salt*78.233) * 43758.5453
	return (v - math.Floor(v)) * 1024.0
}
