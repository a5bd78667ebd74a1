// File: internal/field/gradient.go
package field

import "pigmentsea/internal/state"

// SampleGradient interpolates piecewise-linearly across consecutive stops.
// t=0 returns the first stop, t=1 the last; intermediate values blend the
// bracketing pair.
func SampleGradient(stops []state.RGB, t float64) state.RGB {
	switch {
	case len(stops) == 0:
		return FallbackDark
	case len(stops) == 1 || t <= 0:
		return stops[0]
	case t >= 1:
		return stops[len(stops)-1]
	}
	pos := t * float64(len(stops)-1)
	i := int(pos)
	frac := pos - float64(i)
	a, b := stops[i], stops[i+1]
	return state.RGB{
		R: lerp8(a.R, b.R, frac),
		G: lerp8(a.G, b.G, frac),
		B: lerp8(a.B, b.B, frac),
	}
}

func lerp8(a, b uint8, t float64) uint8 {
	v := float64(a) + (float64(b)-float64(a))*t
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return uint8(v + 0.5)
}
