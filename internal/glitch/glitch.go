// File: internal/glitch/glitch.go
//
// Package glitch implements the cosmetic per-row horizontal pixel shift
// applied to the rendered frame. It is a pure post-process: the flow and
// color model never see it.
package glitch

import (
	"image"
	"math/rand"
)

// Effect perturbs pixel rows of an RGBA frame. Not safe for concurrent use;
// the render loop owns it.
type Effect struct {
	rng *rand.Rand
}

func New(seed int64) *Effect {
	return &Effect{rng: rand.New(rand.NewSource(seed))}
}

// ChanceAt returns the per-frame probability that the effect fires.
func ChanceAt(energy, spread float64) float64 {
	return 0.08 + energy*0.36 + spread*0.25
}

// Apply shifts randomly chosen rows horizontally, wrapping around the row.
// Rows are visited at a random vertical step of 8-22 px; each visited row
// fires independently with probability 0.07 + energy*0.24, and shifts by a
// random signed offset bounded by 8 + energy*36 + spread*14.
func (e *Effect) Apply(img *image.RGBA, energy, spread float64) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 1 || h == 0 {
		return
	}
	step := 8 + e.rng.Intn(15) // 8..22
	maxShift := 8.0 + energy*36.0 + spread*14.0
	rowChance := 0.07 + energy*0.24
	for y := 0; y < h; y += step {
		if e.rng.Float64() >= rowChance {
			continue
		}
		shift := int((e.rng.Float64()*2 - 1) * maxShift)
		ShiftRow(img, y, shift)
	}
}

// ShiftRow circularly shifts row y of img by shift pixels (positive moves
// pixels right). A shift of N followed by width-N restores the row.
func ShiftRow(img *image.RGBA, y, shift int) {
	b := img.Bounds()
	w := b.Dx()
	if w <= 1 {
		return
	}
	shift = ((shift % w) + w) % w
	if shift == 0 {
		return
	}
	off := img.PixOffset(b.Min.X, b.Min.Y+y)
	row := img.Pix[off : off+w*4]
	tmp := make([]byte, len(row))
	copy(tmp[shift*4:], row[:(w-shift)*4])
	copy(tmp[:shift*4], row[(w-shift)*4:])
	copy(row, tmp)
}
