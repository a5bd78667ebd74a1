// File: internal/glitch/glitch_test.go
package glitch

import (
	"image"
	"testing"
)

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = byte(i * 31)
	}
	return img
}

func rowCopy(img *image.RGBA, y int) []byte {
	w := img.Bounds().Dx()
	off := img.PixOffset(0, y)
	out := make([]byte, w*4)
	copy(out, img.Pix[off:off+w*4])
	return out
}

func rowsEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestShiftRow_CircularRoundTrip(t *testing.T) {
	img := testImage(64, 4)
	for _, n := range []int{1, 7, 31, 63} {
		orig := rowCopy(img, 2)
		ShiftRow(img, 2, n)
		if rowsEqual(orig, rowCopy(img, 2)) {
			t.Fatalf("shift by %d left the row unchanged", n)
		}
		ShiftRow(img, 2, 64-n)
		if !rowsEqual(orig, rowCopy(img, 2)) {
			t.Fatalf("shift by %d then %d did not restore the row", n, 64-n)
		}
	}
}

func TestShiftRow_NegativeAndModularShifts(t *testing.T) {
	img := testImage(32, 2)
	orig := rowCopy(img, 1)
	ShiftRow(img, 1, -5)
	ShiftRow(img, 1, 5)
	if !rowsEqual(orig, rowCopy(img, 1)) {
		t.Fatal("negative shift is not the inverse of the positive shift")
	}
	ShiftRow(img, 1, 32) // full-width shift is the identity
	if !rowsEqual(orig, rowCopy(img, 1)) {
		t.Fatal("full-width shift changed the row")
	}
}

func TestShiftRow_OnlyTouchesItsRow(t *testing.T) {
	img := testImage(16, 3)
	r0 := rowCopy(img, 0)
	r2 := rowCopy(img, 2)
	ShiftRow(img, 1, 9)
	if !rowsEqual(r0, rowCopy(img, 0)) || !rowsEqual(r2, rowCopy(img, 2)) {
		t.Fatal("shifting row 1 disturbed a neighboring row")
	}
}

func TestApply_PreservesPixelMultiset(t *testing.T) {
	img := testImage(40, 40)
	var sumBefore uint64
	for _, p := range img.Pix {
		sumBefore += uint64(p)
	}
	e := New(3)
	e.Apply(img, 1.0, 1.0) // max energy/spread for the highest row chance
	var sumAfter uint64
	for _, p := range img.Pix {
		sumAfter += uint64(p)
	}
	if sumBefore != sumAfter {
		t.Fatalf("glitch changed pixel content, not just position: %d != %d", sumBefore, sumAfter)
	}
}

func TestChanceAt(t *testing.T) {
	if got := ChanceAt(0, 0); got != 0.08 {
		t.Errorf("ChanceAt(0,0) = %v, want 0.08", got)
	}
	if got := ChanceAt(1, 1); got != 0.08+0.36+0.25 {
		t.Errorf("ChanceAt(1,1) = %v", got)
	}
}
