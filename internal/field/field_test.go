// File: internal/field/field_test.go
package field

import (
	"math"
	"testing"

	"pigmentsea/internal/state"
)

func testToken() state.Token {
	return state.Token{
		ID:        "0xabc",
		Symbol:    "AAA",
		Energy:    0.8,
		Momentum:  0.4,
		Activity:  0.6,
		Phase:     1.1,
		Frequency: 0.9,
		NoiseSeed: 42,
		AnchorU:   0.3,
		AnchorV:   0.7,
		Gradient:  []state.RGB{{R: 10, G: 20, B: 30}, {R: 110, G: 120, B: 130}, {R: 210, G: 220, B: 230}},
	}
}

func TestVectorAt_NoSourcesIsZero(t *testing.T) {
	s := NewSampler(7)
	vx, vy := s.VectorAt(nil, 800, 600, 100, 100, 3.5)
	if vx != 0 || vy != 0 {
		t.Fatalf("vector = (%v,%v), want (0,0)", vx, vy)
	}
}

func TestVectorAt_FiniteEverywhere(t *testing.T) {
	s := NewSampler(7)
	tokens := []state.Token{testToken()}
	// Directly on the anchor the min-distance floor must keep the math sane.
	ax, ay := 0.3*800.0, 0.7*600.0
	for _, p := range [][2]float64{{ax, ay}, {0, 0}, {799, 599}, {400, 300}} {
		vx, vy := s.VectorAt(tokens, 800, 600, p[0], p[1], 12.0)
		if math.IsNaN(vx) || math.IsNaN(vy) || math.IsInf(vx, 0) || math.IsInf(vy, 0) {
			t.Fatalf("vector at %v is not finite: (%v,%v)", p, vx, vy)
		}
		if math.Hypot(vx, vy) == 0 {
			t.Fatalf("vector at %v collapsed to zero with an active source", p)
		}
	}
}

func TestVectorAt_Deterministic(t *testing.T) {
	a := NewSampler(7)
	b := NewSampler(7)
	tokens := []state.Token{testToken()}
	ax, ay := a.VectorAt(tokens, 800, 600, 123, 456, 9.25)
	bx, by := b.VectorAt(tokens, 800, 600, 123, 456, 9.25)
	if ax != bx || ay != by {
		t.Fatalf("same seed diverged: (%v,%v) vs (%v,%v)", ax, ay, bx, by)
	}
}

func TestColorAt_NoSourcesIsFallbackDark(t *testing.T) {
	m := NewMixer(7)
	if got := m.ColorAt(nil, 800, 600, 10, 10, 0); got != FallbackDark {
		t.Fatalf("color = %v, want %v", got, FallbackDark)
	}
}

func TestSampleGradient_Endpoints(t *testing.T) {
	stops := []state.RGB{{R: 0, G: 0, B: 0}, {R: 100, G: 100, B: 100}, {R: 200, G: 200, B: 200}}
	if got := SampleGradient(stops, 0); got != stops[0] {
		t.Errorf("t=0 -> %v, want first stop %v", got, stops[0])
	}
	if got := SampleGradient(stops, 1); got != stops[2] {
		t.Errorf("t=1 -> %v, want last stop %v", got, stops[2])
	}
	if got := SampleGradient(stops, -0.5); got != stops[0] {
		t.Errorf("t<0 -> %v, want first stop", got)
	}
	if got := SampleGradient(stops, 1.5); got != stops[2] {
		t.Errorf("t>1 -> %v, want last stop", got)
	}
}

func TestSampleGradient_Interpolates(t *testing.T) {
	stops := []state.RGB{{R: 0, G: 0, B: 0}, {R: 200, G: 100, B: 50}}
	got := SampleGradient(stops, 0.5)
	want := state.RGB{R: 100, G: 50, B: 25}
	if got != want {
		t.Fatalf("t=0.5 -> %v, want %v", got, want)
	}
	// midpoint of a 3-stop gradient lands exactly on the middle stop
	three := []state.RGB{{R: 0, G: 0, B: 0}, {R: 40, G: 50, B: 60}, {R: 255, G: 255, B: 255}}
	if got := SampleGradient(three, 0.5); got != three[1] {
		t.Fatalf("3-stop t=0.5 -> %v, want middle stop %v", got, three[1])
	}
}

func TestSampleGradient_SingleStop(t *testing.T) {
	stops := []state.RGB{{R: 7, G: 8, B: 9}}
	for _, tt := range []float64{0, 0.3, 1} {
		if got := SampleGradient(stops, tt); got != stops[0] {
			t.Fatalf("t=%v -> %v, want the only stop", tt, got)
		}
	}
}

func TestInfluence_DecreasesWithDistance(t *testing.T) {
	tokens := []state.Token{testToken()}
	ax, ay := 0.3*800.0, 0.7*600.0
	near := Influence(tokens, 800, 600, ax+20, ay)[0]
	far := Influence(tokens, 800, 600, ax+400, ay)[0]
	if near <= far {
		t.Fatalf("influence did not fall off: near=%v far=%v", near, far)
	}
	if far <= 0 {
		t.Fatalf("influence reached zero at distance, want always positive, got %v", far)
	}
}
