// File: internal/scene/compositor.go
//
// Package scene paints the animated flow field: backdrop washes, anchor
// halos, grid strokes, optional guides and curatorial text, with an adaptive
// quality step keeping frame cost inside budget.
package scene

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync/atomic"
	"time"

	"github.com/fogleman/gg"
	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"pigmentsea/internal/field"
	"pigmentsea/internal/state"
)

// Compositor draws one frame at a time onto an owned RGBA canvas. The render
// loop is its only caller; the two display flags may be flipped from other
// goroutines.
type Compositor struct {
	width, height int
	img           *image.RGBA
	dc            *gg.Context

	sampler *field.Sampler
	mixer   *field.Mixer
	tuner   *QualityTuner

	titleFace font.Face
	bodyFace  font.Face

	ShowOverlay atomic.Bool
	ShowGuides  atomic.Bool
}

func New(w, h int, sampler *field.Sampler, mixer *field.Mixer) (*Compositor, error) {
	ft, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse bundled font: %w", err)
	}
	title, err := opentype.NewFace(ft, &opentype.FaceOptions{Size: 23, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("title face: %w", err)
	}
	body, err := opentype.NewFace(ft, &opentype.FaceOptions{Size: 13, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("body face: %w", err)
	}
	c := &Compositor{
		sampler:   sampler,
		mixer:     mixer,
		tuner:     NewQualityTuner(),
		titleFace: title,
		bodyFace:  body,
	}
	c.Resize(w, h)
	return c, nil
}

// Resize recreates the canvas at the new size. Scene state and the quality
// tuner survive; only the pixels are lost.
func (c *Compositor) Resize(w, h int) {
	if w < 64 {
		w = 64
	}
	if h < 64 {
		h = 64
	}
	c.width, c.height = w, h
	c.img = image.NewRGBA(image.Rect(0, 0, w, h))
	c.dc = gg.NewContextForRGBA(c.img)
	c.dc.SetRGB(0.02, 0.03, 0.06)
	c.dc.Clear()
}

func (c *Compositor) Size() (int, int) { return c.width, c.height }

// Frame renders the scene at time t (seconds since start). lastFrame is the
// previous frame's wall cost, fed to the quality tuner. The returned image is
// owned by the compositor and valid until the next Frame or Resize call.
func (c *Compositor) Frame(sc *state.Scene, t float64, lastFrame time.Duration) *image.RGBA {
	w, h := float64(c.width), float64(c.height)
	step := c.tuner.Step(sc.GlobalEnergy, sc.EnergySpread, lastFrame)

	c.drawBackdrop(sc, w, h)
	c.drawHalos(sc, t, w, h)
	c.drawStrokes(sc, t, w, h, step)
	if c.ShowGuides.Load() {
		c.drawGuides(sc, w, h)
	}
	c.drawCuratorial(sc, w, h)
	if c.ShowOverlay.Load() {
		c.drawOverlay(sc, step, lastFrame)
	}
	return c.img
}

// drawBackdrop lays a translucent darkening wash (leaving motion trails from
// the previous frame), a directional tint from the first two sources, and a
// spread-scaled vignette.
func (c *Compositor) drawBackdrop(sc *state.Scene, w, h float64) {
	dc := c.dc
	dc.SetRGBA(0.02, 0.035, 0.07, clampUnit(0.20+0.50*(1-sc.GlobalEnergy)))
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()

	if len(sc.Tokens) > 0 {
		c0 := headColor(sc.Tokens, 0)
		c1 := headColor(sc.Tokens, 1)
		grad := gg.NewLinearGradient(0, 0, w, h)
		grad.AddColorStop(0, color.NRGBA{c0.R, c0.G, c0.B, 26})
		grad.AddColorStop(1, color.NRGBA{c1.R, c1.G, c1.B, 18})
		dc.SetFillStyle(grad)
		dc.DrawRectangle(0, 0, w, h)
		dc.Fill()
	}

	vig := gg.NewRadialGradient(w/2, h/2, math.Min(w, h)*0.28, w/2, h/2, math.Hypot(w, h)/2)
	vig.AddColorStop(0, color.NRGBA{0, 0, 0, 0})
	vig.AddColorStop(1, color.NRGBA{0, 0, 0, uint8(clampUnit(0.25+0.55*sc.EnergySpread) * 255)})
	dc.SetFillStyle(vig)
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()
}

// drawHalos paints a soft circle at each anchor, sized by activity, with a
// slow sinusoidal hue walk around the token's lead color.
func (c *Compositor) drawHalos(sc *state.Scene, t, w, h float64) {
	dc := c.dc
	short := math.Min(w, h)
	for i := range sc.Tokens {
		tok := &sc.Tokens[i]
		ax := tok.AnchorU * w
		ay := tok.AnchorV * h
		r := (0.045 + 0.11*tok.Activity) * short * (1 + 0.08*math.Sin(t*0.9+tok.Phase))

		lead := tok.Gradient[0]
		base := colorful.Color{R: float64(lead.R) / 255, G: float64(lead.G) / 255, B: float64(lead.B) / 255}
		hue, sat, val := base.Hsv()
		walked := colorful.Hsv(math.Mod(hue+14*math.Sin(t*0.25+tok.Phase)+360, 360), sat, val)
		wr, wg, wb := walked.RGB255()

		alpha := uint8(clampUnit(0.10+0.14*tok.Activity) * 255)
		halo := gg.NewRadialGradient(ax, ay, 0, ax, ay, r)
		halo.AddColorStop(0, color.NRGBA{wr, wg, wb, alpha})
		halo.AddColorStop(1, color.NRGBA{wr, wg, wb, 0})
		dc.SetFillStyle(halo)
		dc.DrawCircle(ax, ay, r)
		dc.Fill()
	}
}

// drawStrokes rasterizes the flow field on the tuned grid: short jittered
// line segments along the sampled vector, colored by the mixer.
func (c *Compositor) drawStrokes(sc *state.Scene, t, w, h float64, step int) {
	dc := c.dc
	fs := float64(step)
	length := fs * (1.2 + sc.GlobalEnergy*1.1)
	alpha := int(clampUnit(0.16+0.42*sc.GlobalEnergy-0.08*sc.EnergySpread) * 255)
	dc.SetLineWidth(1.1)
	for gy := fs / 2; gy < h; gy += fs {
		for gx := fs / 2; gx < w; gx += fs {
			vx, vy := c.sampler.VectorAt(sc.Tokens, w, h, gx, gy, t)
			jx, jy := c.sampler.JitterAt(gx, gy, t)
			vx += jx * 0.35
			vy += jy * 0.35
			col := c.mixer.ColorAt(sc.Tokens, w, h, gx, gy, t)
			dc.SetRGBA255(int(col.R), int(col.G), int(col.B), alpha)
			dc.DrawLine(gx, gy, gx+vx*length, gy+vy*length)
			dc.Stroke()
		}
	}
}

// drawGuides overlays anchor rings, falloff extents and symbols for each
// influence source.
func (c *Compositor) drawGuides(sc *state.Scene, w, h float64) {
	dc := c.dc
	short := math.Min(w, h)
	dc.SetFontFace(c.bodyFace)
	for i := range sc.Tokens {
		tok := &sc.Tokens[i]
		ax := tok.AnchorU * w
		ay := tok.AnchorV * h
		lead := tok.Gradient[0]

		dc.SetRGBA255(int(lead.R), int(lead.G), int(lead.B), 200)
		dc.SetLineWidth(1.4)
		dc.DrawCircle(ax, ay, 6)
		dc.Stroke()
		dc.SetRGBA255(int(lead.R), int(lead.G), int(lead.B), 70)
		dc.DrawCircle(ax, ay, short*0.18*(0.5+tok.Activity))
		dc.Stroke()

		dc.SetRGBA(0.92, 0.94, 0.97, 0.9)
		dc.DrawString(fmt.Sprintf("%s e=%.2f m=%+.2f", tok.Symbol, tok.Energy, tok.Momentum), ax+10, ay-8)
	}
}

// drawCuratorial renders the title and the word-wrapped, ellipsis-fitted
// description in the lower-left corner.
func (c *Compositor) drawCuratorial(sc *state.Scene, w, h float64) {
	dc := c.dc
	margin := 26.0
	maxWidth := w*0.62 - margin

	dc.SetFontFace(c.titleFace)
	title := TruncateWithEllipsis(sc.Title, func(s string) float64 {
		tw, _ := dc.MeasureString(s)
		return tw
	}, maxWidth)
	dc.SetRGBA(0.95, 0.96, 0.98, 0.92)
	dc.DrawString(title, margin, h-margin-40)

	dc.SetFontFace(c.bodyFace)
	lines := WrapText(sc.Description, func(s string) float64 {
		tw, _ := dc.MeasureString(s)
		return tw
	}, maxWidth, 2)
	dc.SetRGBA(0.80, 0.83, 0.88, 0.78)
	for i, ln := range lines {
		dc.DrawString(ln, margin, h-margin-18+float64(i)*16)
	}
}

// drawOverlay paints the debug panel: scene scalars, grid step and per-token
// drivers.
func (c *Compositor) drawOverlay(sc *state.Scene, step int, lastFrame time.Duration) {
	dc := c.dc
	lines := []string{
		fmt.Sprintf("energy %.3f  bias %+.3f  spread %.3f", sc.GlobalEnergy, sc.MomentumBias, sc.EnergySpread),
		fmt.Sprintf("step %dpx  frame %.1fms  tokens %d", step, lastFrame.Seconds()*1000, len(sc.Tokens)),
		"updated " + sc.LastUpdate,
	}
	for i := range sc.Tokens {
		tok := &sc.Tokens[i]
		lines = append(lines, fmt.Sprintf("%-8s e=%.2f m=%+.2f a=%.2f f=%.2f",
			tok.Symbol, tok.Energy, tok.Momentum, tok.Activity, tok.Frequency))
	}

	dc.SetFontFace(c.bodyFace)
	panelW := 0.0
	for _, ln := range lines {
		if tw, _ := dc.MeasureString(ln); tw > panelW {
			panelW = tw
		}
	}
	x := float64(c.width) - panelW - 36
	y := 18.0
	dc.SetRGBA(0, 0, 0, 0.48)
	dc.DrawRectangle(x-10, y-4, panelW+20, float64(len(lines))*16+14)
	dc.Fill()
	dc.SetRGBA(0.85, 0.88, 0.92, 0.92)
	for i, ln := range lines {
		dc.DrawString(ln, x, y+14+float64(i)*16)
	}
}

func headColor(tokens []state.Token, i int) state.RGB {
	if i >= len(tokens) {
		i = len(tokens) - 1
	}
	return tokens[i].Gradient[0]
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
