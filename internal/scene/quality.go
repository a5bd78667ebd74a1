// File: internal/scene/quality.go
package scene

import (
	"math"
	"time"
)

const (
	stepMin = 6
	stepMax = 12

	// low-pass filter on the live step
	smoothKeep = 0.82
	smoothGain = 0.18

	frameBudget  = 28 * time.Millisecond
	overloadBump = 1.5
)

// QualityTuner adapts the flow-field grid spacing to scene intensity and the
// previous frame's cost. Busier scenes earn a finer grid; a frame that blew
// the budget coarsens it.
type QualityTuner struct {
	live float64
}

func NewQualityTuner() *QualityTuner {
	return &QualityTuner{live: stepMax}
}

// Step returns the integer grid spacing for the next frame.
func (q *QualityTuner) Step(energy, spread float64, lastFrame time.Duration) int {
	target := float64(stepMax) - energy*4.0 - spread*3.0
	if target < stepMin {
		target = stepMin
	}
	q.live = q.live*smoothKeep + target*smoothGain
	if lastFrame > frameBudget {
		q.live += overloadBump
	}
	if q.live < stepMin {
		q.live = stepMin
	}
	if q.live > stepMax {
		q.live = stepMax
	}
	return int(math.Round(q.live))
}
