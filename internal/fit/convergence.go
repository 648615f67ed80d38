package fit

import (
	"log/slog"
	"math"

	"github.com/cwbudde/xcfit/internal/xc"
)

// Converged reports whether a parameter step is small enough to stop.
// A step converges when |diff[name] * weights[name]| <= tol for every parameter;
// a NaN step never converges.
func Converged(diffs, weights xc.Params, tol float64) bool {
	for name, d := range diffs {
		if !(math.Abs(d*weights[name]) <= tol) {
			return false
		}
	}
	return true
}

// LossTracker records the loss of every evaluated iteration and reports it
// to an optional observer.
type LossTracker struct {
	observer Observer
	history  []float64
	best     float64
}

// NewLossTracker creates a tracker that forwards progress to observer (may be nil).
func NewLossTracker(observer Observer) *LossTracker {
	return &LossTracker{
		observer: observer,
		history:  []float64{},
		best:     math.Inf(1),
	}
}

// Record stores the loss evaluated at params during iteration.
func (t *LossTracker) Record(iteration int, loss float64, params xc.Params) {
	t.history = append(t.history, loss)
	if loss < t.best {
		t.best = loss
	}
	slog.Debug("Fit iteration", "iteration", iteration, "loss", loss)
	if t.observer != nil {
		t.observer(Progress{Iteration: iteration, Loss: loss, Params: params.Clone()})
	}
}

// BestLoss returns the lowest loss seen so far
func (t *LossTracker) BestLoss() float64 {
	return t.best
}

// History returns the full loss history
func (t *LossTracker) History() []float64 {
	return append([]float64{}, t.history...) // Return copy
}
