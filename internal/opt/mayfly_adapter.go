package opt

import (
	"fmt"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// MayflyAdapter wraps the external Mayfly library to conform to our Optimizer interface.
// The search runs over offsets from the starting point inside [-span, span]
// in every dimension, since the library only supports scalar bounds.
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
	span     float64
	progress ProgressFunc
}

// NewMayfly creates a new Mayfly optimizer adapter
func NewMayfly(maxIters, popSize int, seed int64, span float64) *MayflyAdapter {
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  popSize,
		seed:     seed,
		span:     span,
	}
}

// WithProgress sets a callback invoked after every improving evaluation.
func (m *MayflyAdapter) WithProgress(fn ProgressFunc) *MayflyAdapter {
	m.progress = fn
	return m
}

// Minimize executes the Mayfly optimization using the external library
func (m *MayflyAdapter) Minimize(obj Objective, x0 []float64) (*Result, error) {
	dim := len(x0)
	if dim == 0 {
		return nil, fmt.Errorf("mayfly: empty starting point")
	}
	if m.span <= 0 {
		return nil, fmt.Errorf("mayfly: search span must be positive, got %g", m.span)
	}

	start := append([]float64(nil), x0...)
	x := make([]float64, dim)
	evals := 0
	best := obj(start, nil)
	f0 := best

	eval := func(z []float64) float64 {
		for i := range x {
			x[i] = start[i] + z[i]
		}
		f := obj(x, nil)
		evals++
		if f < best {
			best = f
			if m.progress != nil {
				m.progress(evals, f, x)
			}
		}
		return f
	}

	// Create config for external Mayfly library
	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = eval
	config.ProblemSize = dim
	config.MaxIterations = m.maxIters
	config.NPop = m.popSize
	config.LowerBound = -m.span
	config.UpperBound = m.span

	// Set random seed for reproducibility
	config.Rand = rand.New(rand.NewSource(m.seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		return nil, fmt.Errorf("mayfly optimization failed: %w", err)
	}

	out := make([]float64, dim)
	for i, z := range result.GlobalBest.Position {
		out[i] = start[i] + z
	}

	res := &Result{
		X:           out,
		F:           result.GlobalBest.Cost,
		Iterations:  m.maxIters,
		Evaluations: evals,
		Success:     result.GlobalBest.Cost < f0,
		Status:      "search budget exhausted",
	}
	if !res.Success {
		// Never report a point worse than the start.
		res.X = start
		res.F = f0
	}
	return res, nil
}
