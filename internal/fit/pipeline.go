package fit

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/cwbudde/xcfit/internal/opt"
	"github.com/cwbudde/xcfit/internal/xc"
)

// Method selects the fitting algorithm.
type Method string

const (
	// MethodGradientDescent takes fixed steps along the weighted negative gradient.
	MethodGradientDescent Method = "gd"
	// MethodLBFGS minimizes with the L-BFGS quasi-Newton method.
	MethodLBFGS Method = "lbfgs"
	// MethodMayfly runs a gradient-free mayfly population search.
	MethodMayfly Method = "mayfly"
)

// ParseMethod resolves a method name.
func ParseMethod(name string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(name))); m {
	case MethodGradientDescent, MethodLBFGS, MethodMayfly:
		return m, nil
	case "bfgs", "l-bfgs", "l-bfgs-b":
		return MethodLBFGS, nil
	}
	return "", fmt.Errorf("unknown fitting method: %s", name)
}

// Progress is reported to an Observer after each evaluated iteration.
type Progress struct {
	Iteration int
	Loss      float64
	Params    xc.Params
}

// Observer receives fitting progress. It is a diagnostic hook only.
type Observer func(Progress)

// Options configures Fit.
type Options struct {
	Method        Method
	MaxIterations int     // Iteration cap (all methods)
	Tolerance     float64 // Weighted step tolerance (gradient descent)
	StepRate      float64 // Relative step rate (gradient descent)

	// Rescale divides parameters by their weights before handing them to
	// the black-box optimizers.
	Rescale        bool
	GradTolerance  float64 // Gradient infinity-norm threshold (L-BFGS)
	MaxEvaluations int     // Function evaluation cap (L-BFGS)

	PopSize    int     // Population size (mayfly)
	SearchSpan float64 // Half-width of the search box in optimizer coordinates (mayfly)
	Seed       int64   // Random seed (mayfly)

	Observer Observer
}

// DefaultOptions returns the default fitting options.
func DefaultOptions() Options {
	return Options{
		Method:         MethodLBFGS,
		MaxIterations:  10,
		Tolerance:      1e-3,
		StepRate:       1e-3,
		Rescale:        true,
		GradTolerance:  1e-6,
		MaxEvaluations: 100,
		PopSize:        30,
		SearchSpan:     1.0,
		Seed:           42,
	}
}

// Result holds the output of a fit.
//
// Loss is the last loss the fitter evaluated. For gradient descent that
// evaluation happens before the final parameter step; for L-BFGS and mayfly it
// is the loss at Params.
type Result struct {
	Converged bool
	Loss      float64
	Params    xc.Params

	// ParamsDiff is the last parameter step for gradient descent, the
	// minimizer's final gradient in optimizer coordinates for L-BFGS and
	// Params minus the initial parameters for mayfly.
	ParamsDiff xc.Params

	BestLoss    float64 // Lowest reported loss, +Inf when none was reported
	Iterations  int
	Evaluations int
	History     []float64 // Loss per reported iteration
	Method      Method
	Status      string
}

// Fit finds functional parameters minimizing the weighted squared
// reaction-energy error over formulas.
func Fit(model xc.Func, inputs map[string]*MoleculeInput, formulas map[string]*Formula,
	init, weights xc.Params, opts Options) (*Result, error) {

	if model == nil {
		return nil, configErrorf("fit", "no energy model")
	}
	if len(init) == 0 {
		return nil, configErrorf("fit", "no initial parameters")
	}
	if opts.MaxIterations < 1 {
		return nil, configErrorf("fit", "max iterations must be positive, got %d", opts.MaxIterations)
	}
	names := init.Names()
	if err := checkNames("fit", "parameter weights", weights, names); err != nil {
		return nil, err
	}
	for _, name := range names {
		if !(weights[name] > 0) {
			return nil, configErrorf("fit", "weight for %s must be positive, got %g", name, weights[name])
		}
	}

	p := &problem{model: model, inputs: inputs, formulas: formulas, names: names}

	slog.Info("Starting fit", "method", opts.Method, "params", len(names), "reactions", len(formulas))

	var (
		res *Result
		err error
	)
	switch opts.Method {
	case MethodGradientDescent:
		res, err = gradientDescent(p, init, weights, opts)
	case MethodLBFGS:
		res, err = quasiNewton(p, init, weights, opts)
	case MethodMayfly:
		res, err = mayflySearch(p, init, weights, opts)
	default:
		return nil, configErrorf("fit", "unknown method %q", opts.Method)
	}
	if err != nil {
		return nil, err
	}
	res.Method = opts.Method

	slog.Info("Fit complete", "method", opts.Method, "converged", res.Converged,
		"loss", res.Loss, "best_loss", res.BestLoss, "iterations", res.Iterations)
	return res, nil
}

// gradientDescent updates params[name] -= rate * weight[name] * grad[name]
// until every weighted step is within tolerance.
func gradientDescent(p *problem, init, weights xc.Params, opts Options) (*Result, error) {
	params := init.Clone()
	oldParams := init.Clone()
	diffs := make(xc.Params, len(p.names))
	tracker := NewLossTracker(opts.Observer)

	var loss float64
	converged := false
	iterations := 0
	for iterations < opts.MaxIterations {
		l, grad, err := p.evaluate(params)
		if err != nil {
			return nil, err
		}
		loss = l
		tracker.Record(iterations, loss, params)
		iterations++

		for _, name := range p.names {
			params[name] -= opts.StepRate * weights[name] * grad[name]
			diffs[name] = params[name] - oldParams[name]
		}
		converged = Converged(diffs, weights, opts.Tolerance)
		if converged {
			break
		}
		oldParams = params.Clone()
	}

	return &Result{
		Converged:   converged,
		Loss:        loss,
		Params:      params,
		ParamsDiff:  diffs,
		Iterations:  iterations,
		Evaluations: iterations,
		History:     tracker.History(),
		BestLoss:    tracker.BestLoss(),
		Status:      descentStatus(converged),
	}, nil
}

func descentStatus(converged bool) string {
	if converged {
		return "step tolerance reached"
	}
	return "iteration limit"
}

// scaledObjective maps between named parameters and the flat optimizer
// vector ordered by sorted parameter name.
type scaledObjective struct {
	p     *problem
	scale []float64
	err   error // First energy-model or configuration error
	evals int
}

func newScaledObjective(p *problem, weights xc.Params, rescale bool) *scaledObjective {
	scale := make([]float64, len(p.names))
	for i, name := range p.names {
		scale[i] = 1
		if rescale {
			scale[i] = weights[name]
		}
	}
	return &scaledObjective{p: p, scale: scale}
}

func (s *scaledObjective) toVector(params xc.Params) []float64 {
	x := make([]float64, len(s.p.names))
	for i, name := range s.p.names {
		x[i] = params[name] / s.scale[i]
	}
	return x
}

func (s *scaledObjective) toParams(x []float64) xc.Params {
	params := make(xc.Params, len(x))
	for i, name := range s.p.names {
		params[name] = x[i] * s.scale[i]
	}
	return params
}

// eval is the opt.Objective. After the first error it short-circuits with NaN
// so the optimizer stops quickly; the error is reported by the caller.
func (s *scaledObjective) eval(x, grad []float64) float64 {
	if s.err != nil {
		fillNaN(grad)
		return math.NaN()
	}
	s.evals++
	loss, g, err := s.p.evaluate(s.toParams(x))
	if err != nil {
		s.err = err
		fillNaN(grad)
		return math.NaN()
	}
	for i, name := range s.p.names {
		if grad != nil {
			grad[i] = g[name] * s.scale[i]
		}
	}
	return loss
}

func fillNaN(v []float64) {
	for i := range v {
		v[i] = math.NaN()
	}
}

// quasiNewton hands the loss to gonum's L-BFGS and reports its outcome.
func quasiNewton(p *problem, init, weights xc.Params, opts Options) (*Result, error) {
	obj := newScaledObjective(p, weights, opts.Rescale)
	tracker := NewLossTracker(opts.Observer)

	config := opt.DefaultLBFGSConfig()
	config.GradTolerance = opts.GradTolerance
	config.MaxIterations = opts.MaxIterations
	config.MaxEvaluations = opts.MaxEvaluations
	config.Progress = func(iteration int, f float64, x []float64) {
		tracker.Record(iteration, f, obj.toParams(x))
	}

	res, err := opt.NewLBFGS(config).Minimize(obj.eval, obj.toVector(init))
	if obj.err != nil {
		return nil, obj.err
	}
	if err != nil {
		return nil, err
	}

	diffs := make(xc.Params, len(p.names))
	for i, name := range p.names {
		diffs[name] = res.Gradient[i]
	}

	return &Result{
		Converged:   res.Success,
		Loss:        res.F,
		Params:      obj.toParams(res.X),
		ParamsDiff:  diffs,
		Iterations:  res.Iterations,
		Evaluations: obj.evals,
		History:     tracker.History(),
		BestLoss:    tracker.BestLoss(),
		Status:      res.Status,
	}, nil
}

// mayflySearch runs the gradient-free mayfly search around the initial parameters.
func mayflySearch(p *problem, init, weights xc.Params, opts Options) (*Result, error) {
	obj := newScaledObjective(p, weights, opts.Rescale)
	tracker := NewLossTracker(opts.Observer)

	optimizer := opt.NewMayfly(opts.MaxIterations, opts.PopSize, opts.Seed, opts.SearchSpan).
		WithProgress(func(evaluation int, f float64, x []float64) {
			tracker.Record(evaluation, f, obj.toParams(x))
		})

	res, err := optimizer.Minimize(obj.eval, obj.toVector(init))
	if obj.err != nil {
		return nil, obj.err
	}
	if err != nil {
		return nil, err
	}

	params := obj.toParams(res.X)
	diffs := make(xc.Params, len(p.names))
	for _, name := range p.names {
		diffs[name] = params[name] - init[name]
	}

	return &Result{
		Converged:   res.Success,
		Loss:        res.F,
		Params:      params,
		ParamsDiff:  diffs,
		Iterations:  res.Iterations,
		Evaluations: obj.evals,
		History:     tracker.History(),
		BestLoss:    tracker.BestLoss(),
		Status:      res.Status,
	}, nil
}
