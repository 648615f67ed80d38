package opt

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/optimize"
)

// LBFGSConfig holds the termination settings forwarded to the gonum L-BFGS
// minimizer.
type LBFGSConfig struct {
	GradTolerance  float64 // Infinity-norm gradient threshold
	MaxIterations  int     // Major iteration cap (0 = unlimited)
	MaxEvaluations int     // Function evaluation cap (0 = unlimited)
	Memory         int     // Number of stored correction pairs
	Progress       ProgressFunc
}

// DefaultLBFGSConfig mirrors the usual L-BFGS-B settings used for functional fitting.
func DefaultLBFGSConfig() LBFGSConfig {
	return LBFGSConfig{
		GradTolerance:  1e-6,
		MaxIterations:  100,
		MaxEvaluations: 100,
		Memory:         10,
	}
}

// LBFGSAdapter wraps gonum's quasi-Newton minimizer to conform to our Optimizer interface
type LBFGSAdapter struct {
	config LBFGSConfig
}

// NewLBFGS creates a new L-BFGS optimizer adapter
func NewLBFGS(config LBFGSConfig) Optimizer {
	return &LBFGSAdapter{config: config}
}

// Minimize runs L-BFGS from x0. The objective is evaluated once per distinct
// location even when gonum asks for the value and gradient separately.
func (l *LBFGSAdapter) Minimize(obj Objective, x0 []float64) (*Result, error) {
	if len(x0) == 0 {
		return nil, fmt.Errorf("lbfgs: empty starting point")
	}

	cache := newEvalCache(obj, len(x0))
	problem := optimize.Problem{
		Func: cache.value,
		Grad: cache.gradient,
	}

	settings := &optimize.Settings{
		GradientThreshold: l.config.GradTolerance,
		MajorIterations:   l.config.MaxIterations,
		FuncEvaluations:   l.config.MaxEvaluations,
	}
	if l.config.Progress != nil {
		settings.Recorder = &progressRecorder{fn: l.config.Progress}
	}

	method := &optimize.LBFGS{Store: l.config.Memory}

	res, err := optimize.Minimize(problem, x0, settings, method)
	if res == nil {
		return nil, fmt.Errorf("lbfgs: %w", err)
	}

	status := res.Status.String()
	if err != nil {
		// Line-search and method failures end the run without a usable
		// minimum; report them through Success like other termination reasons.
		slog.Warn("L-BFGS terminated with error", "status", status, "error", err)
		status = fmt.Sprintf("%s: %v", status, err)
	}

	x, f, grad := res.X, res.F, res.Gradient
	if err != nil && res.MajorIterations == 0 {
		// gonum reports a zero location when the start itself fails; keep
		// the start and the value actually evaluated there.
		x = x0
		f = cache.value(x0)
		grad = make([]float64, len(x0))
		cache.gradient(grad, x0)
	}
	if grad == nil {
		grad = make([]float64, len(x))
		cache.gradient(grad, x)
	}

	return &Result{
		X:           append([]float64(nil), x...),
		F:           f,
		Gradient:    append([]float64(nil), grad...),
		Iterations:  res.MajorIterations,
		Evaluations: cache.evals,
		Success:     err == nil && success(res.Status),
		Status:      status,
	}, nil
}

func success(s optimize.Status) bool {
	switch s {
	case optimize.Success,
		optimize.FunctionThreshold,
		optimize.FunctionConvergence,
		optimize.GradientThreshold,
		optimize.StepConvergence,
		optimize.MethodConverge:
		return true
	}
	return false
}

// evalCache memoizes the last objective evaluation.
type evalCache struct {
	obj   Objective
	x     []float64
	f     float64
	grad  []float64
	valid bool
	evals int
}

func newEvalCache(obj Objective, n int) *evalCache {
	return &evalCache{
		obj:  obj,
		x:    make([]float64, n),
		grad: make([]float64, n),
	}
}

func (c *evalCache) ensure(x []float64) {
	if c.valid && equal(c.x, x) {
		return
	}
	copy(c.x, x)
	c.f = c.obj(c.x, c.grad)
	c.valid = true
	c.evals++
}

func (c *evalCache) value(x []float64) float64 {
	c.ensure(x)
	return c.f
}

func (c *evalCache) gradient(dst, x []float64) {
	c.ensure(x)
	copy(dst, c.grad)
}

func equal(a, b []float64) bool {
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

// progressRecorder forwards major iterations to a ProgressFunc.
type progressRecorder struct {
	fn   ProgressFunc
	iter int
}

func (r *progressRecorder) Init() error {
	r.iter = 0
	return nil
}

func (r *progressRecorder) Record(loc *optimize.Location, op optimize.Operation, _ *optimize.Stats) error {
	if op&optimize.MajorIteration == 0 {
		return nil
	}
	r.fn(r.iter, loc.F, loc.X)
	r.iter++
	return nil
}
