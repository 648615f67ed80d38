package opt

// Objective evaluates the function to minimize at x. When grad is non-nil it
// has len(x) and receives the gradient at x.
type Objective func(x, grad []float64) float64

// ProgressFunc is called once per completed optimizer iteration.
type ProgressFunc func(iteration int, f float64, x []float64)

// Result is the outcome of a minimization.
type Result struct {
	X           []float64 // Final location
	F           float64   // Objective value at X
	Gradient    []float64 // Gradient at X, nil for gradient-free methods
	Iterations  int
	Evaluations int
	Success     bool   // Optimizer-reported success
	Status      string // Optimizer-specific termination reason
}

// Optimizer defines a black-box minimization algorithm
type Optimizer interface {
	// Minimize starts at x0 and returns the best location found.
	// x0 is not modified.
	Minimize(obj Objective, x0 []float64) (*Result, error)
}
