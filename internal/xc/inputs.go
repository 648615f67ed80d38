package xc

import "fmt"

// Inputs are the spin-resolved density features on the integration grid of
// one molecule. All slices share the grid length.
type Inputs struct {
	RhoA, RhoB                []float64
	SigmaAA, SigmaAB, SigmaBB []float64
	TauA, TauB                []float64
	ExxA, ExxB                []float64
}

// Len returns the number of grid points.
func (in *Inputs) Len() int {
	return len(in.RhoA)
}

// Validate checks that every feature array matches the weights length.
func (in *Inputs) Validate(weights []float64) error {
	n := len(weights)
	fields := []struct {
		name string
		data []float64
	}{
		{"rho_a", in.RhoA}, {"rho_b", in.RhoB},
		{"sigma_aa", in.SigmaAA}, {"sigma_ab", in.SigmaAB}, {"sigma_bb", in.SigmaBB},
		{"tau_a", in.TauA}, {"tau_b", in.TauB},
		{"exx_a", in.ExxA}, {"exx_b", in.ExxB},
	}
	for _, f := range fields {
		if len(f.data) != n {
			return fmt.Errorf("input %s has %d points, weights have %d", f.name, len(f.data), n)
		}
	}
	return nil
}
