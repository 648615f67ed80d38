// Package xc holds the parametric exchange-correlation energy models the
// fitter can train. Every family is exposed through the same function type so
// the fitting loop never needs to know which functional it is driving.
package xc

import (
	"fmt"
	"sort"
	"strings"
)

// Params maps a functional parameter name to its value.
type Params map[string]float64

// Names returns the parameter names in sorted order.
func (p Params) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent copy of p.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Func evaluates the XC energy of one molecule for the given parameters.
// It returns the integrated energy and its derivative with respect to every
// parameter of the family. Implementations must be pure.
type Func func(params Params, in *Inputs, weights []float64) (float64, Params, error)

// Kind names a supported functional family.
type Kind string

const (
	// KindHybridLDA mixes Slater exchange with exact exchange.
	KindHybridLDA Kind = "hyb-lda"
	// KindHybridB88 adds a Becke 88 gradient correction to KindHybridLDA.
	KindHybridB88 Kind = "hyb-b88"
)

// Kinds lists every supported family.
func Kinds() []Kind {
	return []Kind{KindHybridLDA, KindHybridB88}
}

// ParseKind resolves a user-supplied model name.
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unsupported functional model %q (supported: %v)", name, Kinds())
}

// Lookup returns the energy function for a family.
func Lookup(kind Kind) (Func, error) {
	switch kind {
	case KindHybridLDA:
		return HybridLDA, nil
	case KindHybridB88:
		return HybridB88, nil
	}
	return nil, fmt.Errorf("unsupported functional model %q", kind)
}

// DefaultParams returns a fresh copy of the default parameter template of a family.
func DefaultParams(kind Kind) (Params, error) {
	switch kind {
	case KindHybridLDA:
		return Params{ParamCX: 0.75, ParamCExx: 0.25}, nil
	case KindHybridB88:
		return Params{ParamA0: 0.20, ParamCB88: 0.72, ParamBeta: 0.0042}, nil
	}
	return nil, fmt.Errorf("unsupported functional model %q", kind)
}

// Parameter names used by the built-in families.
const (
	ParamCX   = "c_x"
	ParamCExx = "c_exx"
	ParamA0   = "a0"
	ParamCB88 = "c_b88"
	ParamBeta = "beta"
)

func requireParams(params Params, names ...string) error {
	for _, name := range names {
		if _, ok := params[name]; !ok {
			return fmt.Errorf("missing parameter %q", name)
		}
	}
	return nil
}
