package xc

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// ldaSpinCoeff is the spin-resolved Slater exchange prefactor (3/4)(6/pi)^(1/3).
var ldaSpinCoeff = 0.75 * math.Cbrt(6/math.Pi)

// ldaExchange integrates Slater exchange over both spin channels.
func ldaExchange(in *Inputs, weights []float64) float64 {
	var e float64
	for i, w := range weights {
		e -= w * ldaSpinCoeff * (pow43(in.RhoA[i]) + pow43(in.RhoB[i]))
	}
	return e
}

// exactExchange integrates the exact-exchange energy density.
func exactExchange(in *Inputs, weights []float64) float64 {
	return floats.Dot(weights, in.ExxA) + floats.Dot(weights, in.ExxB)
}

// b88Correction integrates the Becke 88 gradient correction for one value of
// beta and returns it together with its derivative in beta.
func b88Correction(in *Inputs, weights []float64, beta float64) (float64, float64) {
	var e, de float64
	for i, w := range weights {
		ea, dea := b88Point(in.RhoA[i], in.SigmaAA[i], beta)
		eb, deb := b88Point(in.RhoB[i], in.SigmaBB[i], beta)
		e += w * (ea + eb)
		de += w * (dea + deb)
	}
	return e, de
}

// b88Point is -beta rho^(4/3) x^2 / (1 + 6 beta x asinh x) for one spin
// channel, with x = |grad rho| / rho^(4/3).
func b88Point(rho, sigma, beta float64) (float64, float64) {
	if rho <= 0 {
		return 0, 0
	}
	r43 := pow43(rho)
	x := math.Sqrt(sigma) / r43
	x2 := x * x
	denom := 1 + 6*beta*x*math.Asinh(x)
	e := -beta * r43 * x2 / denom
	de := -r43 * x2 / (denom * denom)
	return e, de
}

func pow43(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return v * math.Cbrt(v)
}

// HybridLDA evaluates c_x*E_x[LDA] + c_exx*E_x[exact].
func HybridLDA(params Params, in *Inputs, weights []float64) (float64, Params, error) {
	if err := requireParams(params, ParamCX, ParamCExx); err != nil {
		return 0, nil, err
	}
	if err := in.Validate(weights); err != nil {
		return 0, nil, err
	}
	elda := ldaExchange(in, weights)
	eexx := exactExchange(in, weights)
	e := params[ParamCX]*elda + params[ParamCExx]*eexx
	return e, Params{ParamCX: elda, ParamCExx: eexx}, nil
}

// HybridB88 evaluates (1-a0)*E_x[LDA] + a0*E_x[exact] + c_b88*dE_x[B88](beta).
func HybridB88(params Params, in *Inputs, weights []float64) (float64, Params, error) {
	if err := requireParams(params, ParamA0, ParamCB88, ParamBeta); err != nil {
		return 0, nil, err
	}
	if err := in.Validate(weights); err != nil {
		return 0, nil, err
	}
	a0, cb, beta := params[ParamA0], params[ParamCB88], params[ParamBeta]
	elda := ldaExchange(in, weights)
	eexx := exactExchange(in, weights)
	eb88, deb88 := b88Correction(in, weights, beta)

	e := (1-a0)*elda + a0*eexx + cb*eb88
	grad := Params{
		ParamA0:   eexx - elda,
		ParamCB88: eb88,
		ParamBeta: cb * deb88,
	}
	return e, grad, nil
}
