package xc

import (
	"math"
	"testing"
)

func testInputs() (*Inputs, []float64) {
	in := &Inputs{
		RhoA:    []float64{0.30, 0.12, 0.05, 0.01},
		RhoB:    []float64{0.25, 0.10, 0.06, 0.00},
		SigmaAA: []float64{0.020, 0.015, 0.004, 0.0005},
		SigmaAB: []float64{0.018, 0.012, 0.004, 0.0},
		SigmaBB: []float64{0.016, 0.011, 0.005, 0.0},
		TauA:    []float64{0.10, 0.05, 0.02, 0.004},
		TauB:    []float64{0.09, 0.04, 0.02, 0.0},
		ExxA:    []float64{-0.20, -0.07, -0.02, -0.003},
		ExxB:    []float64{-0.18, -0.06, -0.025, 0.0},
	}
	weights := []float64{0.5, 1.0, 2.0, 4.0}
	return in, weights
}

func TestHybridLDALinear(t *testing.T) {
	in, w := testInputs()

	e1, g1, err := HybridLDA(Params{ParamCX: 1, ParamCExx: 0}, in, w)
	if err != nil {
		t.Fatalf("HybridLDA failed: %v", err)
	}
	e2, _, err := HybridLDA(Params{ParamCX: 0, ParamCExx: 1}, in, w)
	if err != nil {
		t.Fatalf("HybridLDA failed: %v", err)
	}
	if e1 != g1[ParamCX] {
		t.Errorf("Expected dE/dc_x = E_lda = %g, got %g", e1, g1[ParamCX])
	}
	if e2 != g1[ParamCExx] {
		t.Errorf("Expected dE/dc_exx = E_exx = %g, got %g", e2, g1[ParamCExx])
	}

	wantExx := 0.5*(-0.38) + 1.0*(-0.13) + 2.0*(-0.045) + 4.0*(-0.003)
	if math.Abs(e2-wantExx) > 1e-12 {
		t.Errorf("Expected exact exchange %g, got %g", wantExx, e2)
	}
	if e1 >= 0 {
		t.Errorf("LDA exchange should be negative, got %g", e1)
	}
}

func TestHybridB88GradientMatchesFiniteDifference(t *testing.T) {
	in, w := testInputs()
	params := Params{ParamA0: 0.2, ParamCB88: 0.72, ParamBeta: 0.0042}

	_, grad, err := HybridB88(params, in, w)
	if err != nil {
		t.Fatalf("HybridB88 failed: %v", err)
	}

	for _, name := range params.Names() {
		h := 1e-6 * math.Max(1, math.Abs(params[name]))
		plus := params.Clone()
		plus[name] += h
		minus := params.Clone()
		minus[name] -= h
		ep, _, _ := HybridB88(plus, in, w)
		em, _, _ := HybridB88(minus, in, w)
		fd := (ep - em) / (2 * h)
		if math.Abs(fd-grad[name]) > 1e-6*math.Max(1, math.Abs(fd)) {
			t.Errorf("Gradient mismatch for %s: analytic %g, finite difference %g", name, grad[name], fd)
		}
	}
}

func TestHybridB88ReducesToHybridLDA(t *testing.T) {
	in, w := testInputs()

	eb, _, err := HybridB88(Params{ParamA0: 0.25, ParamCB88: 0, ParamBeta: 0.0042}, in, w)
	if err != nil {
		t.Fatalf("HybridB88 failed: %v", err)
	}
	el, _, err := HybridLDA(Params{ParamCX: 0.75, ParamCExx: 0.25}, in, w)
	if err != nil {
		t.Fatalf("HybridLDA failed: %v", err)
	}
	if math.Abs(eb-el) > 1e-12 {
		t.Errorf("Expected equal energies with c_b88=0, got %g vs %g", eb, el)
	}
}

func TestMissingParameter(t *testing.T) {
	in, w := testInputs()
	if _, _, err := HybridB88(Params{ParamA0: 0.2, ParamCB88: 0.72}, in, w); err == nil {
		t.Fatal("Expected error for missing beta")
	}
	if _, _, err := HybridLDA(Params{ParamCX: 1}, in, w); err == nil {
		t.Fatal("Expected error for missing c_exx")
	}
}

func TestInputsValidate(t *testing.T) {
	in, w := testInputs()
	if err := in.Validate(w); err != nil {
		t.Fatalf("Expected valid inputs, got %v", err)
	}
	in.TauB = in.TauB[:2]
	if err := in.Validate(w); err == nil {
		t.Fatal("Expected length mismatch error")
	}
}
