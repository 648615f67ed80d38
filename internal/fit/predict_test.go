package fit

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/cwbudde/xcfit/internal/xc"
)

// toyModel: E = a*sum(w*exx_a) + b^2*sum(w*rho_a)
func toyModel(params xc.Params, in *xc.Inputs, weights []float64) (float64, xc.Params, error) {
	var f1, f2 float64
	for i, w := range weights {
		f1 += w * in.ExxA[i]
		f2 += w * in.RhoA[i]
	}
	a, b := params["a"], params["b"]
	return a*f1 + b*b*f2, xc.Params{"a": f1, "b": 2 * b * f2}, nil
}

func toyInput(base, f1, f2 float64) *MoleculeInput {
	return &MoleculeInput{
		XC:         &xc.Inputs{ExxA: []float64{f1}, RhoA: []float64{f2}},
		Weights:    []float64{1},
		BaseEnergy: base,
	}
}

func toyInputs() map[string]*MoleculeInput {
	return map[string]*MoleculeInput{
		"M1": toyInput(-10, -1.0, 0.5),
		"M2": toyInput(-5, -0.5, 1.2),
		"M3": toyInput(-20, -2.0, 0.3),
	}
}

func TestComputeMoleculePredictions(t *testing.T) {
	params := xc.Params{"a": 0.8, "b": 1.5}
	preds, err := ComputeMoleculePredictions(toyModel, params, toyInputs())
	if err != nil {
		t.Fatalf("ComputeMoleculePredictions failed: %v", err)
	}

	if len(preds) != 3 {
		t.Fatalf("Expected 3 predictions, got %d", len(preds))
	}

	want := -10 + 0.8*(-1.0) + 1.5*1.5*0.5
	if preds["M1"].Energy != want {
		t.Errorf("Expected M1 energy %g, got %g", want, preds["M1"].Energy)
	}
	if preds["M1"].Grad["a"] != -1.0 {
		t.Errorf("Expected dE/da = -1, got %g", preds["M1"].Grad["a"])
	}
	if preds["M1"].Grad["b"] != 2*1.5*0.5 {
		t.Errorf("Expected dE/db = 1.5, got %g", preds["M1"].Grad["b"])
	}
}

func TestComputeMoleculePredictionsIsPure(t *testing.T) {
	params := xc.Params{"a": 0.3, "b": -0.7}
	inputs := toyInputs()

	first, err := ComputeMoleculePredictions(toyModel, params, inputs)
	if err != nil {
		t.Fatalf("First evaluation failed: %v", err)
	}
	second, err := ComputeMoleculePredictions(toyModel, params, inputs)
	if err != nil {
		t.Fatalf("Second evaluation failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("Repeated evaluation produced different predictions")
	}
}

func TestComputeMoleculePredictionsGradientMismatch(t *testing.T) {
	extra := func(params xc.Params, in *xc.Inputs, w []float64) (float64, xc.Params, error) {
		e, g, err := toyModel(params, in, w)
		g["c"] = 0
		return e, g, err
	}
	_, err := ComputeMoleculePredictions(extra, xc.Params{"a": 1, "b": 1}, toyInputs())
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("Expected configuration error for extra gradient key, got %v", err)
	}

	// Model gradient lacks a parameter the caller is fitting
	_, err = ComputeMoleculePredictions(toyModel, xc.Params{"a": 1, "b": 1, "c": 0}, toyInputs())
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("Expected configuration error for missing gradient key, got %v", err)
	}
}

func TestComputeMoleculePredictionsPropagatesModelError(t *testing.T) {
	boom := errors.New("model exploded")
	failing := func(xc.Params, *xc.Inputs, []float64) (float64, xc.Params, error) {
		return 0, nil, boom
	}
	_, err := ComputeMoleculePredictions(failing, xc.Params{"a": 1}, toyInputs())
	if !errors.Is(err, boom) {
		t.Fatalf("Expected model error to propagate, got %v", err)
	}
	if errors.Is(err, ErrConfig) {
		t.Error("Model failure must not be reported as a configuration error")
	}
}

func TestReactionSingleStructureMatchesMolecule(t *testing.T) {
	mols := map[string]*MoleculePrediction{
		"A": {Energy: -76.4123456789, Grad: xc.Params{"a": 0.25, "b": -1.5}},
	}
	formulas := map[string]*Formula{
		"R": {Structs: []string{"A"}, Counts: []int{1}, Energy: 0},
	}

	rxns, err := ComputeReactionPredictions(formulas, mols, []string{"a", "b"})
	if err != nil {
		t.Fatalf("ComputeReactionPredictions failed: %v", err)
	}
	if rxns["R"].Pred != mols["A"].Energy {
		t.Errorf("Expected predicted energy %v, got %v", mols["A"].Energy, rxns["R"].Pred)
	}
	if rxns["R"].Grad["a"] != 0.25 || rxns["R"].Grad["b"] != -1.5 {
		t.Errorf("Unexpected gradient %v", rxns["R"].Grad)
	}
}

func TestReactionStoichiometry(t *testing.T) {
	mols := map[string]*MoleculePrediction{
		"H2":  {Energy: -1.17, Grad: xc.Params{"a": 0.1}},
		"O2":  {Energy: -150.3, Grad: xc.Params{"a": 2.0}},
		"H2O": {Energy: -76.4, Grad: xc.Params{"a": 1.1}},
	}
	formulas := map[string]*Formula{
		"water": {Structs: []string{"H2O", "H2", "O2"}, Counts: []int{2, -2, -1}, Energy: -100, NoiseFactor: 2},
	}

	rxns, err := ComputeReactionPredictions(formulas, mols, []string{"a"})
	if err != nil {
		t.Fatalf("ComputeReactionPredictions failed: %v", err)
	}
	rp := rxns["water"]

	wantPred := 2*(-76.4) - 2*(-1.17) - (-150.3)
	if math.Abs(rp.Pred-wantPred) > 1e-12 {
		t.Errorf("Expected predicted energy %g, got %g", wantPred, rp.Pred)
	}
	wantGrad := 2*1.1 - 2*0.1 - 2.0
	if math.Abs(rp.Grad["a"]-wantGrad) > 1e-12 {
		t.Errorf("Expected gradient %g, got %g", wantGrad, rp.Grad["a"])
	}
	if rp.Ref != HaPerKcal*-100 {
		t.Errorf("Expected reference %g, got %g", HaPerKcal*-100, rp.Ref)
	}
	if rp.Weight != 0.25 {
		t.Errorf("Expected weight 0.25, got %g", rp.Weight)
	}
}

func TestReactionMissingStructure(t *testing.T) {
	mols := map[string]*MoleculePrediction{
		"A": {Energy: 0, Grad: xc.Params{"a": 0}},
		"B": {Energy: 0, Grad: xc.Params{"a": 0}},
	}
	formulas := map[string]*Formula{
		"R": {Structs: []string{"A", "C"}, Counts: []int{1, 1}, Energy: 1},
	}

	_, err := ComputeReactionPredictions(formulas, mols, []string{"a"})
	if err == nil {
		t.Fatal("Expected error for missing structure C")
	}
	if !errors.Is(err, ErrConfig) {
		t.Errorf("Expected configuration error, got %T: %v", err, err)
	}
}

func TestReactionMalformedFormula(t *testing.T) {
	mols := map[string]*MoleculePrediction{"A": {Grad: xc.Params{}}}

	tests := map[string]*Formula{
		"empty":    {},
		"mismatch": {Structs: []string{"A"}, Counts: []int{1, 2}},
	}
	for name, f := range tests {
		_, err := ComputeReactionPredictions(map[string]*Formula{name: f}, mols, nil)
		if !errors.Is(err, ErrConfig) {
			t.Errorf("%s: expected configuration error, got %v", name, err)
		}
	}
}

func TestFormulaWeight(t *testing.T) {
	if w := (&Formula{}).Weight(); w != 1.0 {
		t.Errorf("Expected default weight 1, got %g", w)
	}
	if w := (&Formula{NoiseFactor: 0.5}).Weight(); w != 4.0 {
		t.Errorf("Expected weight 4, got %g", w)
	}
}
