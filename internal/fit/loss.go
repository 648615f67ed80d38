package fit

import (
	"sort"

	"github.com/cwbudde/xcfit/internal/xc"
)

// ComputeLossAndGradient returns the weighted least-squares loss
//
//	L = sum_r 0.5 * w_r * (pred_r - ref_r)^2
//
// and its gradient dL/dp = sum_r w_r * (pred_r - ref_r) * dpred_r/dp.
// Reactions are accumulated in sorted id order.
func ComputeLossAndGradient(rxns map[string]*ReactionPrediction, names []string) (float64, xc.Params) {
	ids := make([]string, 0, len(rxns))
	for id := range rxns {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var loss float64
	grad := make(xc.Params, len(names))
	for _, name := range names {
		grad[name] = 0
	}
	for _, id := range ids {
		rp := rxns[id]
		diff := rp.Pred - rp.Ref
		loss += 0.5 * rp.Weight * diff * diff
		scaled := rp.Weight * diff
		for _, name := range names {
			grad[name] += scaled * rp.Grad[name]
		}
	}
	return loss, grad
}

// problem bundles the fixed fitting data with the energy model.
type problem struct {
	model    xc.Func
	inputs   map[string]*MoleculeInput
	formulas map[string]*Formula
	names    []string
}

// evaluate computes the loss and gradient at params.
func (p *problem) evaluate(params xc.Params) (float64, xc.Params, error) {
	mols, err := ComputeMoleculePredictions(p.model, params, p.inputs)
	if err != nil {
		return 0, nil, err
	}
	rxns, err := ComputeReactionPredictions(p.formulas, mols, p.names)
	if err != nil {
		return 0, nil, err
	}
	loss, grad := ComputeLossAndGradient(rxns, p.names)
	return loss, grad, nil
}
