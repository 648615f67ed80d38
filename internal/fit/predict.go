package fit

import (
	"fmt"
	"sort"

	"github.com/cwbudde/xcfit/internal/xc"
)

// ComputeMoleculePredictions evaluates the energy model on every molecule.
// The total energy is the base energy plus the model's XC contribution; the
// gradient is the model's gradient, copied unmodified.
//
// The gradient returned by the model must cover exactly the names in params.
func ComputeMoleculePredictions(model xc.Func, params xc.Params, inputs map[string]*MoleculeInput) (map[string]*MoleculePrediction, error) {
	names := params.Names()
	ids := make([]string, 0, len(inputs))
	for id := range inputs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	predictions := make(map[string]*MoleculePrediction, len(inputs))
	for _, id := range ids {
		in := inputs[id]
		if in == nil || in.XC == nil {
			return nil, configErrorf("molecule predictions", "structure %s has no inputs", id)
		}
		exc, dexc, err := model(params, in.XC, in.Weights)
		if err != nil {
			return nil, fmt.Errorf("energy model failed for %s: %w", id, err)
		}
		if err := checkNames("molecule predictions", "energy model gradient for "+id, dexc, names); err != nil {
			return nil, err
		}
		predictions[id] = &MoleculePrediction{
			Energy: in.BaseEnergy + exc,
			Grad:   dexc.Clone(),
		}
	}
	return predictions, nil
}

// ComputeReactionPredictions combines molecule predictions into reaction
// predictions using the integer stoichiometry of each formula.
func ComputeReactionPredictions(formulas map[string]*Formula, mols map[string]*MoleculePrediction, names []string) (map[string]*ReactionPrediction, error) {
	out := make(map[string]*ReactionPrediction, len(formulas))
	for id, f := range formulas {
		if len(f.Structs) == 0 {
			return nil, configErrorf("reaction predictions", "reaction %s has no structures", id)
		}
		if len(f.Structs) != len(f.Counts) {
			return nil, configErrorf("reaction predictions",
				"reaction %s has %d structures but %d counts", id, len(f.Structs), len(f.Counts))
		}

		rp := &ReactionPrediction{
			Grad:   make(xc.Params, len(names)),
			Ref:    HaPerKcal * f.Energy,
			Weight: f.Weight(),
		}
		for _, name := range names {
			rp.Grad[name] = 0
		}

		for i, structID := range f.Structs {
			mp, ok := mols[structID]
			if !ok {
				return nil, configErrorf("reaction predictions",
					"reaction %s references structure %s with no molecule prediction", id, structID)
			}
			count := float64(f.Counts[i])
			rp.Pred += count * mp.Energy
			for _, name := range names {
				g, ok := mp.Grad[name]
				if !ok {
					return nil, configErrorf("reaction predictions",
						"molecule prediction for %s has no gradient for %s", structID, name)
				}
				rp.Grad[name] += count * g
			}
		}
		out[id] = rp
	}
	return out, nil
}
