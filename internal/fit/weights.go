package fit

import "github.com/cwbudde/xcfit/internal/xc"

// DefaultWeights gives every parameter the weight 1/nReactions, which makes
// the step sizes and tolerances act on the reaction-averaged loss.
func DefaultWeights(init xc.Params, nReactions int) (xc.Params, error) {
	ones := make(xc.Params, len(init))
	for name := range init {
		ones[name] = 1.0
	}
	return NormalizeWeights(ones, nReactions)
}

// NormalizeWeights divides externally supplied weights by nReactions.
func NormalizeWeights(weights xc.Params, nReactions int) (xc.Params, error) {
	if nReactions <= 0 {
		return nil, configErrorf("weights", "number of reactions must be positive, got %d", nReactions)
	}
	out := make(xc.Params, len(weights))
	for name, w := range weights {
		out[name] = w / float64(nReactions)
	}
	return out, nil
}
