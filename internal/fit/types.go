package fit

import "github.com/cwbudde/xcfit/internal/xc"

// HaPerKcal converts reference reaction energies from kcal/mol to Hartree.
const HaPerKcal = 0.001593601

// MoleculeInput is the fixed per-structure data the energy model is evaluated on.
type MoleculeInput struct {
	XC         *xc.Inputs // Density features on the integration grid
	Weights    []float64  // Integration weights
	BaseEnergy float64    // Non-XC energy, held fixed during fitting
}

// MoleculePrediction is the predicted total energy of one structure and its
// derivative with respect to every functional parameter.
type MoleculePrediction struct {
	Energy float64
	Grad   xc.Params
}

// Formula describes one reaction of a reference database.
type Formula struct {
	Structs []string // Structure ids
	Counts  []int    // Stoichiometric count of each structure
	Energy  float64  // Reference reaction energy in kcal/mol

	// NoiseFactor scales the fit weight as 1/NoiseFactor^2. Zero means unset.
	NoiseFactor float64
}

// Weight returns the least-squares weight of the reaction.
func (f *Formula) Weight() float64 {
	noise := f.NoiseFactor
	if noise == 0 {
		noise = 1.0
	}
	return 1.0 / (noise * noise)
}

// ReactionPrediction is the predicted reaction energy for the current parameters.
type ReactionPrediction struct {
	Pred   float64   // Predicted reaction energy (Ha)
	Grad   xc.Params // Derivative of Pred with respect to each parameter
	Ref    float64   // Reference reaction energy (Ha)
	Weight float64
}

// Residual returns Pred - Ref.
func (r *ReactionPrediction) Residual() float64 {
	return r.Pred - r.Ref
}
