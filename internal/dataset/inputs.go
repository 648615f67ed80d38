package dataset

import (
	"fmt"

	"github.com/cwbudde/xcfit/internal/fit"
	"github.com/cwbudde/xcfit/internal/xc"
)

// DefaultDensityCutoff drops grid points whose total density is at or below it.
const DefaultDensityCutoff = 1e-9

// BuildInputs converts stored analysis data into the energy-model inputs of
// one molecule, keeping only grid points with total density above cutoff.
//
// Restricted densities are split evenly between the spin channels, so each
// channel gets half of rho, tau and the exchange energy density, and every
// sigma component is |grad rho|^2 / 4. Unrestricted channels are used as
// stored with sigma_ab = grad rho_a . grad rho_b.
func BuildInputs(data *MoleculeData, cutoff float64) (*fit.MoleculeInput, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}

	keep := keptPoints(data, cutoff)
	if len(keep) == 0 {
		return nil, fmt.Errorf("no grid points above density cutoff %g", cutoff)
	}

	n := len(keep)
	in := &xc.Inputs{
		RhoA: make([]float64, n), RhoB: make([]float64, n),
		SigmaAA: make([]float64, n), SigmaAB: make([]float64, n), SigmaBB: make([]float64, n),
		TauA: make([]float64, n), TauB: make([]float64, n),
		ExxA: make([]float64, n), ExxB: make([]float64, n),
	}
	weights := make([]float64, n)

	if data.Restricted {
		rho, exx := data.RhoData[0], data.ExxDensity[0]
		for i, g := range keep {
			sigma := 0.25 * dot3(rho, rho, g)
			in.RhoA[i], in.RhoB[i] = 0.5*rho[RowRho][g], 0.5*rho[RowRho][g]
			in.SigmaAA[i], in.SigmaAB[i], in.SigmaBB[i] = sigma, sigma, sigma
			in.TauA[i], in.TauB[i] = 0.5*rho[RowTau][g], 0.5*rho[RowTau][g]
			in.ExxA[i], in.ExxB[i] = 0.5*exx[g], 0.5*exx[g]
			weights[i] = data.Weights[g]
		}
	} else {
		a, b := data.RhoData[0], data.RhoData[1]
		for i, g := range keep {
			in.RhoA[i], in.RhoB[i] = a[RowRho][g], b[RowRho][g]
			in.SigmaAA[i] = dot3(a, a, g)
			in.SigmaAB[i] = dot3(a, b, g)
			in.SigmaBB[i] = dot3(b, b, g)
			in.TauA[i], in.TauB[i] = a[RowTau][g], b[RowTau][g]
			in.ExxA[i], in.ExxB[i] = data.ExxDensity[0][g], data.ExxDensity[1][g]
			weights[i] = data.Weights[g]
		}
	}

	return &fit.MoleculeInput{XC: in, Weights: weights, BaseEnergy: data.BaseEnergy}, nil
}

// BuildAllInputs runs BuildInputs over every molecule.
func BuildAllInputs(mols map[string]*MoleculeData, cutoff float64) (map[string]*fit.MoleculeInput, error) {
	out := make(map[string]*fit.MoleculeInput, len(mols))
	for id, data := range mols {
		in, err := BuildInputs(data, cutoff)
		if err != nil {
			return nil, fmt.Errorf("molecule %s: %w", id, err)
		}
		out[id] = in
	}
	return out, nil
}

func keptPoints(data *MoleculeData, cutoff float64) []int {
	keep := make([]int, 0, len(data.Weights))
	for g := range data.Weights {
		total := 0.0
		for s := range data.RhoData {
			total += data.RhoData[s][RowRho][g]
		}
		if total > cutoff {
			keep = append(keep, g)
		}
	}
	return keep
}

// dot3 is the gradient dot product of two spin channels at grid point g.
func dot3(a, b [][]float64, g int) float64 {
	return a[RowGradX][g]*b[RowGradX][g] + a[RowGradY][g]*b[RowGradY][g] + a[RowGradZ][g]*b[RowGradZ][g]
}
