package main

import (
	"fmt"
	"log/slog"

	"github.com/cwbudde/xcfit/internal/dataset"
	"github.com/cwbudde/xcfit/internal/fit"
	"github.com/cwbudde/xcfit/internal/xc"
)

// dataSource locates the reaction databases and the molecule analyses they reference.
type dataSource struct {
	reactions  []string
	noiseFile  string
	root       string
	functional string
	basis      string
	cutoff     float64
}

// load reads every reaction and the inputs of every structure they reference.
func (src dataSource) load() (map[string]*fit.Formula, map[string]*fit.MoleculeInput, error) {
	if len(src.reactions) == 0 {
		return nil, nil, fmt.Errorf("no reaction databases given")
	}

	formulas, err := dataset.LoadReactionSets(src.reactions...)
	if err != nil {
		return nil, nil, err
	}
	if src.noiseFile != "" {
		factors, err := dataset.LoadNoiseFactors(src.noiseFile)
		if err != nil {
			return nil, nil, err
		}
		n := dataset.ApplyNoiseFactors(formulas, factors)
		slog.Info("Applied noise factors", "path", src.noiseFile, "reactions", n)
	}

	ids := dataset.StructureIDs(formulas)
	slog.Info("Loading molecules", "count", len(ids), "functional", src.functional, "basis", src.basis)

	mols, err := dataset.LoadMolecules(src.root, src.functional, src.basis, ids)
	if err != nil {
		return nil, nil, err
	}
	inputs, err := dataset.BuildAllInputs(mols, src.cutoff)
	if err != nil {
		return nil, nil, err
	}
	return formulas, inputs, nil
}

// resolveModel returns the energy model and its default parameters.
func resolveModel(name string) (xc.Kind, xc.Func, xc.Params, error) {
	kind, err := xc.ParseKind(name)
	if err != nil {
		return "", nil, nil, err
	}
	model, err := xc.Lookup(kind)
	if err != nil {
		return "", nil, nil, err
	}
	params, err := xc.DefaultParams(kind)
	if err != nil {
		return "", nil, nil, err
	}
	return kind, model, params, nil
}
