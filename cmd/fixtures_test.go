package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/xcfit/internal/config"
	"github.com/cwbudde/xcfit/internal/dataset"
)

// writeMolecule stores a two-point restricted analysis scaled by s.
func writeMolecule(t *testing.T, root, id string, s float64) {
	t.Helper()
	data := &dataset.MoleculeData{
		Restricted: true,
		BaseEnergy: -10 * s,
		RhoData: [][][]float64{{
			{0.8 * s, 0.2 * s},
			{0.1, 0.0},
			{0.0, 0.1},
			{0.0, 0.0},
			{0.0, 0.0},
			{0.3 * s, 0.1 * s},
		}},
		ExxDensity: [][]float64{{-0.5 * s, -0.1 * s}},
		Weights:    []float64{1.0, 2.0},
	}
	if _, err := dataset.SaveMolecule(root, config.DefaultFunctional, config.DefaultBasis, id, data, id == "B"); err != nil {
		t.Fatalf("Failed to save molecule %s: %v", id, err)
	}
}

// writeFixture creates molecules A, B and C plus a reaction database and
// returns a configuration that trains hyb-lda on it.
func writeFixture(t *testing.T) *config.TrainConfig {
	t.Helper()
	dir := t.TempDir()
	root := filepath.Join(dir, "data")
	writeMolecule(t, root, "A", 1.0)
	writeMolecule(t, root, "B", 2.0)
	writeMolecule(t, root, "C", 1.5)

	db := filepath.Join(dir, "rxns.csv")
	content := "# test reactions\nsub1_a,1,A,-10\nsub1_b,1,B,2,A,-3\nsub2_c,1,C,-1,A,-2.5\n"
	if err := os.WriteFile(db, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write reactions: %v", err)
	}

	cfg := config.New()
	cfg.Reactions = []string{db}
	cfg.Model = "hyb-lda"
	cfg.DataRoot = root
	cfg.StoreDir = filepath.Join(dir, "store")
	cfg.Method = "gd"
	cfg.MaxIterations = 3
	return cfg
}
