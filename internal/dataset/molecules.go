package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const (
	// AnalysisFile is the per-molecule analysis document name.
	AnalysisFile = "analysis.json"
	// CompressedAnalysisFile is the zstd-compressed variant.
	CompressedAnalysisFile = AnalysisFile + ".zst"

	// EnergyConsistencyTolerance bounds |e_base + exc_orig - e_tot_orig| in Ha.
	EnergyConsistencyTolerance = 1e-3
)

// Rows of rho_data for each spin channel.
const (
	RowRho = iota
	RowGradX
	RowGradY
	RowGradZ
	RowLaplacian
	RowTau
	numRows
)

// MoleculeData is the stored Kohn-Sham analysis of one structure.
type MoleculeData struct {
	Restricted bool    `json:"restricted"`
	BaseEnergy float64 `json:"e_base"`

	// Reference total and XC energies of the underlying calculation, used to
	// check BaseEnergy when both are present.
	TotalEnergy *float64 `json:"e_tot_orig,omitempty"`
	XCEnergy    *float64 `json:"exc_orig,omitempty"`

	// RhoData is indexed [spin][row][grid]; one spin channel when restricted.
	RhoData [][][]float64 `json:"rho_data"`
	// ExxDensity is the exact-exchange energy density indexed [spin][grid].
	ExxDensity [][]float64 `json:"ex_energy_density"`
	Weights    []float64   `json:"weights"`
}

// Validate checks the array shapes and the energy consistency.
func (m *MoleculeData) Validate() error {
	nspin := 2
	if m.Restricted {
		nspin = 1
	}
	ngrid := len(m.Weights)
	if ngrid == 0 {
		return errors.New("no integration weights")
	}
	if len(m.RhoData) != nspin {
		return fmt.Errorf("rho_data has %d spin channels, expected %d", len(m.RhoData), nspin)
	}
	if len(m.ExxDensity) != nspin {
		return fmt.Errorf("ex_energy_density has %d spin channels, expected %d", len(m.ExxDensity), nspin)
	}
	for s := 0; s < nspin; s++ {
		if len(m.RhoData[s]) < numRows {
			return fmt.Errorf("rho_data[%d] has %d rows, expected at least %d", s, len(m.RhoData[s]), numRows)
		}
		for r, row := range m.RhoData[s] {
			if len(row) != ngrid {
				return fmt.Errorf("rho_data[%d][%d] has %d points, weights have %d", s, r, len(row), ngrid)
			}
		}
		if len(m.ExxDensity[s]) != ngrid {
			return fmt.Errorf("ex_energy_density[%d] has %d points, weights have %d", s, len(m.ExxDensity[s]), ngrid)
		}
	}
	if m.TotalEnergy != nil && m.XCEnergy != nil {
		if d := m.BaseEnergy + *m.XCEnergy - *m.TotalEnergy; math.Abs(d) > EnergyConsistencyTolerance {
			return fmt.Errorf("inconsistent energies: e_base %g + exc %g - e_tot %g = %g",
				m.BaseEnergy, *m.XCEnergy, *m.TotalEnergy, d)
		}
	}
	return nil
}

// MoleculeDir returns <root>/KS/<functional>/<basis>/<molID>.
func MoleculeDir(root, functional, basis, molID string) string {
	return filepath.Join(root, "KS", functional, basis, molID)
}

// LoadMolecule reads the analysis document of molID, preferring the plain
// JSON file over the compressed one.
func LoadMolecule(root, functional, basis, molID string) (*MoleculeData, error) {
	dir := MoleculeDir(root, functional, basis, molID)
	for _, name := range []string{AnalysisFile, CompressedAnalysisFile} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		data, err := ReadMoleculeFile(path)
		if err != nil {
			return nil, fmt.Errorf("molecule %s: %w", molID, err)
		}
		slog.Debug("Loaded molecule", "id", molID, "path", path, "points", len(data.Weights))
		return data, nil
	}
	return nil, fmt.Errorf("molecule %s: no %s in %s: %w", molID, AnalysisFile, dir, os.ErrNotExist)
}

// LoadMolecules loads every listed molecule.
func LoadMolecules(root, functional, basis string, ids []string) (map[string]*MoleculeData, error) {
	out := make(map[string]*MoleculeData, len(ids))
	for _, id := range ids {
		data, err := LoadMolecule(root, functional, basis, id)
		if err != nil {
			return nil, err
		}
		out[id] = data
	}
	return out, nil
}

// ReadMoleculeFile decodes and validates one analysis document. Paths ending
// in .zst are zstd-decompressed.
func ReadMoleculeFile(path string) (*MoleculeData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	var r io.Reader = f
	if isCompressed(path) {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	var data MoleculeData
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, parseErrorf(path, 0, "decode analysis: %v", err)
	}
	if err := data.Validate(); err != nil {
		return nil, parseErrorf(path, 0, "%v", err)
	}
	return &data, nil
}

// SaveMolecule writes data into the molecule directory under root, zstd
// compressed when compress is set, and returns the written path.
func SaveMolecule(root, functional, basis, molID string, data *MoleculeData, compress bool) (string, error) {
	dir := MoleculeDir(root, functional, basis, molID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create molecule directory: %w", err)
	}
	name := AnalysisFile
	if compress {
		name = CompressedAnalysisFile
	}
	path := filepath.Join(dir, name)
	if err := WriteMoleculeFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// WriteMoleculeFile encodes data to path, zstd compressed when the path ends
// in .zst. The file is written to a temporary name and renamed into place.
func WriteMoleculeFile(path string, data *MoleculeData) error {
	if err := data.Validate(); err != nil {
		return fmt.Errorf("invalid molecule data: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	err = encodeMolecule(f, data, isCompressed(path))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename %s: %w", tmp, err)
	}
	return nil
}

func encodeMolecule(w io.Writer, data *MoleculeData, compress bool) error {
	if !compress {
		return json.NewEncoder(w).Encode(data)
	}
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return err
	}
	if err := json.NewEncoder(zw).Encode(data); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

func isCompressed(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".zst")
}
