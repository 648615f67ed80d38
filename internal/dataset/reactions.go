package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/cwbudde/xcfit/internal/fit"
	"gopkg.in/yaml.v3"
)

// LoadReactions reads a reaction database. Each non-blank line has the form
//
//	id,count1,struct1,count2,struct2,...,energy
//
// with integer stoichiometric counts and the reference energy in kcal/mol.
// Lines starting with '#' are comments.
func LoadReactions(path string) (map[string]*fit.Formula, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reactions: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	return parseReactions(f, path)
}

func parseReactions(r io.Reader, path string) (map[string]*fit.Formula, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	formulas := make(map[string]*fit.Formula)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reactions: parse %s: %w", path, err)
		}
		line, _ := reader.FieldPos(0)

		id, formula, err := parseReaction(record)
		if err != nil {
			return nil, parseErrorf(path, line, "%v", err)
		}
		if _, dup := formulas[id]; dup {
			return nil, parseErrorf(path, line, "duplicate reaction id %q", id)
		}
		formulas[id] = formula
	}

	slog.Debug("Loaded reactions", "path", path, "count", len(formulas))
	return formulas, nil
}

func parseReaction(record []string) (string, *fit.Formula, error) {
	for i := range record {
		record[i] = strings.TrimSpace(record[i])
	}
	n := len(record)
	if n < 4 || n%2 != 0 {
		return "", nil, fmt.Errorf("expected id, count/structure pairs and energy, got %d fields", n)
	}

	id := record[0]
	if id == "" {
		return "", nil, fmt.Errorf("empty reaction id")
	}

	energy, err := strconv.ParseFloat(record[n-1], 64)
	if err != nil {
		return "", nil, fmt.Errorf("reaction %s: invalid energy %q", id, record[n-1])
	}

	pairs := record[1 : n-1]
	formula := &fit.Formula{
		Structs: make([]string, 0, len(pairs)/2),
		Counts:  make([]int, 0, len(pairs)/2),
		Energy:  energy,
	}
	for i := 0; i < len(pairs); i += 2 {
		count, err := strconv.Atoi(pairs[i])
		if err != nil {
			return "", nil, fmt.Errorf("reaction %s: invalid count %q", id, pairs[i])
		}
		if pairs[i+1] == "" {
			return "", nil, fmt.Errorf("reaction %s: empty structure id", id)
		}
		formula.Counts = append(formula.Counts, count)
		formula.Structs = append(formula.Structs, pairs[i+1])
	}
	return id, formula, nil
}

// LoadReactionSets loads and merges several reaction databases. A reaction
// id defined in more than one file takes its definition from the last one.
func LoadReactionSets(paths ...string) (map[string]*fit.Formula, error) {
	if len(paths) == 0 {
		return nil, &ParseError{Path: "reactions", Reason: "no reaction databases given"}
	}
	merged := make(map[string]*fit.Formula)
	for _, path := range paths {
		formulas, err := LoadReactions(path)
		if err != nil {
			return nil, err
		}
		for id, f := range formulas {
			if _, ok := merged[id]; ok {
				slog.Warn("Reaction redefined", "id", id, "path", path)
			}
			merged[id] = f
		}
	}
	return merged, nil
}

// LoadNoiseFactors reads a YAML map from reaction id to noise factor.
func LoadNoiseFactors(path string) (map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("noise factors: read %s: %w", path, err)
	}
	var factors map[string]float64
	if err := yaml.Unmarshal(data, &factors); err != nil {
		return nil, parseErrorf(path, 0, "invalid noise factor file: %v", err)
	}
	for id, v := range factors {
		if !(v > 0) {
			return nil, parseErrorf(path, 0, "noise factor for %s must be positive, got %g", id, v)
		}
	}
	return factors, nil
}

// ApplyNoiseFactors sets the noise factor of every listed reaction present in
// formulas and returns how many were applied. Unknown ids are ignored.
func ApplyNoiseFactors(formulas map[string]*fit.Formula, factors map[string]float64) int {
	applied := 0
	for id, v := range factors {
		f, ok := formulas[id]
		if !ok {
			slog.Debug("Noise factor for unknown reaction", "id", id)
			continue
		}
		f.NoiseFactor = v
		applied++
	}
	return applied
}

// StructureIDs returns the sorted set of structures referenced by formulas.
func StructureIDs(formulas map[string]*fit.Formula) []string {
	seen := make(map[string]struct{})
	for _, f := range formulas {
		for _, s := range f.Structs {
			seen[s] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for s := range seen {
		ids = append(ids, s)
	}
	sort.Strings(ids)
	return ids
}
