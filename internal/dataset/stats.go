package dataset

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cwbudde/xcfit/internal/fit"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrorStats summarizes reaction-energy errors in kcal/mol.
type ErrorStats struct {
	Count int     `yaml:"count"`
	ME    float64 `yaml:"me"`   // Mean signed error
	MAE   float64 `yaml:"mae"`  // Mean absolute error
	RMSE  float64 `yaml:"rmse"` // Root mean square error
	STD   float64 `yaml:"std"`  // Population standard deviation
}

// ComputeErrorStats summarizes errs. An empty slice yields zero statistics.
func ComputeErrorStats(errs []float64) ErrorStats {
	n := len(errs)
	if n == 0 {
		return ErrorStats{}
	}

	abs := make([]float64, n)
	for i, e := range errs {
		abs[i] = math.Abs(e)
	}
	mean, std := stat.PopMeanStdDev(errs, nil)

	return ErrorStats{
		Count: n,
		ME:    mean,
		MAE:   stat.Mean(abs, nil),
		RMSE:  math.Sqrt(floats.Dot(errs, errs) / float64(n)),
		STD:   std,
	}
}

// ReactionErrors returns predicted minus reference energy in kcal/mol for
// every reaction.
func ReactionErrors(rxns map[string]*fit.ReactionPrediction) map[string]float64 {
	out := make(map[string]float64, len(rxns))
	for id, rp := range rxns {
		out[id] = rp.Residual() / fit.HaPerKcal
	}
	return out
}

// StatsFor computes statistics over the listed reaction ids, sorted for a
// stable summation order.
func StatsFor(errs map[string]float64, ids []string) (ErrorStats, error) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	vals := make([]float64, 0, len(sorted))
	for _, id := range sorted {
		e, ok := errs[id]
		if !ok {
			return ErrorStats{}, fmt.Errorf("no error value for reaction %s", id)
		}
		vals = append(vals, e)
	}
	return ComputeErrorStats(vals), nil
}

// GroupBySubset assigns each reaction id to the first prefix it starts with.
// Every id must match some prefix.
func GroupBySubset(ids, prefixes []string) (map[string][]string, error) {
	groups := make(map[string][]string, len(prefixes))
	for _, p := range prefixes {
		groups[p] = []string{}
	}

	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	for _, id := range sorted {
		matched := false
		for _, p := range prefixes {
			if strings.HasPrefix(id, p) {
				groups[p] = append(groups[p], id)
				matched = true
				break
			}
		}
		if !matched {
			return nil, &ParseError{Path: "subsets", Reason: fmt.Sprintf("reaction %s not matched to any subset", id)}
		}
	}
	return groups, nil
}
