package main

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"text/tabwriter"

	"github.com/cwbudde/xcfit/internal/config"
	"github.com/cwbudde/xcfit/internal/dataset"
	"github.com/cwbudde/xcfit/internal/fit"
	"github.com/cwbudde/xcfit/internal/store"
	"github.com/cwbudde/xcfit/internal/xc"
	"github.com/spf13/cobra"
)

var (
	evalFlags       = config.New()
	evalParamsFile  string
	evalSubsets     []string
	evalPerReaction bool
)

var evalCmd = &cobra.Command{
	Use:   "eval [reaction-db...]",
	Short: "Report reaction-energy errors for a parameter set",
	Long: `Evaluates the reaction energies predicted by a model, with its default
parameters or those of a stored result, and prints ME, MAE, RMSE and STD in
kcal/mol overall and per subset.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEval,
}

func init() {
	f := evalCmd.Flags()
	addDataFlags(f, evalFlags)
	f.StringVar(&evalParamsFile, "params-file", "", "Result YAML file whose params are evaluated (default: model defaults)")
	f.StringSliceVar(&evalSubsets, "subsets", nil, "Reaction id prefixes to report separately")
	f.BoolVar(&evalPerReaction, "per-reaction", false, "Also print the error of every reaction")

	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, args []string) error {
	cfg := *evalFlags
	cfg.Reactions = args
	return evaluateModel(&cfg, evalParamsFile, evalSubsets, evalPerReaction, cmd.OutOrStdout())
}

// subsetStats is one row of the evaluation report.
type subsetStats struct {
	Name  string
	Stats dataset.ErrorStats
}

func evaluateModel(cfg *config.TrainConfig, paramsFile string, subsets []string, perReaction bool, out io.Writer) error {
	kind, model, params, err := resolveModel(cfg.Model)
	if err != nil {
		return err
	}
	if paramsFile != "" {
		params, err = loadParams(paramsFile, kind, params.Names())
		if err != nil {
			return err
		}
	}

	src := dataSource{
		reactions:  cfg.Reactions,
		noiseFile:  cfg.NoiseFile,
		root:       cfg.DataRoot,
		functional: cfg.Functional,
		basis:      cfg.Basis,
		cutoff:     cfg.DensityCutoff,
	}
	formulas, inputs, err := src.load()
	if err != nil {
		return err
	}

	rows, errs, err := reactionReport(model, params, inputs, formulas, subsets)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SUBSET\tN\tME\tMAE\tRMSE\tSTD")
	fmt.Fprintln(w, "------\t-\t--\t---\t----\t---")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%d\t%.3f\t%.3f\t%.3f\t%.3f\n",
			r.Name, r.Stats.Count, r.Stats.ME, r.Stats.MAE, r.Stats.RMSE, r.Stats.STD)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if perReaction {
		ids := make([]string, 0, len(errs))
		for id := range errs {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		fmt.Fprintln(out)
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "REACTION\tERROR")
		for _, id := range ids {
			fmt.Fprintf(w, "%s\t%.3f\n", id, errs[id])
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	slog.Info("Evaluation complete", "model", kind, "reactions", len(formulas))
	return nil
}

// reactionReport predicts every reaction at params and summarizes the errors
// overall and per subset prefix.
func reactionReport(model xc.Func, params xc.Params, inputs map[string]*fit.MoleculeInput,
	formulas map[string]*fit.Formula, subsets []string) ([]subsetStats, map[string]float64, error) {

	mols, err := fit.ComputeMoleculePredictions(model, params, inputs)
	if err != nil {
		return nil, nil, err
	}
	rxns, err := fit.ComputeReactionPredictions(formulas, mols, params.Names())
	if err != nil {
		return nil, nil, err
	}
	errs := dataset.ReactionErrors(rxns)

	ids := make([]string, 0, len(errs))
	for id := range errs {
		ids = append(ids, id)
	}
	total, err := dataset.StatsFor(errs, ids)
	if err != nil {
		return nil, nil, err
	}
	rows := []subsetStats{{Name: "all", Stats: total}}

	if len(subsets) > 0 {
		groups, err := dataset.GroupBySubset(ids, subsets)
		if err != nil {
			return nil, nil, err
		}
		for _, name := range subsets {
			s, err := dataset.StatsFor(errs, groups[name])
			if err != nil {
				return nil, nil, err
			}
			rows = append(rows, subsetStats{Name: name, Stats: s})
		}
	}
	return rows, errs, nil
}

// loadParams reads the params of a result file and checks them against the model.
func loadParams(path string, kind xc.Kind, names []string) (xc.Params, error) {
	rec, err := store.ReadResultFile(path)
	if err != nil {
		return nil, err
	}
	if err := rec.IsCompatible(string(kind), names); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return xc.Params(rec.Params), nil
}
