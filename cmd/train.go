package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cwbudde/xcfit/internal/config"
	"github.com/cwbudde/xcfit/internal/fit"
	"github.com/cwbudde/xcfit/internal/store"
	"github.com/cwbudde/xcfit/internal/xc"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	trainConfigPath string
	trainFlags      = config.New()
	noRescale       bool
)

var trainCmd = &cobra.Command{
	Use:   "train [reaction-db...]",
	Short: "Fit functional parameters to reaction energies",
	Long: `Loads the reaction databases, the Kohn-Sham analysis of every referenced
structure and fits the parameters of the selected model. The result is printed
as YAML and recorded in the run store.`,
	RunE: runTrain,
}

func init() {
	addTrainFlags(trainCmd.Flags())
	rootCmd.AddCommand(trainCmd)
}

// addTrainFlags registers the fitting flags. train and resume share them.
func addTrainFlags(f *pflag.FlagSet) {
	f.StringVar(&trainConfigPath, "config", "", "YAML training configuration file")
	addDataFlags(f, trainFlags)
	f.StringVar(&trainFlags.Method, "method", config.DefaultMethod, "Fitting method: gd, lbfgs, mayfly")
	f.IntVar(&trainFlags.MaxIterations, "niter", config.DefaultMaxIterations, "Maximum number of iterations")
	f.Float64Var(&trainFlags.Tolerance, "rtol", config.DefaultTolerance, "Weighted step tolerance for convergence (gd)")
	f.Float64Var(&trainFlags.StepRate, "relative-train-rate", config.DefaultStepRate, "Relative training rate (gd)")
	f.Float64Var(&trainFlags.GradTolerance, "gtol", config.DefaultGradTolerance, "Gradient tolerance (lbfgs)")
	f.IntVar(&trainFlags.MaxEvaluations, "maxfun", config.DefaultMaxEvaluations, "Maximum loss evaluations (lbfgs)")
	f.BoolVar(&noRescale, "no-rescale", false, "Do not divide parameters by their weights (lbfgs, mayfly)")
	f.IntVar(&trainFlags.PopSize, "pop", config.DefaultPopSize, "Population size (mayfly)")
	f.Float64Var(&trainFlags.SearchSpan, "span", config.DefaultSearchSpan, "Search half-width around the start (mayfly)")
	f.Int64Var(&trainFlags.Seed, "seed", config.DefaultSeed, "Random seed (mayfly)")
	f.StringVar(&trainFlags.ParamWeightsFile, "param-weights-file", "", "YAML file of parameter training weights")
	f.StringVar(&trainFlags.SaveFile, "save-file", "", "Write the result to this YAML file")
	f.StringVar(&trainFlags.StoreDir, "store-dir", config.DefaultStoreDir, "Run store directory (empty disables the store)")
}

// addDataFlags registers the flags shared by commands that load reaction data.
func addDataFlags(f *pflag.FlagSet, cfg *config.TrainConfig) {
	f.StringVar(&cfg.Model, "model", config.DefaultModel, fmt.Sprintf("Functional model %v", xc.Kinds()))
	f.StringVar(&cfg.Basis, "basis", config.DefaultBasis, "Basis set of the reference calculations")
	f.StringVar(&cfg.Functional, "functional", config.DefaultFunctional, "Functional of the reference calculations")
	f.StringVar(&cfg.DataRoot, "data-root", config.DefaultDataRoot, "Root directory of the molecule analyses")
	f.StringVar(&cfg.NoiseFile, "noise-file", "", "YAML file of per-reaction noise factors")
	f.Float64Var(&cfg.DensityCutoff, "density-cutoff", config.DefaultDensityCutoff, "Drop grid points with density at or below this value")
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, err := resolveTrainConfig(cmd.Flags(), trainConfigPath, args)
	if err != nil {
		return err
	}
	_, err = trainModel(cfg, nil, cmd.OutOrStdout())
	return err
}

// resolveTrainConfig loads the configuration file, if any, and overlays the
// explicitly set flags and positional reaction databases.
func resolveTrainConfig(flags *pflag.FlagSet, path string, args []string) (*config.TrainConfig, error) {
	cfg := config.New()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags.Visit(func(f *pflag.Flag) {
		applyTrainFlag(cfg, f.Name)
	})
	if len(args) > 0 {
		cfg.Reactions = args
	}
	return cfg, nil
}

func applyTrainFlag(cfg *config.TrainConfig, name string) {
	switch name {
	case "model":
		cfg.Model = trainFlags.Model
	case "basis":
		cfg.Basis = trainFlags.Basis
	case "functional":
		cfg.Functional = trainFlags.Functional
	case "data-root":
		cfg.DataRoot = trainFlags.DataRoot
	case "noise-file":
		cfg.NoiseFile = trainFlags.NoiseFile
	case "density-cutoff":
		cfg.DensityCutoff = trainFlags.DensityCutoff
	case "method":
		cfg.Method = trainFlags.Method
	case "niter":
		cfg.MaxIterations = trainFlags.MaxIterations
	case "rtol":
		cfg.Tolerance = trainFlags.Tolerance
	case "relative-train-rate":
		cfg.StepRate = trainFlags.StepRate
	case "gtol":
		cfg.GradTolerance = trainFlags.GradTolerance
	case "maxfun":
		cfg.MaxEvaluations = trainFlags.MaxEvaluations
	case "no-rescale":
		cfg.Rescale = !noRescale
	case "pop":
		cfg.PopSize = trainFlags.PopSize
	case "span":
		cfg.SearchSpan = trainFlags.SearchSpan
	case "seed":
		cfg.Seed = trainFlags.Seed
	case "param-weights-file":
		cfg.ParamWeightsFile = trainFlags.ParamWeightsFile
	case "save-file":
		cfg.SaveFile = trainFlags.SaveFile
	case "store-dir":
		cfg.StoreDir = trainFlags.StoreDir
	}
}

// trainModel runs one fit. init overrides the model's default starting
// parameters when non-nil. The result document is written to out.
func trainModel(cfg *config.TrainConfig, init xc.Params, out io.Writer) (*store.Record, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	kind, model, params, err := resolveModel(cfg.Model)
	if err != nil {
		return nil, err
	}
	if init != nil {
		params = init.Clone()
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
		return nil, err
	}

	weights, err := parameterWeights(cfg.ParamWeightsFile, params, len(formulas))
	if err != nil {
		return nil, err
	}

	opts, err := cfg.FitOptions()
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	var (
		runs  *store.FSStore
		trace *store.TraceWriter
	)
	if cfg.StoreDir != "" {
		runs, err = store.NewFSStore(cfg.StoreDir)
		if err != nil {
			return nil, err
		}
		trace, err = store.NewTraceWriter(cfg.StoreDir, runID, false)
		if err != nil {
			return nil, err
		}
		defer trace.Close()
	}
	opts.Observer = func(p fit.Progress) {
		slog.Info("Fit progress", "run_id", runID, "iteration", p.Iteration, "loss", p.Loss)
		if trace != nil {
			trace.Observe(p)
		}
	}

	slog.Info("Starting training", "run_id", runID, "model", kind, "method", opts.Method,
		"reactions", len(formulas), "molecules", len(inputs))
	start := time.Now()

	res, err := fit.Fit(model, inputs, formulas, params, weights, opts)
	if err != nil {
		return nil, fmt.Errorf("fit failed: %w", err)
	}

	slog.Info("Training complete", "run_id", runID, "elapsed", time.Since(start),
		"converged", res.Converged, "loss", res.Loss, "best_loss", res.BestLoss, "status", res.Status)

	rec := store.NewRecord(runID, string(kind), res, len(formulas))
	doc, err := store.MarshalResult(rec)
	if err != nil {
		return nil, err
	}
	if _, err := out.Write(doc); err != nil {
		return nil, err
	}

	if cfg.SaveFile != "" {
		path, err := store.WriteResultFile(cfg.SaveFile, rec)
		if err != nil {
			return nil, err
		}
		slog.Info("Saved result", "path", path)
	}
	if runs != nil {
		if err := trace.Close(); err != nil {
			slog.Warn("Failed to write trace", "run_id", runID, "error", err)
		}
		if err := runs.SaveResult(runID, rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// parameterWeights loads weights from path, or uses unit weights, and
// normalizes them by the number of reactions.
func parameterWeights(path string, params xc.Params, nReactions int) (xc.Params, error) {
	if path == "" {
		return fit.DefaultWeights(params, nReactions)
	}
	w, err := config.LoadParamWeights(path)
	if err != nil {
		return nil, err
	}
	return fit.NormalizeWeights(w, nReactions)
}
