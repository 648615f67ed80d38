package main

import (
	"fmt"
	"log/slog"

	"github.com/cwbudde/xcfit/internal/store"
	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume [run-id] [reaction-db...]",
	Short: "Continue fitting from the parameters of a stored run",
	Long: `Starts a new fit from the final parameters of a stored run. The model of
the stored run is used unless --model is given; the reaction databases come
from the arguments or the configuration file. Accepts every train flag.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResume,
}

func init() {
	addTrainFlags(resumeCmd.Flags())
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	cfg, err := resolveTrainConfig(cmd.Flags(), trainConfigPath, args[1:])
	if err != nil {
		return err
	}
	rec, err := loadRun(cfg.StoreDir, args[0])
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("model") && rec.Model != "" {
		cfg.Model = rec.Model
	}

	kind, _, defaults, err := resolveModel(cfg.Model)
	if err != nil {
		return err
	}
	if err := rec.IsCompatible(string(kind), defaults.Names()); err != nil {
		return fmt.Errorf("run %s: %w", args[0], err)
	}

	slog.Info("Resuming from run", "run_id", args[0], "model", kind, "loss", rec.Loss)
	_, err = trainModel(cfg, rec.Params, cmd.OutOrStdout())
	return err
}

func loadRun(dataDir, runID string) (*store.Record, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("resume needs a run store (--store-dir)")
	}
	runStore, err := store.NewFSStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create run store: %w", err)
	}
	return runStore.LoadResult(runID)
}
