package main

import (
	"fmt"

	"github.com/hyperengineering/autoroi/internal/config"
	"github.com/hyperengineering/autoroi/internal/engine"
	"github.com/hyperengineering/autoroi/internal/normalize"
	"github.com/hyperengineering/autoroi/internal/session"
	"github.com/hyperengineering/autoroi/internal/types"
	"github.com/hyperengineering/autoroi/internal/validation"
	"github.com/spf13/cobra"
)

var (
	computeHorizon    int
	computeJSONOutput bool
)

var computeCmd = &cobra.Command{
	Use:   "compute <dataset>",
	Short: "Compute ROI for a dataset file",
	Long: "Compute portfolio ROI, cashflow and the opportunity matrix for a JSON or YAML\n" +
		"dataset file without running the server. A costClassification key in the\n" +
		"file is used when present.",
	Args: cobra.ExactArgs(1),
	RunE: runCompute,
}

func init() {
	computeCmd.Flags().IntVar(&computeHorizon, "horizon", 0,
		"Time horizon in months (overrides engine.horizon_months)")
	computeCmd.Flags().BoolVar(&computeJSONOutput, "json", false,
		"Output in JSON format")
}

func runCompute(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.LoadOffline()
	if err != nil {
		return err
	}

	horizon := computeHorizon
	if horizon == 0 {
		horizon = cfg.Engine.HorizonMonths
	}
	if verr := validation.ValidateHorizon("horizon", horizon); verr != nil {
		return verr
	}

	ff := &session.FileFetcher{Path: args[0]}
	ds, err := ff.LoadData(ctx, "")
	if err != nil {
		return err
	}

	var warnings []string
	classification, err := ff.LoadCostClassification(ctx, "")
	if err != nil {
		classification = types.EmptyClassification()
		warnings = append(warnings, err.Error())
	}

	norm := normalize.Apply(*ds, cfg.Defaults)
	for _, w := range norm.Warnings {
		warnings = append(warnings, w.Error())
	}
	out := engine.Compute(engine.Input{
		Dataset:        norm.Dataset,
		Defaults:       norm.Defaults,
		Classification: classification,
		HorizonMonths:  horizon,
	})

	if computeJSONOutput {
		return printJSON(cmd.OutOrStdout(), types.ComputeResponse{
			Results:  out.Results,
			Cashflow: out.Cashflow,
			Matrix:   out.Matrix,
			Warnings: warnings,
		})
	}

	w := cmd.OutOrStdout()
	if len(out.Results.ProcessResults) == 0 {
		fmt.Fprintln(w, "No processes found.")
	} else if err := writeProcessTable(w, out.Results.ProcessResults); err != nil {
		return err
	}
	fmt.Fprintln(w)
	if err := writeSummary(w, out.Results); err != nil {
		return err
	}
	for _, warn := range warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", warn)
	}
	return nil
}
