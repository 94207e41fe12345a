package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/theapemachine/qweave"
)

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := qweave.LoadConfig(configPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, row := range []struct {
		key   string
		value any
	}{
		{"tolerance", cfg.Tolerance},
		{"drift_tolerance", cfg.DriftTolerance},
		{"separability_tolerance", cfg.SeparabilityTolerance},
		{"truncation_epsilon", cfg.TruncationEpsilon},
		{"auto_resize", cfg.AutoResize},
		{"contractions", cfg.Contractions},
		{"check_kraus", cfg.CheckKraus},
		{"strict_kraus", cfg.StrictKraus},
		{"memory_ceiling", cfg.MemoryCeiling},
		{"max_cutoff", cfg.MaxCutoff},
		{"seed", cfg.Seed},
		{"factor_search_limit", cfg.FactorSearchLimit},
	} {
		fmt.Fprintf(out, "%s: %v\n", row.key, row.value)
	}
	return nil
}
