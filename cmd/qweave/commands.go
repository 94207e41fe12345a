package main

import (
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	configPath string
	shots      int
	seed       uint64
	dump       bool

	rootCmd = &cobra.Command{
		Use:   "qweave",
		Short: "Photonic state composition from the command line",
		Long: `qweave builds Fock and polarization states, lets them interfere
inside composite envelopes and samples the outcomes.`,
		SilenceUsage: true,
	}

	homCmd = &cobra.Command{
		Use:   "hom",
		Short: "Run the Hong-Ou-Mandel experiment and print outcome frequencies",
		RunE:  runHOM, // Defined in cmd_hom.go
	}

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE:  runConfig, // Defined in cmd_config.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file to read (QWEAVE_ environment variables override it)")

	rootCmd.AddCommand(homCmd)
	homCmd.Flags().IntVar(&shots, "shots", 1000, "Number of joint outcomes to sample")
	homCmd.Flags().Uint64Var(&seed, "seed", 0, "Sampling seed, 0 keeps the configured one")
	homCmd.Flags().BoolVar(&dump, "dump", false, "Dump the sampled wave function")

	rootCmd.AddCommand(configCmd)
}
