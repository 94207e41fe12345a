package main

import (
	"fmt"
	"math"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"
	"github.com/theapemachine/errnie"
	"github.com/theapemachine/qweave"
)

/*
runHOM sends one photon into each input port of a balanced beam splitter and
samples the photon numbers at both outputs. The cutoffs always grow on
demand here, whatever the configuration says, since the two photons can
bunch into one mode.
*/
func runHOM(cmd *cobra.Command, args []string) error {
	cfg, err := qweave.LoadConfig(configPath)
	if err != nil {
		return err
	}
	cfg.AutoResize = true
	if seed != 0 {
		cfg.Seed = seed
	}

	envelopes := make([]*qweave.Envelope, 2)
	for i := range envelopes {
		mode, err := qweave.NewFock(1, qweave.WithConfig(cfg))
		if err != nil {
			return err
		}
		if envelopes[i], err = qweave.NewEnvelope(qweave.WithFock(mode), qweave.WithEnvelopeConfig(cfg)); err != nil {
			return err
		}
	}

	ce, err := envelopes[0].Join(envelopes[1])
	if err != nil {
		return err
	}

	a, b := envelopes[0].Fock(), envelopes[1].Fock()
	if err := ce.ApplyOperation(qweave.BeamSplitter(math.Pi/4), a, b); err != nil {
		return err
	}

	wf, err := qweave.NewWaveFunction(ce, a, b)
	if err != nil {
		return err
	}
	errnie.Info("hom - sampling %d shots with seed %d", shots, cfg.Seed)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-10s %8s %10s\n", "outcome", "count", "expected")
	for _, c := range wf.Shots(shots) {
		fmt.Fprintf(out, "%-10s %8d %10.4f\n", c, c.Count, wf.Probability(c.Index...))
	}
	fmt.Fprintf(out, "coincidences (1,1): %.4f\n", wf.Probability(1, 1))

	if dump {
		spew.Fdump(out, wf.Dims, wf.Probabilities, ce.Metrics().ExportMetrics())
	}
	return nil
}
