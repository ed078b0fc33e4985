package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/signalnine/rbench/internal/bounds"
)

var (
	flagRB        float64
	flagIRB       float64
	flagUnitarity float64
	flagQubits    int
)

func newBoundsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bounds",
		Short: "Bound an interleaved gate's fidelity from fitted decays",
		RunE: func(cmd *cobra.Command, args []string) error {
			var u *float64
			if cmd.Flags().Changed("unitarity") {
				u = &flagUnitarity
			}
			return printBounds(cmd.OutOrStdout(), flagRB, flagIRB, u, flagQubits)
		},
	}
	cmd.Flags().Float64Var(&flagRB, "rb", 0, "standard RB decay")
	cmd.Flags().Float64Var(&flagIRB, "irb", 0, "interleaved RB decay")
	cmd.Flags().Float64Var(&flagUnitarity, "unitarity", 0, "unitarity decay (tightens the bounds)")
	cmd.Flags().IntVar(&flagQubits, "qubits", 1, "number of qubits the gate acts on")
	cmd.MarkFlagRequired("rb")
	cmd.MarkFlagRequired("irb")
	return cmd
}

func printBounds(w io.Writer, rb, irb float64, unitarity *float64, qubits int) error {
	if qubits < 1 {
		return fmt.Errorf("qubits must be >= 1, got %d", qubits)
	}
	if rb <= 0 || rb > 1 {
		return fmt.Errorf("rb decay must be in (0, 1], got %g", rb)
	}
	if irb < 0 || irb > 1 {
		return fmt.Errorf("irb decay must be in [0, 1], got %g", irb)
	}
	d := 1 << qubits
	fid := bounds.InterleavedGateFidelityBounds(irb, rb, d)
	if unitarity != nil {
		if *unitarity <= 0 || *unitarity > 1 {
			return fmt.Errorf("unitarity decay must be in (0, 1], got %g", *unitarity)
		}
		fid = bounds.InterleavedGateFidelityBoundsWithUnitarity(irb, rb, *unitarity, d)
	}
	fmt.Fprintf(w, "Reference gate fidelity:  %.6f\n", bounds.RBDecayToGateFidelity(rb, d))
	fmt.Fprintf(w, "Interleaved infidelity:   %.6f\n", bounds.IRBDecayToGateInfidelity(irb, rb, d))
	fmt.Fprintf(w, "Gate fidelity bounds:     %s\n", fid)
	return nil
}
