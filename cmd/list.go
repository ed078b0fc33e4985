package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signalnine/rbench/internal/config"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured experiments by acquisition group",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Backend: %s (shots: %d)\n", cfg.Backend.Kind, cfg.Shots)
			order, groups := cfg.Groups()
			for _, g := range order {
				fmt.Printf("\nGroup %s:\n", g)
				for _, e := range groups[g] {
					line := fmt.Sprintf("  - %s [%s] qubits %v, depths %v, %d sequences", e.Name, e.Type, e.Qubits, e.Depths, e.Sequences)
					if e.Interleaved != "" {
						line += fmt.Sprintf(", interleaving %q", e.Interleaved)
					}
					fmt.Println(line)
				}
			}
			return nil
		},
	}
}
