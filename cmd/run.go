package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"github.com/signalnine/rbench/internal/config"
	"github.com/signalnine/rbench/internal/report"
	"github.com/signalnine/rbench/internal/result"
	"github.com/signalnine/rbench/internal/runner"
)

var (
	flagGroup    string
	flagShots    int
	flagParallel int
	flagCleanup  bool
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Acquire and fit the configured experiments",
		RunE:  runBenchmark,
	}
	cmd.Flags().StringVar(&flagGroup, "group", "", "run a single acquisition group")
	cmd.Flags().IntVar(&flagShots, "shots", 0, "override shot count")
	cmd.Flags().IntVar(&flagParallel, "parallel", 1, "max concurrent groups")
	cmd.Flags().BoolVar(&flagCleanup, "cleanup", false, "remove rbench-labeled Docker containers after run")
	return cmd
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if flagShots > 0 {
		cfg.Shots = flagShots
	}

	order, groups := cfg.Groups()
	order, err = filterGroups(order, flagGroup)
	if err != nil {
		return err
	}

	var names []string
	for _, g := range order {
		for _, e := range groups[g] {
			names = append(names, e.Name)
		}
	}
	cfgPath, _ := filepath.Abs(cfgFile)
	runDir, err := result.CreateRunDir(cfg.Results.Dir, &result.Manifest{
		Config:      cfgPath,
		Backend:     cfg.Backend.Kind,
		Shots:       cfg.Shots,
		Experiments: names,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Run directory: %s\n", runDir)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	logger := slog.Default()

	var (
		mu   sync.Mutex
		fits []*result.FitRecord
	)
	jobs := make([]runner.Job, 0, len(order))
	for _, g := range order {
		exps := groups[g]
		jobs = append(jobs, func(ctx context.Context) error {
			fmt.Printf("Running group %s (%d experiments)...\n", g, len(exps))
			backend, err := runner.NewBackend(cfg, g, logger)
			if err != nil {
				return fmt.Errorf("group %s: %w", g, err)
			}
			got, err := runner.RunGroup(ctx, &runner.GroupOpts{
				Name:        g,
				Experiments: exps,
				Shots:       cfg.Shots,
				Seed:        cfg.Seed,
				RunDir:      runDir,
				Backend:     backend,
				Logger:      logger,
			})
			if err != nil {
				return fmt.Errorf("group %s: %w", g, err)
			}
			for _, f := range got {
				fmt.Printf("  %s: decay %.6f ± %.6f\n", f.Experiment, f.Fit.Decay, f.Fit.DecayErr)
			}
			mu.Lock()
			fits = append(fits, got...)
			mu.Unlock()
			return nil
		})
	}
	errs := runner.RunPool(ctx, flagParallel, jobs)
	for _, err := range errs {
		fmt.Printf("  ERROR: %v\n", err)
	}

	if bnds := runner.DeriveBounds(fits, logger); len(bnds) > 0 {
		if err := result.WriteBounds(runDir, bnds); err != nil {
			return err
		}
	}

	if flagCleanup && cfg.Backend.Kind == config.BackendDocker {
		cleanupDocker()
	}

	fmt.Println("\n--- Results ---")
	if err := report.Generate(runDir, "table", os.Stdout); err != nil {
		return err
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d of %d groups failed", len(errs), len(jobs))
	}
	return nil
}

func cleanupDocker() {
	fmt.Println("Cleaning up Docker artifacts...")
	exec.Command("docker", "container", "prune", "-f", "--filter", "label=rbench=true").Run()
}

// filterGroups narrows order to name. An empty name keeps every group.
func filterGroups(order []string, name string) ([]string, error) {
	if name == "" {
		return order, nil
	}
	for _, g := range order {
		if g == name {
			return []string{g}, nil
		}
	}
	return nil, fmt.Errorf("no group %q in config", name)
}
