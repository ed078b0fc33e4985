package runner_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/rbench/internal/config"
	"github.com/signalnine/rbench/internal/experiment"
	"github.com/signalnine/rbench/internal/fit"
	"github.com/signalnine/rbench/internal/result"
	"github.com/signalnine/rbench/internal/runner"
)

func syntheticConfig() *config.Config {
	return &config.Config{
		Shots: 400,
		Backend: config.Backend{
			Kind:      config.BackendSynthetic,
			Synthetic: config.Synthetic{GateDecay: 0.99, GateUnitarity: 0.98, Seed: 9},
		},
	}
}

func TestRunGroupPersistsFits(t *testing.T) {
	cfg := syntheticConfig()
	backend, err := runner.NewBackend(cfg, "pair", slog.Default())
	require.NoError(t, err)
	seed := int64(100)
	runDir := t.TempDir()

	fits, err := runner.RunGroup(context.Background(), &runner.GroupOpts{
		Name: "pair",
		Experiments: []config.Experiment{
			{Name: "q0-rb", Type: "rb", Qubits: []int{0}, Depths: []int{2, 4, 8, 16}, Sequences: 3, Group: "pair"},
			{Name: "q1-irb", Type: "irb", Qubits: []int{1}, Depths: []int{2, 4, 8, 16}, Sequences: 3, Interleaved: "RX(pi/2) 1", Group: "pair"},
		},
		Shots:   cfg.Shots,
		Seed:    &seed,
		RunDir:  runDir,
		Backend: backend,
	})
	require.NoError(t, err)
	require.Len(t, fits, 2)

	for _, f := range fits {
		assert.Equal(t, "pair", f.Group)
		assert.Equal(t, 2, f.Dimension)
		assert.Equal(t, 12, f.Fit.Points)
		assert.Greater(t, f.GateFidelity, 0.5)
		assert.FileExists(t, filepath.Join(result.ExperimentDir(runDir, f.Experiment), "fit.json"))
		assert.FileExists(t, filepath.Join(result.ExperimentDir(runDir, f.Experiment), "experiment.json"))
	}

	rec, err := result.ReadExperiment(runDir, "q1-irb")
	require.NoError(t, err)
	assert.Equal(t, "irb", rec.Type)
	require.Len(t, rec.Layers, 4)
	assert.Len(t, rec.Layers[0].Components, 3)
	assert.Equal(t, 400, rec.Shots)
}

func TestRunGroupUnitarity(t *testing.T) {
	cfg := syntheticConfig()
	backend, err := runner.NewBackend(cfg, "u", nil)
	require.NoError(t, err)

	fits, err := runner.RunGroup(context.Background(), &runner.GroupOpts{
		Name: "u",
		Experiments: []config.Experiment{
			{Name: "q0-urb", Type: "urb", Qubits: []int{0}, Depths: []int{1, 2, 4, 8}, Sequences: 2},
		},
		Shots:   200,
		RunDir:  t.TempDir(),
		Backend: backend,
	})
	require.NoError(t, err)
	require.Len(t, fits, 1)
	assert.Equal(t, "unitarity", fits[0].Fit.Model)
	assert.Zero(t, fits[0].GateFidelity)
}

func TestRunGroupInvalidDepth(t *testing.T) {
	backend, err := runner.NewBackend(syntheticConfig(), "g", nil)
	require.NoError(t, err)
	runDir := t.TempDir()
	_, err = runner.RunGroup(context.Background(), &runner.GroupOpts{
		Name:        "g",
		Experiments: []config.Experiment{{Name: "bad", Type: "rb", Qubits: []int{0}, Depths: []int{1, 4}, Sequences: 1}},
		Shots:       10,
		RunDir:      runDir,
		Backend:     backend,
	})
	assert.ErrorIs(t, err, experiment.ErrInvalidDepth)
	_, statErr := os.Stat(filepath.Join(runDir, "experiments"))
	assert.True(t, os.IsNotExist(statErr), "nothing is written when assembly fails")
}

type failingOptimizer struct{}

func (failingOptimizer) Fit(context.Context, fit.Model, []float64, []float64, []float64, []float64) (fit.Solution, error) {
	return fit.Solution{}, assert.AnError
}

func TestRunGroupFitFailure(t *testing.T) {
	backend, err := runner.NewBackend(syntheticConfig(), "g", nil)
	require.NoError(t, err)
	_, err = runner.RunGroup(context.Background(), &runner.GroupOpts{
		Name:        "g",
		Experiments: []config.Experiment{{Name: "q0-rb", Type: "rb", Qubits: []int{0}, Depths: []int{2, 4}, Sequences: 1}},
		Shots:       10,
		RunDir:      t.TempDir(),
		Backend:     backend,
		Optimizer:   failingOptimizer{},
	})
	var ce *experiment.CollaboratorError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestNewBackendDocker(t *testing.T) {
	cfg := syntheticConfig()
	cfg.Backend.Kind = config.BackendDocker
	cfg.Backend.Docker = config.Docker{Image: "rbench/backend", Command: []string{"run"}, TimeoutSeconds: 5}
	b, err := runner.NewBackend(cfg, "g", slog.Default())
	require.NoError(t, err)
	assert.Equal(t, config.BackendDocker, b.Kind)
	assert.NotNil(t, b.Synthesizer)
	assert.Same(t, b.Executor, b.Tomographer)
}

func TestSeedFor(t *testing.T) {
	assert.Nil(t, runner.SeedFor(nil, "a"))
	base := int64(7)
	a1, a2, b := runner.SeedFor(&base, "a"), runner.SeedFor(&base, "a"), runner.SeedFor(&base, "b")
	assert.Equal(t, *a1, *a2)
	assert.NotEqual(t, *a1, *b)
}
