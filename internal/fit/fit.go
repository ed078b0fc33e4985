// Package fit extracts decay parameters from acquired experiments by
// fitting exponential models to the per-component estimates.
package fit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/signalnine/rbench/internal/experiment"
)

// Result is a fitted decay curve. Decay holds the RB decay for the
// standard model and the unitarity for the unitarity model.
type Result struct {
	Model        string  `json:"model"`
	Baseline     float64 `json:"baseline"`
	Amplitude    float64 `json:"amplitude"`
	Decay        float64 `json:"decay"`
	BaselineErr  float64 `json:"baseline_err,omitempty"`
	AmplitudeErr float64 `json:"amplitude_err,omitempty"`
	DecayErr     float64 `json:"decay_err,omitempty"`
	ChiSquare    float64 `json:"chi_square"`
	Points       int     `json:"points"`
	Evaluations  int     `json:"evaluations"`
}

// Fitter binds the decay models to an Optimizer.
type Fitter struct {
	Optimizer Optimizer
	Logger    *slog.Logger
}

func (f *Fitter) optimizer() Optimizer {
	if f.Optimizer == nil {
		return NelderMead{}
	}
	return f.Optimizer
}

func (f *Fitter) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.Default()
	}
	return f.Logger
}

// FitStandardRB fits baseline + amplitude·decay^depth to survivals. A nil
// weights slice means every point has unit weight.
func (f *Fitter) FitStandardRB(ctx context.Context, depths []int, survivals, weights []float64) (Result, error) {
	return f.fit(ctx, Standard, depths, survivals, weights)
}

// FitUnitarity fits baseline + amplitude·unitarity^(depth−1) to shifted
// purities.
func (f *Fitter) FitUnitarity(ctx context.Context, depths []int, purities, weights []float64) (Result, error) {
	return f.fit(ctx, Unitarity, depths, purities, weights)
}

// RBResults fits the standard model to every component of a standard or
// interleaved experiment.
func (f *Fitter) RBResults(ctx context.Context, exp *experiment.Acquired) (Result, error) {
	depths, means, weights := f.flatten(exp)
	return f.FitStandardRB(ctx, depths, means, weights)
}

// UnitarityResults fits the unitarity model to every component of a
// unitarity experiment.
func (f *Fitter) UnitarityResults(ctx context.Context, exp *experiment.Acquired) (Result, error) {
	depths, means, weights := f.flatten(exp)
	return f.FitUnitarity(ctx, depths, means, weights)
}

// Experiment picks the model from the experiment type.
func (f *Fitter) Experiment(ctx context.Context, exp *experiment.Acquired) (Result, error) {
	if exp.Type.IsDecay() {
		return f.RBResults(ctx, exp)
	}
	return f.UnitarityResults(ctx, exp)
}

// flatten lists (depth, mean, 1/stddev) for every component in layer
// order. A zero stddev anywhere drops the weights entirely.
func (f *Fitter) flatten(exp *experiment.Acquired) (depths []int, means, weights []float64) {
	degenerate := false
	for _, l := range exp.Layers {
		for _, c := range l.Components {
			depths = append(depths, l.Depth)
			means = append(means, c.Measurement.Mean)
			if c.Measurement.StdDev == 0 {
				degenerate = true
				continue
			}
			weights = append(weights, 1/c.Measurement.StdDev)
		}
	}
	if degenerate {
		f.logger().Warn("zero standard deviation in fit input, using unit weights",
			slog.String("experiment", exp.Name))
		return depths, means, nil
	}
	return depths, means, weights
}

func (f *Fitter) fit(ctx context.Context, m Model, depths []int, y, weights []float64) (Result, error) {
	if len(depths) != len(y) {
		return Result{}, fmt.Errorf("%w: %d depths, %d values", experiment.ErrMismatchedLengths, len(depths), len(y))
	}
	if weights != nil && len(weights) != len(depths) {
		return Result{}, fmt.Errorf("%w: %d depths, %d weights", experiment.ErrMismatchedLengths, len(depths), len(weights))
	}
	if len(y) == 0 {
		return Result{}, fmt.Errorf("%w: nothing to fit", experiment.ErrMismatchedLengths)
	}
	x := make([]float64, len(depths))
	for i, d := range depths {
		x[i] = float64(d)
	}
	if weights == nil {
		weights = make([]float64, len(x))
		for i := range weights {
			weights[i] = 1
		}
	}

	sol, err := f.optimizer().Fit(ctx, m, x, y, m.Guess(y), weights)
	if err != nil {
		return Result{}, experiment.Collaborator("fitting "+m.Name+" model", err)
	}
	if len(sol.Params) != len(m.Params) {
		return Result{}, experiment.Collaborator("fitting "+m.Name+" model",
			fmt.Errorf("optimizer returned %d parameters, want %d", len(sol.Params), len(m.Params)))
	}
	r := Result{
		Model:       m.Name,
		Baseline:    sol.Params[0],
		Amplitude:   sol.Params[1],
		Decay:       sol.Params[2],
		ChiSquare:   sol.ChiSquare,
		Points:      len(y),
		Evaluations: sol.Evaluations,
	}
	if len(sol.Stderr) == len(m.Params) {
		r.BaselineErr, r.AmplitudeErr, r.DecayErr = sol.Stderr[0], sol.Stderr[1], sol.Stderr[2]
	}
	f.logger().Debug("fitted decay model",
		slog.String("model", m.Name),
		slog.Float64("decay", r.Decay),
		slog.Float64("chi_square", r.ChiSquare),
		slog.Int("points", r.Points))
	return r, nil
}
