package fit_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/rbench/internal/experiment"
	"github.com/signalnine/rbench/internal/fit"
)

type recordingOptimizer struct {
	initial []float64
	weights []float64
	err     error
}

func (r *recordingOptimizer) Fit(_ context.Context, _ fit.Model, _, _, initial, weights []float64) (fit.Solution, error) {
	r.initial = initial
	r.weights = weights
	if r.err != nil {
		return fit.Solution{}, r.err
	}
	return fit.Solution{Params: initial, ChiSquare: 1.5, Evaluations: 7}, nil
}

func TestFitStandardRBRecoversDecay(t *testing.T) {
	depths := []int{2, 4, 8, 16, 32, 64}
	y := make([]float64, len(depths))
	for i, d := range depths {
		y[i] = 0.25 + 0.7*math.Pow(0.93, float64(d))
	}
	got, err := (&fit.Fitter{}).FitStandardRB(context.Background(), depths, y, nil)
	require.NoError(t, err)
	assert.Equal(t, "standard", got.Model)
	assert.InDelta(t, 0.93, got.Decay, 1e-3)
	assert.InDelta(t, 0.25, got.Baseline, 1e-2)
	assert.InDelta(t, 0.7, got.Amplitude, 1e-2)
	assert.Less(t, got.ChiSquare, 1e-6)
	assert.Equal(t, 6, got.Points)
	assert.Positive(t, got.Evaluations)
}

func TestFitUnitarityRecoversDecay(t *testing.T) {
	depths := []int{1, 2, 4, 8, 16, 32}
	y := make([]float64, len(depths))
	for i, d := range depths {
		y[i] = 0.9 * math.Pow(0.96, float64(d-1))
	}
	got, err := (&fit.Fitter{}).FitUnitarity(context.Background(), depths, y, nil)
	require.NoError(t, err)
	assert.Equal(t, "unitarity", got.Model)
	assert.InDelta(t, 0.96, got.Decay, 1e-3)
	assert.InDelta(t, 0.9, got.Amplitude, 1e-2)
}

func TestInitialGuesses(t *testing.T) {
	opt := &recordingOptimizer{}
	f := &fit.Fitter{Optimizer: opt}

	_, err := f.FitStandardRB(context.Background(), []int{2, 4, 8}, []float64{0.9, 0.8, 0.6}, nil)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.6, 0.3, 0.95}, opt.initial, 1e-12)
	assert.Equal(t, []float64{1, 1, 1}, opt.weights)

	_, err = f.FitUnitarity(context.Background(), []int{1, 3}, []float64{0.8, 0.5}, []float64{2, 4})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 0.8, 0.95}, opt.initial, 1e-12)
	assert.Equal(t, []float64{2, 4}, opt.weights)
}

func TestMismatchedLengths(t *testing.T) {
	f := &fit.Fitter{Optimizer: &recordingOptimizer{}}
	_, err := f.FitStandardRB(context.Background(), []int{2, 4, 8}, []float64{0.9, 0.8}, nil)
	assert.ErrorIs(t, err, experiment.ErrMismatchedLengths)
	_, err = f.FitUnitarity(context.Background(), []int{1, 2}, []float64{0.9, 0.8}, []float64{1})
	assert.ErrorIs(t, err, experiment.ErrMismatchedLengths)
}

func TestOptimizerFailure(t *testing.T) {
	cause := errors.New("did not converge")
	_, err := (&fit.Fitter{Optimizer: &recordingOptimizer{err: cause}}).FitStandardRB(context.Background(), []int{2, 4}, []float64{0.9, 0.8}, nil)
	var ce *experiment.CollaboratorError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, cause)
}

func acquired(t *testing.T, typ experiment.Type, points map[int][][2]float64) *experiment.Acquired {
	t.Helper()
	exp := &experiment.Experiment{Name: "e", Type: typ, Qubits: []int{0}}
	for _, d := range []int{2, 4, 8} {
		layer := experiment.Layer{Depth: d}
		for _, p := range points[d] {
			c := experiment.NewComponent(nil, []int{0})
			require.NoError(t, c.Record(experiment.Measurement{Mean: p[0], StdDev: p[1]}))
			layer.Components = append(layer.Components, c)
		}
		exp.Layers = append(exp.Layers, layer)
	}
	a, err := exp.Acquired()
	require.NoError(t, err)
	return a
}

func TestRBResultsFlattensInLayerOrder(t *testing.T) {
	a := acquired(t, experiment.Standard, map[int][][2]float64{
		2: {{0.9, 0.1}, {0.88, 0.2}},
		4: {{0.8, 0.5}},
		8: {{0.6, 0.25}},
	})
	opt := &recordingOptimizer{}
	got, err := (&fit.Fitter{Optimizer: opt}).Experiment(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, "standard", got.Model)
	assert.Equal(t, 4, got.Points)
	assert.InDeltaSlice(t, []float64{10, 5, 2, 4}, opt.weights, 1e-12)
	assert.InDeltaSlice(t, []float64{0.6, 0.3, 0.95}, opt.initial, 1e-12)
}

func TestZeroStdDevFallsBackToUnitWeights(t *testing.T) {
	a := acquired(t, experiment.Unitarity, map[int][][2]float64{
		2: {{0.9, 0.1}},
		4: {{0.8, 0}},
		8: {{0.6, 0.25}},
	})
	opt := &recordingOptimizer{}
	got, err := (&fit.Fitter{Optimizer: opt}).Experiment(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, "unitarity", got.Model)
	assert.Equal(t, []float64{1, 1, 1}, opt.weights)
}

func TestStandardErrorsReported(t *testing.T) {
	depths := []int{2, 2, 4, 4, 8, 8, 16, 16}
	noise := []float64{0.01, -0.01, 0.008, -0.012, 0.01, -0.009, 0.011, -0.01}
	y := make([]float64, len(depths))
	for i, d := range depths {
		y[i] = 0.25 + 0.7*math.Pow(0.9, float64(d)) + noise[i]
	}
	got, err := (&fit.Fitter{}).FitStandardRB(context.Background(), depths, y, nil)
	require.NoError(t, err)
	assert.Positive(t, got.DecayErr)
	assert.Less(t, got.DecayErr, 0.1)
}

// nearLinear mimics two-qubit survival data at shallow depths, where the
// decay is too slow to show curvature.
func nearLinear() ([]int, []float64) {
	depths := []int{2, 2, 4, 4, 8, 8, 16, 16}
	y := make([]float64, len(depths))
	for i, d := range depths {
		y[i] = 0.97 - 0.004*float64(d) + 0.002*float64(i%2*2-1)
	}
	return depths, y
}

func TestEvaluationLimitIsAnError(t *testing.T) {
	depths, y := nearLinear()
	f := &fit.Fitter{Optimizer: fit.NelderMead{MaxEvaluations: 200}}
	_, err := f.FitStandardRB(context.Background(), depths, y, nil)
	var ce *experiment.CollaboratorError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, fit.ErrNotConverged)
}

func TestNearLinearFitStaysInBounds(t *testing.T) {
	depths, y := nearLinear()
	got, err := (&fit.Fitter{}).FitStandardRB(context.Background(), depths, y, nil)
	if err != nil {
		assert.ErrorIs(t, err, fit.ErrNotConverged)
		return
	}
	assert.True(t, fit.Standard.InBounds([]float64{got.Baseline, got.Amplitude, got.Decay}), "%+v", got)
	assert.LessOrEqual(t, got.Decay, 1.0)
	assert.Less(t, got.Evaluations, 20000)
}

func TestModelBounds(t *testing.T) {
	assert.True(t, fit.Standard.InBounds([]float64{0.5, 0.5, 0.95}))
	assert.False(t, fit.Standard.InBounds([]float64{0.5, 0.5, 1.0001}))
	assert.False(t, fit.Unitarity.InBounds([]float64{-31620, 31621, 0.99}))
	assert.Equal(t, []float64{-2, 2, 1}, fit.Standard.Clip([]float64{-5, 3, 1.2}))
	assert.True(t, fit.Model{}.InBounds([]float64{1e9}))
}
