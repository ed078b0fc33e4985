package fit

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// ErrNotConverged is returned when the optimizer stops on a budget limit
// instead of a convergence criterion.
var ErrNotConverged = errors.New("fit did not converge")

// Solution is what an Optimizer reports for one weighted least-squares fit.
type Solution struct {
	Params      []float64
	Stderr      []float64 // nil when the covariance could not be estimated
	ChiSquare   float64
	Evaluations int
}

// Optimizer minimizes Σ (wᵢ·(model(xᵢ) − yᵢ))² starting from initial.
type Optimizer interface {
	Fit(ctx context.Context, m Model, x, y, initial, weights []float64) (Solution, error)
}

// NelderMead is the default Optimizer, backed by gonum's simplex search.
type NelderMead struct {
	// MaxEvaluations caps objective evaluations; zero means 20000.
	MaxEvaluations int
	// Tolerance is the absolute χ² convergence threshold; zero means 1e-12.
	Tolerance float64
}

func (n NelderMead) Fit(ctx context.Context, m Model, x, y, initial, weights []float64) (Solution, error) {
	chi2 := func(p []float64) float64 {
		if !m.InBounds(p) {
			return math.Inf(1)
		}
		var sum float64
		for i := range x {
			r := weights[i] * (m.Func(x[i], p) - y[i])
			sum += r * r
		}
		if math.IsNaN(sum) {
			return math.Inf(1)
		}
		return sum
	}

	maxEvals := n.MaxEvaluations
	if maxEvals == 0 {
		maxEvals = 20000
	}
	tol := n.Tolerance
	if tol == 0 {
		tol = 1e-12
	}

	problem := optimize.Problem{
		Func: chi2,
		Status: func() (optimize.Status, error) {
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			return optimize.NotTerminated, nil
		},
	}
	settings := &optimize.Settings{
		FuncEvaluations: maxEvals,
		Converger:       &optimize.FunctionConverge{Absolute: tol, Iterations: 500},
	}
	res, err := optimize.Minimize(problem, m.Clip(initial), settings, &optimize.NelderMead{})
	if res != nil && !converged(res.Status) && ctx.Err() == nil {
		return Solution{}, fmt.Errorf("nelder-mead on %s model: %w: %v after %d evaluations",
			m.Name, ErrNotConverged, res.Status, res.Stats.FuncEvaluations)
	}
	if err != nil {
		return Solution{}, fmt.Errorf("nelder-mead on %s model: %w", m.Name, err)
	}
	if math.IsInf(res.F, 0) {
		return Solution{}, fmt.Errorf("nelder-mead on %s model: objective is not finite at %v", m.Name, res.X)
	}
	return Solution{
		Params:      res.X,
		Stderr:      standardErrors(chi2, res.X, res.F, len(x)),
		ChiSquare:   res.F,
		Evaluations: res.Stats.FuncEvaluations,
	}, nil
}

func converged(s optimize.Status) bool {
	switch s {
	case optimize.FunctionEvaluationLimit, optimize.IterationLimit, optimize.RuntimeLimit,
		optimize.GradientEvaluationLimit, optimize.HessianEvaluationLimit, optimize.Failure:
		return false
	}
	return true
}

// standardErrors estimates parameter uncertainties from the Hessian of χ²,
// scaled by the reduced χ².
func standardErrors(chi2 func([]float64) float64, p []float64, f float64, points int) []float64 {
	dof := points - len(p)
	if dof <= 0 {
		return nil
	}
	h := mat.NewSymDense(len(p), nil)
	fd.Hessian(h, chi2, p, nil)

	var chol mat.Cholesky
	if ok := chol.Factorize(h); !ok {
		return nil
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil
	}
	redchi := f / float64(dof)
	out := make([]float64, len(p))
	for i := range p {
		v := 2 * inv.At(i, i) * redchi
		if v < 0 || math.IsNaN(v) {
			return nil
		}
		out[i] = math.Sqrt(v)
	}
	return out
}
