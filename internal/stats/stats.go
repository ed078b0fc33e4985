// Package stats turns raw shot data and tomography expectations into the
// per-component estimates that the fits consume.
package stats

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/stat/distuv"
)

// SecondOrderTolerance is the absolute threshold below which the
// first-order variance of e² is treated as zero and replaced by v².
const SecondOrderTolerance = 1e-6

// Survivors counts the shots in which every measured bit is 0.
func Survivors(bits [][]int) int {
	n := 0
	for _, shot := range bits {
		if !slices.ContainsFunc(shot, func(b int) bool { return b != 0 }) {
			n++
		}
	}
	return n
}

// SurvivalStatistics estimates the probability that every measured bit
// returns 0. With S surviving and D non-surviving shots the posterior is
// Beta(S+1, D+1); its mean and standard deviation are returned.
func SurvivalStatistics(bits [][]int) (mean, stddev float64) {
	survived := float64(Survivors(bits))
	died := float64(len(bits)) - survived
	posterior := distuv.Beta{Alpha: survived + 1, Beta: died + 1}
	return posterior.Mean(), math.Sqrt(posterior.Variance())
}

// Purity estimates the purity of a state on a Hilbert space of dimension
// dim from the expectations of every non-identity Pauli operator. When
// renorm is set the shifted purity, which lies in [0, 1], is returned.
func Purity(dim int, expectations []float64, renorm bool) float64 {
	d := float64(dim)
	purity := (1 / d) * (1 + floats.Dot(expectations, expectations))
	if renorm {
		purity = (d / (d - 1)) * (purity - 1/d)
	}
	return purity
}

// PurityStdDev propagates per-operator variances to the purity estimate,
// assuming the operator expectations are independent.
func PurityStdDev(dim int, expectations, variances []float64, renorm bool) (float64, error) {
	if len(expectations) != len(variances) {
		return 0, fmt.Errorf("got %d expectations and %d variances", len(expectations), len(variances))
	}
	d := float64(dim)
	var total float64
	for i, e := range expectations {
		v := (2 * math.Abs(e)) * (2 * math.Abs(e)) * variances[i]
		if scalar.EqualWithinAbs(v, 0, SecondOrderTolerance) {
			v = variances[i] * variances[i]
		}
		total += v
	}
	variance := (1 / d) * (1 / d) * total
	if renorm {
		variance *= (d / (d - 1)) * (d / (d - 1))
	}
	return math.Sqrt(variance), nil
}
