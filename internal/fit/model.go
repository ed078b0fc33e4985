package fit

import "math"

// Model is a parametric curve y = Func(x, params) together with the
// heuristic that seeds its parameters from the observed values.
type Model struct {
	Name   string
	Params []string
	Func   func(x float64, p []float64) float64
	Guess  func(y []float64) []float64
	// Lower and Upper box the parameters. Nil means unbounded.
	Lower, Upper []float64
}

// InBounds reports whether p lies inside the model's parameter box.
func (m Model) InBounds(p []float64) bool {
	for i, v := range p {
		if m.Lower != nil && v < m.Lower[i] {
			return false
		}
		if m.Upper != nil && v > m.Upper[i] {
			return false
		}
	}
	return true
}

// Clip moves p into the parameter box.
func (m Model) Clip(p []float64) []float64 {
	out := make([]float64, len(p))
	for i, v := range p {
		if m.Lower != nil {
			v = math.Max(v, m.Lower[i])
		}
		if m.Upper != nil {
			v = math.Min(v, m.Upper[i])
		}
		out[i] = v
	}
	return out
}

// Survival and purity curves live in [0, 1], so baseline and amplitude stay
// within ±2 and the decay within [0, 1]. This rules out the runaway where
// amplitude grows without bound while the decay creeps towards 1.
var (
	decayLower = []float64{-2, -2, 0}
	decayUpper = []float64{2, 2, 1}
)

// Standard is baseline + amplitude·decay^x.
var Standard = Model{
	Name:   "standard",
	Params: []string{"baseline", "amplitude", "decay"},
	Func: func(x float64, p []float64) float64 {
		return p[0] + p[1]*math.Pow(p[2], x)
	},
	Guess: func(y []float64) []float64 {
		return []float64{y[len(y)-1], y[0] - y[len(y)-1], 0.95}
	},
	Lower: decayLower,
	Upper: decayUpper,
}

// Unitarity is baseline + amplitude·unitarity^(x−1).
var Unitarity = Model{
	Name:   "unitarity",
	Params: []string{"baseline", "amplitude", "unitarity"},
	Func: func(x float64, p []float64) float64 {
		return p[0] + p[1]*math.Pow(p[2], x-1)
	},
	Guess: func(y []float64) []float64 {
		return []float64{0, y[0], 0.95}
	},
	Lower: decayLower,
	Upper: decayUpper,
}
