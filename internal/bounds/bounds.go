// Package bounds converts fitted decay parameters into gate fidelities and
// into fidelity bounds for an interleaved gate.
//
// All functions take the Hilbert space dimension d = 2^k of the benchmarked
// qubits. Interleaved bounds follow Magesan et al., PRL 109, 080505 (2012);
// the unitarity-assisted bounds follow Dugas, Wallman and Emerson,
// arXiv:1610.05296.
package bounds

import (
	"fmt"
	"math"
)

// minDecay stands in for non-positive decays in denominators.
const minDecay = 1e-9

// Interval is a closed fidelity interval, always within [0, 1].
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

func (i Interval) String() string {
	return fmt.Sprintf("[%.6f, %.6f]", i.Lower, i.Upper)
}

// Contains reports whether f lies inside the interval.
func (i Interval) Contains(f float64) bool { return f >= i.Lower && f <= i.Upper }

// RBDecayToGateFidelity is the average gate fidelity for an RB decay p.
func RBDecayToGateFidelity(p float64, d int) float64 {
	dd := float64(d)
	return 1/dd - p*(1/dd-1)
}

// AverageGateInfidelityToRBDecay inverts RBDecayToGateFidelity for an
// infidelity r = 1 − fidelity.
func AverageGateInfidelityToRBDecay(r float64, d int) float64 {
	dd := float64(d)
	return (r - 1 + 1/dd) / (1/dd - 1)
}

// UnitarityToRBDecay is the largest RB decay compatible with unitarity u,
// reached when the noise is purely incoherent.
func UnitarityToRBDecay(u float64, d int) float64 {
	dd := float64(d)
	r := (math.Sqrt(math.Max(u, 0)) - 1) * (1 - dd) / dd
	return AverageGateInfidelityToRBDecay(r, d)
}

// IRBDecayToGateInfidelity estimates the infidelity of the interleaved gate
// from the interleaved and standard decays. A non-positive rb is treated as
// minDecay.
func IRBDecayToGateInfidelity(irb, rb float64, d int) float64 {
	dd := float64(d)
	return ((dd - 1) / dd) * (1 - irb/math.Max(rb, minDecay))
}

// GateInfidelityToIRBDecay inverts IRBDecayToGateInfidelity.
func GateInfidelityToIRBDecay(r, rb float64, d int) float64 {
	dd := float64(d)
	return (1 - r*dd/(dd-1)) * rb
}

// CoherenceAngle is arccos(rb/√u). The argument is clamped to [−1, 1] and
// u to at least minDecay.
func CoherenceAngle(rb, u float64) float64 {
	return math.Acos(clamp(rb/math.Sqrt(math.Max(u, minDecay)), -1, 1))
}

// Gamma is irb/√u, with u at least minDecay.
func Gamma(irb, u float64) float64 {
	return irb / math.Sqrt(math.Max(u, minDecay))
}

// InterleavedErrorBound is min(E1, E2), the half-width of the interleaved
// gate fidelity interval when no unitarity is known. Fitted decays may land
// slightly outside [0, 1]; rb is clamped to [minDecay, 1] first.
func InterleavedErrorBound(irb, rb float64, d int) float64 {
	dd := float64(d)
	rb = clamp(rb, minDecay, 1)
	e1 := (math.Abs(rb-irb/rb) + (1 - rb)) * (dd - 1) / dd
	e2 := 2*(dd*dd-1)*(1-rb)/(rb*dd*dd) + 4*math.Sqrt(1-rb)*math.Sqrt(dd*dd-1)/rb
	return math.Min(e1, e2)
}

// InterleavedGateFidelityBounds bounds the fidelity of the interleaved gate
// from the standard and interleaved decays.
func InterleavedGateFidelityBounds(irb, rb float64, d int) Interval {
	infidelity := IRBDecayToGateInfidelity(irb, rb, d)
	e := InterleavedErrorBound(irb, rb, d)
	return interval(1-infidelity-e, 1-infidelity+e)
}

// InterleavedGateFidelityBoundsWithUnitarity tightens the interleaved bounds
// with a unitarity decay u measured on the same qubits.
func InterleavedGateFidelityBoundsWithUnitarity(irb, rb, u float64, d int) Interval {
	theta := CoherenceAngle(rb, u)
	g := Gamma(irb, u)
	spread := math.Sin(theta) * math.Sqrt(1-math.Min(g*g, 1))
	lower := g*math.Cos(theta) - spread
	upper := g*math.Cos(theta) + spread
	return interval(RBDecayToGateFidelity(lower, d), RBDecayToGateFidelity(upper, d))
}

// interval orders and clamps the endpoints. Any NaN endpoint yields the
// uninformative [0, 1].
func interval(a, b float64) Interval {
	if math.IsNaN(a) || math.IsNaN(b) {
		return Interval{Lower: 0, Upper: 1}
	}
	if a > b {
		a, b = b, a
	}
	return Interval{Lower: clamp(a, 0, 1), Upper: clamp(b, 0, 1)}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
