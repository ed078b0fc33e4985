package runner

import (
	"log/slog"
	"slices"
	"sort"

	"github.com/signalnine/rbench/internal/bounds"
	"github.com/signalnine/rbench/internal/experiment"
	"github.com/signalnine/rbench/internal/result"
)

// DeriveBounds pairs every irb fit with the rb fit on the same qubits, and
// with a urb fit on those qubits when one exists, and bounds the fidelity
// of the interleaved gate. Interleaved fits without a standard partner are
// skipped.
func DeriveBounds(fits []*result.FitRecord, logger *slog.Logger) []result.BoundRecord {
	if logger == nil {
		logger = slog.Default()
	}
	byType := map[experiment.Type][]*result.FitRecord{}
	for _, f := range fits {
		byType[experiment.Type(f.Type)] = append(byType[experiment.Type(f.Type)], f)
	}

	var out []result.BoundRecord
	for _, irb := range byType[experiment.Interleaved] {
		rb := sameQubits(byType[experiment.Standard], irb.Qubits)
		if rb == nil {
			logger.Warn("no standard rb on the same qubits, skipping bounds",
				slog.String("experiment", irb.Experiment),
				slog.Any("qubits", irb.Qubits))
			continue
		}
		d := irb.Dimension
		rec := result.BoundRecord{
			Interleaved: irb.Experiment,
			Standard:    rb.Experiment,
			Qubits:      irb.Qubits,
			RBDecay:     rb.Fit.Decay,
			IRBDecay:    irb.Fit.Decay,
			Infidelity:  bounds.IRBDecayToGateInfidelity(irb.Fit.Decay, rb.Fit.Decay, d),
		}
		if urb := sameQubits(byType[experiment.Unitarity], irb.Qubits); urb != nil {
			rec.Unitarity = urb.Experiment
			rec.UnitarityDecay = urb.Fit.Decay
			rec.Fidelity = bounds.InterleavedGateFidelityBoundsWithUnitarity(irb.Fit.Decay, rb.Fit.Decay, urb.Fit.Decay, d)
		} else {
			rec.Fidelity = bounds.InterleavedGateFidelityBounds(irb.Fit.Decay, rb.Fit.Decay, d)
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Interleaved < out[j].Interleaved })
	return out
}

// sameQubits returns the first fit, by name, on exactly qubits.
func sameQubits(fits []*result.FitRecord, qubits []int) *result.FitRecord {
	want := slices.Sorted(slices.Values(qubits))
	var best *result.FitRecord
	for _, f := range fits {
		if !slices.Equal(slices.Sorted(slices.Values(f.Qubits)), want) {
			continue
		}
		if best == nil || f.Experiment < best.Experiment {
			best = f
		}
	}
	return best
}
