package acquire

import (
	"fmt"

	"github.com/signalnine/rbench/internal/experiment"
)

// CheckShapes verifies that exps can be acquired jointly: same experiment
// family, identical depth lists, identical per-depth trial counts, equal
// sequence lengths at every position, disjoint qubits, and nothing already
// acquired. It runs before any component is touched.
func CheckShapes(exps []*experiment.Experiment, shots int, decay bool) error {
	if len(exps) == 0 {
		return fmt.Errorf("%w: no experiments to acquire", experiment.ErrIncompatibleShapes)
	}
	if shots < 1 {
		return fmt.Errorf("shots must be at least 1, got %d", shots)
	}
	ref := exps[0]
	owner := map[int]string{}
	for _, exp := range exps {
		if exp.Type.IsDecay() != decay {
			return fmt.Errorf("%w: %s (%s) cannot share a batch with %s (%s)",
				experiment.ErrIncompatibleShapes, exp.Name, exp.Type, ref.Name, ref.Type)
		}
		for _, q := range exp.Qubits {
			if other, ok := owner[q]; ok {
				return fmt.Errorf("%w: qubit %d used by %s and %s", experiment.ErrIncompatibleShapes, q, other, exp.Name)
			}
			owner[q] = exp.Name
		}
		if len(exp.Layers) != len(ref.Layers) {
			return fmt.Errorf("%w: %s has %d layers, %s has %d",
				experiment.ErrIncompatibleShapes, exp.Name, len(exp.Layers), ref.Name, len(ref.Layers))
		}
		for i, l := range exp.Layers {
			rl := ref.Layers[i]
			if l.Depth != rl.Depth {
				return fmt.Errorf("%w: layer %d depth %d in %s, %d in %s",
					experiment.ErrIncompatibleShapes, i, l.Depth, exp.Name, rl.Depth, ref.Name)
			}
			if len(l.Components) != len(rl.Components) {
				return fmt.Errorf("%w: depth %d has %d trials in %s, %d in %s",
					experiment.ErrIncompatibleShapes, l.Depth, len(l.Components), exp.Name, len(rl.Components), ref.Name)
			}
			for j, c := range l.Components {
				if c.Acquired() {
					return fmt.Errorf("%w: %s depth %d trial %d", experiment.ErrAlreadyAcquired, exp.Name, l.Depth, j)
				}
				if n := len(rl.Components[j].Sequence); len(c.Sequence) != n {
					return fmt.Errorf("%w: depth %d trial %d has %d elements in %s, %d in %s",
						experiment.ErrIncompatibleShapes, l.Depth, j, len(c.Sequence), exp.Name, n, ref.Name)
				}
			}
		}
	}
	return nil
}
