package sequence

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/signalnine/rbench/internal/circuit"
	"github.com/signalnine/rbench/internal/experiment"
)

// Request asks a synthesizer for one randomized sequence that composes to
// the identity.
type Request struct {
	Gateset     []circuit.Gate
	Depth       int
	Interleaved circuit.Program
	Seed        *int64
}

// Synthesizer produces randomized benchmarking sequences.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (circuit.Sequence, error)
}

// Spec describes an experiment to assemble.
type Spec struct {
	Name        string
	Qubits      []int
	Depths      []int
	Sequences   int
	Interleaved circuit.Program
	Seed        *int64
}

// seeder hands out seed+1, seed+2, ... so no two synthesis calls share one.
type seeder struct {
	next *int64
}

func newSeeder(base *int64) *seeder {
	if base == nil {
		return &seeder{}
	}
	v := *base
	return &seeder{next: &v}
}

func (s *seeder) take() *int64 {
	if s.next == nil {
		return nil
	}
	*s.next++
	v := *s.next
	return &v
}

func gateset(qubits []int) ([]circuit.Gate, error) {
	gs, err := circuit.Gateset(qubits)
	if errors.Is(err, circuit.ErrNoGateset) {
		return nil, fmt.Errorf("%w: %d qubits (gateset defined for 1 or 2)", experiment.ErrUnsupportedQubitCount, len(qubits))
	}
	return gs, err
}

func checkDepths(depths []int, t experiment.Type) error {
	if len(depths) == 0 {
		return fmt.Errorf("%w: no depths requested", experiment.ErrInvalidDepth)
	}
	for _, d := range depths {
		if d < t.MinDepth() {
			return fmt.Errorf("%w: depth %d below minimum %d for %s", experiment.ErrInvalidDepth, d, t.MinDepth(), t.Description())
		}
	}
	return nil
}

// GenerateRB assembles a standard RB experiment, or an interleaved one when
// spec.Interleaved is set.
func GenerateRB(ctx context.Context, syn Synthesizer, spec Spec) (*experiment.Experiment, error) {
	typ := experiment.Standard
	if len(spec.Interleaved) > 0 {
		typ = experiment.Interleaved
	}
	return generate(ctx, syn, spec, typ)
}

// GenerateUnitarity assembles a unitarity experiment. Each sequence is
// synthesized one element longer and its inverting element dropped.
func GenerateUnitarity(ctx context.Context, syn Synthesizer, spec Spec) (*experiment.Experiment, error) {
	if len(spec.Interleaved) > 0 {
		return nil, fmt.Errorf("unitarity experiments take no interleaved program")
	}
	return generate(ctx, syn, spec, experiment.Unitarity)
}

// Generate dispatches on the experiment type.
func Generate(ctx context.Context, syn Synthesizer, spec Spec, t experiment.Type) (*experiment.Experiment, error) {
	switch t {
	case experiment.Unitarity:
		return GenerateUnitarity(ctx, syn, spec)
	case experiment.Interleaved:
		if len(spec.Interleaved) == 0 {
			return nil, fmt.Errorf("interleaved experiment %q has no interleaved program", spec.Name)
		}
		return GenerateRB(ctx, syn, spec)
	case experiment.Standard:
		if len(spec.Interleaved) > 0 {
			return nil, fmt.Errorf("standard experiment %q has an interleaved program", spec.Name)
		}
		return GenerateRB(ctx, syn, spec)
	}
	return nil, fmt.Errorf("unknown experiment type %q", t)
}

func generate(ctx context.Context, syn Synthesizer, spec Spec, t experiment.Type) (*experiment.Experiment, error) {
	gs, err := gateset(spec.Qubits)
	if err != nil {
		return nil, err
	}
	if err := checkDepths(spec.Depths, t); err != nil {
		return nil, err
	}
	if spec.Sequences < 1 {
		return nil, fmt.Errorf("at least one sequence per depth required, got %d", spec.Sequences)
	}
	depths := append([]int(nil), spec.Depths...)
	sort.Ints(depths)

	seeds := newSeeder(spec.Seed)
	exp := &experiment.Experiment{
		Name:   spec.Name,
		Type:   t,
		Qubits: append([]int(nil), spec.Qubits...),
		Layers: make([]experiment.Layer, 0, len(depths)),
	}
	for _, depth := range depths {
		layer := experiment.Layer{Depth: depth, Components: make([]*experiment.Component, 0, spec.Sequences)}
		for trial := 0; trial < spec.Sequences; trial++ {
			req := Request{Gateset: gs, Depth: depth, Interleaved: spec.Interleaved, Seed: seeds.take()}
			if t == experiment.Unitarity {
				req.Depth = depth + 1
			}
			seq, err := syn.Synthesize(ctx, req)
			if err != nil {
				return nil, experiment.Collaborator(fmt.Sprintf("synthesizing depth %d trial %d", depth, trial), err)
			}
			if len(seq) != req.Depth {
				return nil, experiment.Collaborator(fmt.Sprintf("synthesizing depth %d trial %d", depth, trial),
					fmt.Errorf("got %d elements, want %d", len(seq), req.Depth))
			}
			if t == experiment.Unitarity {
				seq = seq[:len(seq)-1]
			}
			layer.Components = append(layer.Components, experiment.NewComponent(seq, spec.Qubits))
		}
		exp.Layers = append(exp.Layers, layer)
	}
	return exp, nil
}
