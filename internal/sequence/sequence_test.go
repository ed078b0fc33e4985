package sequence_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/rbench/internal/circuit"
	"github.com/signalnine/rbench/internal/experiment"
	"github.com/signalnine/rbench/internal/sequence"
)

// recordingSynth returns depth copies of the first gate and records requests.
type recordingSynth struct {
	reqs []sequence.Request
	err  error
}

func (r *recordingSynth) Synthesize(_ context.Context, req sequence.Request) (circuit.Sequence, error) {
	r.reqs = append(r.reqs, req)
	if r.err != nil {
		return nil, r.err
	}
	seq := make(circuit.Sequence, req.Depth)
	for i := range seq {
		seq[i] = circuit.Program{req.Gateset[0]}
	}
	return seq, nil
}

func seed(v int64) *int64 { return &v }

func TestGenerateRBSeedsAndShape(t *testing.T) {
	syn := &recordingSynth{}
	exp, err := sequence.GenerateRB(context.Background(), syn, sequence.Spec{
		Name: "q0", Qubits: []int{0}, Depths: []int{4, 2}, Sequences: 3, Seed: seed(100),
	})
	require.NoError(t, err)

	assert.Equal(t, experiment.Standard, exp.Type)
	assert.Equal(t, []int{2, 4}, exp.Depths(), "layers are ordered by ascending depth")
	require.Len(t, syn.reqs, 6)
	for i, req := range syn.reqs {
		require.NotNil(t, req.Seed)
		assert.Equal(t, int64(101+i), *req.Seed, "request %d", i)
	}
	for _, l := range exp.Layers {
		require.Len(t, l.Components, 3)
		for _, c := range l.Components {
			assert.Len(t, c.Sequence, l.Depth)
			assert.Equal(t, []int{0}, c.Qubits)
			assert.False(t, c.Acquired())
		}
	}
}

func TestGenerateRBWithoutSeed(t *testing.T) {
	syn := &recordingSynth{}
	_, err := sequence.GenerateRB(context.Background(), syn, sequence.Spec{Qubits: []int{0, 1}, Depths: []int{2}, Sequences: 2})
	require.NoError(t, err)
	for _, req := range syn.reqs {
		assert.Nil(t, req.Seed)
		assert.Len(t, req.Gateset, 17)
	}
}

func TestGenerateInterleaved(t *testing.T) {
	syn := &recordingSynth{}
	x := circuit.Program{{Name: "X", Qubits: []int{0}}}
	exp, err := sequence.GenerateRB(context.Background(), syn, sequence.Spec{Qubits: []int{0}, Depths: []int{2}, Sequences: 1, Interleaved: x})
	require.NoError(t, err)
	assert.Equal(t, experiment.Interleaved, exp.Type)
	assert.Equal(t, x, syn.reqs[0].Interleaved)
}

func TestGenerateUnitarityTruncates(t *testing.T) {
	syn := &recordingSynth{}
	exp, err := sequence.GenerateUnitarity(context.Background(), syn, sequence.Spec{Qubits: []int{0}, Depths: []int{1, 3}, Sequences: 2})
	require.NoError(t, err)
	assert.Equal(t, experiment.Unitarity, exp.Type)
	assert.Equal(t, 2, syn.reqs[0].Depth)
	assert.Equal(t, 4, syn.reqs[len(syn.reqs)-1].Depth)
	for _, l := range exp.Layers {
		for _, c := range l.Components {
			assert.Len(t, c.Sequence, l.Depth)
		}
	}
}

func TestGenerateInvalidDepth(t *testing.T) {
	syn := &recordingSynth{}
	_, err := sequence.GenerateRB(context.Background(), syn, sequence.Spec{Qubits: []int{0}, Depths: []int{1, 4}, Sequences: 1})
	assert.ErrorIs(t, err, experiment.ErrInvalidDepth)
	assert.Empty(t, syn.reqs, "validation happens before synthesis")

	_, err = sequence.GenerateUnitarity(context.Background(), syn, sequence.Spec{Qubits: []int{0}, Depths: []int{0}, Sequences: 1})
	assert.ErrorIs(t, err, experiment.ErrInvalidDepth)
}

func TestGenerateUnsupportedQubitCount(t *testing.T) {
	for _, qubits := range [][]int{{}, {0, 1, 2}} {
		_, err := sequence.GenerateRB(context.Background(), &recordingSynth{}, sequence.Spec{Qubits: qubits, Depths: []int{2}, Sequences: 1})
		assert.ErrorIs(t, err, experiment.ErrUnsupportedQubitCount)
	}
}

func TestGenerateSynthesizerFailure(t *testing.T) {
	cause := errors.New("compiler offline")
	_, err := sequence.GenerateRB(context.Background(), &recordingSynth{err: cause}, sequence.Spec{Qubits: []int{0}, Depths: []int{2}, Sequences: 1})
	var ce *experiment.CollaboratorError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, cause)
}

func TestGenerateDispatch(t *testing.T) {
	x := circuit.Program{{Name: "X", Qubits: []int{0}}}
	_, err := sequence.Generate(context.Background(), &recordingSynth{}, sequence.Spec{Qubits: []int{0}, Depths: []int{2}, Sequences: 1}, experiment.Interleaved)
	assert.Error(t, err)
	_, err = sequence.Generate(context.Background(), &recordingSynth{}, sequence.Spec{Qubits: []int{0}, Depths: []int{2}, Sequences: 1, Interleaved: x}, experiment.Unitarity)
	assert.Error(t, err)
	exp, err := sequence.Generate(context.Background(), &recordingSynth{}, sequence.Spec{Qubits: []int{0}, Depths: []int{2}, Sequences: 1, Interleaved: x}, experiment.Interleaved)
	require.NoError(t, err)
	assert.Equal(t, experiment.Interleaved, exp.Type)
}
