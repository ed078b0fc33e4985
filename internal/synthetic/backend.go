// Package synthetic is an in-process backend driven by a simple noise
// model: every gate application on a qubit shrinks its polarization by
// GateDecay and its Bloch vector length by √GateUnitarity. It synthesizes,
// executes and measures sequences without a device.
package synthetic

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/signalnine/rbench/internal/circuit"
	"github.com/signalnine/rbench/internal/experiment"
	"github.com/signalnine/rbench/internal/sequence"
)

// Config holds the noise model parameters.
type Config struct {
	GateDecay     float64
	GateUnitarity float64
	Seed          uint64
}

// Backend implements sequence.Synthesizer, acquire.Executor and
// acquire.Tomographer. It is safe for concurrent use.
type Backend struct {
	cfg Config

	mu  sync.Mutex
	rng *rand.Rand
}

func New(cfg Config) (*Backend, error) {
	if cfg.GateDecay < 0 || cfg.GateDecay > 1 {
		return nil, fmt.Errorf("gate decay %v outside [0, 1]", cfg.GateDecay)
	}
	if cfg.GateUnitarity < 0 || cfg.GateUnitarity > 1 {
		return nil, fmt.Errorf("gate unitarity %v outside [0, 1]", cfg.GateUnitarity)
	}
	return &Backend{cfg: cfg, rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))}, nil
}

// Synthesize draws Depth−1 random gates, each followed by the interleaved
// program, and appends the inverse of everything before it.
func (b *Backend) Synthesize(ctx context.Context, req sequence.Request) (circuit.Sequence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Gateset) == 0 {
		return nil, fmt.Errorf("empty gateset")
	}
	if req.Depth < 1 {
		return nil, fmt.Errorf("depth %d below 1", req.Depth)
	}

	pick := b.intN
	if req.Seed != nil {
		seeded := rand.New(rand.NewPCG(uint64(*req.Seed), 0))
		pick = seeded.IntN
	}

	seq := make(circuit.Sequence, 0, req.Depth)
	var body circuit.Program
	for i := 0; i < req.Depth-1; i++ {
		el := circuit.Program{req.Gateset[pick(len(req.Gateset))]}
		el = append(el, req.Interleaved...)
		seq = append(seq, el)
		body = append(body, el...)
	}
	return append(seq, body.Inverse()), nil
}

// Run samples every measured qubit independently; a qubit touched by n
// gates reads 0 with probability ½ + ½·GateDecay^n.
func (b *Backend) Run(ctx context.Context, exe circuit.Executable) ([][]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	counts := applications(exe.Program)
	p0 := make([]float64, len(exe.Measurements))
	for i, m := range exe.Measurements {
		p0[i] = 0.5 + 0.5*math.Pow(b.cfg.GateDecay, float64(counts[m.Qubit]))
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	bits := make([][]int, exe.Shots)
	for s := range bits {
		row := make([]int, len(exe.Measurements))
		for i := range row {
			if b.rng.Float64() >= p0[i] {
				row[i] = 1
			}
		}
		bits[s] = row
	}
	return bits, nil
}

// Measure estimates each setting from shots ±1 outcomes. A setting whose
// support saw n gate applications has true expectation ±GateUnitarity^(n/2),
// with a sign fixed by the setting itself.
func (b *Backend) Measure(ctx context.Context, prog circuit.Program, groups [][]circuit.Setting, shots int) ([][]experiment.Expectation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if shots < 1 {
		return nil, fmt.Errorf("shots must be at least 1, got %d", shots)
	}
	counts := applications(prog)

	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]experiment.Expectation, len(groups))
	for g, group := range groups {
		out[g] = make([]experiment.Expectation, len(group))
		for j, s := range group {
			out[g][j] = b.estimate(s, b.expectation(s, counts), shots)
		}
	}
	return out, nil
}

func (b *Backend) expectation(s circuit.Setting, counts map[int]int) float64 {
	if s.IsIdentity() {
		return 1
	}
	n := 0
	for _, q := range s.Support() {
		n += counts[q]
	}
	e := math.Pow(b.cfg.GateUnitarity, float64(n)/2)
	if xxhash.Sum64String(s.String())&1 == 1 {
		e = -e
	}
	return e
}

func (b *Backend) estimate(s circuit.Setting, e float64, shots int) experiment.Expectation {
	up := (1 + e) / 2
	sum := 0
	for i := 0; i < shots; i++ {
		if b.rng.Float64() < up {
			sum++
		} else {
			sum--
		}
	}
	m := float64(sum) / float64(shots)
	return experiment.Expectation{
		Setting:     s,
		Expectation: m,
		StdDev:      math.Sqrt((1 - m*m) / float64(shots)),
	}
}

func (b *Backend) intN(n int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rng.IntN(n)
}

// applications counts how many gates act on each qubit.
func applications(p circuit.Program) map[int]int {
	counts := map[int]int{}
	for _, g := range p {
		for _, q := range g.Qubits {
			counts[q]++
		}
	}
	return counts
}
