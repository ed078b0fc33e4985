package circuit

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrLengthMismatch = errors.New("sequence lengths differ")
	ErrQubitOverlap   = errors.New("sequences address overlapping qubits")
)

// Gate is a single named operation with optional angle parameters.
type Gate struct {
	Name   string    `json:"name"`
	Params []float64 `json:"params,omitempty"`
	Qubits []int     `json:"qubits"`
}

// selfInverse lists gates that are their own inverse.
var selfInverse = map[string]bool{
	"I": true, "X": true, "Y": true, "Z": true, "H": true,
	"CZ": true, "CNOT": true, "SWAP": true,
}

// rotations are inverted by negating their angle.
var rotations = map[string]bool{
	"RX": true, "RY": true, "RZ": true, "PHASE": true, "CPHASE": true,
}

// Inverse returns the gate that undoes g.
func (g Gate) Inverse() Gate {
	inv := Gate{Name: g.Name, Qubits: append([]int(nil), g.Qubits...)}
	switch {
	case selfInverse[g.Name]:
	case rotations[g.Name]:
		inv.Params = make([]float64, len(g.Params))
		for i, p := range g.Params {
			inv.Params[i] = -p
		}
	case strings.HasPrefix(g.Name, "DAGGER "):
		inv.Name = strings.TrimPrefix(g.Name, "DAGGER ")
		inv.Params = append([]float64(nil), g.Params...)
	default:
		inv.Name = "DAGGER " + g.Name
		inv.Params = append([]float64(nil), g.Params...)
	}
	return inv
}

func (g Gate) String() string {
	var b strings.Builder
	b.WriteString(g.Name)
	if len(g.Params) > 0 {
		parts := make([]string, len(g.Params))
		for i, p := range g.Params {
			parts[i] = formatAngle(p)
		}
		b.WriteString("(" + strings.Join(parts, ", ") + ")")
	}
	for _, q := range g.Qubits {
		b.WriteString(" " + strconv.Itoa(q))
	}
	return b.String()
}

// formatAngle renders multiples of pi/4 symbolically.
func formatAngle(a float64) string {
	quarters := a / (math.Pi / 4)
	r := math.Round(quarters)
	if r == 0 || math.Abs(quarters-r) > 1e-12 {
		return strconv.FormatFloat(a, 'g', -1, 64)
	}
	num, den := int(r), 4
	for den > 1 && num%2 == 0 {
		num, den = num/2, den/2
	}
	sign := ""
	if num < 0 {
		sign, num = "-", -num
	}
	s := sign
	if num != 1 {
		s += strconv.Itoa(num) + "*"
	}
	s += "pi"
	if den != 1 {
		s += "/" + strconv.Itoa(den)
	}
	return s
}

// Program is an ordered list of gates. One randomized element of a
// benchmarking sequence is one Program.
type Program []Gate

func (p Program) String() string {
	parts := make([]string, len(p))
	for i, g := range p {
		parts[i] = g.String()
	}
	return strings.Join(parts, ", ")
}

// Qubits returns the sorted set of qubits the program touches.
func (p Program) Qubits() []int {
	seen := map[int]bool{}
	for _, g := range p {
		for _, q := range g.Qubits {
			seen[q] = true
		}
	}
	return sortedKeys(seen)
}

// Inverse returns the program that undoes p.
func (p Program) Inverse() Program {
	inv := make(Program, len(p))
	for i, g := range p {
		inv[len(p)-1-i] = g.Inverse()
	}
	return inv
}

// Sequence is an ordered list of randomized elements.
type Sequence []Program

// Flatten concatenates every element into a single program.
func (s Sequence) Flatten() Program {
	var out Program
	for _, p := range s {
		out = append(out, p...)
	}
	return out
}

// Qubits returns the sorted set of qubits the sequence touches.
func (s Sequence) Qubits() []int {
	return s.Flatten().Qubits()
}

// MergeSequences composes equal-length sequences index-wise: element k of
// the result is the concurrent union of element k of every input.
func MergeSequences(seqs []Sequence) (Sequence, error) {
	if len(seqs) == 0 {
		return nil, nil
	}
	depth := len(seqs[0])
	owner := map[int]int{}
	for i, s := range seqs {
		if len(s) != depth {
			return nil, fmt.Errorf("%w: sequence %d has %d elements, want %d", ErrLengthMismatch, i, len(s), depth)
		}
		for _, q := range s.Qubits() {
			if j, ok := owner[q]; ok && j != i {
				return nil, fmt.Errorf("%w: qubit %d used by sequences %d and %d", ErrQubitOverlap, q, j, i)
			}
			owner[q] = i
		}
	}
	merged := make(Sequence, depth)
	for k := 0; k < depth; k++ {
		var layer Program
		for _, s := range seqs {
			layer = append(layer, s[k]...)
		}
		merged[k] = layer
	}
	return merged, nil
}

// Measurement reads a qubit into a classical register slot.
type Measurement struct {
	Qubit  int `json:"qubit"`
	Target int `json:"target"`
}

// Executable is a flattened program with readout and a shot count, ready to
// hand to an execution backend.
type Executable struct {
	Program      Program       `json:"program"`
	Measurements []Measurement `json:"measurements,omitempty"`
	Shots        int           `json:"shots"`
}

// NewExecutable measures qubits in order into registers 0..len(qubits)-1.
func NewExecutable(p Program, qubits []int, shots int) Executable {
	ms := make([]Measurement, len(qubits))
	for i, q := range qubits {
		ms[i] = Measurement{Qubit: q, Target: i}
	}
	return Executable{Program: p, Measurements: ms, Shots: shots}
}

// Quil renders the executable as Quil-style text.
func (e Executable) Quil() string {
	var b strings.Builder
	if len(e.Measurements) > 0 {
		fmt.Fprintf(&b, "DECLARE ro BIT[%d]\n", len(e.Measurements))
	}
	for _, g := range e.Program {
		b.WriteString(g.String() + "\n")
	}
	for _, m := range e.Measurements {
		fmt.Fprintf(&b, "MEASURE %d ro[%d]\n", m.Qubit, m.Target)
	}
	return b.String()
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
