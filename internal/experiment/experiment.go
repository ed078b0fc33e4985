package experiment

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/signalnine/rbench/internal/circuit"
)

// Type tags which estimator and fit model apply to an experiment.
type Type string

const (
	Standard    Type = "rb"
	Interleaved Type = "irb"
	Unitarity   Type = "urb"
)

// ParseType accepts the short tags used in configuration.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(s)); t {
	case Standard, Interleaved, Unitarity:
		return t, nil
	}
	return "", fmt.Errorf("unknown experiment type %q", s)
}

// IsDecay reports whether survival probability is the measured quantity.
func (t Type) IsDecay() bool { return t == Standard || t == Interleaved }

// MinDepth is the smallest layer depth the type accepts.
func (t Type) MinDepth() int {
	if t == Unitarity {
		return 1
	}
	return 2
}

func (t Type) Description() string {
	switch t {
	case Standard:
		return "standard randomized benchmarking"
	case Interleaved:
		return "interleaved randomized benchmarking"
	case Unitarity:
		return "unitarity randomized benchmarking"
	}
	return string(t)
}

// Expectation is one estimated Pauli expectation returned by tomography.
type Expectation struct {
	Setting     circuit.Setting `json:"setting"`
	Expectation float64         `json:"expectation"`
	StdDev      float64         `json:"stddev"`
}

// Measurement is everything acquisition records for a component. Decay
// experiments fill Bits, unitarity experiments fill Expectations.
type Measurement struct {
	NumShots     int           `json:"num_shots"`
	Bits         [][]int       `json:"bits,omitempty"`
	Expectations []Expectation `json:"expectations,omitempty"`
	Mean         float64       `json:"mean"`
	StdDev       float64       `json:"stddev"`
}

// Component is one randomized trial at a fixed depth.
type Component struct {
	Sequence circuit.Sequence
	Qubits   []int

	measurement *Measurement
}

func NewComponent(seq circuit.Sequence, qubits []int) *Component {
	return &Component{Sequence: seq, Qubits: append([]int(nil), qubits...)}
}

// Record stores the component's measurement. It succeeds once.
func (c *Component) Record(m Measurement) error {
	if c.measurement != nil {
		return ErrAlreadyAcquired
	}
	c.measurement = &m
	return nil
}

// Measurement returns the recorded measurement, if any.
func (c *Component) Measurement() (Measurement, bool) {
	if c.measurement == nil {
		return Measurement{}, false
	}
	return *c.measurement, true
}

func (c *Component) Acquired() bool { return c.measurement != nil }

func (c *Component) String() string {
	if len(c.Sequence) == 0 {
		return "[]"
	}
	return "[" + c.Sequence[0].String() + "] ... [" + c.Sequence[len(c.Sequence)-1].String() + "]"
}

// Layer groups every trial sharing one depth.
type Layer struct {
	Depth      int
	Components []*Component
}

func (l Layer) String() string {
	lines := make([]string, 0, len(l.Components)+1)
	lines = append(lines, strconv.Itoa(l.Depth)+":")
	for _, c := range l.Components {
		lines = append(lines, c.String())
	}
	return strings.Join(lines, "\n") + "\n"
}

// Experiment is a full stratified benchmarking run over one qubit subset.
type Experiment struct {
	Name   string
	Type   Type
	Qubits []int
	Layers []Layer
}

// Dimension is the Hilbert space dimension 2^len(Qubits).
func (e *Experiment) Dimension() int { return 1 << len(e.Qubits) }

// Depths lists layer depths in order.
func (e *Experiment) Depths() []int {
	out := make([]int, len(e.Layers))
	for i, l := range e.Layers {
		out[i] = l.Depth
	}
	return out
}

// Components iterates every component in layer order.
func (e *Experiment) Components() []*Component {
	var out []*Component
	for _, l := range e.Layers {
		out = append(out, l.Components...)
	}
	return out
}

func (e *Experiment) String() string {
	parts := make([]string, len(e.Layers))
	for i, l := range e.Layers {
		parts[i] = l.String()
	}
	return strings.Join(parts, "\n") + "\n"
}

// AcquiredComponent is a component whose measurement is known to be set.
type AcquiredComponent struct {
	Sequence    circuit.Sequence
	Qubits      []int
	Measurement Measurement
}

type AcquiredLayer struct {
	Depth      int
	Components []AcquiredComponent
}

// Acquired is a read-only view of an experiment after acquisition.
type Acquired struct {
	Name   string
	Type   Type
	Qubits []int
	Layers []AcquiredLayer
}

func (a *Acquired) Dimension() int { return 1 << len(a.Qubits) }

// Acquired returns the post-acquisition view, or ErrNotAcquired if any
// component is still unpopulated.
func (e *Experiment) Acquired() (*Acquired, error) {
	out := &Acquired{Name: e.Name, Type: e.Type, Qubits: e.Qubits, Layers: make([]AcquiredLayer, len(e.Layers))}
	for i, l := range e.Layers {
		al := AcquiredLayer{Depth: l.Depth, Components: make([]AcquiredComponent, len(l.Components))}
		for j, c := range l.Components {
			m, ok := c.Measurement()
			if !ok {
				return nil, fmt.Errorf("%w: %s depth %d trial %d", ErrNotAcquired, e.Name, l.Depth, j)
			}
			al.Components[j] = AcquiredComponent{Sequence: c.Sequence, Qubits: c.Qubits, Measurement: m}
		}
		out.Layers[i] = al
	}
	return out, nil
}
