package result

import (
	"time"

	"github.com/signalnine/rbench/internal/bounds"
	"github.com/signalnine/rbench/internal/experiment"
	"github.com/signalnine/rbench/internal/fit"
	"github.com/signalnine/rbench/internal/stats"
)

type Manifest struct {
	RunID       string    `json:"run_id"`
	CreatedAt   time.Time `json:"created_at"`
	Config      string    `json:"config,omitempty"`
	Backend     string    `json:"backend,omitempty"`
	Shots       int       `json:"shots,omitempty"`
	Experiments []string  `json:"experiments,omitempty"`
}

// ExperimentRecord is the persisted form of an acquired experiment.
type ExperimentRecord struct {
	Name   string        `json:"name"`
	Type   string        `json:"type"`
	Group  string        `json:"group"`
	Qubits []int         `json:"qubits"`
	Shots  int           `json:"shots"`
	Layers []LayerRecord `json:"layers"`
}

type LayerRecord struct {
	Depth      int               `json:"depth"`
	Components []ComponentRecord `json:"components"`
}

type ComponentRecord struct {
	Sequence     []string                 `json:"sequence"`
	Mean         float64                  `json:"mean"`
	StdDev       float64                  `json:"stddev"`
	Survived     int                      `json:"survived,omitempty"`
	Expectations []experiment.Expectation `json:"expectations,omitempty"`
}

// FitRecord is one experiment's fitted curve plus the derived gate
// fidelity for decay-type experiments.
type FitRecord struct {
	Experiment   string     `json:"experiment"`
	Type         string     `json:"type"`
	Group        string     `json:"group"`
	Qubits       []int      `json:"qubits"`
	Dimension    int        `json:"dimension"`
	Fit          fit.Result `json:"fit"`
	GateFidelity float64    `json:"gate_fidelity,omitempty"`
}

// BoundRecord bounds the fidelity of the gate interleaved in one irb
// experiment.
type BoundRecord struct {
	Interleaved    string          `json:"interleaved"`
	Standard       string          `json:"standard"`
	Unitarity      string          `json:"unitarity,omitempty"`
	Qubits         []int           `json:"qubits"`
	RBDecay        float64         `json:"rb_decay"`
	IRBDecay       float64         `json:"irb_decay"`
	UnitarityDecay float64         `json:"unitarity_decay,omitempty"`
	Infidelity     float64         `json:"infidelity"`
	Fidelity       bounds.Interval `json:"fidelity"`
}

// NewExperimentRecord flattens an acquired experiment for storage.
func NewExperimentRecord(a *experiment.Acquired, group string, shots int) *ExperimentRecord {
	rec := &ExperimentRecord{
		Name:   a.Name,
		Type:   string(a.Type),
		Group:  group,
		Qubits: a.Qubits,
		Shots:  shots,
		Layers: make([]LayerRecord, len(a.Layers)),
	}
	for i, l := range a.Layers {
		lr := LayerRecord{Depth: l.Depth, Components: make([]ComponentRecord, len(l.Components))}
		for j, c := range l.Components {
			seq := make([]string, len(c.Sequence))
			for k, el := range c.Sequence {
				seq[k] = el.String()
			}
			lr.Components[j] = ComponentRecord{
				Sequence:     seq,
				Mean:         c.Measurement.Mean,
				StdDev:       c.Measurement.StdDev,
				Survived:     stats.Survivors(c.Measurement.Bits),
				Expectations: c.Measurement.Expectations,
			}
		}
		rec.Layers[i] = lr
	}
	return rec
}
