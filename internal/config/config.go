package config

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/signalnine/rbench/internal/circuit"
	"github.com/signalnine/rbench/internal/experiment"
)

const (
	BackendSynthetic = "synthetic"
	BackendDocker    = "docker"
)

type Config struct {
	Shots       int          `yaml:"shots"`
	Seed        *int64       `yaml:"seed"`
	Backend     Backend      `yaml:"backend"`
	Experiments []Experiment `yaml:"experiments"`
	Results     Results      `yaml:"results"`
}

type Backend struct {
	Kind      string    `yaml:"kind"`
	Synthetic Synthetic `yaml:"synthetic"`
	Docker    Docker    `yaml:"docker"`
}

// Synthetic configures the in-process noise model.
type Synthetic struct {
	GateDecay     float64 `yaml:"gate_decay"`
	GateUnitarity float64 `yaml:"gate_unitarity"`
	Seed          uint64  `yaml:"seed"`
}

type Docker struct {
	Image          string            `yaml:"image"`
	Command        []string          `yaml:"command"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
	Env            map[string]string `yaml:"env"`
}

type Experiment struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Qubits      []int  `yaml:"qubits"`
	Depths      []int  `yaml:"depths"`
	Sequences   int    `yaml:"sequences"`
	Interleaved string `yaml:"interleaved"`
	Group       string `yaml:"group"`
}

type Results struct {
	Dir string `yaml:"dir"`
}

// ExperimentType returns the parsed type tag. Valid after Load.
func (e Experiment) ExperimentType() experiment.Type {
	t, _ := experiment.ParseType(e.Type)
	return t
}

// Program parses the interleaved program, nil when there is none.
func (e Experiment) Program() (circuit.Program, error) {
	if e.Interleaved == "" {
		return nil, nil
	}
	return circuit.ParseProgram(e.Interleaved)
}

// Groups returns experiments keyed by group in first-appearance order.
func (c *Config) Groups() (order []string, groups map[string][]Experiment) {
	groups = map[string][]Experiment{}
	for _, e := range c.Experiments {
		if _, ok := groups[e.Group]; !ok {
			order = append(order, e.Group)
		}
		groups[e.Group] = append(groups[e.Group], e)
	}
	return order, groups
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Shots == 0 {
		cfg.Shots = 500
	}
	if cfg.Shots < 1 {
		return fmt.Errorf("shots must be at least 1")
	}
	if cfg.Results.Dir == "" {
		cfg.Results.Dir = "results"
	}
	if err := validateBackend(&cfg.Backend); err != nil {
		return err
	}

	if len(cfg.Experiments) == 0 {
		return fmt.Errorf("no experiments defined")
	}
	seen := map[string]bool{}
	for i := range cfg.Experiments {
		e := &cfg.Experiments[i]
		if e.Name == "" {
			return fmt.Errorf("experiment %d: name is required", i)
		}
		if seen[e.Name] {
			return fmt.Errorf("experiment %q: duplicate name", e.Name)
		}
		seen[e.Name] = true
		t, err := experiment.ParseType(e.Type)
		if err != nil {
			return fmt.Errorf("experiment %q: %w", e.Name, err)
		}
		if len(e.Qubits) == 0 {
			return fmt.Errorf("experiment %q: qubits are required", e.Name)
		}
		if len(e.Depths) == 0 {
			return fmt.Errorf("experiment %q: depths are required", e.Name)
		}
		if e.Sequences < 1 {
			return fmt.Errorf("experiment %q: sequences must be at least 1", e.Name)
		}
		if t == experiment.Interleaved && e.Interleaved == "" {
			return fmt.Errorf("experiment %q: interleaved program is required for irb", e.Name)
		}
		if t != experiment.Interleaved && e.Interleaved != "" {
			return fmt.Errorf("experiment %q: interleaved program is only valid for irb", e.Name)
		}
		prog, err := e.Program()
		if err != nil {
			return fmt.Errorf("experiment %q: %w", e.Name, err)
		}
		for _, q := range prog.Qubits() {
			if !slices.Contains(e.Qubits, q) {
				return fmt.Errorf("experiment %q: interleaved program acts on qubit %d outside %v", e.Name, q, e.Qubits)
			}
		}
		if e.Group == "" {
			e.Group = e.Name
		}
	}
	return validateGroups(cfg)
}

// validateGroups checks that experiments sharing a group can be packed
// into the same submissions.
func validateGroups(cfg *Config) error {
	_, groups := cfg.Groups()
	for name, exps := range groups {
		ref := exps[0]
		used := map[int]string{}
		for _, e := range exps {
			if e.ExperimentType().IsDecay() != ref.ExperimentType().IsDecay() {
				return fmt.Errorf("group %q: %s and %s cannot be acquired together", name, ref.Name, e.Name)
			}
			if !slices.Equal(sorted(e.Depths), sorted(ref.Depths)) || e.Sequences != ref.Sequences {
				return fmt.Errorf("group %q: %s and %s differ in depths or sequences", name, ref.Name, e.Name)
			}
			for _, q := range e.Qubits {
				if other, ok := used[q]; ok {
					return fmt.Errorf("group %q: qubit %d used by %s and %s", name, q, other, e.Name)
				}
				used[q] = e.Name
			}
		}
	}
	return nil
}

func sorted(xs []int) []int {
	out := slices.Clone(xs)
	slices.Sort(out)
	return out
}

func validateBackend(b *Backend) error {
	if b.Kind == "" {
		b.Kind = BackendSynthetic
	}
	switch b.Kind {
	case BackendSynthetic:
		if b.Synthetic.GateDecay == 0 {
			b.Synthetic.GateDecay = 0.995
		}
		if b.Synthetic.GateUnitarity == 0 {
			b.Synthetic.GateUnitarity = 0.99
		}
	case BackendDocker:
		if b.Docker.Image == "" {
			return fmt.Errorf("backend: docker image is required")
		}
		if len(b.Docker.Command) == 0 {
			return fmt.Errorf("backend: docker command is required")
		}
		if b.Docker.TimeoutSeconds == 0 {
			b.Docker.TimeoutSeconds = 600
		}
	default:
		return fmt.Errorf("backend: unknown kind %q", b.Kind)
	}
	return nil
}
