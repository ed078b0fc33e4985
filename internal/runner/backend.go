package runner

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/signalnine/rbench/internal/acquire"
	"github.com/signalnine/rbench/internal/config"
	"github.com/signalnine/rbench/internal/docker"
	"github.com/signalnine/rbench/internal/sequence"
	"github.com/signalnine/rbench/internal/synthetic"
)

// Backend bundles the collaborators one group needs.
type Backend struct {
	Kind        string
	Synthesizer sequence.Synthesizer
	Executor    acquire.Executor
	Tomographer acquire.Tomographer
}

// NewBackend builds a fresh backend for group. Sequences are always
// synthesized in-process; the docker kind only moves execution and
// tomography into the container.
func NewBackend(cfg *config.Config, group string, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	syn, err := synthetic.New(synthetic.Config{
		GateDecay:     cfg.Backend.Synthetic.GateDecay,
		GateUnitarity: cfg.Backend.Synthetic.GateUnitarity,
		Seed:          cfg.Backend.Synthetic.Seed ^ xxhash.Sum64String(group),
	})
	if err != nil {
		return nil, fmt.Errorf("synthetic backend: %w", err)
	}
	switch cfg.Backend.Kind {
	case config.BackendDocker:
		d := &docker.Backend{
			Image:   cfg.Backend.Docker.Image,
			Command: cfg.Backend.Docker.Command,
			Env:     cfg.Backend.Docker.Env,
			Timeout: time.Duration(cfg.Backend.Docker.TimeoutSeconds) * time.Second,
			Logger:  logger.With(slog.String("group", group)),
		}
		return &Backend{Kind: config.BackendDocker, Synthesizer: syn, Executor: d, Tomographer: d}, nil
	case config.BackendSynthetic, "":
		return &Backend{Kind: config.BackendSynthetic, Synthesizer: syn, Executor: syn, Tomographer: syn}, nil
	}
	return nil, fmt.Errorf("unknown backend kind %q", cfg.Backend.Kind)
}

// SeedFor derives a per-experiment synthesis seed from the run seed, so
// experiments get distinct but reproducible sequences regardless of the
// order groups run in.
func SeedFor(base *int64, experiment string) *int64 {
	if base == nil {
		return nil
	}
	v := *base + int64(xxhash.Sum64String(experiment)%(1<<20))<<20
	return &v
}
