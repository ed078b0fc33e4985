package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalnine/rbench/internal/acquire"
	"github.com/signalnine/rbench/internal/bounds"
	"github.com/signalnine/rbench/internal/config"
	"github.com/signalnine/rbench/internal/experiment"
	"github.com/signalnine/rbench/internal/fit"
	"github.com/signalnine/rbench/internal/result"
	"github.com/signalnine/rbench/internal/sequence"
)

var tracer = otel.Tracer("rbench.runner")

type GroupOpts struct {
	Name        string
	Experiments []config.Experiment
	Shots       int
	Seed        *int64
	RunDir      string
	Backend     *Backend
	Optimizer   fit.Optimizer
	Logger      *slog.Logger
}

// RunGroup assembles every experiment of a group, acquires them jointly,
// fits each one and persists experiment.json and fit.json per experiment.
func RunGroup(ctx context.Context, opts *GroupOpts) (fits []*result.FitRecord, err error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("group", opts.Name))

	ctx, span := tracer.Start(ctx, "runner.group", trace.WithAttributes(
		attribute.String("group", opts.Name),
		attribute.Int("experiments", len(opts.Experiments)),
		attribute.Int("shots", opts.Shots),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	start := time.Now()
	exps := make([]*experiment.Experiment, 0, len(opts.Experiments))
	for _, ce := range opts.Experiments {
		exp, err := assemble(ctx, opts.Backend.Synthesizer, ce, opts.Seed)
		if err != nil {
			return nil, fmt.Errorf("assembling %s: %w", ce.Name, err)
		}
		logger.Debug("assembled experiment",
			slog.String("experiment", exp.Name),
			slog.String("type", string(exp.Type)),
			slog.Any("depths", exp.Depths()))
		exps = append(exps, exp)
	}

	engine := &acquire.Engine{
		Executor:    opts.Backend.Executor,
		Tomographer: opts.Backend.Tomographer,
		Logger:      logger,
	}
	if err := engine.Acquire(ctx, exps, opts.Shots); err != nil {
		return nil, fmt.Errorf("acquiring group %s: %w", opts.Name, err)
	}

	fitter := &fit.Fitter{Optimizer: opts.Optimizer, Logger: logger}
	for _, exp := range exps {
		acq, err := exp.Acquired()
		if err != nil {
			return nil, err
		}
		if err := result.WriteExperiment(opts.RunDir, result.NewExperimentRecord(acq, opts.Name, opts.Shots)); err != nil {
			return nil, fmt.Errorf("writing experiment %s: %w", exp.Name, err)
		}
		res, err := fitter.Experiment(ctx, acq)
		if err != nil {
			return nil, fmt.Errorf("fitting %s: %w", exp.Name, err)
		}
		rec := &result.FitRecord{
			Experiment: exp.Name,
			Type:       string(exp.Type),
			Group:      opts.Name,
			Qubits:     exp.Qubits,
			Dimension:  acq.Dimension(),
			Fit:        res,
		}
		if exp.Type.IsDecay() {
			rec.GateFidelity = bounds.RBDecayToGateFidelity(res.Decay, rec.Dimension)
		}
		if err := result.WriteFit(opts.RunDir, rec); err != nil {
			return nil, fmt.Errorf("writing fit %s: %w", exp.Name, err)
		}
		fits = append(fits, rec)
	}
	logger.Info("group complete",
		slog.Int("experiments", len(exps)),
		slog.Duration("elapsed", time.Since(start)))
	return fits, nil
}

func assemble(ctx context.Context, syn sequence.Synthesizer, ce config.Experiment, seed *int64) (*experiment.Experiment, error) {
	prog, err := ce.Program()
	if err != nil {
		return nil, err
	}
	t, err := experiment.ParseType(ce.Type)
	if err != nil {
		return nil, err
	}
	return sequence.Generate(ctx, syn, sequence.Spec{
		Name:        ce.Name,
		Qubits:      ce.Qubits,
		Depths:      ce.Depths,
		Sequences:   ce.Sequences,
		Interleaved: prog,
		Seed:        SeedFor(seed, ce.Name),
	}, t)
}
