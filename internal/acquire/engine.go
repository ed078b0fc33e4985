// Package acquire executes batches of stratified experiments on a backend
// and records per-component estimates.
//
// Experiments acquired together are packed into one physical submission per
// (depth index, trial index) position: their sequences are merged element by
// element over disjoint qubits, and the returned data is split back to the
// originating components.
package acquire

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalnine/rbench/internal/circuit"
	"github.com/signalnine/rbench/internal/experiment"
	"github.com/signalnine/rbench/internal/stats"
)

// Executor runs a program and returns a shots × measured-qubits bit matrix.
type Executor interface {
	Run(ctx context.Context, exe circuit.Executable) ([][]int, error)
}

// Tomographer estimates Pauli expectations. Settings within one group are
// measured concurrently on the state prepared by prog; the result mirrors
// the shape of groups.
type Tomographer interface {
	Measure(ctx context.Context, prog circuit.Program, groups [][]circuit.Setting, shots int) ([][]experiment.Expectation, error)
}

// Engine is the only writer of experiment measurements.
type Engine struct {
	Executor    Executor
	Tomographer Tomographer
	Logger      *slog.Logger
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// Acquire runs exps jointly, choosing the survival or purity path from
// their type. On error, components of exps may be partially populated and
// must not be read.
func (e *Engine) Acquire(ctx context.Context, exps []*experiment.Experiment, shots int) error {
	if len(exps) == 0 {
		return fmt.Errorf("%w: no experiments to acquire", experiment.ErrIncompatibleShapes)
	}
	if exps[0].Type.IsDecay() {
		return e.AcquireRB(ctx, exps, shots)
	}
	return e.AcquireUnitarity(ctx, exps, shots)
}

// AcquireRB acquires standard and interleaved experiments, estimating
// survival probability for every component.
func (e *Engine) AcquireRB(ctx context.Context, exps []*experiment.Experiment, shots int) error {
	if e.Executor == nil {
		return fmt.Errorf("no executor configured")
	}
	if err := CheckShapes(exps, shots, true); err != nil {
		return err
	}
	start := time.Now()
	positions := 0
	for layerIdx := range exps[0].Layers {
		for trial := range exps[0].Layers[layerIdx].Components {
			if err := e.runDecayPosition(ctx, exps, layerIdx, trial, shots); err != nil {
				return err
			}
			positions++
		}
	}
	e.logger().Info("acquired survival data",
		slog.Int("experiments", len(exps)),
		slog.Int("submissions", positions),
		slog.Int("shots", shots),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// AcquireUnitarity acquires unitarity experiments, estimating the shifted
// purity of every component from state tomography.
func (e *Engine) AcquireUnitarity(ctx context.Context, exps []*experiment.Experiment, shots int) error {
	if e.Tomographer == nil {
		return fmt.Errorf("no tomographer configured")
	}
	if err := CheckShapes(exps, shots, false); err != nil {
		return err
	}
	start := time.Now()
	positions := 0
	for layerIdx := range exps[0].Layers {
		for trial := range exps[0].Layers[layerIdx].Components {
			if err := e.runPurityPosition(ctx, exps, layerIdx, trial, shots); err != nil {
				return err
			}
			positions++
		}
	}
	e.logger().Info("acquired purity data",
		slog.Int("experiments", len(exps)),
		slog.Int("submissions", positions),
		slog.Int("shots", shots),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// position gathers the components at one (layer, trial) slot across exps.
func position(exps []*experiment.Experiment, layerIdx, trial int) ([]*experiment.Component, []experiment.Type) {
	comps := make([]*experiment.Component, len(exps))
	types := make([]experiment.Type, len(exps))
	for i, exp := range exps {
		comps[i] = exp.Layers[layerIdx].Components[trial]
		types[i] = exp.Type
	}
	return comps, types
}

func merge(comps []*experiment.Component) (circuit.Program, error) {
	seqs := make([]circuit.Sequence, len(comps))
	for i, c := range comps {
		seqs[i] = c.Sequence
	}
	merged, err := circuit.MergeSequences(seqs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", experiment.ErrIncompatibleShapes, err)
	}
	return merged.Flatten(), nil
}

func (e *Engine) startSpan(ctx context.Context, kind string, exps []*experiment.Experiment, layerIdx, trial int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "acquire."+kind, trace.WithAttributes(
		attribute.Int("depth", exps[0].Layers[layerIdx].Depth),
		attribute.Int("trial", trial),
		attribute.Int("components", len(exps)),
	))
}

func observe(kind string, span trace.Span, start time.Time, err error) {
	submissionDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		submissionsTotal.WithLabelValues(kind, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	submissionsTotal.WithLabelValues(kind, "ok").Inc()
}

func (e *Engine) runDecayPosition(ctx context.Context, exps []*experiment.Experiment, layerIdx, trial, shots int) error {
	comps, types := position(exps, layerIdx, trial)
	prog, err := merge(comps)
	if err != nil {
		return err
	}
	var measured []int
	for _, c := range comps {
		measured = append(measured, c.Qubits...)
	}

	ctx, span := e.startSpan(ctx, "run", exps, layerIdx, trial)
	defer span.End()

	start := time.Now()
	shotsTotal.WithLabelValues("run").Add(float64(shots))
	bits, err := e.Executor.Run(ctx, circuit.NewExecutable(prog, measured, shots))
	if err == nil {
		err = checkBits(bits, shots, len(measured))
	}
	observe("run", span, start, err)
	if err != nil {
		return experiment.Collaborator(fmt.Sprintf("executing depth %d trial %d", exps[0].Layers[layerIdx].Depth, trial), err)
	}
	e.logger().Debug("executed merged program",
		slog.Int("depth", exps[0].Layers[layerIdx].Depth),
		slog.Int("trial", trial),
		slog.Int("gates", len(prog)),
		slog.Any("qubits", measured))

	results := make([]experiment.Measurement, len(comps))
	offset := 0
	for i, c := range comps {
		slice := make([][]int, len(bits))
		for s, row := range bits {
			slice[s] = append([]int(nil), row[offset:offset+len(c.Qubits)]...)
		}
		offset += len(c.Qubits)
		mean, stddev := stats.SurvivalStatistics(slice)
		results[i] = experiment.Measurement{NumShots: shots, Bits: slice, Mean: mean, StdDev: stddev}
	}
	return record(comps, types, results)
}

func checkBits(bits [][]int, shots, width int) error {
	if len(bits) != shots {
		return fmt.Errorf("backend returned %d shots, want %d", len(bits), shots)
	}
	for i, row := range bits {
		if len(row) != width {
			return fmt.Errorf("shot %d has %d bits, want %d", i, len(row), width)
		}
	}
	return nil
}

func (e *Engine) runPurityPosition(ctx context.Context, exps []*experiment.Experiment, layerIdx, trial, shots int) error {
	comps, types := position(exps, layerIdx, trial)
	prog, err := merge(comps)
	if err != nil {
		return err
	}

	groups, owners := groupSettings(comps)

	ctx, span := e.startSpan(ctx, "tomography", exps, layerIdx, trial)
	defer span.End()
	span.SetAttributes(attribute.Int("groups", len(groups)))

	start := time.Now()
	shotsTotal.WithLabelValues("tomography").Add(float64(shots * len(groups)))
	res, err := e.Tomographer.Measure(ctx, prog, groups, shots)
	if err == nil {
		err = checkGroups(res, groups)
	}
	observe("tomography", span, start, err)
	if err != nil {
		return experiment.Collaborator(fmt.Sprintf("tomography depth %d trial %d", exps[0].Layers[layerIdx].Depth, trial), err)
	}

	perComp := make([][]experiment.Expectation, len(comps))
	for g, group := range res {
		for j, r := range group {
			r.Setting = groups[g][j]
			perComp[owners[g][j]] = append(perComp[owners[g][j]], r)
		}
	}

	results := make([]experiment.Measurement, len(comps))
	for i, c := range comps {
		var kept []experiment.Expectation
		for _, r := range perComp[i] {
			if !r.Setting.IsIdentity() {
				kept = append(kept, r)
			}
		}
		values := make([]float64, len(kept))
		variances := make([]float64, len(kept))
		for j, r := range kept {
			values[j] = r.Expectation
			variances[j] = r.StdDev * r.StdDev
		}
		dim := 1 << len(c.Qubits)
		stddev, err := stats.PurityStdDev(dim, values, variances, true)
		if err != nil {
			return err
		}
		results[i] = experiment.Measurement{
			NumShots:     shots,
			Expectations: kept,
			Mean:         stats.Purity(dim, values, true),
			StdDev:       stddev,
		}
	}
	return record(comps, types, results)
}

// groupSettings places the s-th tomography setting of every component into
// group s, so the number of submissions is bounded by the largest
// component's setting count. owners[g][j] is the component index of
// groups[g][j].
func groupSettings(comps []*experiment.Component) (groups [][]circuit.Setting, owners [][]int) {
	for i, c := range comps {
		for slot, s := range circuit.StateTomographySettings(c.Qubits) {
			for len(groups) <= slot {
				groups = append(groups, nil)
				owners = append(owners, nil)
			}
			groups[slot] = append(groups[slot], s)
			owners[slot] = append(owners[slot], i)
		}
	}
	return groups, owners
}

func checkGroups(res [][]experiment.Expectation, groups [][]circuit.Setting) error {
	if len(res) != len(groups) {
		return fmt.Errorf("backend returned %d setting groups, want %d", len(res), len(groups))
	}
	for g := range groups {
		if len(res[g]) != len(groups[g]) {
			return fmt.Errorf("group %d has %d results, want %d", g, len(res[g]), len(groups[g]))
		}
	}
	return nil
}

// record stores every component's measurement once all of them are known.
func record(comps []*experiment.Component, types []experiment.Type, results []experiment.Measurement) error {
	for i, c := range comps {
		if err := c.Record(results[i]); err != nil {
			return err
		}
		componentsTotal.WithLabelValues(string(types[i])).Inc()
	}
	return nil
}
