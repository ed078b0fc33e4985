// Package docker runs circuits on an external backend packaged as a
// container image. Each submission gets a fresh work directory holding
// job.json; the container writes result.json next to it.
package docker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/signalnine/rbench/internal/circuit"
	"github.com/signalnine/rbench/internal/experiment"
)

const (
	jobFile    = "job.json"
	resultFile = "result.json"
)

// Job is the request written to job.json.
type Job struct {
	Kind         string                `json:"kind"`
	Program      string                `json:"program"`
	Measurements []circuit.Measurement `json:"measurements,omitempty"`
	Shots        int                   `json:"shots"`
	Groups       [][]circuit.Setting   `json:"groups,omitempty"`
}

// Result is what the container leaves in result.json.
type Result struct {
	Bits   [][]int         `json:"bits,omitempty"`
	Groups [][]Expectation `json:"groups,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type Expectation struct {
	Expectation float64 `json:"expectation"`
	StdDev      float64 `json:"stddev"`
}

// Backend implements acquire.Executor and acquire.Tomographer on top of
// RunContainer.
type Backend struct {
	Image   string
	Command []string
	Env     map[string]string
	Timeout time.Duration
	// WorkRoot is where per-job directories are created; empty means the
	// system temp dir.
	WorkRoot string
	KeepJobs bool
	Logger   *slog.Logger

	// RunFunc replaces RunContainer, mainly for tests.
	RunFunc func(ctx context.Context, opts *RunOpts) (*RunResult, error)
}

func (b *Backend) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.Default()
	}
	return b.Logger
}

// Run submits exe as a "run" job and returns the bit matrix.
func (b *Backend) Run(ctx context.Context, exe circuit.Executable) ([][]int, error) {
	var res Result
	job := Job{Kind: "run", Program: exe.Quil(), Measurements: exe.Measurements, Shots: exe.Shots}
	if err := b.submit(ctx, job, &res); err != nil {
		return nil, err
	}
	if len(res.Bits) != exe.Shots {
		return nil, fmt.Errorf("result has %d shots, want %d", len(res.Bits), exe.Shots)
	}
	for i, row := range res.Bits {
		if len(row) != len(exe.Measurements) {
			return nil, fmt.Errorf("shot %d has %d bits, want %d", i, len(row), len(exe.Measurements))
		}
	}
	return res.Bits, nil
}

// Measure submits a "tomography" job for prog and the grouped settings.
func (b *Backend) Measure(ctx context.Context, prog circuit.Program, groups [][]circuit.Setting, shots int) ([][]experiment.Expectation, error) {
	var res Result
	job := Job{Kind: "tomography", Program: circuit.Executable{Program: prog}.Quil(), Shots: shots, Groups: groups}
	if err := b.submit(ctx, job, &res); err != nil {
		return nil, err
	}
	if len(res.Groups) != len(groups) {
		return nil, fmt.Errorf("result has %d groups, want %d", len(res.Groups), len(groups))
	}
	out := make([][]experiment.Expectation, len(groups))
	for g, group := range groups {
		if len(res.Groups[g]) != len(group) {
			return nil, fmt.Errorf("result group %d has %d entries, want %d", g, len(res.Groups[g]), len(group))
		}
		out[g] = make([]experiment.Expectation, len(group))
		for j, s := range group {
			r := res.Groups[g][j]
			out[g][j] = experiment.Expectation{Setting: s, Expectation: r.Expectation, StdDev: r.StdDev}
		}
	}
	return out, nil
}

func (b *Backend) submit(ctx context.Context, job Job, res *Result) error {
	if b.Image == "" {
		return errors.New("no backend image configured")
	}
	dir, err := os.MkdirTemp(b.WorkRoot, "rbench-job-")
	if err != nil {
		return fmt.Errorf("creating job dir: %w", err)
	}
	if !b.KeepJobs {
		defer os.RemoveAll(dir)
	}

	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling job: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, jobFile), data, 0o644); err != nil {
		return fmt.Errorf("writing job: %w", err)
	}

	env := map[string]string{
		"RBENCH_JOB":    "/workspace/" + jobFile,
		"RBENCH_RESULT": "/workspace/" + resultFile,
	}
	for k, v := range b.Env {
		env[k] = v
	}
	run := b.RunFunc
	if run == nil {
		run = RunContainer
	}
	rr, err := run(ctx, &RunOpts{
		Image:   b.Image,
		Command: b.Command,
		WorkDir: dir,
		Env:     env,
		Timeout: b.Timeout,
		Logger:  b.logger(),
	})
	if err != nil {
		return fmt.Errorf("running %s job: %w", job.Kind, err)
	}
	if rr.TimedOut {
		return fmt.Errorf("%s job timed out after %s", job.Kind, b.Timeout)
	}
	if rr.ExitCode != 0 {
		return fmt.Errorf("%s job exited with code %d", job.Kind, rr.ExitCode)
	}

	out, err := os.ReadFile(filepath.Join(dir, resultFile))
	if err != nil {
		return fmt.Errorf("reading result: %w", err)
	}
	if err := json.Unmarshal(out, res); err != nil {
		return fmt.Errorf("parsing result: %w", err)
	}
	if res.Error != "" {
		return fmt.Errorf("backend reported: %s", res.Error)
	}
	b.logger().Debug("backend job finished",
		slog.String("kind", job.Kind),
		slog.Int("shots", job.Shots),
		slog.Duration("elapsed", rr.Duration))
	return nil
}
