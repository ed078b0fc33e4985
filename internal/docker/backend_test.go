package docker_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/rbench/internal/circuit"
	"github.com/signalnine/rbench/internal/docker"
)

// fakeContainer plays the backend image: it reads job.json and writes the
// result produced by respond.
type fakeContainer struct {
	job     docker.Job
	opts    *docker.RunOpts
	respond func(job docker.Job) any
	exit    int
	timeout bool
}

func (f *fakeContainer) run(_ context.Context, opts *docker.RunOpts) (*docker.RunResult, error) {
	f.opts = opts
	data, err := os.ReadFile(filepath.Join(opts.WorkDir, "job.json"))
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &f.job); err != nil {
		return nil, err
	}
	if f.respond != nil {
		out, err := json.Marshal(f.respond(f.job))
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(filepath.Join(opts.WorkDir, "result.json"), out, 0o644); err != nil {
			return nil, err
		}
	}
	code := f.exit
	if f.timeout {
		code = 124
	}
	return &docker.RunResult{ExitCode: code, TimedOut: f.timeout, Duration: time.Millisecond}, nil
}

func backend(t *testing.T, f *fakeContainer) *docker.Backend {
	return &docker.Backend{
		Image:    "rbench/backend:test",
		Command:  []string{"/backend"},
		Env:      map[string]string{"QPU": "sim"},
		Timeout:  time.Minute,
		WorkRoot: t.TempDir(),
		RunFunc:  f.run,
	}
}

func TestBackendRun(t *testing.T) {
	f := &fakeContainer{respond: func(job docker.Job) any {
		bits := make([][]int, job.Shots)
		for i := range bits {
			bits[i] = []int{0, i % 2}
		}
		return docker.Result{Bits: bits}
	}}
	prog, err := circuit.ParseProgram("RX(pi/2) 0; CZ 0 1")
	require.NoError(t, err)

	bits, err := backend(t, f).Run(context.Background(), circuit.NewExecutable(prog, []int{0, 1}, 4))
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 0}, {0, 1}, {0, 0}, {0, 1}}, bits)

	assert.Equal(t, "run", f.job.Kind)
	assert.Equal(t, 4, f.job.Shots)
	assert.Contains(t, f.job.Program, "RX(pi/2) 0\nCZ 0 1\n")
	assert.Contains(t, f.job.Program, "MEASURE 1 ro[1]")
	assert.Equal(t, "sim", f.opts.Env["QPU"])
	assert.Equal(t, "/workspace/job.json", f.opts.Env["RBENCH_JOB"])
	assert.Equal(t, "rbench/backend:test", f.opts.Image)
}

func TestBackendRunCleansUpJobDir(t *testing.T) {
	f := &fakeContainer{respond: func(job docker.Job) any {
		return docker.Result{Bits: [][]int{{0}}}
	}}
	b := backend(t, f)
	prog, err := circuit.ParseProgram("X 0")
	require.NoError(t, err)
	_, err = b.Run(context.Background(), circuit.NewExecutable(prog, []int{0}, 1))
	require.NoError(t, err)
	entries, err := os.ReadDir(b.WorkRoot)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBackendMeasure(t *testing.T) {
	f := &fakeContainer{respond: func(job docker.Job) any {
		var res docker.Result
		for _, g := range job.Groups {
			var row []docker.Expectation
			for range g {
				row = append(row, docker.Expectation{Expectation: 0.5, StdDev: 0.01})
			}
			res.Groups = append(res.Groups, row)
		}
		return res
	}}
	settings := circuit.StateTomographySettings([]int{0})
	groups := [][]circuit.Setting{{settings[0]}, {settings[1]}}
	prog, err := circuit.ParseProgram("H 0")
	require.NoError(t, err)

	res, err := backend(t, f).Measure(context.Background(), prog, groups, 100)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, settings[1], res[1][0].Setting)
	assert.InDelta(t, 0.5, res[1][0].Expectation, 1e-12)
	assert.Equal(t, "tomography", f.job.Kind)
	assert.Equal(t, groups, f.job.Groups)
	assert.NotContains(t, f.job.Program, "MEASURE")
}

func TestBackendFailures(t *testing.T) {
	prog, err := circuit.ParseProgram("X 0")
	require.NoError(t, err)
	exe := circuit.NewExecutable(prog, []int{0}, 2)

	tests := []struct {
		name string
		f    *fakeContainer
	}{
		{"non-zero exit", &fakeContainer{exit: 3, respond: func(docker.Job) any { return docker.Result{} }}},
		{"timeout", &fakeContainer{timeout: true}},
		{"missing result", &fakeContainer{}},
		{"reported error", &fakeContainer{respond: func(docker.Job) any { return docker.Result{Error: "calibration expired"} }}},
		{"wrong shot count", &fakeContainer{respond: func(docker.Job) any { return docker.Result{Bits: [][]int{{0}}} }}},
		{"wrong width", &fakeContainer{respond: func(docker.Job) any { return docker.Result{Bits: [][]int{{0, 1}, {0, 0}}} }}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := backend(t, tt.f).Run(context.Background(), exe)
			assert.Error(t, err)
		})
	}
}

func TestBackendRequiresImage(t *testing.T) {
	_, err := (&docker.Backend{}).Run(context.Background(), circuit.Executable{})
	assert.Error(t, err)
}
