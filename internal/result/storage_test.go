package result_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/signalnine/rbench/internal/bounds"
	"github.com/signalnine/rbench/internal/circuit"
	"github.com/signalnine/rbench/internal/experiment"
	"github.com/signalnine/rbench/internal/fit"
	"github.com/signalnine/rbench/internal/result"
)

func TestCreateRunDir(t *testing.T) {
	base := t.TempDir()
	m := &result.Manifest{Backend: "synthetic", Shots: 500}
	runDir, err := result.CreateRunDir(base, m)
	if err != nil {
		t.Fatalf("CreateRunDir: %v", err)
	}
	if _, err := os.Stat(runDir); os.IsNotExist(err) {
		t.Errorf("run directory not created: %s", runDir)
	}
	latest := filepath.Join(base, "latest")
	target, err := os.Readlink(latest)
	if err != nil {
		t.Fatalf("reading latest symlink: %v", err)
	}
	if target != runDir {
		t.Errorf("latest symlink: got %q, want %q", target, runDir)
	}

	got, err := result.ReadManifest(runDir)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if _, err := uuid.Parse(got.RunID); err != nil {
		t.Errorf("run id %q is not a uuid: %v", got.RunID, err)
	}
	if got.RunID != m.RunID || got.Backend != "synthetic" || got.CreatedAt.IsZero() {
		t.Errorf("manifest round trip: got %+v, want %+v", got, m)
	}
}

func TestExperimentDir(t *testing.T) {
	base := t.TempDir()
	dir := result.ExperimentDir(base, "q0-rb")
	expected := filepath.Join(base, "experiments", "q0-rb")
	if dir != expected {
		t.Errorf("got %q, want %q", dir, expected)
	}
}

func TestWriteAndReadExperiment(t *testing.T) {
	runDir := t.TempDir()
	exp := &experiment.Experiment{Name: "q0-rb", Type: experiment.Standard, Qubits: []int{0}}
	seq := circuit.Sequence{
		{{Name: "RX", Params: []float64{1.5707963267948966}, Qubits: []int{0}}},
		{{Name: "RX", Params: []float64{-1.5707963267948966}, Qubits: []int{0}}},
	}
	c := experiment.NewComponent(seq, []int{0})
	if err := c.Record(experiment.Measurement{NumShots: 3, Bits: [][]int{{0}, {1}, {0}}, Mean: 0.6, StdDev: 0.2}); err != nil {
		t.Fatal(err)
	}
	exp.Layers = []experiment.Layer{{Depth: 2, Components: []*experiment.Component{c}}}
	acq, err := exp.Acquired()
	if err != nil {
		t.Fatal(err)
	}

	if err := result.WriteExperiment(runDir, result.NewExperimentRecord(acq, "main", 3)); err != nil {
		t.Fatalf("WriteExperiment: %v", err)
	}
	got, err := result.ReadExperiment(runDir, "q0-rb")
	if err != nil {
		t.Fatalf("ReadExperiment: %v", err)
	}
	comp := got.Layers[0].Components[0]
	if comp.Survived != 2 {
		t.Errorf("survived: got %d, want 2", comp.Survived)
	}
	if comp.Sequence[0] != "RX(pi/2) 0" {
		t.Errorf("sequence: got %q", comp.Sequence[0])
	}
	if got.Group != "main" || got.Type != "rb" {
		t.Errorf("unexpected record header: %+v", got)
	}
}

func TestReadFitsSorted(t *testing.T) {
	runDir := t.TempDir()
	for _, name := range []string{"q1-rb", "q0-rb"} {
		rec := &result.FitRecord{Experiment: name, Type: "rb", Qubits: []int{0}, Dimension: 2, Fit: fit.Result{Decay: 0.97}}
		if err := result.WriteFit(runDir, rec); err != nil {
			t.Fatalf("WriteFit: %v", err)
		}
	}
	fits, err := result.ReadFits(runDir)
	if err != nil {
		t.Fatalf("ReadFits: %v", err)
	}
	if len(fits) != 2 || fits[0].Experiment != "q0-rb" {
		t.Fatalf("unexpected fits: %+v", fits)
	}
	if fits[1].Fit.Decay != 0.97 {
		t.Errorf("decay: got %f", fits[1].Fit.Decay)
	}
}

func TestReadFitsEmptyRun(t *testing.T) {
	fits, err := result.ReadFits(t.TempDir())
	if err != nil {
		t.Fatalf("ReadFits: %v", err)
	}
	if len(fits) != 0 {
		t.Errorf("expected no fits, got %d", len(fits))
	}
}

func TestBoundsRoundTrip(t *testing.T) {
	runDir := t.TempDir()
	recs, err := result.ReadBounds(runDir)
	if err != nil || recs != nil {
		t.Fatalf("missing bounds: got %v, %v", recs, err)
	}
	want := []result.BoundRecord{{
		Interleaved: "q0-irb", Standard: "q0-rb", Qubits: []int{0},
		RBDecay: 0.98, IRBDecay: 0.97, Infidelity: 0.005,
		Fidelity: bounds.Interval{Lower: 0.98, Upper: 1},
	}}
	if err := result.WriteBounds(runDir, want); err != nil {
		t.Fatalf("WriteBounds: %v", err)
	}
	got, err := result.ReadBounds(runDir)
	if err != nil {
		t.Fatalf("ReadBounds: %v", err)
	}
	if len(got) != 1 || got[0].Fidelity != want[0].Fidelity || got[0].Standard != "q0-rb" {
		t.Errorf("bounds round trip: got %+v", got)
	}
}
