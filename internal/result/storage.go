package result

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	manifestFile   = "manifest.json"
	experimentFile = "experiment.json"
	fitFile        = "fit.json"
	boundsFile     = "bounds.json"
)

// CreateRunDir creates <baseDir>/runs/<timestamp>, points <baseDir>/latest
// at it and writes m as the run manifest, filling in RunID and CreatedAt.
func CreateRunDir(baseDir string, m *Manifest) (string, error) {
	if m.RunID == "" {
		m.RunID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	runsDir := filepath.Join(baseDir, "runs")
	stamp := m.CreatedAt.Format("2006-01-02T15-04-05")
	runDir := filepath.Join(runsDir, stamp)
	runDir, err := filepath.Abs(runDir)
	if err != nil {
		return "", fmt.Errorf("resolving run dir: %w", err)
	}
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("creating run dir: %w", err)
	}
	latest := filepath.Join(baseDir, "latest")
	os.Remove(latest)
	if err := os.Symlink(runDir, latest); err != nil {
		return "", fmt.Errorf("creating latest symlink: %w", err)
	}
	if err := writeJSON(filepath.Join(runDir, manifestFile), m); err != nil {
		return "", fmt.Errorf("writing manifest: %w", err)
	}
	return runDir, nil
}

func ReadManifest(runDir string) (*Manifest, error) {
	var m Manifest
	if err := readJSON(filepath.Join(runDir, manifestFile), &m); err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return &m, nil
}

func ExperimentDir(runDir, name string) string {
	return filepath.Join(runDir, "experiments", name)
}

func WriteExperiment(runDir string, rec *ExperimentRecord) error {
	dir := ExperimentDir(runDir, rec.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating experiment dir: %w", err)
	}
	return writeJSON(filepath.Join(dir, experimentFile), rec)
}

func ReadExperiment(runDir, name string) (*ExperimentRecord, error) {
	var rec ExperimentRecord
	if err := readJSON(filepath.Join(ExperimentDir(runDir, name), experimentFile), &rec); err != nil {
		return nil, fmt.Errorf("reading experiment %s: %w", name, err)
	}
	return &rec, nil
}

func WriteFit(runDir string, rec *FitRecord) error {
	dir := ExperimentDir(runDir, rec.Experiment)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating experiment dir: %w", err)
	}
	return writeJSON(filepath.Join(dir, fitFile), rec)
}

func ReadFit(path string) (*FitRecord, error) {
	var rec FitRecord
	if err := readJSON(path, &rec); err != nil {
		return nil, fmt.Errorf("reading fit: %w", err)
	}
	return &rec, nil
}

// ReadFits loads every fit.json under runDir, sorted by experiment name.
func ReadFits(runDir string) ([]*FitRecord, error) {
	var fits []*FitRecord
	err := filepath.Walk(filepath.Join(runDir, "experiments"), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Name() != fitFile {
			return nil
		}
		rec, err := ReadFit(path)
		if err != nil {
			return err
		}
		fits = append(fits, rec)
		return nil
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("walking run dir: %w", err)
	}
	sort.Slice(fits, func(i, j int) bool { return fits[i].Experiment < fits[j].Experiment })
	return fits, nil
}

func WriteBounds(runDir string, recs []BoundRecord) error {
	return writeJSON(filepath.Join(runDir, boundsFile), recs)
}

// ReadBounds returns nil without error when the run derived no bounds.
func ReadBounds(runDir string) ([]BoundRecord, error) {
	var recs []BoundRecord
	err := readJSON(filepath.Join(runDir, boundsFile), &recs)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading bounds: %w", err)
	}
	return recs, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, data, 0o644)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return nil
}
