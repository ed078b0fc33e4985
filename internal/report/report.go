package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/signalnine/rbench/internal/result"
)

type FitSummary struct {
	Experiment   string  `json:"experiment"`
	Type         string  `json:"type"`
	Group        string  `json:"group"`
	Qubits       string  `json:"qubits"`
	Decay        float64 `json:"decay"`
	DecayErr     float64 `json:"decay_err,omitempty"`
	GateFidelity float64 `json:"gate_fidelity,omitempty"`
	ChiSquare    float64 `json:"chi_square"`
	Points       int     `json:"points"`
}

type Summary struct {
	RunID  string               `json:"run_id,omitempty"`
	Fits   []FitSummary         `json:"fits"`
	Bounds []result.BoundRecord `json:"bounds,omitempty"`
}

// Generate reads the fits and bounds of a run and writes a summary.
func Generate(runDir, format string, w io.Writer) error {
	s, err := Collect(runDir)
	if err != nil {
		return err
	}
	switch format {
	case "markdown":
		return writeMarkdown(s, w)
	case "json":
		return writeJSON(s, w)
	default:
		return writeTable(s, w)
	}
}

// Collect gathers the summary without formatting it. A run without a
// manifest still reports whatever fits it holds.
func Collect(runDir string) (*Summary, error) {
	fits, err := result.ReadFits(runDir)
	if err != nil {
		return nil, err
	}
	bnds, err := result.ReadBounds(runDir)
	if err != nil {
		return nil, err
	}
	s := &Summary{Fits: make([]FitSummary, 0, len(fits)), Bounds: bnds}
	if m, err := result.ReadManifest(runDir); err == nil {
		s.RunID = m.RunID
	}
	for _, f := range fits {
		s.Fits = append(s.Fits, FitSummary{
			Experiment:   f.Experiment,
			Type:         f.Type,
			Group:        f.Group,
			Qubits:       qubits(f.Qubits),
			Decay:        f.Fit.Decay,
			DecayErr:     f.Fit.DecayErr,
			GateFidelity: f.GateFidelity,
			ChiSquare:    f.Fit.ChiSquare,
			Points:       f.Fit.Points,
		})
	}
	return s, nil
}

func qubits(qs []int) string {
	parts := make([]string, len(qs))
	for i, q := range qs {
		parts[i] = strconv.Itoa(q)
	}
	return strings.Join(parts, ",")
}

func fidelity(f FitSummary) string {
	if f.GateFidelity == 0 {
		return "-"
	}
	return fmt.Sprintf("%.5f", f.GateFidelity)
}

func writeTable(s *Summary, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EXPERIMENT\tTYPE\tQUBITS\tDECAY\tSTDERR\tGATE FIDELITY\tCHI2\tPOINTS")
	fmt.Fprintln(tw, strings.Repeat("-", 88))
	for _, f := range s.Fits {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.5f\t%.5f\t%s\t%.3g\t%d\n",
			f.Experiment, f.Type, f.Qubits, f.Decay, f.DecayErr, fidelity(f), f.ChiSquare, f.Points)
	}
	if len(s.Bounds) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "INTERLEAVED\tSTANDARD\tUNITARITY\tINFIDELITY\tFIDELITY BOUNDS")
		fmt.Fprintln(tw, strings.Repeat("-", 88))
		for _, b := range s.Bounds {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%.5f\t%s\n",
				b.Interleaved, b.Standard, orDash(b.Unitarity), b.Infidelity, b.Fidelity)
		}
	}
	return tw.Flush()
}

func writeMarkdown(s *Summary, w io.Writer) error {
	fmt.Fprintln(w, "| Experiment | Type | Qubits | Decay | Stderr | Gate Fidelity | Chi² | Points |")
	fmt.Fprintln(w, "|---|---|---|---|---|---|---|---|")
	for _, f := range s.Fits {
		fmt.Fprintf(w, "| %s | %s | %s | %.5f | %.5f | %s | %.3g | %d |\n",
			f.Experiment, f.Type, f.Qubits, f.Decay, f.DecayErr, fidelity(f), f.ChiSquare, f.Points)
	}
	if len(s.Bounds) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "| Interleaved | Standard | Unitarity | Infidelity | Fidelity Bounds |")
		fmt.Fprintln(w, "|---|---|---|---|---|")
		for _, b := range s.Bounds {
			fmt.Fprintf(w, "| %s | %s | %s | %.5f | %s |\n",
				b.Interleaved, b.Standard, orDash(b.Unitarity), b.Infidelity, b.Fidelity)
		}
	}
	return nil
}

func writeJSON(s *Summary, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
