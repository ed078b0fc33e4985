package circuit

import (
	"strconv"
	"strings"
)

const pauliOps = "IXYZ"

// Setting is one tomography measurement: a Pauli product over Qubits, one
// letter of Ops per qubit, measured on the state prepared by the program.
type Setting struct {
	Qubits []int  `json:"qubits"`
	Ops    string `json:"ops"`
}

// IsIdentity reports whether the setting measures only I.
func (s Setting) IsIdentity() bool {
	return strings.Trim(s.Ops, "I") == ""
}

// Weight counts the non-identity factors.
func (s Setting) Weight() int {
	return len(s.Ops) - strings.Count(s.Ops, "I")
}

// Support returns the qubits with a non-identity factor.
func (s Setting) Support() []int {
	var out []int
	for i, op := range s.Ops {
		if op != 'I' {
			out = append(out, s.Qubits[i])
		}
	}
	return out
}

func (s Setting) String() string {
	var parts []string
	for i, op := range s.Ops {
		if op != 'I' {
			parts = append(parts, string(op)+strconv.Itoa(s.Qubits[i]))
		}
	}
	if len(parts) == 0 {
		return "I"
	}
	return strings.Join(parts, "*")
}

// StateTomographySettings enumerates the 4^k Pauli products over qubits in
// I, X, Y, Z lexicographic order. The identity comes first.
func StateTomographySettings(qubits []int) []Setting {
	n := 1
	for range qubits {
		n *= len(pauliOps)
	}
	out := make([]Setting, n)
	for i := range out {
		ops := make([]byte, len(qubits))
		rem := i
		for j := len(qubits) - 1; j >= 0; j-- {
			ops[j] = pauliOps[rem%len(pauliOps)]
			rem /= len(pauliOps)
		}
		out[i] = Setting{Qubits: append([]int(nil), qubits...), Ops: string(ops)}
	}
	return out
}
