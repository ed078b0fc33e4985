package circuit

import (
	"errors"
	"fmt"
	"math"
)

// ErrNoGateset is returned for qubit sets with no defined RB alphabet.
var ErrNoGateset = errors.New("no RB gateset for this qubit count")

var rbAngles = []float64{-math.Pi, -math.Pi / 2, math.Pi / 2, math.Pi}

// OneQubitGateset returns the 1-qubit RB alphabet: RX and RZ at ±pi/2, ±pi.
func OneQubitGateset(q int) []Gate {
	gates := make([]Gate, 0, 2*len(rbAngles))
	for _, a := range rbAngles {
		for _, name := range []string{"RX", "RZ"} {
			gates = append(gates, Gate{Name: name, Params: []float64{a}, Qubits: []int{q}})
		}
	}
	return gates
}

// TwoQubitGateset is two 1-qubit alphabets plus CZ.
func TwoQubitGateset(q1, q2 int) []Gate {
	gates := append(OneQubitGateset(q1), OneQubitGateset(q2)...)
	return append(gates, Gate{Name: "CZ", Qubits: []int{q1, q2}})
}

// Gateset picks the RB alphabet for one or two qubits.
func Gateset(qubits []int) ([]Gate, error) {
	switch len(qubits) {
	case 1:
		return OneQubitGateset(qubits[0]), nil
	case 2:
		return TwoQubitGateset(qubits[0], qubits[1]), nil
	default:
		return nil, fmt.Errorf("%w: %d qubits", ErrNoGateset, len(qubits))
	}
}
