package circuit

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseProgram reads gates written as `NAME(params) q0 q1`, separated by
// semicolons or newlines. Angles may be float literals or simple multiples
// of pi such as `-pi/2` or `3*pi/4`.
func ParseProgram(src string) (Program, error) {
	var prog Program
	for _, line := range strings.FieldsFunc(src, func(r rune) bool { return r == ';' || r == '\n' }) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		g, err := parseGate(line)
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", line, err)
		}
		prog = append(prog, g)
	}
	if len(prog) == 0 {
		return nil, fmt.Errorf("empty program")
	}
	return prog, nil
}

func parseGate(s string) (Gate, error) {
	var g Gate
	head, rest := s, ""
	if i := strings.IndexAny(s, " \t("); i >= 0 {
		head, rest = s[:i], s[i:]
	}
	g.Name = strings.ToUpper(head)
	rest = strings.TrimSpace(rest)
	if strings.HasPrefix(rest, "(") {
		end := strings.IndexByte(rest, ')')
		if end < 0 {
			return g, fmt.Errorf("unterminated parameter list")
		}
		for _, p := range strings.Split(rest[1:end], ",") {
			a, err := ParseAngle(p)
			if err != nil {
				return g, err
			}
			g.Params = append(g.Params, a)
		}
		rest = rest[end+1:]
	}
	for _, f := range strings.Fields(rest) {
		q, err := strconv.Atoi(f)
		if err != nil || q < 0 {
			return g, fmt.Errorf("invalid qubit %q", f)
		}
		g.Qubits = append(g.Qubits, q)
	}
	if len(g.Qubits) == 0 {
		return g, fmt.Errorf("gate %s has no qubits", g.Name)
	}
	return g, nil
}

// ParseAngle accepts `1.5707`, `pi`, `-pi/2`, `3*pi/4`.
func ParseAngle(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" {
		return 0, fmt.Errorf("empty angle")
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}
	sign := 1.0
	switch s[0] {
	case '-':
		sign, s = -1, s[1:]
	case '+':
		s = s[1:]
	}
	num, den := 1.0, 1.0
	if i := strings.Index(s, "*"); i >= 0 {
		v, err := strconv.ParseFloat(s[:i], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid angle multiplier %q", s[:i])
		}
		num, s = v, s[i+1:]
	}
	if i := strings.Index(s, "/"); i >= 0 {
		v, err := strconv.ParseFloat(s[i+1:], 64)
		if err != nil || v == 0 {
			return 0, fmt.Errorf("invalid angle divisor %q", s[i+1:])
		}
		den, s = v, s[:i]
	}
	if strings.ToLower(s) != "pi" {
		return 0, fmt.Errorf("invalid angle %q", s)
	}
	return sign * num * math.Pi / den, nil
}
