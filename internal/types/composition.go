package types

import (
	"fmt"
	"sort"
	"strings"
)

// Composition maps element symbols to site counts.
type Composition map[string]int

// Elements returns the element symbols in lexical order.
func (c Composition) Elements() []string {
	els := make([]string, 0, len(c))
	for el := range c {
		els = append(els, el)
	}
	sort.Strings(els)
	return els
}

// ChemSys returns the hyphen-joined, lexically sorted element system,
// e.g. "Fe-Li-O-P".
func (c Composition) ChemSys() string {
	return strings.Join(c.Elements(), "-")
}

// Reduced returns the composition divided by the greatest common divisor of
// its counts.
func (c Composition) Reduced() Composition {
	g := 0
	for _, n := range c {
		g = gcd(g, n)
	}
	if g <= 1 {
		out := Composition{}
		for el, n := range c {
			out[el] = n
		}
		return out
	}
	out := Composition{}
	for el, n := range c {
		out[el] = n / g
	}
	return out
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Formula returns the full formula with lexically ordered elements,
// e.g. "Fe4 O6".
func (c Composition) Formula() string {
	parts := make([]string, 0, len(c))
	for _, el := range c.Elements() {
		parts = append(parts, fmt.Sprintf("%s%d", el, c[el]))
	}
	return strings.Join(parts, " ")
}

// PrettyFormula returns the reduced formula with unit counts elided,
// e.g. "Fe2O3" or "LiFePO4".
func (c Composition) PrettyFormula() string {
	red := c.Reduced()
	var sb strings.Builder
	for _, el := range red.Elements() {
		sb.WriteString(el)
		if red[el] > 1 {
			fmt.Fprintf(&sb, "%d", red[el])
		}
	}
	return sb.String()
}

// AnonymousFormula returns the canonical anonymized formula: reduced counts
// sorted ascending, labeled A, B, C, ... in that order. Two compounds with
// the same stoichiometric ratios produce the same string regardless of
// which elements they contain.
func (c Composition) AnonymousFormula() string {
	red := c.Reduced()
	counts := make([]int, 0, len(red))
	for _, n := range red {
		counts = append(counts, n)
	}
	sort.Ints(counts)
	var sb strings.Builder
	for i, n := range counts {
		sb.WriteByte(byte('A' + i))
		if n > 1 {
			fmt.Fprintf(&sb, "%d", n)
		}
	}
	return sb.String()
}
