package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymousFormula(t *testing.T) {
	tests := []struct {
		name     string
		comp     Composition
		expected string
	}{
		{"Binary 1:3", Composition{"Fe": 1, "F": 3}, "AB3"},
		{"Binary 1:3 other elements", Composition{"Al": 1, "Cl": 3}, "AB3"},
		{"Binary 1:3 unreduced", Composition{"Y": 2, "Br": 6}, "AB3"},
		{"Oxide 2:3", Composition{"Fe": 4, "O": 6}, "A2B3"},
		{"Quaternary", Composition{"Li": 1, "Fe": 1, "P": 1, "O": 4}, "ABCD4"},
		{"Elemental", Composition{"Si": 8}, "A"},
		{"Equal counts", Composition{"Ga": 2, "As": 2}, "AB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.comp.AnonymousFormula())
		})
	}
}

// The anonymous formula must be invariant under bijective renaming of the
// element symbols.
func TestAnonymousFormulaRenamingInvariance(t *testing.T) {
	a := Composition{"Li": 2, "O": 1}
	b := Composition{"Na": 2, "S": 1}
	c := Composition{"K": 4, "Se": 2}
	assert.Equal(t, a.AnonymousFormula(), b.AnonymousFormula())
	assert.Equal(t, a.AnonymousFormula(), c.AnonymousFormula())
}

func TestFormulas(t *testing.T) {
	comp := Composition{"Fe": 4, "O": 6}
	assert.Equal(t, "Fe4 O6", comp.Formula())
	assert.Equal(t, "Fe2O3", comp.PrettyFormula())
	assert.Equal(t, Composition{"Fe": 2, "O": 3}, comp.Reduced())
}

func TestChemSys(t *testing.T) {
	comp := Composition{"O": 4, "Li": 1, "Fe": 1, "P": 1}
	assert.Equal(t, "Fe-Li-O-P", comp.ChemSys())
	assert.Equal(t, []string{"Fe", "Li", "O", "P"}, comp.Elements())
}
