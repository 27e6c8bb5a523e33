// Package vasptest generates small synthetic VASP output files for tests.
package vasptest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Run describes the synthetic vasprun.xml to generate.
type Run struct {
	// Species per site, e.g. []string{"Fe", "Fe", "O"}.
	Species []string
	// InitialA and FinalA are cubic lattice constants for the initial and
	// final structures. FinalA defaults to InitialA.
	InitialA float64
	FinalA   float64
	// FracPositions per site; defaults to a spread along the cell diagonal.
	FracPositions [][3]float64
	// E0 is the final electronic energy.
	E0 float64
	// NSW and NIonic control the completion heuristic: the run counts as
	// complete when NIonic < NSW (or NSW <= 1).
	NSW    int
	NIonic int
	// INCAR extras.
	LDAU    bool
	LDAUU   []float64
	LHFCALC bool
	// Eigenvalue rows per kpoint: energy, occupancy pairs.
	Eigen map[int][][2]float64
	// IncludeDOS emits a small total-DOS block.
	IncludeDOS bool
	// Truncate cuts the file off mid-document to simulate a killed run.
	Truncate bool
}

func (r Run) withDefaults() Run {
	if len(r.Species) == 0 {
		r.Species = []string{"Fe", "Fe"}
	}
	if r.InitialA == 0 {
		r.InitialA = 2.87
	}
	if r.FinalA == 0 {
		r.FinalA = r.InitialA
	}
	if r.FracPositions == nil {
		n := len(r.Species)
		for i := 0; i < n; i++ {
			f := float64(i) / float64(n)
			r.FracPositions = append(r.FracPositions, [3]float64{f, f, f})
		}
	}
	if r.E0 == 0 {
		r.E0 = -8.5
	}
	if r.NIonic == 0 {
		r.NIonic = 1
	}
	return r
}

// WriteVasprun writes a synthetic vasprun.xml to path.
func WriteVasprun(t *testing.T, path string, run Run) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(run.XML()), 0o644))
}

// XML renders the synthetic document.
func (r Run) XML() string {
	r = r.withDefaults()
	var sb strings.Builder
	sb.WriteString("<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n<modeling>\n")

	sb.WriteString(" <incar>\n")
	if r.NSW > 0 {
		fmt.Fprintf(&sb, "  <i type=\"int\" name=\"NSW\">%d</i>\n", r.NSW)
	}
	if r.LDAU {
		sb.WriteString("  <i type=\"logical\" name=\"LDAU\">T</i>\n")
		if r.LDAUU != nil {
			vals := make([]string, len(r.LDAUU))
			for i, u := range r.LDAUU {
				vals[i] = fmt.Sprintf("%.4f", u)
			}
			fmt.Fprintf(&sb, "  <v type=\"list\" name=\"LDAUU\">%s</v>\n", strings.Join(vals, " "))
		}
	}
	if r.LHFCALC {
		sb.WriteString("  <i type=\"logical\" name=\"LHFCALC\">T</i>\n")
	}
	sb.WriteString(" </incar>\n")

	sb.WriteString(" <atominfo>\n  <array name=\"atoms\">\n   <set>\n")
	for _, sp := range r.Species {
		fmt.Fprintf(&sb, "    <rc><c>%s</c><c>1</c></rc>\n", sp)
	}
	sb.WriteString("   </set>\n  </array>\n </atominfo>\n")

	r.writeStructure(&sb, "initialpos", r.InitialA)

	if r.Truncate {
		return sb.String()
	}

	for i := 0; i < r.NIonic; i++ {
		sb.WriteString(" <calculation>\n")
		fmt.Fprintf(&sb, "  <energy><i name=\"e_fr_energy\">%.8f</i><i name=\"e_0_energy\">%.8f</i></energy>\n", r.E0, r.E0)
		if i == r.NIonic-1 {
			r.writeEigen(&sb)
			if r.IncludeDOS {
				sb.WriteString("  <dos>\n   <i name=\"efermi\">2.50</i>\n   <total><array><set><set comment=\"spin 1\">\n")
				sb.WriteString("    <r>-5.0 0.1 0.1</r>\n    <r>0.0 1.2 1.3</r>\n    <r>5.0 0.0 1.3</r>\n")
				sb.WriteString("   </set></set></array></total>\n  </dos>\n")
			}
		}
		sb.WriteString(" </calculation>\n")
	}

	r.writeStructure(&sb, "finalpos", r.FinalA)
	sb.WriteString("</modeling>\n")
	return sb.String()
}

func (r Run) writeStructure(sb *strings.Builder, name string, a float64) {
	fmt.Fprintf(sb, " <structure name=%q>\n  <crystal>\n   <varray name=\"basis\">\n", name)
	for i := 0; i < 3; i++ {
		var v [3]float64
		v[i] = a
		fmt.Fprintf(sb, "    <v>%.8f %.8f %.8f</v>\n", v[0], v[1], v[2])
	}
	sb.WriteString("   </varray>\n  </crystal>\n  <varray name=\"positions\">\n")
	for _, f := range r.FracPositions {
		fmt.Fprintf(sb, "   <v>%.8f %.8f %.8f</v>\n", f[0], f[1], f[2])
	}
	sb.WriteString("  </varray>\n </structure>\n")
}

func (r Run) writeEigen(sb *strings.Builder) {
	if len(r.Eigen) == 0 {
		return
	}
	sb.WriteString("  <eigenvalues><array><set><set comment=\"spin 1\">\n")
	kpoints := make([]int, 0, len(r.Eigen))
	for k := range r.Eigen {
		kpoints = append(kpoints, k)
	}
	// map order is fine for tests, but keep output deterministic
	for i := 0; i < len(kpoints); i++ {
		for j := i + 1; j < len(kpoints); j++ {
			if kpoints[j] < kpoints[i] {
				kpoints[i], kpoints[j] = kpoints[j], kpoints[i]
			}
		}
	}
	for _, k := range kpoints {
		fmt.Fprintf(sb, "   <set comment=\"kpoint %d\">\n", k)
		for _, row := range r.Eigen[k] {
			fmt.Fprintf(sb, "    <r>%.6f %.4f</r>\n", row[0], row[1])
		}
		sb.WriteString("   </set>\n")
	}
	sb.WriteString("  </set></set></array></eigenvalues>\n")
}

// WriteOszicar writes an OSZICAR with the given ionic step energies. When
// mags is non-nil it must be the same length as energies.
func WriteOszicar(t *testing.T, path string, energies []float64, mags []float64) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	var sb strings.Builder
	for i, e := range energies {
		fmt.Fprintf(&sb, "DAV:   1    %.8f   -0.1E-02   -0.3E-02  3392   0.4E+00\n", e)
		fmt.Fprintf(&sb, "%4d F= %.8f E0= %.8f  d E =%.6f", i+1, e, e, e)
		if mags != nil {
			fmt.Fprintf(&sb, "  mag=   %.4f", mags[i])
		}
		sb.WriteString("\n")
	}
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
}
