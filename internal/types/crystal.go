// Package types defines the data model shared across the assimilation
// pipeline: crystal structures, per-stage results, and the canonical
// RunDocument persisted for each run.
package types

import (
	"fmt"
	"math"
	"strings"
)

// Site is one atomic site in a crystal, with cartesian coordinates in
// angstroms. Magmom is nil for non-spin-polarized calculations.
type Site struct {
	Species string     `json:"species"`
	XYZ     [3]float64 `json:"xyz"`
	Magmom  *float64   `json:"magmom,omitempty"`
}

// Crystal is a periodic structure: a 3x3 lattice matrix (rows are lattice
// vectors, angstroms) plus atomic sites.
type Crystal struct {
	Lattice [3][3]float64 `json:"lattice"`
	Sites   []Site        `json:"sites"`
}

// Volume returns the lattice cell volume in cubic angstroms.
func (c *Crystal) Volume() float64 {
	m := c.Lattice
	det := m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
	return math.Abs(det)
}

// minSiteDistance is the smallest interatomic distance (angstroms) a
// structure can have and still be considered physical.
const minSiteDistance = 0.01

// IsValid reports whether the structure is physically sensible: a finite
// positive cell volume, at least one site, and no two sites closer than
// minSiteDistance.
func (c *Crystal) IsValid() bool {
	v := c.Volume()
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return false
	}
	if len(c.Sites) == 0 {
		return false
	}
	for i := 0; i < len(c.Sites); i++ {
		for j := i + 1; j < len(c.Sites); j++ {
			if siteDistance(c.Sites[i], c.Sites[j]) < minSiteDistance {
				return false
			}
		}
	}
	return true
}

func siteDistance(a, b Site) float64 {
	dx := a.XYZ[0] - b.XYZ[0]
	dy := a.XYZ[1] - b.XYZ[1]
	dz := a.XYZ[2] - b.XYZ[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// LatticeParams returns the cell lengths (a, b, c) and angles
// (alpha, beta, gamma in degrees).
func (c *Crystal) LatticeParams() (lengths [3]float64, angles [3]float64) {
	for i := 0; i < 3; i++ {
		lengths[i] = vecNorm(c.Lattice[i])
	}
	// alpha is the angle between b and c, beta between a and c,
	// gamma between a and b.
	angles[0] = vecAngle(c.Lattice[1], c.Lattice[2])
	angles[1] = vecAngle(c.Lattice[0], c.Lattice[2])
	angles[2] = vecAngle(c.Lattice[0], c.Lattice[1])
	return lengths, angles
}

func vecNorm(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

func vecAngle(a, b [3]float64) float64 {
	dot := a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
	cos := dot / (vecNorm(a) * vecNorm(b))
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

// FractionalCoords returns the fractional coordinates of site i.
func (c *Crystal) FractionalCoords(i int) [3]float64 {
	inv, ok := invert3(c.Lattice)
	if !ok {
		return c.Sites[i].XYZ
	}
	x := c.Sites[i].XYZ
	var f [3]float64
	for k := 0; k < 3; k++ {
		f[k] = x[0]*inv[0][k] + x[1]*inv[1][k] + x[2]*inv[2][k]
	}
	return f
}

func invert3(m [3][3]float64) ([3][3]float64, bool) {
	det := m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
	if det == 0 {
		return m, false
	}
	var inv [3][3]float64
	inv[0][0] = (m[1][1]*m[2][2] - m[1][2]*m[2][1]) / det
	inv[0][1] = (m[0][2]*m[2][1] - m[0][1]*m[2][2]) / det
	inv[0][2] = (m[0][1]*m[1][2] - m[0][2]*m[1][1]) / det
	inv[1][0] = (m[1][2]*m[2][0] - m[1][0]*m[2][2]) / det
	inv[1][1] = (m[0][0]*m[2][2] - m[0][2]*m[2][0]) / det
	inv[1][2] = (m[0][2]*m[1][0] - m[0][0]*m[1][2]) / det
	inv[2][0] = (m[1][0]*m[2][1] - m[1][1]*m[2][0]) / det
	inv[2][1] = (m[0][1]*m[2][0] - m[0][0]*m[2][1]) / det
	inv[2][2] = (m[0][0]*m[1][1] - m[0][1]*m[1][0]) / det
	return inv, true
}

// Composition returns the element counts of the structure.
func (c *Crystal) Composition() Composition {
	comp := Composition{}
	for _, s := range c.Sites {
		comp[s.Species]++
	}
	return comp
}

// Density returns the mass density in g/cm^3, or 0 when any site's species
// has no known atomic mass.
func (c *Crystal) Density() float64 {
	var mass float64
	for _, s := range c.Sites {
		m, ok := atomicMasses[s.Species]
		if !ok {
			return 0
		}
		mass += m
	}
	v := c.Volume()
	if v <= 0 {
		return 0
	}
	// amu/A^3 -> g/cm^3
	return mass / v * 1.66053906660
}

// CIF renders the structure as a minimal CIF document.
func (c *Crystal) CIF() string {
	lengths, angles := c.LatticeParams()
	var sb strings.Builder
	sb.WriteString("data_structure\n")
	fmt.Fprintf(&sb, "_cell_length_a %.6f\n", lengths[0])
	fmt.Fprintf(&sb, "_cell_length_b %.6f\n", lengths[1])
	fmt.Fprintf(&sb, "_cell_length_c %.6f\n", lengths[2])
	fmt.Fprintf(&sb, "_cell_angle_alpha %.6f\n", angles[0])
	fmt.Fprintf(&sb, "_cell_angle_beta %.6f\n", angles[1])
	fmt.Fprintf(&sb, "_cell_angle_gamma %.6f\n", angles[2])
	sb.WriteString("loop_\n")
	sb.WriteString("_atom_site_type_symbol\n")
	sb.WriteString("_atom_site_fract_x\n")
	sb.WriteString("_atom_site_fract_y\n")
	sb.WriteString("_atom_site_fract_z\n")
	for i, s := range c.Sites {
		f := c.FractionalCoords(i)
		fmt.Fprintf(&sb, "%s %.6f %.6f %.6f\n", s.Species, f[0], f[1], f[2])
	}
	return sb.String()
}
