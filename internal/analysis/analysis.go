// Package analysis computes the derived scientific fields of a document:
// volume change, band-edge data, coordination numbers, and best-effort
// symmetry and oxidation-state decoration. Everything here degrades
// per-field instead of failing the document.
package analysis

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/calderon/vaspdb/internal/types"
)

// VolumeWarningThreshold is the fractional volume change above which a
// warning is recorded. The boundary itself does not warn.
const VolumeWarningThreshold = 0.20

// volumeWarning is the fixed message recorded for large relaxations.
const volumeWarning = "Volume change > 20%"

// SymmetryTolerance is the fixed distance tolerance used for spacegroup
// determination.
const SymmetryTolerance = 0.1

// CoordinationCalculator yields a site's nearest-neighbor count. Site-level
// failures are recoverable; the engine omits the site.
type CoordinationCalculator interface {
	Coordination(c *types.Crystal, site int) (int, error)
}

// SymmetryAnalyzer determines the spacegroup of a structure at a distance
// tolerance.
type SymmetryAnalyzer interface {
	Spacegroup(c *types.Crystal, tolerance float64) (*types.SpacegroupRecord, error)
}

// OxidationAssigner decorates a structure with oxidation states.
type OxidationAssigner interface {
	Decorate(c *types.Crystal) (*types.Crystal, error)
}

// Engine bundles the analysis collaborators. Zero-value fields fall back to
// the built-in defaults.
type Engine struct {
	Coordination CoordinationCalculator
	Symmetry     SymmetryAnalyzer
	Oxidation    OxidationAssigner
	Log          *zap.SugaredLogger
}

// NewEngine returns an engine with the default collaborators.
func NewEngine(log *zap.SugaredLogger) *Engine {
	return &Engine{
		Coordination: CutoffCoordination{},
		Symmetry:     TriclinicFallback{},
		Log:          log,
	}
}

// Analyze builds the AnalysisRecord for a merged document. The document
// must have input and output crystals; missing pieces degrade the
// corresponding fields.
func (e *Engine) Analyze(doc *types.RunDocument) *types.AnalysisRecord {
	rec := &types.AnalysisRecord{Warnings: []string{}}

	if doc.Input != nil && doc.Input.Crystal != nil && doc.Output != nil && doc.Output.Crystal != nil {
		initial := doc.Input.Crystal.Volume()
		final := doc.Output.Crystal.Volume()
		if initial > 0 {
			rec.DeltaVolume = final - initial
			rec.PercentDeltaVolume = rec.DeltaVolume / initial
			if math.Abs(rec.PercentDeltaVolume) > VolumeWarningThreshold {
				rec.Warnings = append(rec.Warnings, volumeWarning)
			}
		}
	}

	if last := doc.Last(); last != nil {
		rec.BandGap = last.BandGap.Gap
		rec.CBM = last.BandGap.CBM
		rec.VBM = last.BandGap.VBM
		rec.IsGapDirect = last.BandGap.IsDirect
	}

	if doc.Output != nil && doc.Output.Crystal != nil {
		rec.CoordinationNumbers = e.coordinationNumbers(doc.Output.Crystal)
		rec.BVStructure = e.decorate(doc.Output.Crystal)
	}
	return rec
}

func (e *Engine) coordinationNumbers(c *types.Crystal) []types.SiteCoordination {
	calc := e.Coordination
	if calc == nil {
		calc = CutoffCoordination{}
	}
	out := make([]types.SiteCoordination, 0, len(c.Sites))
	for i := range c.Sites {
		n, err := calc.Coordination(c, i)
		if err != nil {
			if e.Log != nil {
				e.Log.Warnw("coordination analysis failed for site", "site", i, "error", err)
			}
			continue
		}
		out = append(out, types.SiteCoordination{
			Site:         i,
			Element:      c.Sites[i].Species,
			Coordination: n,
		})
	}
	return out
}

// decorate attaches oxidation states; on any failure the undecorated
// structure is used instead.
func (e *Engine) decorate(c *types.Crystal) *types.Crystal {
	if e.Oxidation == nil {
		return c
	}
	decorated, err := e.Oxidation.Decorate(c)
	if err != nil || decorated == nil {
		if e.Log != nil && err != nil {
			e.Log.Warnw("oxidation-state analysis failed", "error", err)
		}
		return c
	}
	return decorated
}

// AnalyzeSymmetry returns the spacegroup record for the final structure at
// the fixed tolerance.
func (e *Engine) AnalyzeSymmetry(c *types.Crystal) (*types.SpacegroupRecord, error) {
	sym := e.Symmetry
	if sym == nil {
		sym = TriclinicFallback{}
	}
	return sym.Spacegroup(c, SymmetryTolerance)
}

// CutoffCoordination counts neighbors within a fixed multiple of the
// site's nearest-neighbor distance, over one shell of periodic images.
type CutoffCoordination struct{}

// cutoffFactor widens the nearest-neighbor distance into a coordination
// shell.
const cutoffFactor = 1.25

func (CutoffCoordination) Coordination(c *types.Crystal, site int) (int, error) {
	if site < 0 || site >= len(c.Sites) {
		return 0, fmt.Errorf("site %d out of range", site)
	}
	origin := c.Sites[site].XYZ

	nearest := math.Inf(1)
	var dists []float64
	for j := range c.Sites {
		for _, img := range imageShifts(c.Lattice) {
			if j == site && img == [3]float64{} {
				continue
			}
			d := distance(origin, shift(c.Sites[j].XYZ, img))
			dists = append(dists, d)
			if d < nearest {
				nearest = d
			}
		}
	}
	if len(dists) == 0 || math.IsInf(nearest, 1) {
		return 0, fmt.Errorf("site %d has no neighbors", site)
	}
	if nearest < 1e-8 {
		return 0, fmt.Errorf("site %d overlaps a neighbor", site)
	}
	count := 0
	cutoff := nearest * cutoffFactor
	for _, d := range dists {
		if d <= cutoff {
			count++
		}
	}
	return count, nil
}

func imageShifts(lattice [3][3]float64) [][3]float64 {
	shifts := make([][3]float64, 0, 27)
	for a := -1; a <= 1; a++ {
		for b := -1; b <= 1; b++ {
			for c := -1; c <= 1; c++ {
				var s [3]float64
				for j := 0; j < 3; j++ {
					s[j] = float64(a)*lattice[0][j] + float64(b)*lattice[1][j] + float64(c)*lattice[2][j]
				}
				shifts = append(shifts, s)
			}
		}
	}
	return shifts
}

func shift(x, s [3]float64) [3]float64 {
	return [3]float64{x[0] + s[0], x[1] + s[1], x[2] + s[2]}
}

func distance(a, b [3]float64) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	dz := a[2] - b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// TriclinicFallback is the symmetry analyzer used when no real library is
// wired in: every structure reports as P1.
type TriclinicFallback struct{}

func (TriclinicFallback) Spacegroup(_ *types.Crystal, _ float64) (*types.SpacegroupRecord, error) {
	return &types.SpacegroupRecord{
		Symbol:        "P1",
		Number:        1,
		PointGroup:    "1",
		CrystalSystem: "triclinic",
		Hall:          "P 1",
	}, nil
}
