package drone

import (
	"path/filepath"
	"time"

	"github.com/calderon/vaspdb/internal/parsing"
	"github.com/calderon/vaspdb/internal/types"
)

// ProcessKilledRun builds a best-effort document for a directory whose run
// never produced usable stage output. Each input-file kind is parsed under
// its own failure boundary: a bad file drops its fields and logs a warning,
// nothing more.
func (d *Drone) ProcessKilledRun(dir string) (*types.RunDocument, error) {
	doc := &types.RunDocument{
		SchemaVersion: types.SchemaVersion,
		DirName:       dir,
		State:         types.StateKilled,
		Type:          types.KindVASP,
		Tags:          d.opts.Tags,
		Author:        d.opts.Author,
		Extra:         d.copyFields(),
		Input:         &types.InputSummary{},
		LastUpdated:   time.Now().UTC(),
	}

	var incar map[string]any
	if path := findInput(dir, "INCAR"); path != "" {
		m, err := parsing.ReadIncar(path)
		if err != nil {
			d.log.Warnw("killed run: INCAR unreadable", "dir", dir, "error", err)
		} else {
			incar = m
			doc.Input.Incar = m
		}
	}

	var crystal *types.Crystal
	if path := findInput(dir, "POSCAR"); path != "" {
		c, err := parsing.ReadPoscar(path)
		if err != nil {
			d.log.Warnw("killed run: POSCAR unreadable", "dir", dir, "error", err)
		} else {
			crystal = c
			doc.Input.Crystal = c
			comp := c.Composition()
			doc.Elements = comp.Elements()
			doc.NElements = len(doc.Elements)
			doc.PrettyFormula = comp.PrettyFormula()
			doc.FullFormula = comp.Formula()
			doc.ReducedCellFormula = comp.Reduced()
			doc.AnonymousFormula = comp.AnonymousFormula()
			doc.ChemSys = comp.ChemSys()
			doc.Density = c.Density()
			doc.NSites = len(c.Sites)
		}
	}

	if path := findInput(dir, "KPOINTS"); path != "" {
		m, err := parsing.ReadKpoints(path)
		if err != nil {
			d.log.Warnw("killed run: KPOINTS unreadable", "dir", dir, "error", err)
		} else {
			doc.Input.Kpoints = m
		}
	}

	if path := findInput(dir, "POTCAR"); path != "" {
		specs, err := parsing.ReadPotcar(path)
		if err != nil {
			d.log.Warnw("killed run: POTCAR unreadable", "dir", dir, "error", err)
		} else {
			titles := make([]string, len(specs))
			for i, s := range specs {
				titles[i] = s.Title
			}
			doc.Input.Potcar = titles
		}
	}

	if incar != nil {
		doc.IsHubbard, doc.Hubbards = killedHubbards(incar, crystal)
		doc.RunType = killedRunType(incar, doc.IsHubbard)
	}

	d.attachKilledEnergy(dir, doc, crystal)
	return doc, nil
}

// findInput locates an input file by kind, preferring the live copy over a
// preserved .orig one.
func findInput(dir, kind string) string {
	if p := parsing.FindFile(dir, kind); p != "" {
		return p
	}
	return parsing.FindFile(dir, kind+".orig")
}

// killedHubbards reads the Hubbard correction setup out of the INCAR. A run
// flagged LDAU whose U and J corrections all sum to zero is demoted to not
// actually Hubbard.
func killedHubbards(incar map[string]any, crystal *types.Crystal) (bool, map[string]float64) {
	if !parsing.IncarBool(incar, "LDAU") {
		return false, nil
	}
	u := parsing.IncarFloats(incar, "LDAUU")
	j := parsing.IncarFloats(incar, "LDAUJ")
	total := 0.0
	for _, v := range u {
		total += v
	}
	for _, v := range j {
		total += v
	}
	if total == 0 {
		return false, nil
	}

	hubbards := map[string]float64{}
	for i, el := range uniqueSpecies(crystal) {
		if i < len(u) {
			hubbards[el] = u[i]
		} else {
			hubbards[el] = 0
		}
	}
	return true, hubbards
}

// killedRunType classifies the functional, checked in priority order.
func killedRunType(incar map[string]any, isHubbard bool) string {
	switch {
	case isHubbard:
		return "GGA+U"
	case parsing.IncarBool(incar, "LHFCALC"):
		return "HF"
	default:
		return "GGA"
	}
}

func uniqueSpecies(c *types.Crystal) []string {
	if c == nil {
		return nil
	}
	var order []string
	seen := map[string]bool{}
	for _, s := range c.Sites {
		if !seen[s.Species] {
			seen[s.Species] = true
			order = append(order, s.Species)
		}
	}
	return order
}

// attachKilledEnergy pulls the last recorded ionic-step energy out of an
// OSZICAR, checking the top level first and then the first relax stage.
func (d *Drone) attachKilledEnergy(dir string, doc *types.RunDocument, crystal *types.Crystal) {
	path := parsing.FindFile(dir, "OSZICAR")
	if path == "" {
		path = parsing.FindFile(filepath.Join(dir, types.StageRelax1), "OSZICAR")
	}
	if path == "" {
		return
	}
	osz, err := parsing.ReadOszicar(path)
	if err != nil {
		d.log.Warnw("killed run: OSZICAR unreadable", "dir", dir, "error", err)
		return
	}
	e0, ok := osz.FinalE0()
	if !ok {
		return
	}
	out := &types.OutputSummary{FinalEnergy: e0}
	if crystal != nil && len(crystal.Sites) > 0 {
		out.FinalEnergyPerAtom = e0 / float64(len(crystal.Sites))
	}
	doc.Output = out
}
