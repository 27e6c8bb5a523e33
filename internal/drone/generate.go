package drone

import (
	"fmt"
	"time"

	"github.com/calderon/vaspdb/internal/classify"
	"github.com/calderon/vaspdb/internal/parsing"
	"github.com/calderon/vaspdb/internal/types"
)

// GenerateDoc merges the ordered stage outputs of one run directory into a
// single document. Stage ordering is the classifier's lexical ordering;
// first/last semantics downstream depend on it. Any failure aborts this
// directory's document.
func (d *Drone) GenerateDoc(dir string, stages []classify.Stage) (*types.RunDocument, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("no stage files in %s", dir)
	}

	doc := &types.RunDocument{
		SchemaVersion: types.SchemaVersion,
		DirName:       dir,
		Type:          types.KindVASP,
		Tags:          d.opts.Tags,
		Author:        d.opts.Author,
		Extra:         d.copyFields(),
	}

	calcs := make([]*types.StageResult, 0, len(stages))
	for _, st := range stages {
		res, err := parsing.ReadVasprun(st.File, parsing.VasprunOptions{ParseDOS: d.opts.ParseDOS})
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", st.Name, err)
		}
		res.Task = types.TaskLabel{Type: string(types.KindVASP), Name: st.Name}
		calcs = append(calcs, res)
	}
	doc.Calculations = calcs

	first := doc.First()
	last := doc.Last()

	comp := last.OutputCrystal.Composition()
	doc.Elements = comp.Elements()
	doc.NElements = len(doc.Elements)
	doc.PrettyFormula = comp.PrettyFormula()
	doc.FullFormula = comp.Formula()
	doc.ReducedCellFormula = comp.Reduced()
	doc.AnonymousFormula = comp.AnonymousFormula()
	doc.ChemSys = comp.ChemSys()
	doc.Density = last.Density
	doc.NSites = len(last.OutputCrystal.Sites)
	doc.IsHubbard = last.IsHubbard
	doc.Hubbards = last.Hubbards
	doc.RunType = last.RunType

	// input.crystal is the initial structure of the whole multi-stage run,
	// not of the last stage
	doc.Input = &types.InputSummary{Crystal: first.InputCrystal}
	doc.Output = &types.OutputSummary{
		Crystal:            last.OutputCrystal,
		FinalEnergy:        last.FinalEnergy,
		FinalEnergyPerAtom: last.EnergyPerAtom,
	}

	// a lone relax1 means stage two never ran
	if len(calcs) == 2 || stages[0].Name != types.StageRelax1 {
		if last.HasCompleted {
			doc.State = types.StateSuccessful
		} else {
			doc.State = types.StateUnsuccessful
		}
	} else {
		doc.State = types.StateStopped
	}
	if !last.OutputCrystal.IsValid() {
		doc.State = types.StateBadStructure
	}

	doc.Analysis = d.engine.Analyze(doc)
	sg, err := d.engine.AnalyzeSymmetry(last.OutputCrystal)
	if err != nil {
		d.log.Warnw("symmetry analysis failed", "dir", dir, "error", err)
	} else {
		doc.Spacegroup = sg
	}

	doc.LastUpdated = time.Now().UTC()
	return doc, nil
}
