package drone

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calderon/vaspdb/internal/classify"
	"github.com/calderon/vaspdb/internal/store"
	"github.com/calderon/vaspdb/internal/types"
	"github.com/calderon/vaspdb/internal/vasptest"
)

func classifyRun(t *testing.T, dir string) []classify.Stage {
	t.Helper()
	c, err := classify.Classify(dir)
	require.NoError(t, err)
	require.Equal(t, classify.KindRun, c.Kind)
	return c.Stages
}

func TestGenerateDocTwoStage(t *testing.T) {
	dir := t.TempDir()
	vasptest.WriteVasprun(t, filepath.Join(dir, "relax1", "vasprun.xml"), vasptest.Run{
		InitialA: 3.0, FinalA: 3.05, E0: -10.0,
	})
	vasptest.WriteVasprun(t, filepath.Join(dir, "relax2", "vasprun.xml"), vasptest.Run{
		InitialA: 3.05, FinalA: 3.1, E0: -12.0,
	})

	d := newTestDrone(store.NewMemory(), Options{})
	doc, err := d.GenerateDoc(dir, classifyRun(t, dir))
	require.NoError(t, err)

	require.Len(t, doc.Calculations, 2)
	assert.Equal(t, types.StageRelax1, doc.Calculations[0].Task.Name)
	assert.Equal(t, types.StageRelax2, doc.Calculations[1].Task.Name)

	// input is the initial structure of the whole run, output the final one
	require.NotNil(t, doc.Input.Crystal)
	assert.InDelta(t, 3.0, doc.Input.Crystal.Lattice[0][0], 1e-9)
	require.NotNil(t, doc.Output.Crystal)
	assert.InDelta(t, 3.1, doc.Output.Crystal.Lattice[0][0], 1e-9)
	assert.InDelta(t, -12.0, doc.Output.FinalEnergy, 1e-9)

	assert.Equal(t, types.StateSuccessful, doc.State)
	assert.Equal(t, types.KindVASP, doc.Type)
	assert.Equal(t, "Fe", doc.ChemSys)
	assert.Equal(t, "Fe", doc.PrettyFormula)
	assert.Equal(t, "Fe2", doc.FullFormula)
	assert.Equal(t, "A", doc.AnonymousFormula)
	assert.Equal(t, 2, doc.NSites)
	require.NotNil(t, doc.Analysis)
	require.NotNil(t, doc.Spacegroup)
	assert.Equal(t, "P1", doc.Spacegroup.Symbol)
	assert.False(t, doc.LastUpdated.IsZero())
}

func TestGenerateDocSingleStageFirstEqualsLast(t *testing.T) {
	dir := t.TempDir()
	vasptest.WriteVasprun(t, filepath.Join(dir, "vasprun.xml"), vasptest.Run{
		InitialA: 2.9, FinalA: 2.95, E0: -8.7,
	})

	d := newTestDrone(store.NewMemory(), Options{})
	doc, err := d.GenerateDoc(dir, classifyRun(t, dir))
	require.NoError(t, err)

	require.Len(t, doc.Calculations, 1)
	assert.Same(t, doc.First(), doc.Last())
	assert.InDelta(t, 2.9, doc.Input.Crystal.Lattice[0][0], 1e-9)
	assert.InDelta(t, 2.95, doc.Output.Crystal.Lattice[0][0], 1e-9)
}

func TestGenerateDocState(t *testing.T) {
	tests := []struct {
		name  string
		file  string
		run   vasptest.Run
		state types.State
	}{
		{
			name:  "completed standard run",
			file:  "vasprun.xml",
			run:   vasptest.Run{NSW: 5, NIonic: 3},
			state: types.StateSuccessful,
		},
		{
			name:  "standard run out of ionic steps",
			file:  "vasprun.xml",
			run:   vasptest.Run{NSW: 5, NIonic: 5},
			state: types.StateUnsuccessful,
		},
		{
			name:  "lone first relax stage",
			file:  "vasprun.xml.relax1",
			run:   vasptest.Run{},
			state: types.StateStopped,
		},
		{
			name:  "lone second relax stage",
			file:  "vasprun.xml.relax2",
			run:   vasptest.Run{},
			state: types.StateSuccessful,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			vasptest.WriteVasprun(t, filepath.Join(dir, tt.file), tt.run)

			d := newTestDrone(store.NewMemory(), Options{})
			doc, err := d.GenerateDoc(dir, classifyRun(t, dir))
			require.NoError(t, err)
			assert.Equal(t, tt.state, doc.State)
		})
	}
}

func TestGenerateDocBadStructureOverride(t *testing.T) {
	dir := t.TempDir()
	// a negative lattice constant gives a non-positive cell volume
	vasptest.WriteVasprun(t, filepath.Join(dir, "vasprun.xml"), vasptest.Run{FinalA: -3.0})

	d := newTestDrone(store.NewMemory(), Options{})
	doc, err := d.GenerateDoc(dir, classifyRun(t, dir))
	require.NoError(t, err)
	assert.Equal(t, types.StateBadStructure, doc.State)
}

func TestGenerateDocLargeRelaxationWarns(t *testing.T) {
	dir := t.TempDir()
	vasptest.WriteVasprun(t, filepath.Join(dir, "vasprun.xml"), vasptest.Run{
		InitialA: 3.0, FinalA: 3.3,
	})

	d := newTestDrone(store.NewMemory(), Options{})
	doc, err := d.GenerateDoc(dir, classifyRun(t, dir))
	require.NoError(t, err)

	require.NotNil(t, doc.Analysis)
	assert.Greater(t, doc.Analysis.PercentDeltaVolume, 0.20)
	assert.Contains(t, doc.Analysis.Warnings, "Volume change > 20%")
}

func TestGenerateDocAdditionalFields(t *testing.T) {
	dir := t.TempDir()
	vasptest.WriteVasprun(t, filepath.Join(dir, "vasprun.xml"), vasptest.Run{})

	template := map[string]any{
		"submission": map[string]any{"batch": "2026-08"},
	}
	d := newTestDrone(store.NewMemory(), Options{AdditionalFields: template})

	doc1, err := d.GenerateDoc(dir, classifyRun(t, dir))
	require.NoError(t, err)
	doc2, err := d.GenerateDoc(dir, classifyRun(t, dir))
	require.NoError(t, err)

	doc1.Extra["submission"].(map[string]any)["batch"] = "mutated"

	assert.Equal(t, "2026-08", doc2.Extra["submission"].(map[string]any)["batch"])
	assert.Equal(t, "2026-08", template["submission"].(map[string]any)["batch"])
}

func TestGenerateDocUnreadableStageAborts(t *testing.T) {
	dir := t.TempDir()
	vasptest.WriteVasprun(t, filepath.Join(dir, "vasprun.xml"), vasptest.Run{Truncate: true})

	d := newTestDrone(store.NewMemory(), Options{})
	doc, err := d.GenerateDoc(dir, classifyRun(t, dir))
	require.Error(t, err)
	assert.Nil(t, doc)
}
