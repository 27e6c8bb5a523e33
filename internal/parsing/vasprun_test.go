package parsing

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calderon/vaspdb/internal/vasptest"
)

func TestReadVasprun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vasprun.xml")
	vasptest.WriteVasprun(t, path, vasptest.Run{
		Species:  []string{"Fe", "Fe"},
		InitialA: 2.90,
		FinalA:   2.87,
		E0:       -16.8,
		NSW:      50,
		NIonic:   7,
	})

	res, err := ReadVasprun(path, VasprunOptions{})
	require.NoError(t, err)

	assert.True(t, res.HasCompleted)
	assert.Equal(t, 7, res.NIonicSteps)
	assert.InDelta(t, -16.8, res.FinalEnergy, 1e-9)
	assert.InDelta(t, -8.4, res.EnergyPerAtom, 1e-9)
	assert.Equal(t, "GGA", res.RunType)
	assert.False(t, res.IsHubbard)

	require.NotNil(t, res.InputCrystal)
	require.NotNil(t, res.OutputCrystal)
	assert.InDelta(t, 2.90, res.InputCrystal.Lattice[0][0], 1e-9)
	assert.InDelta(t, 2.87, res.OutputCrystal.Lattice[0][0], 1e-9)
	assert.Equal(t, "Fe", res.OutputCrystal.Sites[0].Species)
	assert.Contains(t, res.CIF, "_cell_length_a 2.870000")
	assert.Greater(t, res.Density, 0.0)
	assert.Nil(t, res.DOS)
}

func TestReadVasprunIncomplete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vasprun.xml")
	// ionic loop hit NSW without converging
	vasptest.WriteVasprun(t, path, vasptest.Run{NSW: 3, NIonic: 3})

	res, err := ReadVasprun(path, VasprunOptions{})
	require.NoError(t, err)
	assert.False(t, res.HasCompleted)
}

func TestReadVasprunHubbard(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vasprun.xml")
	vasptest.WriteVasprun(t, path, vasptest.Run{
		Species: []string{"Fe", "Fe", "O", "O"},
		LDAU:    true,
		LDAUU:   []float64{5.3, 0},
	})

	res, err := ReadVasprun(path, VasprunOptions{})
	require.NoError(t, err)
	assert.True(t, res.IsHubbard)
	assert.Equal(t, "GGA+U", res.RunType)
	assert.Equal(t, map[string]float64{"Fe": 5.3, "O": 0}, res.Hubbards)
}

func TestReadVasprunBandGap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vasprun.xml")
	vasptest.WriteVasprun(t, path, vasptest.Run{
		Eigen: map[int][][2]float64{
			// VBM 1.0 at kpoint 1, CBM 3.0 at kpoint 2: indirect gap of 2.0
			1: {{-2.0, 1.0}, {1.0, 1.0}, {4.0, 0.0}},
			2: {{-2.5, 1.0}, {0.5, 1.0}, {3.0, 0.0}},
		},
	})

	res, err := ReadVasprun(path, VasprunOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, res.BandGap.Gap, 1e-9)
	require.NotNil(t, res.BandGap.VBM)
	require.NotNil(t, res.BandGap.CBM)
	assert.InDelta(t, 1.0, *res.BandGap.VBM, 1e-9)
	assert.InDelta(t, 3.0, *res.BandGap.CBM, 1e-9)
	assert.False(t, res.BandGap.IsDirect)
}

func TestReadVasprunDOS(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vasprun.xml")
	vasptest.WriteVasprun(t, path, vasptest.Run{IncludeDOS: true})

	res, err := ReadVasprun(path, VasprunOptions{ParseDOS: true})
	require.NoError(t, err)
	require.NotNil(t, res.DOS)
	assert.Contains(t, string(res.DOS), "efermi")

	// without the flag the payload is skipped
	res, err = ReadVasprun(path, VasprunOptions{})
	require.NoError(t, err)
	assert.Nil(t, res.DOS)
}

func TestReadVasprunTruncated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vasprun.xml")
	vasptest.WriteVasprun(t, path, vasptest.Run{Truncate: true})

	_, err := ReadVasprun(path, VasprunOptions{})
	require.Error(t, err)
	var perr *ParseError
	assert.ErrorAs(t, err, &perr)
}
