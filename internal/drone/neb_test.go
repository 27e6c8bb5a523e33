package drone

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calderon/vaspdb/internal/store"
	"github.com/calderon/vaspdb/internal/types"
	"github.com/calderon/vaspdb/internal/vasptest"
)

// writeNEBRun lays out a NEB root: one top-level stage output plus numbered
// image directories with per-image energies.
func writeNEBRun(t *testing.T, dir string, energies []float64, mags []float64) {
	t.Helper()
	vasptest.WriteVasprun(t, filepath.Join(dir, "vasprun.xml"), vasptest.Run{})
	for i, e := range energies {
		var m []float64
		if mags != nil {
			m = []float64{mags[i]}
		}
		vasptest.WriteOszicar(t, filepath.Join(dir, fmt.Sprintf("%02d", i), "OSZICAR"), []float64{e}, m)
	}
}

func TestGenerateNEBDocContourAndDeltas(t *testing.T) {
	dir := t.TempDir()
	writeNEBRun(t, dir, []float64{0.0, 1.0, 0.5, 2.0}, nil)

	d := newTestDrone(store.NewMemory(), Options{})
	doc, err := d.GenerateNEBDoc(dir, classifyRun(t, dir))
	require.NoError(t, err)

	assert.Equal(t, types.KindNEB, doc.Type)
	neb := doc.NEB
	require.NotNil(t, neb)
	assert.Equal(t, 4, neb.NumImages)
	assert.Equal(t, []float64{0.0, 1.0, 0.5, 2.0}, neb.ImageEnergyValues)
	assert.Equal(t, "0 1 0.5 2", neb.ImageEnergies)
	assert.Equal(t, `-x-/-x-\-x-/-x-`, neb.EnergyContour)
	assert.InDelta(t, 2.0, neb.DeltaEFirstMax, 1e-9)
	assert.InDelta(t, 0.0, neb.DeltaELastMax, 1e-9)
	assert.InDelta(t, 2.0, neb.DeltaEEndpoints, 1e-9)
	assert.InDelta(t, 2.0, neb.DeltaEMaxMin, 1e-9)

	// no moment on the first image: no magnetic series at all
	assert.Empty(t, neb.ImageMags)
	assert.Empty(t, neb.MagContour)
	assert.Nil(t, neb.DeltaMFirstMax)
}

func TestGenerateNEBDocSpinPolarized(t *testing.T) {
	dir := t.TempDir()
	writeNEBRun(t, dir, []float64{-5.0, -4.0, -4.5}, []float64{1.0, 2.0, 2.0})

	d := newTestDrone(store.NewMemory(), Options{})
	doc, err := d.GenerateNEBDoc(dir, classifyRun(t, dir))
	require.NoError(t, err)

	neb := doc.NEB
	require.NotNil(t, neb)
	assert.Equal(t, []float64{1.0, 2.0, 2.0}, neb.ImageMagValues)
	assert.Equal(t, "1 2 2", neb.ImageMags)
	assert.Equal(t, "-x-/-x-=-x-", neb.MagContour)
	require.NotNil(t, neb.DeltaMFirstMax)
	assert.InDelta(t, 1.0, *neb.DeltaMFirstMax, 1e-9)
	require.NotNil(t, neb.DeltaMLastMax)
	assert.InDelta(t, 0.0, *neb.DeltaMLastMax, 1e-9)
	require.NotNil(t, neb.DeltaMEndpoints)
	assert.InDelta(t, 1.0, *neb.DeltaMEndpoints, 1e-9)
	require.NotNil(t, neb.DeltaMMaxMin)
	assert.InDelta(t, 1.0, *neb.DeltaMMaxMin, 1e-9)
}

func TestGenerateNEBDocMissingImageAborts(t *testing.T) {
	dir := t.TempDir()
	vasptest.WriteVasprun(t, filepath.Join(dir, "vasprun.xml"), vasptest.Run{})
	for _, img := range []string{"00", "01", "03"} {
		vasptest.WriteOszicar(t, filepath.Join(dir, img, "OSZICAR"), []float64{-1.0}, nil)
	}

	d := newTestDrone(store.NewMemory(), Options{})
	doc, err := d.GenerateNEBDoc(dir, classifyRun(t, dir))
	require.Error(t, err)
	assert.Nil(t, doc, "an incomplete image set is never partially persisted")
}

func TestGenerateNEBDocMissingEnergyFileAborts(t *testing.T) {
	dir := t.TempDir()
	writeNEBRun(t, dir, []float64{-1.0, -2.0}, nil)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "02"), 0o755))

	d := newTestDrone(store.NewMemory(), Options{})
	_, err := d.GenerateNEBDoc(dir, classifyRun(t, dir))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "02")
}

func TestGenerateNEBDocIgnoresStrayNumberedDir(t *testing.T) {
	dir := t.TempDir()
	writeNEBRun(t, dir, []float64{-1.0, -2.0}, nil)
	// a leftover directory far outside the image range is not an image
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "99"), 0o755))

	d := newTestDrone(store.NewMemory(), Options{})
	doc, err := d.GenerateNEBDoc(dir, classifyRun(t, dir))
	require.NoError(t, err)
	require.NotNil(t, doc.NEB)
	assert.Equal(t, 2, doc.NEB.NumImages)
}

func TestGenerateNEBDocZeroImagesAborts(t *testing.T) {
	dir := t.TempDir()
	vasptest.WriteVasprun(t, filepath.Join(dir, "vasprun.xml"), vasptest.Run{})

	d := newTestDrone(store.NewMemory(), Options{})
	doc, err := d.GenerateNEBDoc(dir, classifyRun(t, dir))
	require.Error(t, err)
	assert.Nil(t, doc)
}

func TestGenerateNEBDocBadStructureOverride(t *testing.T) {
	dir := t.TempDir()
	vasptest.WriteVasprun(t, filepath.Join(dir, "vasprun.xml"), vasptest.Run{FinalA: -3.0})
	vasptest.WriteOszicar(t, filepath.Join(dir, "00", "OSZICAR"), []float64{-1.0}, nil)
	vasptest.WriteOszicar(t, filepath.Join(dir, "01", "OSZICAR"), []float64{-2.0}, nil)

	d := newTestDrone(store.NewMemory(), Options{})
	doc, err := d.GenerateNEBDoc(dir, classifyRun(t, dir))
	require.NoError(t, err)
	assert.Equal(t, types.StateBadStructure, doc.State)
	assert.Equal(t, types.KindNEB, doc.Type)
}

func TestContour(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   string
	}{
		{"single point", []float64{1.0}, "-x-"},
		{"rising", []float64{0.0, 1.0}, "-x-/-x-"},
		{"falling", []float64{1.0, 0.0}, `-x-\-x-`},
		{"flat", []float64{1.0, 1.0}, "-x-=-x-"},
		{"mixed", []float64{0.0, 1.0, 0.5, 2.0}, `-x-/-x-\-x-/-x-`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, contour(tt.values))
		})
	}
}
