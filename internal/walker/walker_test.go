package walker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/calderon/vaspdb/internal/drone"
	"github.com/calderon/vaspdb/internal/store"
	"github.com/calderon/vaspdb/internal/types"
	"github.com/calderon/vaspdb/internal/vasptest"
)

const poscar = `Fe
1.0
3.0 0.0 0.0
0.0 3.0 0.0
0.0 0.0 3.0
Fe
1
Direct
0.0 0.0 0.0
`

// writeTree lays out a small batch: one standard run, one two-stage run,
// one killed run, and a directory that is nothing at all.
func writeTree(t *testing.T, root string) {
	t.Helper()

	vasptest.WriteVasprun(t, filepath.Join(root, "block_1", "launcher_a", "vasprun.xml"), vasptest.Run{})

	twoStage := filepath.Join(root, "block_1", "launcher_b")
	vasptest.WriteVasprun(t, filepath.Join(twoStage, "relax1", "vasprun.xml"), vasptest.Run{E0: -10})
	vasptest.WriteVasprun(t, filepath.Join(twoStage, "relax2", "vasprun.xml"), vasptest.Run{E0: -11})

	killed := filepath.Join(root, "block_2", "launcher_c")
	for name, content := range map[string]string{
		"INCAR":   "NSW = 99\n",
		"KPOINTS": "mesh\n0\nGamma\n4 4 4\n",
		"POSCAR":  poscar,
		"POTCAR":  "TITEL = PAW_PBE Fe_pv 06Sep2000\n",
	} {
		require.NoError(t, os.MkdirAll(killed, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(killed, name), []byte(content), 0o644))
	}

	require.NoError(t, os.MkdirAll(filepath.Join(root, "block_2", "notes"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "block_2", "notes", "README"), []byte("nothing here"), 0o644))
}

func newWalker(mem *store.Memory, opts drone.Options, workers int) *Walker {
	log := zap.NewNop().Sugar()
	return New(drone.NewDrone(mem, nil, log, opts), log, workers)
}

func TestWalkAssimilatesTree(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root)

	mem := store.NewMemory()
	w := newWalker(mem, drone.Options{}, 4)

	report, err := w.Walk(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 3, mem.Len())
	assert.Equal(t, 2, report.States[types.StateSuccessful])
	assert.Equal(t, 1, report.States[types.StateKilled])
}

func TestWalkSkipsDuplicatesOnRerun(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root)

	mem := store.NewMemory()
	w := newWalker(mem, drone.Options{}, 2)

	_, err := w.Walk(context.Background(), root)
	require.NoError(t, err)
	report, err := w.Walk(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Succeeded)
	assert.Equal(t, 3, report.Skipped)
	assert.Equal(t, 3, mem.Len())
}

func TestWalkIsolatesBrokenRun(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root)
	vasptest.WriteVasprun(t, filepath.Join(root, "block_3", "launcher_d", "vasprun.xml"), vasptest.Run{Truncate: true})

	mem := store.NewMemory()
	w := newWalker(mem, drone.Options{}, 4)

	report, err := w.Walk(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, 1, report.Failed, "a broken run fails alone")
	assert.Equal(t, 3, mem.Len())
}

func TestWalkDoesNotDescendIntoRuns(t *testing.T) {
	root := t.TempDir()
	twoStage := filepath.Join(root, "launcher")
	vasptest.WriteVasprun(t, filepath.Join(twoStage, "relax1", "vasprun.xml"), vasptest.Run{})
	vasptest.WriteVasprun(t, filepath.Join(twoStage, "relax2", "vasprun.xml"), vasptest.Run{})

	mem := store.NewMemory()
	w := newWalker(mem, drone.Options{}, 1)

	report, err := w.Walk(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Succeeded, "stage subdirectories are not independent runs")
	assert.Equal(t, 1, mem.Len())
}

func TestWalkEmptyTree(t *testing.T) {
	root := t.TempDir()
	w := newWalker(store.NewMemory(), drone.Options{}, 1)

	report, err := w.Walk(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Succeeded+report.Failed+report.Skipped)
}
