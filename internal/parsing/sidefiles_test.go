package parsing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadPotcar(t *testing.T) {
	content := ` PAW_PBE Fe_pv 06Sep2000
 TITEL  = PAW_PBE Fe_pv 06Sep2000
 ...potential data...
 TITEL  = PAW_PBE O 08Apr2002
`
	path := writeFile(t, t.TempDir(), "POTCAR", content)

	specs, err := ReadPotcar(path)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "Fe_pv", specs[0].Symbol)
	assert.Equal(t, "Fe", specs[0].Element)
	assert.Equal(t, "O", specs[1].Element)
}

func TestReadKpoints(t *testing.T) {
	content := `Automatic mesh
0
Monkhorst-Pack
4 4 4
0 0 0
`
	path := writeFile(t, t.TempDir(), "KPOINTS", content)

	record, err := ReadKpoints(path)
	require.NoError(t, err)
	assert.Equal(t, "Automatic mesh", record["comment"])
	assert.Equal(t, "Monkhorst-Pack", record["generation"])
	assert.Equal(t, []int{4, 4, 4}, record["grid"])
}

func TestReadOutcarStats(t *testing.T) {
	content := ` running on   16 total cores
 ... lots of output ...
  General timing and accounting informations for this job:
  ========================================================
                  Total CPU time used (sec):     1295.33
                            User time (sec):     1258.90
                          System time (sec):       36.43
                         Elapsed time (sec):     1305.40
                   Maximum memory used (kb):      330992.
`
	path := writeFile(t, t.TempDir(), "OUTCAR", content)

	stats, err := ReadOutcarStats(path)
	require.NoError(t, err)
	assert.InDelta(t, 1295.33, stats["Total CPU time used (sec)"], 1e-9)
	assert.InDelta(t, 36.43, stats["System time (sec)"], 1e-9)
	assert.InDelta(t, 16, stats["cores"], 1e-9)
	assert.InDelta(t, 330992, stats["Maximum memory used (kb)"], 1e-9)
}

func TestReadTransformations(t *testing.T) {
	content := `{"history": [{"source": "12345-ICSD"}], "tags": ["prod"], "author": "jd"}`
	path := writeFile(t, t.TempDir(), "transformations.json", content)

	tr, err := ReadTransformations(path)
	require.NoError(t, err)
	assert.Equal(t, []any{"prod"}, tr["tags"])
	assert.Equal(t, "jd", tr["author"])
}

func TestReadCustodian(t *testing.T) {
	content := `[{"job": {"@class": "VaspJob"}, "corrections": []}]`
	path := writeFile(t, t.TempDir(), "custodian.json", content)

	c, err := ReadCustodian(path)
	require.NoError(t, err)
	assert.IsType(t, []any{}, c)
}
