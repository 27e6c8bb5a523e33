package parsing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadIncar(t *testing.T) {
	content := `SYSTEM = FePO4 relax
ENCUT = 520
LDAU = T
LDAUU = 5.3 0.0 0.0
ISPIN = 2 ; NSW = 99
# a comment
GGA = PE
`
	path := writeFile(t, t.TempDir(), "INCAR", content)

	params, err := ReadIncar(path)
	require.NoError(t, err)

	assert.Equal(t, 520.0, params["ENCUT"])
	assert.Equal(t, true, params["LDAU"])
	assert.Equal(t, []float64{5.3, 0, 0}, params["LDAUU"])
	assert.Equal(t, 2.0, params["ISPIN"])
	assert.Equal(t, 99.0, params["NSW"])
	assert.Equal(t, "PE", params["GGA"])
	assert.Equal(t, "FePO4 relax", params["SYSTEM"])
}

func TestIncarHelpers(t *testing.T) {
	params := map[string]any{
		"LDAU":  true,
		"LDAUU": []float64{5.3, 0},
		"AMIX":  0.2,
	}
	assert.True(t, IncarBool(params, "LDAU"))
	assert.False(t, IncarBool(params, "LHFCALC"))
	assert.Equal(t, []float64{5.3, 0}, IncarFloats(params, "LDAUU"))
	assert.Equal(t, []float64{0.2}, IncarFloats(params, "AMIX"))
	assert.Nil(t, IncarFloats(params, "LDAUJ"))
}

func TestReadIncarMissingFile(t *testing.T) {
	_, err := ReadIncar(filepath.Join(t.TempDir(), "INCAR"))
	require.Error(t, err)
	var perr *ParseError
	assert.ErrorAs(t, err, &perr)
}
