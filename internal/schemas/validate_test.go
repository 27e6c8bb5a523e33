package schemas

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calderon/vaspdb/internal/types"
)

func validDoc() *types.RunDocument {
	return &types.RunDocument{
		SchemaVersion: types.SchemaVersion,
		DirName:       "node1:/runs/block_1/launcher_42",
		State:         types.StateSuccessful,
		Type:          types.KindVASP,
		Calculations:  []*types.StageResult{{}},
		LastUpdated:   time.Now(),
	}
}

func TestValidateDocument(t *testing.T) {
	assert.NoError(t, ValidateDocument(validDoc()))
}

func TestValidateDocumentKilledWithoutCalculations(t *testing.T) {
	doc := validDoc()
	doc.State = types.StateKilled
	doc.Calculations = nil
	assert.NoError(t, ValidateDocument(doc))
}

func TestValidateDocumentRejectsBadState(t *testing.T) {
	doc := map[string]any{
		"schema_version": types.SchemaVersion,
		"dir_name":       "node1:/runs/a",
		"state":          "exploded",
		"type":           "VASP",
		"last_updated":   time.Now(),
	}
	err := ValidateDocument(doc)
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.NotEmpty(t, ve.Errors)
}

func TestValidateDocumentRequiresHostQualifiedDir(t *testing.T) {
	doc := validDoc()
	doc.DirName = "/runs/unqualified"
	err := ValidateDocument(doc)
	require.Error(t, err)
}

func TestValidateDocumentRequiresCalculationsWhenNotKilled(t *testing.T) {
	doc := validDoc()
	doc.Calculations = nil
	err := ValidateDocument(doc)
	require.Error(t, err)
}
