package relationstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadModelDocV3(t *testing.T) {
	doc, err := LoadModelDoc("3.0")
	require.NoError(t, err)
	assert.Equal(t, "3.0", doc.Version)
	assert.NotEmpty(t, doc.Kinds)
	require.Len(t, doc.SetupTuples, 1)
	assert.Equal(t, "authmodelid:3.0", doc.SetupTuples[0].Object)
}

func TestLoadModelDocV4NamesMigrationFunction(t *testing.T) {
	doc, err := LoadModelDoc("4.0")
	require.NoError(t, err)
	assert.Equal(t, "v3_to_v4_warehouse_pushdown", doc.Migration.Function)

	var names []string
	for _, k := range doc.Kinds {
		names = append(names, k.Name)
	}
	assert.Contains(t, names, "lakekeeper_table")
	assert.Contains(t, names, "lakekeeper_view")
	assert.NotContains(t, names, "table")
}

func TestModelDocSetupWrites(t *testing.T) {
	doc, err := LoadModelDoc("3.0")
	require.NoError(t, err)
	writes := doc.SetupWrites()
	require.Len(t, writes, 1)
	assert.Equal(t, "modelversion:3.0", writes[0].User)
	assert.Equal(t, "exists", writes[0].Relation)
}
