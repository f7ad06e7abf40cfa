package board

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotFileName(t *testing.T) {
	assert.Equal(t, "retro.analyses.json", SnapshotFileName("retro"))
}

func TestSaveLoadSnapshot(t *testing.T) {
	res, err := testPipeline(t).AnalyzeReader("retro", strings.NewReader(sampleExport))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "cache", SnapshotFileName("retro"))
	require.NoError(t, SaveSnapshot(path, res))

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, res.Board, loaded.Board)
	assert.Equal(t, res.Items, loaded.Items)
	assert.Equal(t, res.Edges, loaded.Edges)
	assert.Equal(t, res.Stats, loaded.Stats)
	assert.True(t, res.CreatedAt.Equal(loaded.CreatedAt))
	require.Len(t, loaded.Analyses, len(res.Analyses))
	for i := range res.Analyses {
		assert.Equal(t, res.Analyses[i].GroupID(), loaded.Analyses[i].GroupID())
		assert.Equal(t, res.Analyses[i].Score, loaded.Analyses[i].Score)
	}

	// the graph is rebuilt from items, not stored
	assert.Nil(t, loaded.Graph)
	assert.Nil(t, loaded.Groups)
}

func TestLoadSnapshot_Missing(t *testing.T) {
	res, err := LoadSnapshot(filepath.Join(t.TempDir(), "nope.analyses.json"))
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestLoadSnapshot_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.analyses.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := LoadSnapshot(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing snapshot")
}
