package utils

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundtrip(t *testing.T) {
	type entry struct {
		Name string `json:"name"`
		Body string `json:"body"`
	}

	path := filepath.Join(t.TempDir(), "nested", "entries.json")
	saved := []entry{
		{Name: "cinematic", Body: "dramatic lighting"},
		{Name: "storybook", Body: "soft watercolor"},
	}

	require.NoError(t, Save(path, saved))
	assert.True(t, Exists(path))

	loaded, err := Load[[]entry](path)
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load[[]string](filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
