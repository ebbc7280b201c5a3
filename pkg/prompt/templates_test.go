package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildWithTemplate(t *testing.T) {
	built, negative, err := Build(Defaults, "a knight rides out at dawn", "cinematic-epic")
	require.NoError(t, err)
	assert.Contains(t, built, "a knight rides out at dawn")
	assert.NotEmpty(t, negative)
}

func TestBuildNoTemplate(t *testing.T) {
	built, _, err := Build(Defaults, "a quiet village", "no-template")
	require.NoError(t, err)
	assert.Contains(t, built, "a quiet village")
	assert.Contains(t, built, "best quality")
}

func TestBuildUnknownTemplate(t *testing.T) {
	_, _, err := Build(Defaults, "scene", "does-not-exist")
	assert.Error(t, err)
}

func TestFind(t *testing.T) {
	tpl, ok := Find(Defaults, "painterly-storybook")
	require.True(t, ok)
	assert.Equal(t, "painterly-storybook", tpl.ID)

	_, ok = Find(Defaults, "nope")
	assert.False(t, ok)
}
