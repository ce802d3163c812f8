package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apex-build/internal/judge"
)

func TestRegistry_SetAndImageFor(t *testing.T) {
	reg, err := New(Config{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)

	require.NoError(t, reg.Set(judge.LanguageC, "judge-harness-c:latest"))

	img, err := reg.ImageFor(judge.LanguageC)
	require.NoError(t, err)
	assert.Equal(t, "judge-harness-c:latest", img)
}

func TestRegistry_UnknownLanguage(t *testing.T) {
	reg, err := New(Config{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)

	_, err = reg.ImageFor(judge.Language("rust"))
	assert.Error(t, err)
}

func TestRegistry_List(t *testing.T) {
	reg, err := New(Config{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)

	for lang, img := range DefaultImages() {
		require.NoError(t, reg.Set(lang, img))
	}

	rows, err := reg.List()
	require.NoError(t, err)
	assert.Len(t, rows, len(DefaultImages()))
}
