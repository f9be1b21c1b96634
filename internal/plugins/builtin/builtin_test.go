package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayal13/nebo-release/internal/config"
	"github.com/jayal13/nebo-release/internal/plugin"
)

func TestBuiltin_Registry(t *testing.T) {
	r := Registry()

	assert.Equal(t, []string{
		"@semantic-release/changelog",
		"@semantic-release/commit-analyzer",
		"@semantic-release/git",
		"@semantic-release/github",
		"@semantic-release/npm",
		"@semantic-release/release-notes-generator",
	}, r.Names())

	for _, name := range r.Names() {
		_, ok := Options(name)
		assert.True(t, ok, name)
	}
}

func TestBuiltin_CanonicalPlugins(t *testing.T) {
	raw, err := config.ReadFile("../../../testdata/.releaserc.yaml")
	require.NoError(t, err)

	directives, err := plugin.ParseDirectives(raw["plugins"])
	require.NoError(t, err)
	require.Len(t, directives, 6)

	r := Registry()

	for _, d := range directives {
		p, err := r.New(d)
		require.NoError(t, err, d.Name)
		assert.Equal(t, d.Name, p.Name())
		assert.NotEmpty(t, plugin.Implements(p), d.Name)

		target, ok := Options(d.Name)
		require.True(t, ok)

		unused, err := plugin.UnusedOptions(d.Options, target)
		require.NoError(t, err)
		assert.Empty(t, unused, d.Name)
	}
}

func TestBuiltin_DefaultPlugins(t *testing.T) {
	r := Registry()

	_, ok := Options("@semantic-release/exec")
	assert.False(t, ok)

	for _, d := range config.DefaultPlugins {
		_, err := r.New(d)
		assert.NoError(t, err, d.Name)
	}
}
