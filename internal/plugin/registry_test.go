package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayal13/nebo-release/internal/semver"
)

type fakePlugin struct {
	name string
	opts fakeOptions
}

type fakeOptions struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func (p *fakePlugin) Name() string { return p.name }

func (p *fakePlugin) AnalyzeCommits(context.Context, *Context) (semver.BumpType, error) {
	return semver.BumpMinor, nil
}

func (p *fakePlugin) Publish(context.Context, *Context) (*Release, error) {
	return nil, nil
}

func newFake(options map[string]any) (Plugin, error) {
	p := &fakePlugin{name: "@scope/fake"}
	if err := DecodeOptions(options, &p.opts); err != nil {
		return nil, err
	}
	return p, nil
}

func TestRegistry_New(t *testing.T) {
	r := NewRegistry()
	r.Register("@scope/fake", newFake)

	p, err := r.New(Directive{Name: "@scope/fake", Options: map[string]any{"enabled": "true", "path": "a.txt"}})
	require.NoError(t, err)

	fake, ok := p.(*fakePlugin)
	require.True(t, ok)
	assert.Equal(t, fakeOptions{Enabled: true, Path: "a.txt"}, fake.opts)

	p, err = r.New(Directive{Name: "fake"})
	require.NoError(t, err)
	assert.Equal(t, "@scope/fake", p.Name())

	_, err = r.New(Directive{Name: "@scope/unknown"})
	assert.ErrorIs(t, err, ErrUnknownPlugin)
}

func TestRegistry_NewConstructorError(t *testing.T) {
	r := NewRegistry()
	r.Register("broken", func(map[string]any) (Plugin, error) {
		return nil, errors.New("boom")
	})

	_, err := r.New(Directive{Name: "broken"})
	assert.ErrorContains(t, err, `configuring plugin "broken": boom`)
}

func TestRegistry_RegisterTwice(t *testing.T) {
	r := NewRegistry()
	r.Register("@scope/fake", newFake)

	assert.Panics(t, func() { r.Register("@scope/fake", newFake) })
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	r.Register("@scope/zeta", newFake)
	r.Register("@scope/alpha", newFake)

	assert.Equal(t, []string{"@scope/alpha", "@scope/zeta"}, r.Names())
}

func TestRegistry_ShortName(t *testing.T) {
	assert.Equal(t, "git", ShortName("@semantic-release/git"))
	assert.Equal(t, "git", ShortName("git"))
}

func TestRegistry_UnusedOptions(t *testing.T) {
	unused, err := UnusedOptions(map[string]any{"path": "x", "typo": 1, "another": true}, &fakeOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"another", "typo"}, unused)

	err = DecodeOptions(map[string]any{"enabled": map[string]any{"a": 1}}, &fakeOptions{})
	assert.Error(t, err)
}

func TestPlugin_Implements(t *testing.T) {
	p, err := newFake(nil)
	require.NoError(t, err)

	assert.Equal(t, []Step{StepAnalyzeCommits, StepPublish}, Implements(p))
}

func TestPlugin_Getenv(t *testing.T) {
	rc := &Context{}
	assert.Empty(t, rc.Getenv("HOME"))

	rc.Env = map[string]string{"GH_TOKEN": "secret"}
	assert.Equal(t, "secret", rc.Getenv("GH_TOKEN"))

	t.Setenv("NEBO_RELEASE_TEST", "1")
	assert.Equal(t, "1", EnvFromOS()["NEBO_RELEASE_TEST"])
}
