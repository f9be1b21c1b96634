package semver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSemver_Compare(t *testing.T) {
	assert := assert.New(t)

	type test struct {
		v1, v2 string
		want   int
	}

	matrix := []test{
		{"1.0.2", "1.0.1", 1},
		{"1.0.2", "1.0.3", -1},
		{"1.0.2", "1.1.0", -1},
		{"0.0.1", "1.1.0", -1},
		{"2.0.0", "1.99.99", 1},
		{"1.0.0", "1.0.0", 0},
		{"1.0.0+abc", "1.0.0+def", 0},
		{"1.0.0", "1.0.0-rc.1", 1},
		{"1.0.0-alpha", "1.0.0-alpha.1", -1},
		{"1.0.0-alpha.1", "1.0.0-alpha.beta", -1},
		{"1.0.0-beta.2", "1.0.0-beta.11", -1},
		{"1.0.0-rc.1", "1.0.0-beta.11", 1},
	}

	for _, tc := range matrix {
		v1, err := NewFromString(tc.v1)
		assert.NoError(err)
		v2, err := NewFromString(tc.v2)
		assert.NoError(err)

		assert.Equal(tc.want, Compare(v1, v2), "comparing %s and %s", tc.v1, tc.v2)
	}
}

func TestSemver_NewFromString(t *testing.T) {
	assert := assert.New(t)

	v, err := NewFromString("1.2.3-beta.4+build.5")
	assert.NoError(err)
	assert.Equal(&Version{Major: 1, Minor: 2, Patch: 3, Prerelease: "beta.4", Metadata: "build.5"}, v)
	assert.Equal("beta", v.PrereleaseIdentifier())
	assert.Equal(4, v.PrereleaseNumber())

	for _, invalid := range []string{"", "1.2", "v1.2.3", "01.2.3", "1.2.3-", "1.2.3 "} {
		_, err = NewFromString(invalid)
		assert.ErrorIs(err, ErrInvalidVersion, "%q should be rejected", invalid)
	}
}

func TestSemver_Bump(t *testing.T) {
	assert := assert.New(t)

	type test struct {
		have string
		bump BumpType
		want string
	}

	matrix := []test{
		{"1.2.3", BumpPatch, "1.2.4"},
		{"1.2.3", BumpMinor, "1.3.0"},
		{"1.2.3", BumpMajor, "2.0.0"},
		{"1.2.3", BumpNone, "1.2.3"},
		{"1.2.3-rc.1", BumpPatch, "1.2.3"},
		{"1.3.0-rc.1", BumpMinor, "1.3.0"},
		{"1.2.3-rc.1", BumpMinor, "1.3.0"},
		{"2.0.0-rc.1", BumpMajor, "2.0.0"},
	}

	for _, tc := range matrix {
		v, err := NewFromString(tc.have)
		assert.NoError(err)

		v.Bump(tc.bump)
		assert.Equal(tc.want, v.String(), "bumping %s with %s", tc.have, tc.bump)
	}
}

func TestSemver_SetPrerelease(t *testing.T) {
	v := &Version{Major: 1}
	v.SetPrerelease("beta", 2)

	assert.Equal(t, "1.0.0-beta.2", v.String())
	assert.True(t, v.HasPrerelease())
	assert.Equal(t, "1.0.0", v.Core().String())
}

func TestBumpType_Parse(t *testing.T) {
	assert := assert.New(t)

	for _, b := range []BumpType{BumpNone, BumpPatch, BumpMinor, BumpMajor} {
		parsed, err := ParseBump(b.String())
		assert.NoError(err)
		assert.Equal(b, parsed)
	}

	_, err := ParseBump("huge")
	assert.Error(err)
	assert.Greater(BumpMajor, BumpMinor)
}
