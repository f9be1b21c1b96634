package branch

import (
	"testing"

	assertion "github.com/stretchr/testify/assert"
)

func TestBranch_Unmarshall(t *testing.T) {
	assert := assertion.New(t)

	have := []any{
		"master",
		map[string]any{"name": "next"},
		map[string]any{"name": "beta", "prerelease": true},
		map[string]any{"name": "preview", "prerelease": "rc", "channel": "rc"},
	}
	want := []Item{
		{Name: "master"},
		{Name: "next"},
		{Name: "beta", Prerelease: true},
		{Name: "preview", Prerelease: true, PrereleaseID: "rc", Channel: "rc"},
	}

	branches, err := Unmarshall(have)
	if err != nil {
		t.Fatalf("unmarshalling branches: %s", err)
	}

	assert.Equal(want, branches, "should return all branches in order")
	assert.Equal("rc", branches[3].Identifier())
	assert.Equal("beta", branches[2].Identifier())
}

func TestBranch_UnmarshallSingleString(t *testing.T) {
	branches, err := Unmarshall("master")
	assertion.NoError(t, err)
	assertion.Equal(t, []Item{{Name: "master"}}, branches)
}

func TestBranch_UnmarshallErrors(t *testing.T) {
	assert := assertion.New(t)

	type test struct {
		have any
		want error
	}

	tests := []test{
		{have: nil, want: ErrNoBranch},
		{have: []any{}, want: ErrNoBranch},
		{have: []any{map[string]any{"prerelease": true}}, want: ErrNoName},
		{have: []any{""}, want: ErrNoName},
		{have: []any{42}, want: ErrWrongType},
		{have: 42, want: ErrWrongType},
		{have: []any{map[string]any{"name": "alpha", "prerelease": 3}}, want: ErrWrongType},
	}

	for _, tc := range tests {
		_, err := Unmarshall(tc.have)
		assert.ErrorIs(err, tc.want)
	}
}

func TestBranch_Validate(t *testing.T) {
	assert := assertion.New(t)

	assert.NoError(Validate(Default))
	assert.ErrorIs(Validate(nil), ErrNoBranch)
	assert.ErrorIs(Validate([]Item{{Name: "main"}, {Name: "main"}}), ErrDuplicateBranch)
	assert.ErrorIs(Validate([]Item{{Name: "beta", Prerelease: true}}), ErrNoStableBranch)
}

func TestBranch_ValidatePrereleaseIdentifier(t *testing.T) {
	assert := assertion.New(t)

	type test struct {
		have Item
		want error
	}

	tests := []test{
		{have: Item{Name: "beta", Prerelease: true}, want: nil},
		{have: Item{Name: "release-candidate", Prerelease: true}, want: nil},
		{have: Item{Name: "preview", Prerelease: true, PrereleaseID: "rc"}, want: nil},
		{have: Item{Name: "feature/login"}, want: nil},
		{have: Item{Name: "feature/login", Prerelease: true}, want: ErrInvalidID},
		{have: Item{Name: "beta", Prerelease: true, PrereleaseID: "rc.1"}, want: ErrInvalidID},
		{have: Item{Name: "beta", Prerelease: true, PrereleaseID: "r_c"}, want: ErrInvalidID},
	}

	for _, tc := range tests {
		err := Validate([]Item{{Name: "master"}, tc.have})
		if tc.want == nil {
			assert.NoError(err, tc.have.Name)
			continue
		}
		assert.ErrorIs(err, tc.want, tc.have.Name)
	}
}

func TestBranch_Find(t *testing.T) {
	item, ok := Find(Default, "beta")
	assertion.True(t, ok)
	assertion.True(t, item.Prerelease)

	_, ok = Find(Default, "feature/foo")
	assertion.False(t, ok)

	assertion.Equal(t, []string{"master", "main", "next", "beta", "alpha"}, Names(Default))
}
