package commit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommit_Parse(t *testing.T) {
	assert := assert.New(t)

	type test struct {
		message  string
		typ      string
		scope    string
		subject  string
		breaking bool
	}

	tests := []test{
		{message: "feat: add login page", typ: "feat", subject: "add login page"},
		{message: "fix(api): handle nil body", typ: "fix", scope: "api", subject: "handle nil body"},
		{message: "refactor(core)!: drop v1 endpoints", typ: "refactor", scope: "core", subject: "drop v1 endpoints", breaking: true},
		{message: "Feat: uppercase type", typ: "feat", subject: "uppercase type"},
		{message: "just a message", typ: "", subject: "just a message"},
		{message: "fix:missing space", typ: "", subject: "fix:missing space"},
		{message: "feat: new api\n\nBREAKING CHANGE: the old api is gone", typ: "feat", subject: "new api", breaking: true},
		{message: "feat: new api\n\nBREAKING-CHANGE: the old api is gone", typ: "feat", subject: "new api", breaking: true},
	}

	for _, tc := range tests {
		got := Parse(Commit{Message: tc.message})

		assert.Equal(tc.typ, got.Type, tc.message)
		assert.Equal(tc.scope, got.Scope, tc.message)
		assert.Equal(tc.subject, got.Subject, tc.message)
		assert.Equal(tc.breaking, got.Breaking, tc.message)
		assert.Equal(tc.typ != "", got.IsConventional(), tc.message)
	}
}

func TestCommit_ParseNotesAndBody(t *testing.T) {
	assert := assert.New(t)

	message := "feat(auth): rotate tokens\n\nTokens are now rotated every hour.\nCloses #42\n\nBREAKING CHANGE: sessions older than one hour\nare invalidated"

	got := Parse(Commit{Message: message, Hash: "0123456789abcdef"})

	assert.Equal("Tokens are now rotated every hour.\nCloses #42", got.Body)
	assert.Equal([]Note{{Title: "BREAKING CHANGE", Text: "sessions older than one hour\nare invalidated"}}, got.Notes)
	assert.Equal([]Reference{{Issue: "42"}}, got.References)
	assert.Equal("0123456", got.ShortHash())
}

func TestCommit_ParseBangNote(t *testing.T) {
	got := Parse(Commit{Message: "feat!: remove deprecated flags"})

	assert.True(t, got.Breaking)
	assert.Equal(t, []Note{{Title: "BREAKING CHANGE", Text: "remove deprecated flags"}}, got.Notes)
}

func TestCommit_ParseRevert(t *testing.T) {
	got := Parse(Commit{Message: "Revert \"feat: add login page\"\n\nThis reverts commit abc."})

	assert.Equal(t, "revert", got.Type)
	assert.True(t, got.Revert)
	assert.Equal(t, "feat: add login page", got.Subject)
}

func TestCommit_Skipped(t *testing.T) {
	assert.True(t, Skipped(Commit{Message: "fix: typo [skip release]"}))
	assert.True(t, Skipped(Commit{Message: "fix: typo\n\n[release skip]"}))
	assert.False(t, Skipped(Commit{Message: "fix: typo [skip ci]"}))
}
