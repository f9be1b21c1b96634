package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayal13/nebo-release/internal/appcontext"
	"github.com/jayal13/nebo-release/internal/ci"
	"github.com/jayal13/nebo-release/internal/gittest"
	"github.com/jayal13/nebo-release/internal/tag"
)

const testPlugins = "@semantic-release/commit-analyzer,@semantic-release/release-notes-generator,@semantic-release/changelog"

func newTestRepository(t *testing.T, commits ...string) *gittest.TestRepository {
	t.Helper()

	repository, err := gittest.NewRepository()
	require.NoError(t, err, "creating sample repository")

	t.Cleanup(func() {
		_ = repository.Remove()
	})

	for _, c := range commits {
		_, err = repository.AddCommit(c)
		require.NoError(t, err, "adding commit")
	}

	return repository
}

func executeRelease(t *testing.T, ctx *appcontext.AppContext, args ...string) (ci.JSONOutput, error) {
	t.Helper()

	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)

	rootCmd := NewRootCommand(ctx)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(append([]string{"release", "--json", "--branches", "master", "--plugins", testPlugins}, args...))

	err := rootCmd.Execute()

	output := ci.JSONOutput{}
	if err == nil {
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &output), "unmarshalling output %q", stdout.String())
	}

	return output, err
}

func TestReleaseCmd_NewRelease(t *testing.T) {
	assert := assert.New(t)

	repository := newTestRepository(t, "fix", "feat", "chore")

	output, err := executeRelease(t, newTestContext(), "--no-ci", repository.Path)
	require.NoError(t, err)

	require.Len(t, output.Releases, 1)
	assert.Equal(ci.Summary{TotalCount: 1, ReleaseCount: 1, HasReleases: true}, output.Summary)

	out := output.Releases[0]
	assert.True(out.NewRelease)
	assert.False(out.DryRun)
	assert.Equal("1.0.0", out.Version)
	assert.Equal("v1.0.0", out.Tag)
	assert.Equal("master", out.Branch)
	assert.Equal("new release published", out.Message)

	reopened, err := git.PlainOpen(repository.Path)
	require.NoError(t, err)

	exists, err := tag.Exists(reopened, "v1.0.0")
	require.NoError(t, err)
	assert.True(exists, "tag not found")

	changelog, err := os.ReadFile(filepath.Join(repository.Path, "CHANGELOG.md"))
	require.NoError(t, err)
	assert.Contains(string(changelog), "### Features")
}

func TestReleaseCmd_SecondRelease(t *testing.T) {
	assert := assert.New(t)

	repository := newTestRepository(t, "feat")

	_, err := executeRelease(t, newTestContext(), "--no-ci", repository.Path)
	require.NoError(t, err)

	_, err = repository.AddCommit("fix")
	require.NoError(t, err)

	output, err := executeRelease(t, newTestContext(), "--no-ci", "--tag-format", "v${version}", repository.Path)
	require.NoError(t, err)

	out := output.Releases[0]
	assert.Equal("1.0.1", out.Version)
	assert.Equal("1.0.0", out.LastVersion)
	assert.Equal("patch", out.Type)
}

func TestReleaseCmd_NoRelevantChanges(t *testing.T) {
	assert := assert.New(t)

	repository := newTestRepository(t, "chore", "docs")

	output, err := executeRelease(t, newTestContext(), "--no-ci", repository.Path)
	require.NoError(t, err)

	out := output.Releases[0]
	assert.False(out.NewRelease)
	assert.Equal("no new release", out.Message)
	assert.Equal(ci.Summary{TotalCount: 1}, output.Summary)
}

func TestReleaseCmd_DryRunOutsideCI(t *testing.T) {
	assert := assert.New(t)

	repository := newTestRepository(t, "feat")

	output, err := executeRelease(t, newTestContext(), repository.Path)
	require.NoError(t, err)

	out := output.Releases[0]
	assert.False(out.NewRelease)
	assert.True(out.DryRun)
	assert.Equal("1.0.0", out.Version)
	assert.Equal("dry-run enabled, next release found", out.Message)

	reopened, err := git.PlainOpen(repository.Path)
	require.NoError(t, err)

	exists, err := tag.Exists(reopened, "v1.0.0")
	require.NoError(t, err)
	assert.False(exists, "dry-run should not create tags")
}

func TestReleaseCmd_GitHubOutput(t *testing.T) {
	assert := assert.New(t)

	repository := newTestRepository(t, "feat")
	outputPath := filepath.Join(t.TempDir(), "github_output")
	require.NoError(t, os.WriteFile(outputPath, nil, 0o644))

	ctx := newTestContext()
	ctx.Env = map[string]string{
		"GITHUB_ACTIONS":    "true",
		"GITHUB_EVENT_NAME": "push",
		"GITHUB_REF_NAME":   "master",
		"GITHUB_OUTPUT":     outputPath,
	}

	_, err := executeRelease(t, ctx, repository.Path)
	require.NoError(t, err)

	content, err := os.ReadFile(outputPath)
	require.NoError(t, err)

	assert.Contains(string(content), "NEW_RELEASE=true")
	assert.Contains(string(content), "VERSION=1.0.0")
	assert.Contains(string(content), "TAG=v1.0.0")
}

func TestReleaseCmd_ConfigurationFile(t *testing.T) {
	assert := assert.New(t)

	repository := newTestRepository(t, "feat")

	_, err := repository.CommitFile(".releaserc.yaml", "branches: [master]\ntagFormat: release-${version}\nplugins:\n  - \"@semantic-release/commit-analyzer\"\n", "chore: add release configuration")
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	rootCmd := NewRootCommand(newTestContext())
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"release", "--json", "--no-ci", repository.Path})

	require.NoError(t, rootCmd.Execute())

	output := ci.JSONOutput{}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &output))
	assert.Equal("release-1.0.0", output.Releases[0].Tag)
}

func TestReleaseCmd_InvalidConfiguration(t *testing.T) {
	repository := newTestRepository(t, "feat")

	_, err := executeRelease(t, newTestContext(), "--no-ci", "--tag-format", "no-placeholder", repository.Path)
	assert.ErrorIs(t, err, tag.ErrInvalidFormat)
}

func TestReleaseCmd_NotARepository(t *testing.T) {
	_, err := executeRelease(t, newTestContext(), "--no-ci", t.TempDir())
	assert.ErrorIs(t, err, git.ErrRepositoryNotExists)
}

func TestIsRemoteURL(t *testing.T) {
	assert.True(t, isRemoteURL("https://github.com/jayal13/NEBo-task.git"))
	assert.True(t, isRemoteURL("git@github.com:jayal13/NEBo-task.git"))
	assert.False(t, isRemoteURL("."))
	assert.False(t, isRemoteURL("/tmp/repository"))
}
