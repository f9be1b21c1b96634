package release

import (
	"context"
	"fmt"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayal13/nebo-release/internal/branch"
	"github.com/jayal13/nebo-release/internal/config"
	"github.com/jayal13/nebo-release/internal/gittest"
	"github.com/jayal13/nebo-release/internal/plugin"
	"github.com/jayal13/nebo-release/internal/plugins/changelog"
	"github.com/jayal13/nebo-release/internal/plugins/commitanalyzer"
	gitplugin "github.com/jayal13/nebo-release/internal/plugins/git"
	"github.com/jayal13/nebo-release/internal/plugins/releasenotes"
	"github.com/jayal13/nebo-release/internal/semver"
	"github.com/jayal13/nebo-release/internal/tag"
)

const recorderName = "@test/recorder"

// recorder takes part in every step, records the calls it receives and fails the step named by its "fail" option.
type recorder struct {
	name  string
	fail  string
	notes string
	calls *[]string
	seen  *plugin.Context
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) record(step plugin.Step, rc *plugin.Context) error {
	*r.calls = append(*r.calls, fmt.Sprintf("%s:%s", r.name, step))
	r.seen = rc
	if r.fail == string(step) {
		return fmt.Errorf("%s failed", step)
	}
	return nil
}

func (r *recorder) VerifyConditions(_ context.Context, rc *plugin.Context) error {
	return r.record(plugin.StepVerifyConditions, rc)
}

func (r *recorder) VerifyRelease(_ context.Context, rc *plugin.Context) error {
	return r.record(plugin.StepVerifyRelease, rc)
}

func (r *recorder) GenerateNotes(_ context.Context, rc *plugin.Context) (string, error) {
	return r.notes, r.record(plugin.StepGenerateNotes, rc)
}

func (r *recorder) Prepare(_ context.Context, rc *plugin.Context) error {
	return r.record(plugin.StepPrepare, rc)
}

func (r *recorder) Publish(_ context.Context, rc *plugin.Context) (*plugin.Release, error) {
	if err := r.record(plugin.StepPublish, rc); err != nil {
		return nil, err
	}
	return &plugin.Release{Name: r.name + " release", URL: "https://example.com/" + rc.NextRelease.GitTag}, nil
}

func (r *recorder) Success(_ context.Context, rc *plugin.Context) error {
	return r.record(plugin.StepSuccess, rc)
}

func (r *recorder) Fail(_ context.Context, rc *plugin.Context) error {
	return r.record(plugin.StepFail, rc)
}

type fakeRemote struct {
	tags     []string
	branches []string
}

func (f *fakeRemote) PushTag(name string) error {
	f.tags = append(f.tags, name)
	return nil
}

func (f *fakeRemote) PushBranch(name string) error {
	f.branches = append(f.branches, name)
	return nil
}

type fixture struct {
	repository *gittest.TestRepository
	calls      *[]string
	recorders  map[string]*recorder
	opts       Options
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repository, err := gittest.NewRepository()
	require.NoError(t, err)
	t.Cleanup(func() { _ = repository.Remove() })

	f := &fixture{
		repository: repository,
		calls:      new([]string),
		recorders:  make(map[string]*recorder),
	}

	registry := plugin.NewRegistry()
	registry.Register(commitanalyzer.Name, commitanalyzer.New)
	registry.Register(releasenotes.Name, releasenotes.New)
	registry.Register(changelog.Name, changelog.New)
	registry.Register(gitplugin.Name, gitplugin.New)
	registry.Register(recorderName, func(options map[string]any) (plugin.Plugin, error) {
		r := &recorder{calls: f.calls, name: recorderName}
		if id, ok := options["id"].(string); ok {
			r.name = id
		}
		r.fail, _ = options["fail"].(string)
		r.notes, _ = options["notes"].(string)
		f.recorders[r.name] = r
		return r, nil
	})

	f.opts = Options{
		Logger:     zerolog.Nop(),
		Registry:   registry,
		Repository: repository.Repository,
		Dir:        repository.Path,
		RemoteName: "origin",
		Env:        map[string]string{},
		GitName:    gittest.AuthorName,
		GitEmail:   gittest.AuthorEmail,
		Config: config.Config{
			Branches: []branch.Item{
				{Name: "master"},
				{Name: "beta", Prerelease: true},
			},
			RepositoryURL: "https://github.com/jayal13/NEBo-task",
			TagFormat:     tag.DefaultFormat,
			Plugins: []plugin.Directive{
				{Name: commitanalyzer.Name, Options: map[string]any{}},
				{Name: recorderName, Options: map[string]any{"notes": "extra notes"}},
			},
		},
	}

	return f
}

func (f *fixture) tagExists(t *testing.T, name string) bool {
	t.Helper()

	exists, err := tag.Exists(f.repository.Repository, name)
	require.NoError(t, err)

	return exists
}

func TestRelease_FirstRelease(t *testing.T) {
	f := newFixture(t)
	origin := &fakeRemote{}
	f.opts.Remote = origin

	_, err := f.repository.AddCommit("feat")
	require.NoError(t, err)

	result, err := Run(context.Background(), f.opts)
	require.NoError(t, err)

	assert.True(t, result.NewRelease)
	assert.False(t, result.DryRun)
	assert.Nil(t, result.LastRelease)
	assert.Equal(t, "1.0.0", result.NextRelease.Version.String())
	assert.Equal(t, semver.BumpMinor, result.NextRelease.Type)
	assert.Equal(t, "v1.0.0", result.NextRelease.GitTag)
	assert.Equal(t, "extra notes", result.NextRelease.Notes)

	require.Len(t, result.Releases, 1)
	assert.Equal(t, recorderName, result.Releases[0].PluginName)
	assert.Equal(t, "https://example.com/v1.0.0", result.Releases[0].URL)
	assert.Equal(t, "v1.0.0", result.Releases[0].GitTag)

	assert.True(t, f.tagExists(t, "v1.0.0"))
	assert.Equal(t, []string{"v1.0.0"}, origin.tags)

	assert.Equal(t, []string{
		recorderName + ":verifyConditions",
		recorderName + ":verifyRelease",
		recorderName + ":generateNotes",
		recorderName + ":prepare",
		recorderName + ":publish",
		recorderName + ":success",
	}, *f.calls)

	rc := f.recorders[recorderName].seen
	assert.Equal(t, map[string]any{"notes": "extra notes"}, rc.Options)
	assert.Len(t, rc.Commits, 2)
	assert.Same(t, origin, rc.Pusher)
}

func TestRelease_NextRelease(t *testing.T) {
	f := newFixture(t)
	f.opts.Config.Plugins = append(f.opts.Config.Plugins, plugin.Directive{Name: releasenotes.Name, Options: map[string]any{}})

	head, err := f.repository.AddCommit("feat")
	require.NoError(t, err)
	require.NoError(t, f.repository.AddTag("v1.2.3", head))

	_, err = f.repository.AddCommit("fix")
	require.NoError(t, err)
	_, err = f.repository.AddCommit("chore")
	require.NoError(t, err)

	result, err := Run(context.Background(), f.opts)
	require.NoError(t, err)

	assert.Equal(t, "1.2.3", result.LastRelease.Version.String())
	assert.Equal(t, "v1.2.3", result.LastRelease.GitTag)
	assert.Equal(t, "1.2.4", result.NextRelease.Version.String())
	assert.True(t, f.tagExists(t, "v1.2.4"))

	assert.Len(t, f.recorders[recorderName].seen.Commits, 2)

	// Notes of several generators are joined by a blank line.
	assert.Contains(t, result.NextRelease.Notes, "extra notes\n\n## [1.2.4](https://github.com/jayal13/NEBo-task/compare/v1.2.3...v1.2.4)")
	assert.Contains(t, result.NextRelease.Notes, "### Bug Fixes")
}

func TestRelease_NoRelevantChanges(t *testing.T) {
	f := newFixture(t)

	head, err := f.repository.AddCommit("feat")
	require.NoError(t, err)
	require.NoError(t, f.repository.AddTag("v1.0.0", head))

	_, err = f.repository.AddCommit("docs")
	require.NoError(t, err)

	result, err := Run(context.Background(), f.opts)
	require.NoError(t, err)

	assert.False(t, result.NewRelease)
	assert.Nil(t, result.NextRelease)
	assert.Equal(t, "v1.0.0", result.LastRelease.GitTag)
	assert.Equal(t, []string{recorderName + ":verifyConditions"}, *f.calls)
}

func TestRelease_DryRunOutsideCI(t *testing.T) {
	f := newFixture(t)
	f.opts.Config.CI = true

	_, err := f.repository.AddCommit("fix")
	require.NoError(t, err)

	result, err := Run(context.Background(), f.opts)
	require.NoError(t, err)

	assert.True(t, result.NewRelease)
	assert.True(t, result.DryRun)
	assert.Equal(t, "1.0.0", result.NextRelease.Version.String())
	assert.False(t, f.tagExists(t, "v1.0.0"))
	assert.NotContains(t, *f.calls, recorderName+":prepare")
	assert.NotContains(t, *f.calls, recorderName+":publish")
}

func TestRelease_BranchFromCI(t *testing.T) {
	f := newFixture(t)
	f.opts.Config.CI = true
	f.opts.Env = map[string]string{"CI": "true", "BRANCH_NAME": "develop"}

	result, err := Run(context.Background(), f.opts)
	require.NoError(t, err)

	assert.True(t, result.Skipped)
	assert.Equal(t, "develop", result.Branch)
	assert.Empty(t, *f.calls)
}

func TestRelease_PullRequest(t *testing.T) {
	f := newFixture(t)
	f.opts.Config.CI = true
	f.opts.Env = map[string]string{
		"GITHUB_ACTIONS":    "true",
		"GITHUB_EVENT_NAME": "pull_request",
		"GITHUB_BASE_REF":   "master",
	}

	result, err := Run(context.Background(), f.opts)
	require.NoError(t, err)

	assert.True(t, result.Skipped)
	assert.Equal(t, "pull request", result.Reason)
}

func TestRelease_Prerelease(t *testing.T) {
	f := newFixture(t)

	head, err := f.repository.AddCommit("feat")
	require.NoError(t, err)
	require.NoError(t, f.repository.AddTag("v1.0.0", head))

	require.NoError(t, f.repository.CheckoutBranch("beta"))

	_, err = f.repository.AddCommit("feat")
	require.NoError(t, err)

	result, err := Run(context.Background(), f.opts)
	require.NoError(t, err)
	assert.Equal(t, "1.1.0-beta.1", result.NextRelease.Version.String())

	_, err = f.repository.AddCommit("fix")
	require.NoError(t, err)

	result, err = Run(context.Background(), f.opts)
	require.NoError(t, err)
	assert.Equal(t, "1.1.0-beta.1", result.LastRelease.Version.String())
	assert.Equal(t, "1.1.0-beta.2", result.NextRelease.Version.String())
	assert.True(t, f.tagExists(t, "v1.1.0-beta.2"))
}

// divergeBranches adds a commit on beta, then goes back to master and adds another one there.
func (f *fixture) divergeBranches(t *testing.T) (betaHead plumbing.Hash, masterHead plumbing.Hash) {
	t.Helper()

	require.NoError(t, f.repository.CheckoutBranch("beta"))
	betaHead, err := f.repository.AddCommit("feat")
	require.NoError(t, err)

	require.NoError(t, f.repository.CheckoutBranch(gittest.DefaultBranch))
	masterHead, err = f.repository.AddCommit("fix")
	require.NoError(t, err)

	return betaHead, masterHead
}

func TestRelease_CommitsOnReleaseBranch(t *testing.T) {
	f := newFixture(t)
	origin := &fakeRemote{}
	f.opts.Remote = origin
	f.opts.Config.CI = true
	f.opts.Env = map[string]string{"CI": "true", "BRANCH_NAME": "beta"}
	f.opts.Config.Plugins = []plugin.Directive{
		{Name: commitanalyzer.Name, Options: map[string]any{}},
		{Name: releasenotes.Name, Options: map[string]any{}},
		{Name: changelog.Name, Options: map[string]any{}},
		{Name: gitplugin.Name, Options: map[string]any{}},
	}

	betaHead, masterHead := f.divergeBranches(t)

	result, err := Run(context.Background(), f.opts)
	require.NoError(t, err)
	require.True(t, result.NewRelease)
	assert.Equal(t, "1.0.0-beta.1", result.NextRelease.Version.String())

	master, err := f.repository.Reference(plumbing.NewBranchReferenceName(gittest.DefaultBranch), true)
	require.NoError(t, err)
	assert.Equal(t, masterHead, master.Hash())

	beta, err := f.repository.Reference(plumbing.NewBranchReferenceName("beta"), true)
	require.NoError(t, err)
	assert.NotEqual(t, betaHead, beta.Hash())
	assert.Equal(t, beta.Hash().String(), result.NextRelease.GitHead)

	releaseCommit, err := f.repository.CommitObject(beta.Hash())
	require.NoError(t, err)
	assert.Equal(t, []plumbing.Hash{betaHead}, releaseCommit.ParentHashes)

	tagged, err := f.repository.ResolveRevision(plumbing.Revision("v1.0.0-beta.1"))
	require.NoError(t, err)
	assert.Equal(t, beta.Hash(), *tagged)

	head, err := f.repository.Head()
	require.NoError(t, err)
	assert.Equal(t, plumbing.NewBranchReferenceName("beta"), head.Name())

	assert.Equal(t, []string{"beta"}, origin.branches)
	assert.Equal(t, []string{"v1.0.0-beta.1"}, origin.tags)
}

func TestRelease_ReleaseBranchCheckoutFails(t *testing.T) {
	f := newFixture(t)
	f.opts.Config.CI = true
	f.opts.Env = map[string]string{"CI": "true", "BRANCH_NAME": "beta"}

	_, masterHead := f.divergeBranches(t)
	require.NoError(t, f.repository.WriteFile("sample.txt", "uncommitted"))

	_, err := Run(context.Background(), f.opts)
	require.ErrorIs(t, err, ErrHeadNotOnBranch)
	assert.Empty(t, *f.calls)

	head, err := f.repository.Head()
	require.NoError(t, err)
	assert.Equal(t, masterHead, head.Hash())
	assert.False(t, f.tagExists(t, "v1.0.0-beta.1"))
}

func TestRelease_VerifyConditionsErrorsAreJoined(t *testing.T) {
	f := newFixture(t)
	f.opts.Config.Plugins = []plugin.Directive{
		{Name: recorderName, Options: map[string]any{"id": "first", "fail": "verifyConditions"}},
		{Name: recorderName, Options: map[string]any{"id": "second", "fail": "verifyConditions"}},
	}

	_, err := Run(context.Background(), f.opts)
	require.Error(t, err)

	assert.ErrorContains(t, err, "verifyConditions of first: verifyConditions failed")
	assert.ErrorContains(t, err, "verifyConditions of second: verifyConditions failed")
	assert.Equal(t, []string{"first:verifyConditions", "second:verifyConditions"}, *f.calls)
}

func TestRelease_FailNotifiesPlugins(t *testing.T) {
	f := newFixture(t)
	f.opts.Config.Plugins = []plugin.Directive{
		{Name: commitanalyzer.Name, Options: map[string]any{}},
		{Name: recorderName, Options: map[string]any{"fail": "publish"}},
	}

	_, err := f.repository.AddCommit("fix")
	require.NoError(t, err)

	_, err = Run(context.Background(), f.opts)
	require.ErrorContains(t, err, "publish of "+recorderName)

	calls := *f.calls
	assert.Equal(t, recorderName+":fail", calls[len(calls)-1])

	rc := f.recorders[recorderName].seen
	require.Len(t, rc.Errors, 1)
	assert.Equal(t, err, rc.Errors[0])
}

func TestRelease_TagAlreadyExists(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.repository.CheckoutBranch("other"))
	unrelated, err := f.repository.AddCommit("feat")
	require.NoError(t, err)
	require.NoError(t, f.repository.AddTag("v1.0.0", unrelated))

	require.NoError(t, f.repository.CheckoutBranch(gittest.DefaultBranch))
	_, err = f.repository.AddCommit("fix")
	require.NoError(t, err)

	_, err = Run(context.Background(), f.opts)
	assert.ErrorIs(t, err, tag.ErrTagAlreadyExists)
	assert.NotContains(t, *f.calls, recorderName+":prepare")
}

func TestRelease_UnknownPlugin(t *testing.T) {
	f := newFixture(t)
	f.opts.Config.Plugins = []plugin.Directive{{Name: "@semantic-release/exec"}}

	_, err := Run(context.Background(), f.opts)
	assert.ErrorIs(t, err, plugin.ErrUnknownPlugin)
}
