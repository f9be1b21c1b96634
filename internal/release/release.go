// Package release runs the release pipeline: it finds the last release of a branch, asks the configured plugins
// whether the commits since warrant a new one, then tags and publishes it.
package release

import (
	"context"
	"errors"
	"fmt"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/rs/zerolog"

	"github.com/jayal13/nebo-release/internal/branch"
	"github.com/jayal13/nebo-release/internal/ci"
	"github.com/jayal13/nebo-release/internal/config"
	"github.com/jayal13/nebo-release/internal/history"
	"github.com/jayal13/nebo-release/internal/plugin"
	"github.com/jayal13/nebo-release/internal/remote"
	"github.com/jayal13/nebo-release/internal/semver"
	"github.com/jayal13/nebo-release/internal/tag"
)

var (
	ErrDetachedHead    = errors.New("cannot determine the current branch")
	ErrHeadNotOnBranch = errors.New("HEAD is not on the release branch")
)

// Remote pushes release references. It is nil when the repository has no remote.
type Remote interface {
	PushTag(name string) error
	PushBranch(name string) error
}

type Options struct {
	Logger     zerolog.Logger
	Config     config.Config
	Registry   *plugin.Registry
	Repository *git.Repository
	Dir        string
	Remote     Remote
	RemoteName string
	Env        map[string]string
	GitName    string
	GitEmail   string
	SignKey    *openpgp.Entity
}

type Result struct {
	Branch      string
	NewRelease  bool
	DryRun      bool
	Skipped     bool
	Reason      string
	LastRelease *plugin.Release
	NextRelease *plugin.Release
	Releases    []plugin.Release
}

type instance struct {
	plugin.Plugin
	directive plugin.Directive
}

// Run executes every step of a release on the current branch of the repository.
func Run(ctx context.Context, opts Options) (Result, error) {
	logger := opts.Logger
	cfg := opts.Config
	env := ci.Detect(opts.Env)

	if env.IsCI {
		logger.Debug().Str("ci", env.Name).Msg("running in CI environment")
	}

	branchName, err := currentBranch(opts.Repository, env)
	if err != nil {
		return Result{}, err
	}

	result := Result{Branch: branchName, DryRun: cfg.DryRun}

	item, ok := branch.Find(cfg.Branches, branchName)
	if !ok {
		logger.Info().
			Str("branch", branchName).
			Strs("branches", branch.Names(cfg.Branches)).
			Msg("this run was triggered on a branch not configured for releases")
		return skipped(result, "branch not configured"), nil
	}

	if cfg.CI && !env.IsCI {
		logger.Warn().Msg("this run was not triggered in a known CI environment, running in dry-run mode")
		result.DryRun = true
	}

	if cfg.CI && env.IsPR {
		logger.Info().Msg("this run was triggered by a pull request and therefore a new version won't be published")
		return skipped(result, "pull request"), nil
	}

	plugins, err := instantiate(opts.Registry, cfg.Plugins)
	if err != nil {
		return result, err
	}

	rc := &plugin.Context{
		Logger:        logger,
		Repository:    opts.Repository,
		Dir:           opts.Dir,
		Env:           opts.Env,
		RepositoryURL: cfg.RepositoryURL,
		TagFormat:     cfg.TagFormat,
		Branch:        item,
		GitName:       opts.GitName,
		GitEmail:      opts.GitEmail,
		SignKey:       opts.SignKey,
		DryRun:        result.DryRun,
	}

	if opts.Remote != nil {
		rc.Pusher = opts.Remote
	}

	if rc.RepositoryURL == "" {
		if u, err := remote.URL(opts.Repository, opts.RemoteName); err == nil {
			rc.RepositoryURL = u
		}
	}

	tagger := tag.NewTagger(opts.GitName, opts.GitEmail, tag.WithFormat(cfg.TagFormat), tag.WithSignKey(opts.SignKey))
	h := history.New(logger, opts.Repository, tagger, opts.RemoteName)

	head, err := h.BranchHead(item.Name)
	if err != nil {
		return result, err
	}

	// Release commits and tags are created on HEAD.
	if !result.DryRun {
		if err = checkoutBranch(logger, opts.Repository, item.Name, head); err != nil {
			return result, err
		}
	}

	if err = verifyConditions(ctx, rc, plugins); err != nil {
		return result, err
	}

	reachable, err := history.BuildReachableCommits(opts.Repository, head)
	if err != nil {
		return result, fmt.Errorf("building reachable commits: %w", err)
	}

	releases, err := h.Releases(reachable)
	if err != nil {
		return result, fmt.Errorf("listing releases: %w", err)
	}

	identifier := ""
	if item.Prerelease {
		identifier = item.Identifier()
	}

	since := plumbing.ZeroHash

	if last := history.Latest(releases, identifier); last != nil {
		rc.LastRelease = &plugin.Release{
			Version: last.Version,
			GitTag:  last.TagName,
			GitHead: last.Commit.String(),
			Name:    last.TagName,
		}
		since = last.Commit
		logger.Info().Str("tag", last.TagName).Str("version", last.Version.String()).Msg("found last release")
	} else {
		logger.Info().Msg("no previous release found, retrieving all commits")
	}

	rc.Commits, err = h.CommitsSince(reachable, since)
	if err != nil {
		return result, fmt.Errorf("collecting commits: %w", err)
	}

	logger.Info().Int("commits", len(rc.Commits)).Msg("found commits since last release")

	result.LastRelease = rc.LastRelease

	bump, err := analyzeCommits(ctx, rc, plugins)
	if err != nil {
		return result, err
	}

	if bump == semver.BumpNone {
		logger.Info().Bool("new-release", false).Str("branch", item.Name).Msg("there are no relevant changes, so no new version is released")
		return result, nil
	}

	version := NextVersion(releases, item, bump)
	gitTag, err := tagger.Format(version)
	if err != nil {
		return result, err
	}

	exists, err := tag.Exists(opts.Repository, gitTag)
	if err != nil {
		return result, fmt.Errorf("checking if tag exists: %w", err)
	}
	if exists {
		return result, fmt.Errorf("%w: %s", tag.ErrTagAlreadyExists, gitTag)
	}

	rc.NextRelease = &plugin.Release{
		Version: version,
		Type:    bump,
		GitTag:  gitTag,
		GitHead: head.String(),
		Name:    gitTag,
		Channel: item.Channel,
	}
	result.NextRelease = rc.NextRelease
	result.NewRelease = true

	logger.Info().Str("type", bump.String()).Str("version", version.String()).Msg("the next release version is computed")

	if err = verifyRelease(ctx, rc, plugins); err != nil {
		return result, err
	}

	notes, err := generateNotes(ctx, rc, plugins)
	if err != nil {
		return result, err
	}
	rc.NextRelease.Notes = notes

	if result.DryRun {
		logger.Info().
			Bool("new-release", true).
			Str("version", version.String()).
			Str("branch", item.Name).
			Str("notes", notes).
			Msg("dry-run enabled, skipping prepare, tag and publish")
		return result, nil
	}

	if err = publish(ctx, rc, plugins, tagger, opts.Remote, head); err != nil {
		rc.Errors = []error{err}
		fail(ctx, rc, plugins)
		return result, err
	}

	result.Releases = rc.Releases

	logger.Info().
		Bool("new-release", true).
		Str("version", version.String()).
		Str("tag", gitTag).
		Str("branch", item.Name).
		Msg("published release")

	return result, nil
}

func skipped(r Result, reason string) Result {
	r.Skipped = true
	r.Reason = reason
	return r
}

// currentBranch returns the branch reported by the CI environment, or the branch HEAD points to.
func currentBranch(repository *git.Repository, env ci.Environment) (string, error) {
	if env.Branch != "" {
		return env.Branch, nil
	}

	head, err := repository.Head()
	if err != nil {
		return "", fmt.Errorf("fetching head: %w", err)
	}

	if !head.Name().IsBranch() {
		return "", ErrDetachedHead
	}

	return head.Name().Short(), nil
}

// checkoutBranch points HEAD to the release branch, creating the local branch at head when only the remote-tracking
// one exists. Uncommitted changes to tracked files make the checkout fail.
func checkoutBranch(logger zerolog.Logger, repository *git.Repository, name string, head plumbing.Hash) error {
	current, err := repository.Head()
	if err != nil {
		return fmt.Errorf("fetching head: %w", err)
	}

	refName := plumbing.NewBranchReferenceName(name)
	if current.Name() == refName {
		return nil
	}

	_, err = repository.Reference(refName, false)
	create := errors.Is(err, plumbing.ErrReferenceNotFound)
	if err != nil && !create {
		return fmt.Errorf("getting reference for branch %q: %w", name, err)
	}

	worktree, err := repository.Worktree()
	if err != nil {
		return fmt.Errorf("fetching worktree: %w", err)
	}

	checkout := &git.CheckoutOptions{Branch: refName, Create: create}
	if create {
		checkout.Hash = head
	}

	if err = worktree.Checkout(checkout); err != nil {
		return fmt.Errorf("%w: checking out %q over %q: %w", ErrHeadNotOnBranch, name, current.Name().Short(), err)
	}

	logger.Info().Str("from", current.Name().Short()).Str("branch", name).Msg("checked out release branch")

	return nil
}

func instantiate(registry *plugin.Registry, directives []plugin.Directive) ([]instance, error) {
	plugins := make([]instance, 0, len(directives))

	for _, d := range directives {
		p, err := registry.New(d)
		if err != nil {
			return nil, fmt.Errorf("loading plugins: %w", err)
		}
		plugins = append(plugins, instance{Plugin: p, directive: d})
	}

	return plugins, nil
}

// publish runs the steps that change the repository and the outside world: prepare, tag, publish and success.
func publish(ctx context.Context, rc *plugin.Context, plugins []instance, tagger *tag.Tagger, origin Remote, head plumbing.Hash) error {
	if err := prepare(ctx, rc, plugins); err != nil {
		return err
	}

	// Plugins committing release assets move the release head.
	target := head
	if rc.NextRelease.GitHead != head.String() {
		target = plumbing.NewHash(rc.NextRelease.GitHead)
	}

	tagName, err := tagger.TagRepository(rc.Repository, rc.NextRelease.Version, target)
	if err != nil {
		return fmt.Errorf("tagging repository: %w", err)
	}

	rc.Logger.Info().Str("tag", tagName).Str("commit", target.String()).Msg("created tag")

	if origin != nil {
		if err = origin.PushTag(tagName); err != nil {
			return fmt.Errorf("pushing tag: %w", err)
		}
		rc.Logger.Debug().Str("tag", tagName).Msg("pushed tag to remote")
	} else {
		rc.Logger.Debug().Msg("no remote, tag not pushed")
	}

	if err = publishRelease(ctx, rc, plugins); err != nil {
		return err
	}

	return success(ctx, rc, plugins)
}
