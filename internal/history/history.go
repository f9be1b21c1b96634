// Package history reads the release history of a Git repository: the commits reachable from a branch and the
// release tags among them.
package history

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/rs/zerolog"

	"github.com/jayal13/nebo-release/internal/commit"
	"github.com/jayal13/nebo-release/internal/semver"
	"github.com/jayal13/nebo-release/internal/tag"
)

var ErrBranchNotFound = errors.New("branch not found")

// Release is a release tag found in the repository.
type Release struct {
	TagName string
	Version *semver.Version
	Commit  plumbing.Hash
}

type History struct {
	logger     zerolog.Logger
	repository *git.Repository
	tagger     *tag.Tagger
	remoteName string
}

func New(logger zerolog.Logger, repository *git.Repository, tagger *tag.Tagger, remoteName string) *History {
	return &History{
		logger:     logger,
		repository: repository,
		tagger:     tagger,
		remoteName: remoteName,
	}
}

// ReachableCommits holds the results of walking reachable commits from a branch reference.
type ReachableCommits struct {
	Head    plumbing.Hash
	HashSet map[plumbing.Hash]struct{}
	Commits []*object.Commit
}

// BuildReachableCommits walks all commits reachable from the given hash and returns both a hash set, for tag
// reachability checks, and the commit objects in log order.
func BuildReachableCommits(repository *git.Repository, from plumbing.Hash) (*ReachableCommits, error) {
	result := &ReachableCommits{
		Head:    from,
		HashSet: make(map[plumbing.Hash]struct{}),
	}

	logIter, err := repository.Log(&git.LogOptions{From: from})
	if err != nil {
		return nil, fmt.Errorf("creating log iterator: %w", err)
	}

	err = logIter.ForEach(func(c *object.Commit) error {
		result.HashSet[c.Hash] = struct{}{}
		result.Commits = append(result.Commits, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterating commits: %w", err)
	}

	return result, nil
}

// BranchHead returns the commit a branch points to, trying the local branch first, then the remote-tracking one.
func (h *History) BranchHead(name string) (plumbing.Hash, error) {
	ref, err := h.repository.Reference(plumbing.NewBranchReferenceName(name), true)
	if err == nil {
		h.logger.Debug().Str("branch", name).Str("ref", ref.Name().String()).Msg("using local branch reference")
		return ref.Hash(), nil
	}

	if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return plumbing.ZeroHash, fmt.Errorf("getting reference for branch %q: %w", name, err)
	}

	remoteRef := plumbing.NewRemoteReferenceName(h.remoteName, name)

	ref, err = h.repository.Reference(remoteRef, true)
	if err == nil {
		h.logger.Debug().Str("branch", name).Str("ref", remoteRef.String()).Msg("using remote-tracking branch reference")
		return ref.Hash(), nil
	}

	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return plumbing.ZeroHash, fmt.Errorf("%w: %q in local or remote references", ErrBranchNotFound, name)
	}

	return plumbing.ZeroHash, fmt.Errorf("getting reference for branch %q: %w", name, err)
}

// Releases returns every tag that follows the tag format and points to a commit in reachable, highest version
// first. Annotated and lightweight tags are both considered.
func (h *History) Releases(reachable *ReachableCommits) ([]Release, error) {
	refs, err := h.repository.Tags()
	if err != nil {
		return nil, fmt.Errorf("fetching tag references: %w", err)
	}

	var releases []Release

	err = refs.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()

		version, ok := h.tagger.Parse(name)
		if !ok {
			return nil
		}

		commitHash, err := h.peel(ref.Hash())
		if err != nil {
			h.logger.Debug().Str("tag", name).Err(err).Msg("skipping tag not pointing to a commit")
			return nil
		}

		if _, ok = reachable.HashSet[commitHash]; !ok {
			return nil
		}

		releases = append(releases, Release{TagName: name, Version: version, Commit: commitHash})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("looping over tags: %w", err)
	}

	sort.SliceStable(releases, func(i, j int) bool {
		return semver.Compare(releases[i].Version, releases[j].Version) == 1
	})

	return releases, nil
}

// peel resolves a tag reference target to the commit it ultimately points to.
func (h *History) peel(hash plumbing.Hash) (plumbing.Hash, error) {
	tagObject, err := h.repository.TagObject(hash)
	switch {
	case err == nil:
		c, err := tagObject.Commit()
		if err != nil {
			return plumbing.ZeroHash, err
		}
		return c.Hash, nil
	case errors.Is(err, plumbing.ErrObjectNotFound):
		c, err := h.repository.CommitObject(hash)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		return c.Hash, nil
	default:
		return plumbing.ZeroHash, err
	}
}

// LatestStable returns the highest release without prerelease component, or nil.
func LatestStable(releases []Release) *Release {
	for i := range releases {
		if !releases[i].Version.HasPrerelease() {
			return &releases[i]
		}
	}
	return nil
}

// Latest returns the highest release that is either stable or a prerelease with the given identifier, or nil. An
// empty identifier only considers stable releases.
func Latest(releases []Release, identifier string) *Release {
	for i := range releases {
		v := releases[i].Version
		if !v.HasPrerelease() || (identifier != "" && v.PrereleaseIdentifier() == identifier) {
			return &releases[i]
		}
	}
	return nil
}

// LatestPrerelease returns the highest prerelease with the given identifier, or nil.
func LatestPrerelease(releases []Release, identifier string) *Release {
	for i := range releases {
		v := releases[i].Version
		if v.HasPrerelease() && v.PrereleaseIdentifier() == identifier {
			return &releases[i]
		}
	}
	return nil
}

// CommitsSince returns the commits of reachable that are not reachable from since, oldest first. A zero since
// returns every reachable commit.
func (h *History) CommitsSince(reachable *ReachableCommits, since plumbing.Hash) ([]commit.Commit, error) {
	excluded := make(map[plumbing.Hash]struct{})

	if !since.IsZero() {
		old, err := BuildReachableCommits(h.repository, since)
		if err != nil {
			return nil, fmt.Errorf("walking commits of last release: %w", err)
		}
		excluded = old.HashSet
	}

	var commits []commit.Commit

	// Log order is newest first.
	for i := len(reachable.Commits) - 1; i >= 0; i-- {
		c := reachable.Commits[i]
		if _, ok := excluded[c.Hash]; ok {
			continue
		}
		commits = append(commits, commit.FromObject(c))
	}

	return commits, nil
}
