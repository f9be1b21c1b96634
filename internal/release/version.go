package release

import (
	"github.com/jayal13/nebo-release/internal/branch"
	"github.com/jayal13/nebo-release/internal/history"
	"github.com/jayal13/nebo-release/internal/semver"
)

// FirstVersion is the version of the first release of a repository.
var FirstVersion = semver.Version{Major: 1}

// NextVersion computes the version released from b given the releases reachable from it and the release type found
// by the commit analysis.
//
// Stable branches bump the latest stable release. Prerelease branches bump the core of the latest stable release and
// append "<identifier>.1", unless a prerelease of b with a higher or equal core already exists, in which case its
// number is incremented.
func NextVersion(releases []history.Release, b branch.Item, bump semver.BumpType) *semver.Version {
	var core *semver.Version

	if stable := history.LatestStable(releases); stable != nil {
		core = stable.Version.Core()
		core.Bump(bump)
	} else {
		first := FirstVersion
		core = &first
	}

	if !b.Prerelease {
		return core
	}

	id := b.Identifier()

	next := core.Core()
	next.SetPrerelease(id, 1)

	if last := history.LatestPrerelease(releases, id); last != nil {
		incremented := last.Version.Core()
		incremented.SetPrerelease(id, last.Version.PrereleaseNumber()+1)

		if semver.Compare(incremented, next) > 0 {
			return incremented
		}
	}

	return next
}
