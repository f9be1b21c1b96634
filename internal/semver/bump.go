package semver

import (
	"fmt"
)

// BumpType is the kind of increment a release applies to the previous version. Values are ordered so that the
// highest one wins when several commits are analyzed.
type BumpType int

const (
	BumpNone BumpType = iota
	BumpPatch
	BumpMinor
	BumpMajor
)

func (b BumpType) String() string {
	switch b {
	case BumpPatch:
		return "patch"
	case BumpMinor:
		return "minor"
	case BumpMajor:
		return "major"
	default:
		return "none"
	}
}

// ParseBump converts a release type name to a BumpType. The empty string and "none" map to BumpNone.
func ParseBump(s string) (BumpType, error) {
	switch s {
	case "major":
		return BumpMajor, nil
	case "minor":
		return BumpMinor, nil
	case "patch":
		return BumpPatch, nil
	case "", "none", "false":
		return BumpNone, nil
	default:
		return BumpNone, fmt.Errorf("unknown release type %q", s)
	}
}
