// Package semver provides basic primitives to work with semantic version numbers.
package semver

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var Regex = regexp.MustCompile(`^(0|[1-9]\d*)\.(0|[1-9]\d*)\.(0|[1-9]\d*)(?:-((?:0|[1-9]\d*|\d*[a-zA-Z-][0-9a-zA-Z-]*)(?:\.(?:0|[1-9]\d*|\d*[a-zA-Z-][0-9a-zA-Z-]*))*))?(?:\+([0-9a-zA-Z-]+(?:\.[0-9a-zA-Z-]+)*))?$`)

var ErrInvalidVersion = errors.New("invalid semantic version")

type Version struct {
	Major      int
	Minor      int
	Patch      int
	Prerelease string
	Metadata   string
}

// NewFromString parses a semantic version number such as "1.2.3", "1.2.3-beta.1" or "1.2.3+build.5".
func NewFromString(str string) (*Version, error) {
	submatch := Regex.FindStringSubmatch(str)
	if submatch == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVersion, str)
	}

	major, err := strconv.Atoi(submatch[1])
	if err != nil {
		return nil, fmt.Errorf("converting major component: %w", err)
	}
	minor, err := strconv.Atoi(submatch[2])
	if err != nil {
		return nil, fmt.Errorf("converting minor component: %w", err)
	}
	patch, err := strconv.Atoi(submatch[3])
	if err != nil {
		return nil, fmt.Errorf("converting patch component: %w", err)
	}

	return &Version{
		Major:      major,
		Minor:      minor,
		Patch:      patch,
		Prerelease: submatch[4],
		Metadata:   submatch[5],
	}, nil
}

func (v *Version) BumpPatch() {
	if v.HasPrerelease() {
		v.Prerelease = ""
		return
	}
	v.Patch++
}

func (v *Version) BumpMinor() {
	if v.HasPrerelease() && v.Patch == 0 {
		v.Prerelease = ""
		return
	}
	v.Prerelease = ""
	v.Patch = 0
	v.Minor++
}

func (v *Version) BumpMajor() {
	if v.HasPrerelease() && v.Patch == 0 && v.Minor == 0 {
		v.Prerelease = ""
		return
	}
	v.Prerelease = ""
	v.Patch = 0
	v.Minor = 0
	v.Major++
}

// Bump increments v according to the given bump type. BumpNone leaves v untouched.
func (v *Version) Bump(b BumpType) {
	switch b {
	case BumpMajor:
		v.BumpMajor()
	case BumpMinor:
		v.BumpMinor()
	case BumpPatch:
		v.BumpPatch()
	}
}

func (v *Version) HasPrerelease() bool {
	return v.Prerelease != ""
}

// PrereleaseIdentifier returns the leading identifier of the prerelease component ("beta" for "beta.3").
func (v *Version) PrereleaseIdentifier() string {
	id, _, _ := strings.Cut(v.Prerelease, ".")
	return id
}

// PrereleaseNumber returns the trailing numeric identifier of the prerelease component, 0 if there is none.
func (v *Version) PrereleaseNumber() int {
	i := strings.LastIndex(v.Prerelease, ".")
	if i < 0 {
		return 0
	}

	n, err := strconv.Atoi(v.Prerelease[i+1:])
	if err != nil {
		return 0
	}

	return n
}

// SetPrerelease sets the prerelease component to "<identifier>.<number>".
func (v *Version) SetPrerelease(identifier string, number int) {
	v.Prerelease = fmt.Sprintf("%s.%d", identifier, number)
}

// Core returns a copy of v without prerelease and metadata components.
func (v *Version) Core() *Version {
	return &Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch}
}

func (v *Version) String() string {
	str := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)

	if v.Prerelease != "" {
		str += "-" + v.Prerelease
	}

	if v.Metadata != "" {
		str += "+" + v.Metadata
	}

	return str
}

// Compare returns 1 if v1 has a higher precedence than v2, -1 if lower and 0 if both are equal. Build metadata is
// ignored as mandated by the Semantic Versioning specification.
func Compare(v1, v2 *Version) int {
	switch {
	case v1.Major != v2.Major:
		return cmpInt(v1.Major, v2.Major)
	case v1.Minor != v2.Minor:
		return cmpInt(v1.Minor, v2.Minor)
	case v1.Patch != v2.Patch:
		return cmpInt(v1.Patch, v2.Patch)
	case v1.Prerelease == v2.Prerelease:
		return 0
	case v1.Prerelease == "":
		return 1
	case v2.Prerelease == "":
		return -1
	}

	ids1 := strings.Split(v1.Prerelease, ".")
	ids2 := strings.Split(v2.Prerelease, ".")

	for i := 0; i < len(ids1) && i < len(ids2); i++ {
		if c := compareIdentifier(ids1[i], ids2[i]); c != 0 {
			return c
		}
	}

	return cmpInt(len(ids1), len(ids2))
}

func compareIdentifier(a, b string) int {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)

	switch {
	case errA == nil && errB == nil:
		return cmpInt(na, nb)
	case errA == nil:
		// Numeric identifiers always have lower precedence than alphanumeric ones.
		return -1
	case errB == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

func cmpInt(a, b int) int {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}
