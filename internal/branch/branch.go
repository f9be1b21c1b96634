// Package branch provides functions to handle release branch configuration.
package branch

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

var (
	ErrNoBranch        = errors.New("no branch configuration")
	ErrNoName          = errors.New("no name in branch configuration")
	ErrDuplicateBranch = errors.New("duplicate branch name")
	ErrNoStableBranch  = errors.New("no stable release branch")
	ErrWrongType       = errors.New("branch configuration value has wrong type")
	ErrInvalidID       = errors.New("invalid prerelease identifier")
)

var identifierRegex = regexp.MustCompile(`^[0-9A-Za-z-]+$`)

// ValidIdentifier reports whether id can be used as a semver prerelease identifier.
func ValidIdentifier(id string) bool {
	return identifierRegex.MatchString(id)
}

// Item is a release-eligible branch. A prerelease branch publishes versions such as "1.2.0-beta.1" where "beta" is
// the prerelease identifier.
type Item struct {
	Name         string `json:"name" mapstructure:"name"`
	Prerelease   bool   `json:"prerelease" mapstructure:"prerelease"`
	PrereleaseID string `json:"prereleaseId,omitempty" mapstructure:"prereleaseId"`
	Channel      string `json:"channel,omitempty" mapstructure:"channel"`
}

// Identifier returns the prerelease identifier used in versions released from this branch.
func (i Item) Identifier() string {
	if i.PrereleaseID != "" {
		return i.PrereleaseID
	}
	return i.Name
}

var Default = []Item{
	{Name: "master"},
	{Name: "main"},
	{Name: "next"},
	{Name: "beta", Prerelease: true},
	{Name: "alpha", Prerelease: true},
}

// Unmarshall takes a raw configuration value and returns the branches it describes, in order. The value may be a
// single branch name, a list of names, a list of objects with a "name" key, or any mix of the two.
func Unmarshall(input any) ([]Item, error) {
	var raw []any

	switch v := input.(type) {
	case nil:
		return nil, ErrNoBranch
	case string:
		raw = []any{v}
	case []string:
		for _, s := range v {
			raw = append(raw, s)
		}
	case []map[string]any:
		for _, m := range v {
			raw = append(raw, m)
		}
	case []any:
		raw = v
	default:
		return nil, fmt.Errorf("%w: %T", ErrWrongType, input)
	}

	if len(raw) == 0 {
		return nil, ErrNoBranch
	}

	items := make([]Item, 0, len(raw))

	for i, r := range raw {
		item, err := unmarshallItem(r)
		if err != nil {
			return nil, fmt.Errorf("branches[%d]: %w", i, err)
		}
		items = append(items, item)
	}

	return items, nil
}

func unmarshallItem(raw any) (Item, error) {
	var m map[string]any

	switch v := raw.(type) {
	case string:
		if v == "" {
			return Item{}, ErrNoName
		}
		return Item{Name: v}, nil
	case map[string]any:
		m = v
	case map[any]any:
		m = make(map[string]any, len(v))
		for k, val := range v {
			m[fmt.Sprint(k)] = val
		}
	case Item:
		return v, nil
	default:
		return Item{}, fmt.Errorf("%w: %T", ErrWrongType, raw)
	}

	name, ok := m["name"].(string)
	if !ok || name == "" {
		return Item{}, ErrNoName
	}

	item := Item{Name: name}

	switch p := m["prerelease"].(type) {
	case nil:
	case bool:
		item.Prerelease = p
	case string:
		// A string is either a boolean literal or the prerelease identifier itself.
		if b, err := strconv.ParseBool(p); err == nil {
			item.Prerelease = b
		} else if p != "" {
			item.Prerelease = true
			item.PrereleaseID = p
		}
	default:
		return Item{}, fmt.Errorf("%w: prerelease is %T", ErrWrongType, p)
	}

	if channel, ok := m["channel"].(string); ok {
		item.Channel = channel
	}

	return item, nil
}

// Validate checks that a branch list is usable for releasing.
func Validate(items []Item) error {
	if len(items) == 0 {
		return ErrNoBranch
	}

	seen := make(map[string]struct{}, len(items))
	hasStable := false

	for _, item := range items {
		if item.Name == "" {
			return ErrNoName
		}
		if _, ok := seen[item.Name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateBranch, item.Name)
		}
		seen[item.Name] = struct{}{}

		if !item.Prerelease {
			hasStable = true
			continue
		}

		if id := item.Identifier(); !ValidIdentifier(id) {
			return fmt.Errorf("%w: %q on branch %q", ErrInvalidID, id, item.Name)
		}
	}

	if !hasStable {
		return ErrNoStableBranch
	}

	return nil
}

// Find returns the configured branch with the given name.
func Find(items []Item, name string) (Item, bool) {
	for _, item := range items {
		if item.Name == name {
			return item, true
		}
	}

	return Item{}, false
}

// Names returns the names of the given branches, in order.
func Names(items []Item) []string {
	names := make([]string, len(items))
	for i, item := range items {
		names[i] = item.Name
	}
	return names
}
