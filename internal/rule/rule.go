// Package rule provides functions to handle release rule configuration.
//
// A release rule maps commits, selected by type, scope, breaking or revert status, to the kind of release they
// trigger.
package rule

import (
	"errors"
	"fmt"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/jayal13/nebo-release/internal/commit"
	"github.com/jayal13/nebo-release/internal/semver"
)

var (
	ErrInvalidReleaseType   = errors.New("invalid release type")
	ErrDuplicateReleaseRule = errors.New("duplicate release rule for the same commit type")
	ErrNoRules              = errors.New("no rule found")
	ErrWrongType            = errors.New("release rule value has wrong type")
	ErrEmptyRule            = errors.New("release rule matches no commit property")
)

// Rule selects commits and gives the release they trigger. An empty Release means the matching commits must not
// trigger any release.
type Rule struct {
	Type     string
	Scope    string
	Breaking *bool
	Revert   *bool
	Release  string
}

type Rules []Rule

func boolPtr(b bool) *bool {
	return &b
}

var Default = Rules{
	{Breaking: boolPtr(true), Release: "major"},
	{Revert: boolPtr(true), Release: "patch"},
	{Type: "feat", Release: "minor"},
	{Type: "fix", Release: "patch"},
	{Type: "perf", Release: "patch"},
}

var validReleaseTypes = map[string]struct{}{
	"major": {},
	"minor": {},
	"patch": {},
	"":      {},
}

// Matches reports whether c is selected by r.
func (r Rule) Matches(c commit.Conventional) bool {
	if r.Type != "" && r.Type != c.Type {
		return false
	}

	if r.Scope != "" {
		ok, err := doublestar.Match(r.Scope, c.Scope)
		if err != nil || !ok {
			return false
		}
	}

	if r.Breaking != nil && *r.Breaking != c.Breaking {
		return false
	}

	if r.Revert != nil && *r.Revert != c.Revert {
		return false
	}

	return true
}

// Analyze returns the release triggered by c and whether any rule matched. When several rules match, the highest
// release wins; a matching rule with an empty release only counts as a match.
func (rs Rules) Analyze(c commit.Conventional) (semver.BumpType, bool) {
	matched := false
	bump := semver.BumpNone

	for _, r := range rs {
		if !r.Matches(c) {
			continue
		}

		matched = true

		b, err := semver.ParseBump(r.Release)
		if err != nil {
			continue
		}

		bump = max(bump, b)
	}

	return bump, matched
}

// Unmarshall takes a raw configuration value and returns the release rules it describes. Two forms are accepted: a
// list of rule objects ({type, scope, breaking, revert, release}) and a mapping from release type to commit types
// ({minor: [feat], patch: [fix, perf]}).
func Unmarshall(input any) (Rules, error) {
	switch v := input.(type) {
	case nil:
		return nil, ErrNoRules
	case []any:
		return unmarshallList(v)
	case []map[string]any:
		list := make([]any, len(v))
		for i, m := range v {
			list[i] = m
		}
		return unmarshallList(list)
	case map[string][]string:
		m := make(map[string]any, len(v))
		for k, types := range v {
			list := make([]any, len(types))
			for i, t := range types {
				list[i] = t
			}
			m[k] = list
		}
		return unmarshallMap(m)
	case map[string]any:
		return unmarshallMap(v)
	default:
		return nil, fmt.Errorf("%w: %T", ErrWrongType, input)
	}
}

func unmarshallList(input []any) (Rules, error) {
	if len(input) == 0 {
		return nil, ErrNoRules
	}

	rules := make(Rules, 0, len(input))

	for i, raw := range input {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("releaseRules[%d]: %w: %T", i, ErrWrongType, raw)
		}

		var r Rule

		if r.Type, ok = optionalString(m, "type"); !ok {
			return nil, fmt.Errorf("releaseRules[%d]: %w: type", i, ErrWrongType)
		}
		if r.Scope, ok = optionalString(m, "scope"); !ok {
			return nil, fmt.Errorf("releaseRules[%d]: %w: scope", i, ErrWrongType)
		}
		if b, ok := m["breaking"].(bool); ok {
			r.Breaking = boolPtr(b)
		}
		if b, ok := m["revert"].(bool); ok {
			r.Revert = boolPtr(b)
		}

		switch release := m["release"].(type) {
		case string:
			r.Release = release
		case bool:
			if release {
				return nil, fmt.Errorf("releaseRules[%d]: %w: true", i, ErrInvalidReleaseType)
			}
		case nil:
			return nil, fmt.Errorf("releaseRules[%d]: %w: missing", i, ErrInvalidReleaseType)
		default:
			return nil, fmt.Errorf("releaseRules[%d]: %w: %T", i, ErrInvalidReleaseType, release)
		}

		if _, ok := validReleaseTypes[r.Release]; !ok {
			return nil, fmt.Errorf("releaseRules[%d]: %w: %q", i, ErrInvalidReleaseType, r.Release)
		}

		if r.Type == "" && r.Scope == "" && r.Breaking == nil && r.Revert == nil {
			return nil, fmt.Errorf("releaseRules[%d]: %w", i, ErrEmptyRule)
		}

		rules = append(rules, r)
	}

	return rules, nil
}

func unmarshallMap(input map[string]any) (Rules, error) {
	if len(input) == 0 {
		return nil, ErrNoRules
	}

	seen := make(map[string]struct{})
	var rules Rules

	// Iterate in a stable order so that errors and rule order are deterministic.
	releaseTypes := make([]string, 0, len(input))
	for releaseType := range input {
		releaseTypes = append(releaseTypes, releaseType)
	}
	sort.Strings(releaseTypes)

	for _, releaseType := range releaseTypes {
		if _, ok := validReleaseTypes[releaseType]; !ok || releaseType == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidReleaseType, releaseType)
		}

		commitTypes, ok := input[releaseType].([]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s is %T", ErrWrongType, releaseType, input[releaseType])
		}

		for _, raw := range commitTypes {
			commitType, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s contains %T", ErrWrongType, releaseType, raw)
			}

			if _, ok := seen[commitType]; ok {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateReleaseRule, commitType)
			}
			seen[commitType] = struct{}{}

			rules = append(rules, Rule{Type: commitType, Release: releaseType})
		}
	}

	return rules, nil
}

func optionalString(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", true
	}
	s, ok := v.(string)
	return s, ok
}
