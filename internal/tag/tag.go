// Package tag provides functions to work with release Git tags.
package tag

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/drone/envsubst"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/jayal13/nebo-release/internal/semver"
)

const (
	DefaultFormat      = "v${version}"
	versionPlaceholder = "${version}"
)

var (
	ErrTagAlreadyExists = errors.New("tag already exists")
	ErrInvalidFormat    = errors.New("invalid tag format")
)

type Tagger struct {
	GitSignature object.Signature
	SignKey      *openpgp.Entity
	TagFormat    string
}

type OptionFunc func(t *Tagger)

func WithSignKey(key *openpgp.Entity) OptionFunc {
	return func(t *Tagger) {
		t.SignKey = key
	}
}

// WithFormat sets the tag name template, which must contain "${version}" exactly once.
func WithFormat(format string) OptionFunc {
	return func(t *Tagger) {
		if format != "" {
			t.TagFormat = format
		}
	}
}

func NewTagger(name, email string, options ...OptionFunc) *Tagger {
	tagger := &Tagger{
		GitSignature: object.Signature{
			Name:  name,
			Email: email,
		},
		TagFormat: DefaultFormat,
	}

	for _, option := range options {
		option(tagger)
	}

	return tagger
}

// ValidateFormat checks that format contains "${version}" exactly once, references no other variable and renders to
// a valid tag name.
func ValidateFormat(format string) error {
	if n := strings.Count(format, versionPlaceholder); n != 1 {
		return fmt.Errorf("%w: %q must contain %s exactly once", ErrInvalidFormat, format, versionPlaceholder)
	}

	// Any other variable would expand to an empty string and tags could not be parsed back.
	if strings.Contains(strings.Replace(format, versionPlaceholder, "", 1), "$") {
		return fmt.Errorf("%w: %q must not contain \"$\" outside of %s", ErrInvalidFormat, format, versionPlaceholder)
	}

	name, err := render(format, "0.0.0")
	if err != nil {
		return err
	}

	if !validRefName(name) {
		return fmt.Errorf("%w: %q is not a valid Git tag name", ErrInvalidFormat, name)
	}

	return nil
}

func render(format string, version string) (string, error) {
	name, err := envsubst.Eval(format, func(key string) string {
		if key == "version" {
			return version
		}
		return ""
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}

	return name, nil
}

// validRefName applies the subset of git-check-ref-format rules that tag templates can break.
func validRefName(name string) bool {
	if name == "" || strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") ||
		strings.HasPrefix(name, "-") || strings.HasSuffix(name, ".") || strings.HasSuffix(name, ".lock") {
		return false
	}

	if strings.Contains(name, "..") || strings.Contains(name, "@{") || strings.Contains(name, "//") {
		return false
	}

	return !strings.ContainsAny(name, " ~^:?*[\\\t\n")
}

// Format returns the tag name of a version.
func (t *Tagger) Format(version *semver.Version) (string, error) {
	if err := ValidateFormat(t.TagFormat); err != nil {
		return "", err
	}

	return render(t.TagFormat, version.String())
}

// Parse returns the version a tag name refers to, if the name follows the tag format.
func (t *Tagger) Parse(tagName string) (*semver.Version, bool) {
	prefix, suffix, ok := strings.Cut(t.TagFormat, versionPlaceholder)
	if !ok {
		return nil, false
	}

	if !strings.HasPrefix(tagName, prefix) || !strings.HasSuffix(tagName, suffix) || len(tagName) < len(prefix)+len(suffix) {
		return nil, false
	}

	version, err := semver.NewFromString(tagName[len(prefix) : len(tagName)-len(suffix)])
	if err != nil {
		return nil, false
	}

	return version, true
}

// Exists check if a given tag name exists on a given Git repository.
func Exists(repository *git.Repository, tagName string) (bool, error) {
	_, err := repository.Reference(plumbing.NewTagReferenceName(tagName), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// TagRepository creates a new annotated tag named after version and pointing to hash. A zero hash tags HEAD.
func (t *Tagger) TagRepository(repository *git.Repository, version *semver.Version, hash plumbing.Hash) (string, error) {
	if version == nil {
		return "", fmt.Errorf("tagging repository: %w", semver.ErrInvalidVersion)
	}

	if hash.IsZero() {
		head, err := repository.Head()
		if err != nil {
			return "", fmt.Errorf("fetching head: %w", err)
		}
		hash = head.Hash()
	}

	tagName, err := t.Format(version)
	if err != nil {
		return "", err
	}

	signature := t.GitSignature
	signature.When = time.Now()

	tagOpts := &git.CreateTagOptions{
		Message: tagName,
		Tagger:  &signature,
		SignKey: t.SignKey,
	}

	if exists, err := Exists(repository, tagName); err != nil {
		return "", fmt.Errorf("checking if tag exists: %w", err)
	} else if exists {
		return "", fmt.Errorf("%w: %s", ErrTagAlreadyExists, tagName)
	}

	if _, err := repository.CreateTag(tagName, hash, tagOpts); err != nil {
		return "", fmt.Errorf("creating tag on repository: %w", err)
	}

	return tagName, nil
}
