// Package changelog keeps a changelog file up to date with the notes of each release.
package changelog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/jayal13/nebo-release/internal/plugin"
)

const (
	Name        = "@semantic-release/changelog"
	DefaultFile = "CHANGELOG.md"
)

var (
	ErrInvalidFile  = errors.New("invalid changelogFile")
	ErrInvalidTitle = errors.New("invalid changelogTitle")
)

type Options struct {
	ChangelogFile  string `mapstructure:"changelogFile"`
	ChangelogTitle string `mapstructure:"changelogTitle"`
}

type Changelog struct {
	opts Options
}

func New(options map[string]any) (plugin.Plugin, error) {
	opts := Options{ChangelogFile: DefaultFile}

	if err := plugin.DecodeOptions(options, &opts); err != nil {
		return nil, err
	}

	return &Changelog{opts: opts}, nil
}

func (c *Changelog) Name() string {
	return Name
}

// File returns the changelog path relative to the repository root.
func (c *Changelog) File() string {
	return c.opts.ChangelogFile
}

func (c *Changelog) VerifyConditions(_ context.Context, _ *plugin.Context) error {
	file := strings.TrimSpace(c.opts.ChangelogFile)

	switch {
	case file == "":
		return fmt.Errorf("%w: must be a non-empty path", ErrInvalidFile)
	case filepath.IsAbs(file):
		return fmt.Errorf("%w: %q must be relative to the repository root", ErrInvalidFile, file)
	case strings.HasPrefix(filepath.Clean(file), ".."):
		return fmt.Errorf("%w: %q is outside the repository", ErrInvalidFile, file)
	}

	if strings.ContainsAny(c.opts.ChangelogTitle, "\r\n") {
		return fmt.Errorf("%w: must be a single line", ErrInvalidTitle)
	}

	return nil
}

// Prepare inserts the release notes at the top of the changelog, below the title when there is one.
func (c *Changelog) Prepare(_ context.Context, rc *plugin.Context) error {
	logger := rc.Logger.With().Str("plugin", Name).Logger()

	notes := ""
	if rc.NextRelease != nil {
		notes = strings.TrimSpace(rc.NextRelease.Notes)
	}

	if notes == "" {
		logger.Info().Msg("no notes, changelog left untouched")
		return nil
	}

	path := filepath.Join(rc.Dir, c.opts.ChangelogFile)

	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading changelog: %w", err)
	}

	content := Render(string(existing), notes, c.opts.ChangelogTitle)

	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating changelog directory: %w", err)
	}

	if err = renameio.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing changelog: %w", err)
	}

	logger.Info().Str("file", c.opts.ChangelogFile).Msg("updated changelog")

	return nil
}

// Render returns the changelog content with notes prepended. A title already heading existing is moved above the
// new notes.
func Render(existing string, notes string, title string) string {
	existing = strings.TrimSpace(existing)

	if title != "" && strings.HasPrefix(existing, title) {
		existing = strings.TrimSpace(strings.TrimPrefix(existing, title))
	}

	var b strings.Builder

	if title != "" {
		b.WriteString(title)
		b.WriteString("\n\n")
	}

	b.WriteString(notes)
	b.WriteString("\n")

	if existing != "" {
		b.WriteString("\n")
		b.WriteString(existing)
		b.WriteString("\n")
	}

	return b.String()
}
