// Package git commits the release assets modified by previous plugins and pushes them to the release branch.
package git

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/bmatcuk/doublestar/v4"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/jayal13/nebo-release/internal/plugin"
)

const (
	Name           = "@semantic-release/git"
	DefaultMessage = "chore(release): {{ .NextRelease.Version }} [skip ci]\n\n{{ .NextRelease.Notes }}"
)

var DefaultAssets = []string{"CHANGELOG.md", "package.json", "package-lock.json", "npm-shrinkwrap.json"}

type Options struct {
	Assets  any    `mapstructure:"assets"`
	Message string `mapstructure:"message"`
}

// MessageData is the data the commit message template is executed with.
type MessageData struct {
	Branch      string
	LastRelease *plugin.Release
	NextRelease *plugin.Release
}

type Git struct {
	assets  []string
	message *template.Template
}

func New(options map[string]any) (plugin.Plugin, error) {
	opts := Options{Message: DefaultMessage}

	if err := plugin.DecodeOptions(options, &opts); err != nil {
		return nil, err
	}

	assets, err := parseAssets(opts.Assets)
	if err != nil {
		return nil, err
	}

	for _, a := range assets {
		if !doublestar.ValidatePattern(a) {
			return nil, fmt.Errorf("invalid asset pattern %q", a)
		}
	}

	message, err := template.New("message").Funcs(sprig.TxtFuncMap()).Parse(opts.Message)
	if err != nil {
		return nil, fmt.Errorf("parsing message template: %w", err)
	}

	return &Git{assets: assets, message: message}, nil
}

// parseAssets accepts false (no assets), a single glob, or a list of globs and {path: glob} objects.
func parseAssets(raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return DefaultAssets, nil
	case bool:
		if v {
			return DefaultAssets, nil
		}
		return nil, nil
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		assets := make([]string, 0, len(v))
		for i, entry := range v {
			switch e := entry.(type) {
			case string:
				assets = append(assets, e)
			case map[string]any:
				path, ok := e["path"].(string)
				if !ok {
					return nil, fmt.Errorf("assets[%d]: path must be a string", i)
				}
				assets = append(assets, path)
			default:
				return nil, fmt.Errorf("assets[%d]: unexpected %T", i, entry)
			}
		}
		return assets, nil
	default:
		return nil, fmt.Errorf("assets: unexpected %T", raw)
	}
}

func (g *Git) Name() string {
	return Name
}

// Prepare commits the modified files matching the assets and pushes the release branch.
func (g *Git) Prepare(_ context.Context, rc *plugin.Context) error {
	logger := rc.Logger.With().Str("plugin", Name).Logger()

	if len(g.assets) == 0 {
		logger.Info().Msg("no assets configured, nothing to commit")
		return nil
	}

	worktree, err := rc.Repository.Worktree()
	if err != nil {
		return fmt.Errorf("fetching worktree: %w", err)
	}

	files, err := g.changedAssets(worktree)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		logger.Info().Msg("no modified asset, nothing to commit")
		return nil
	}

	for _, f := range files {
		logger.Debug().Str("file", f).Msg("adding asset")
		if _, err = worktree.Add(f); err != nil {
			return fmt.Errorf("adding %s: %w", f, err)
		}
	}

	var msg bytes.Buffer
	err = g.message.Execute(&msg, MessageData{
		Branch:      rc.Branch.Name,
		LastRelease: rc.LastRelease,
		NextRelease: rc.NextRelease,
	})
	if err != nil {
		return fmt.Errorf("rendering commit message: %w", err)
	}

	signature := &object.Signature{Name: rc.GitName, Email: rc.GitEmail, When: time.Now()}

	hash, err := worktree.Commit(msg.String(), &gogit.CommitOptions{
		Author:    signature,
		Committer: signature,
		SignKey:   rc.SignKey,
	})
	if err != nil {
		return fmt.Errorf("committing assets: %w", err)
	}

	logger.Info().Str("commit", hash.String()).Strs("files", files).Msg("committed release assets")

	if rc.NextRelease != nil {
		rc.NextRelease.GitHead = hash.String()
	}

	if rc.Pusher == nil {
		logger.Debug().Msg("no remote, release commit not pushed")
		return nil
	}

	if err = rc.Pusher.PushBranch(rc.Branch.Name); err != nil {
		return err
	}

	logger.Info().Str("branch", rc.Branch.Name).Msg("pushed release commit")

	return nil
}

// changedAssets returns the sorted worktree paths that differ from HEAD and match one of the asset globs.
func (g *Git) changedAssets(worktree *gogit.Worktree) ([]string, error) {
	status, err := worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("fetching worktree status: %w", err)
	}

	var files []string

	for path, s := range status {
		if s.Worktree == gogit.Unmodified && s.Staging == gogit.Unmodified {
			continue
		}

		for _, pattern := range g.assets {
			if doublestar.MatchUnvalidated(pattern, path) {
				files = append(files, path)
				break
			}
		}
	}

	sort.Strings(files)

	return files, nil
}
