// Package builtin registers the plugins shipped with nebo-release.
package builtin

import (
	"github.com/jayal13/nebo-release/internal/plugin"
	"github.com/jayal13/nebo-release/internal/plugins/changelog"
	"github.com/jayal13/nebo-release/internal/plugins/commitanalyzer"
	"github.com/jayal13/nebo-release/internal/plugins/git"
	"github.com/jayal13/nebo-release/internal/plugins/github"
	"github.com/jayal13/nebo-release/internal/plugins/npm"
	"github.com/jayal13/nebo-release/internal/plugins/releasenotes"
)

var options = map[string]func() any{
	commitanalyzer.Name: func() any { return &commitanalyzer.Options{} },
	releasenotes.Name:   func() any { return &releasenotes.Options{} },
	npm.Name:            func() any { return &npm.Options{} },
	changelog.Name:      func() any { return &changelog.Options{} },
	git.Name:            func() any { return &git.Options{} },
	github.Name:         func() any { return &github.Options{} },
}

// Options returns a pointer to a new options struct of the named built-in plugin, used to report unknown options.
func Options(name string) (any, bool) {
	newOptions, ok := options[name]
	if !ok {
		return nil, false
	}
	return newOptions(), true
}

// Registry returns a registry holding every built-in plugin.
func Registry() *plugin.Registry {
	r := plugin.NewRegistry()

	r.Register(commitanalyzer.Name, commitanalyzer.New)
	r.Register(releasenotes.Name, releasenotes.New)
	r.Register(npm.Name, npm.New)
	r.Register(changelog.Name, changelog.New)
	r.Register(git.Name, git.New)
	r.Register(github.Name, github.New)

	return r
}
