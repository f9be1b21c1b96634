// Package config loads the release configuration: the branches releases are made from, the repository they are
// published to and the ordered list of plugins forming the release pipeline.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/buger/jsonparser"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jayal13/nebo-release/internal/branch"
	"github.com/jayal13/nebo-release/internal/plugin"
	"github.com/jayal13/nebo-release/internal/tag"
)

const (
	KeyBranches      = "branches"
	KeyRepositoryURL = "repositoryUrl"
	KeyTagFormat     = "tagFormat"
	KeyPlugins       = "plugins"
	KeyDryRun        = "dryRun"
	KeyCI            = "ci"

	packageJSON = "package.json"
)

var (
	ErrNotFound      = errors.New("no release configuration file found")
	ErrInvalidPlugin = errors.New("invalid plugin configuration")
	ErrMalformed     = errors.New("malformed release configuration")
)

// Files lists the configuration file names looked up in a repository, by order of precedence. The "release" key of
// package.json is used when none of them exists.
var Files = []string{
	".releaserc",
	".releaserc.yaml",
	".releaserc.yml",
	".releaserc.json",
	"release.config.yaml",
	"release.config.yml",
}

// DefaultPlugins is the plugin list used when the configuration does not name any.
var DefaultPlugins = []plugin.Directive{
	{Name: "@semantic-release/commit-analyzer", Options: map[string]any{}},
	{Name: "@semantic-release/release-notes-generator", Options: map[string]any{}},
	{Name: "@semantic-release/npm", Options: map[string]any{}},
	{Name: "@semantic-release/github", Options: map[string]any{}},
}

type Config struct {
	Branches      []branch.Item      `json:"branches"`
	RepositoryURL string             `json:"repositoryUrl"`
	TagFormat     string             `json:"tagFormat"`
	Plugins       []plugin.Directive `json:"plugins"`
	DryRun        bool               `json:"dryRun"`
	CI            bool               `json:"ci"`
}

// Overrides holds values set on the command line that replace the ones of the configuration file.
type Overrides struct {
	Branches []branch.Item
	Plugins  []plugin.Directive
}

// Find locates the release configuration file of the repository at dir.
func Find(dir string) (string, error) {
	for _, name := range Files {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}

	path := filepath.Join(dir, packageJSON)

	data, err := os.ReadFile(path)
	if err != nil {
		return "", ErrNotFound
	}

	if _, _, _, err = jsonparser.Get(data, "release"); err != nil {
		return "", ErrNotFound
	}

	return path, nil
}

// ReadFile decodes a configuration file, preserving the case of keys so that plugin options reach plugins as
// written. Every file is decoded as YAML, JSON being a subset of it, whatever its extension. Only the "release" key
// of a package.json file is read.
func ReadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration file: %w", err)
	}

	if filepath.Base(path) == packageJSON {
		data, _, _, err = jsonparser.Get(data, "release")
		if err != nil {
			return nil, fmt.Errorf("%w: reading release key of %s: %w", ErrMalformed, path, err)
		}
	}

	raw := make(map[string]any)

	if err = yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, path, err)
	}

	return raw, nil
}

// Bind exposes the scalar values of a raw configuration to v, below flags and environment variables in
// precedence. Viper folds key case, so structured values (branches, plugins) are kept out of it.
func Bind(v *viper.Viper, raw map[string]any) error {
	scalars := make(map[string]any)

	for _, key := range []string{KeyRepositoryURL, KeyTagFormat, KeyDryRun, KeyCI} {
		if val, ok := raw[key]; ok {
			scalars[key] = val
		}
	}

	if err := v.MergeConfigMap(scalars); err != nil {
		return fmt.Errorf("merging configuration: %w", err)
	}

	return nil
}

// Load builds the release configuration from the raw configuration file content, the Viper instance holding flag
// and environment values, and the command line overrides. Missing values fall back to defaults.
func Load(v *viper.Viper, raw map[string]any, overrides Overrides) (Config, error) {
	cfg := Config{
		RepositoryURL: v.GetString(KeyRepositoryURL),
		TagFormat:     v.GetString(KeyTagFormat),
		DryRun:        v.GetBool(KeyDryRun),
		CI:            v.GetBool(KeyCI),
	}

	if cfg.TagFormat == "" {
		cfg.TagFormat = tag.DefaultFormat
	}

	switch {
	case len(overrides.Branches) > 0:
		cfg.Branches = overrides.Branches
	case raw[KeyBranches] != nil:
		branches, err := branch.Unmarshall(raw[KeyBranches])
		if err != nil {
			return cfg, fmt.Errorf("parsing branches configuration: %w", err)
		}
		cfg.Branches = branches
	default:
		cfg.Branches = append([]branch.Item(nil), branch.Default...)
	}

	switch {
	case len(overrides.Plugins) > 0:
		cfg.Plugins = overrides.Plugins
	case raw[KeyPlugins] != nil:
		plugins, err := plugin.ParseDirectives(raw[KeyPlugins])
		if err != nil {
			return cfg, fmt.Errorf("%w: %w", ErrInvalidPlugin, err)
		}
		cfg.Plugins = plugins
	default:
		cfg.Plugins = append([]plugin.Directive(nil), DefaultPlugins...)
	}

	return cfg, nil
}

// Validate checks the invariants of a loaded configuration.
func (c Config) Validate() error {
	if err := branch.Validate(c.Branches); err != nil {
		return fmt.Errorf("validating branches: %w", err)
	}

	if err := tag.ValidateFormat(c.TagFormat); err != nil {
		return fmt.Errorf("validating tag format: %w", err)
	}

	if len(c.Plugins) == 0 {
		return fmt.Errorf("%w: no plugin configured", ErrInvalidPlugin)
	}

	for i, p := range c.Plugins {
		if p.Name == "" {
			return fmt.Errorf("%w: plugins[%d]: %w", ErrInvalidPlugin, i, plugin.ErrNoPluginName)
		}
	}

	return nil
}
