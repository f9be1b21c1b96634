// Package npm updates the version of an npm package and publishes it to the registry.
package npm

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/google/renameio/v2"

	"github.com/jayal13/nebo-release/internal/plugin"
)

const (
	Name            = "@semantic-release/npm"
	DefaultRegistry = "https://registry.npmjs.org/"
	tokenEnv        = "NPM_TOKEN"
)

var (
	ErrNoPackage = errors.New("package.json not found")
	ErrNoToken   = errors.New("no npm token specified")
)

// lockFiles are rewritten along package.json when present.
var lockFiles = []string{"package-lock.json", "npm-shrinkwrap.json"}

// Runner executes an external command in dir and returns its combined output.
type Runner func(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = env
	return cmd.CombinedOutput()
}

type Options struct {
	NpmPublish bool   `mapstructure:"npmPublish"`
	PkgRoot    string `mapstructure:"pkgRoot"`
	TarballDir any    `mapstructure:"tarballDir"`
}

type NPM struct {
	opts       Options
	tarballDir string
	run        Runner
}

func New(options map[string]any) (plugin.Plugin, error) {
	opts := Options{
		NpmPublish: true,
		PkgRoot:    ".",
	}

	if err := plugin.DecodeOptions(options, &opts); err != nil {
		return nil, err
	}

	n := &NPM{opts: opts, run: execRunner}

	switch dir := opts.TarballDir.(type) {
	case nil, bool:
	case string:
		n.tarballDir = dir
	default:
		return nil, fmt.Errorf("tarballDir must be a path or false, got %T", opts.TarballDir)
	}

	return n, nil
}

func (n *NPM) Name() string {
	return Name
}

func (n *NPM) pkgDir(rc *plugin.Context) string {
	return filepath.Join(rc.Dir, n.opts.PkgRoot)
}

// publishes reports whether the package is published: npmPublish is set and package.json is not private.
func (n *NPM) publishes(pkg []byte) bool {
	if !n.opts.NpmPublish {
		return false
	}
	private, err := jsonparser.GetBoolean(pkg, "private")
	return err != nil || !private
}

func (n *NPM) readPackage(rc *plugin.Context) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(n.pkgDir(rc), "package.json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w in %q", ErrNoPackage, n.pkgDir(rc))
		}
		return nil, fmt.Errorf("reading package.json: %w", err)
	}
	return data, nil
}

func (n *NPM) VerifyConditions(_ context.Context, rc *plugin.Context) error {
	pkg, err := n.readPackage(rc)
	if err != nil {
		return err
	}

	if _, err = jsonparser.GetString(pkg, "name"); err != nil && n.publishes(pkg) {
		return fmt.Errorf("package.json has no name: %w", err)
	}

	if n.publishes(pkg) && rc.Getenv(tokenEnv) == "" {
		return fmt.Errorf("%w: set the %s environment variable", ErrNoToken, tokenEnv)
	}

	return nil
}

// Prepare writes the next version to package.json and to the lock files found next to it. The rest of each file is
// left untouched.
func (n *NPM) Prepare(ctx context.Context, rc *plugin.Context) error {
	version := rc.NextRelease.Version.String()
	logger := rc.Logger.With().Str("plugin", Name).Logger()

	files := append([]string{"package.json"}, lockFiles...)

	for _, name := range files {
		path := filepath.Join(n.pkgDir(rc), name)

		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && name != "package.json" {
				continue
			}
			return fmt.Errorf("reading %s: %w", name, err)
		}

		data, err = SetVersion(data, version)
		if err != nil {
			return fmt.Errorf("updating %s: %w", name, err)
		}

		if err = renameio.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}

		logger.Info().Str("file", name).Str("version", version).Msg("wrote version")
	}

	if n.tarballDir == "" {
		return nil
	}

	dest := filepath.Join(rc.Dir, n.tarballDir)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("creating tarball directory: %w", err)
	}

	out, err := n.run(ctx, n.pkgDir(rc), os.Environ(), "npm", "pack", ".", "--pack-destination", dest)
	if err != nil {
		return fmt.Errorf("running npm pack: %w: %s", err, out)
	}

	logger.Info().Str("dir", dest).Msg("created package tarball")

	return nil
}

// SetVersion sets the top-level "version" field of a package manifest or lock file, and the version of the root
// package of a lockfile v2+ ("packages" -> "" -> "version") when present.
func SetVersion(data []byte, version string) ([]byte, error) {
	value := []byte(strconv.Quote(version))

	data, err := jsonparser.Set(data, value, "version")
	if err != nil {
		return nil, err
	}

	if _, _, _, err = jsonparser.Get(data, "packages", ""); err == nil {
		data, err = jsonparser.Set(data, value, "packages", "", "version")
		if err != nil {
			return nil, err
		}
	}

	return data, nil
}

func (n *NPM) Publish(ctx context.Context, rc *plugin.Context) (*plugin.Release, error) {
	logger := rc.Logger.With().Str("plugin", Name).Logger()

	pkg, err := n.readPackage(rc)
	if err != nil {
		return nil, err
	}

	if !n.publishes(pkg) {
		logger.Info().Msg("skip publishing to npm registry as npmPublish is false or package.json is private")
		return nil, nil
	}

	registry := registryURL(pkg, rc)
	distTag := rc.NextRelease.Channel
	if distTag == "" {
		distTag = "latest"
	}

	npmrc, err := writeNpmrc(registry, rc.Getenv(tokenEnv))
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.Remove(npmrc) }()

	out, err := n.run(ctx, n.pkgDir(rc), environ(rc.Env), "npm", "publish", ".",
		"--userconfig", npmrc, "--tag", distTag, "--registry", registry)
	if err != nil {
		return nil, fmt.Errorf("running npm publish: %w: %s", err, out)
	}

	pkgName, _ := jsonparser.GetString(pkg, "name")
	version := rc.NextRelease.Version.String()

	logger.Info().Str("package", pkgName).Str("version", version).Str("tag", distTag).Msg("published to npm registry")

	release := &plugin.Release{
		Name:       fmt.Sprintf("npm package (@%s dist-tag)", distTag),
		PluginName: Name,
	}
	if registry == DefaultRegistry {
		release.URL = fmt.Sprintf("https://www.npmjs.com/package/%s/v/%s", pkgName, version)
	}

	return release, nil
}

// registryURL resolves the registry from publishConfig.registry, then NPM_CONFIG_REGISTRY.
func registryURL(pkg []byte, rc *plugin.Context) string {
	if r, err := jsonparser.GetString(pkg, "publishConfig", "registry"); err == nil && r != "" {
		return r
	}
	if r := rc.Getenv("NPM_CONFIG_REGISTRY"); r != "" {
		return r
	}
	return DefaultRegistry
}

func writeNpmrc(registry string, token string) (string, error) {
	u, err := url.Parse(registry)
	if err != nil {
		return "", fmt.Errorf("parsing registry URL: %w", err)
	}

	path := strings.TrimSuffix(u.Path, "/") + "/"
	content := fmt.Sprintf("//%s%s:_authToken=%s\n", u.Host, path, token)

	f, err := os.CreateTemp("", "nebo-release-npmrc-*")
	if err != nil {
		return "", fmt.Errorf("creating npmrc: %w", err)
	}

	if _, err = f.WriteString(content); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("writing npmrc: %w", err)
	}

	return f.Name(), f.Close()
}

func environ(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
