// Package commitanalyzer determines the type of release from the commits added since the last release.
package commitanalyzer

import (
	"context"
	"fmt"

	"github.com/jayal13/nebo-release/internal/commit"
	"github.com/jayal13/nebo-release/internal/plugin"
	"github.com/jayal13/nebo-release/internal/rule"
	"github.com/jayal13/nebo-release/internal/semver"
)

const Name = "@semantic-release/commit-analyzer"

type Options struct {
	ReleaseRules any `mapstructure:"releaseRules"`
	Preset       any `mapstructure:"preset"`
	PresetConfig any `mapstructure:"presetConfig"`
	ParserOpts   any `mapstructure:"parserOpts"`
}

type CommitAnalyzer struct {
	rules rule.Rules
}

// New builds the plugin from its options. Custom release rules are evaluated before the default ones: a commit
// matched by a custom rule is not looked at by the defaults.
func New(options map[string]any) (plugin.Plugin, error) {
	var opts Options
	if err := plugin.DecodeOptions(options, &opts); err != nil {
		return nil, err
	}

	a := &CommitAnalyzer{}

	if opts.ReleaseRules != nil {
		rules, err := rule.Unmarshall(opts.ReleaseRules)
		if err != nil {
			return nil, fmt.Errorf("parsing releaseRules: %w", err)
		}
		a.rules = rules
	}

	return a, nil
}

func (a *CommitAnalyzer) Name() string {
	return Name
}

// AnalyzeCommits returns the highest release type triggered by the commits of the run.
func (a *CommitAnalyzer) AnalyzeCommits(_ context.Context, rc *plugin.Context) (semver.BumpType, error) {
	logger := rc.Logger.With().Str("plugin", Name).Logger()

	release := semver.BumpNone

	for _, c := range rc.Commits {
		if commit.Skipped(c) {
			logger.Debug().Str("commit", c.ShortHash()).Msg("skipping commit")
			continue
		}

		parsed := commit.Parse(c)
		bump := a.analyze(parsed)

		logger.Debug().
			Str("commit", c.ShortHash()).
			Str("header", parsed.Header).
			Str("release", bump.String()).
			Msg("analyzed commit")

		release = max(release, bump)
		if release == semver.BumpMajor {
			break
		}
	}

	logger.Info().Str("release", release.String()).Int("commits", len(rc.Commits)).Msg("analysis complete")

	return release, nil
}

func (a *CommitAnalyzer) analyze(c commit.Conventional) semver.BumpType {
	if len(a.rules) > 0 {
		if bump, matched := a.rules.Analyze(c); matched {
			return bump
		}
	}

	if !c.IsConventional() {
		return semver.BumpNone
	}

	bump, _ := rule.Default.Analyze(c)
	return bump
}
