package release

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jayal13/nebo-release/internal/plugin"
	"github.com/jayal13/nebo-release/internal/semver"
)

// enter points rc at the options of p and returns the logger of the step.
func enter(rc *plugin.Context, p instance, step plugin.Step) zerolog.Logger {
	rc.Options = p.directive.Options

	logger := rc.Logger.With().Str("step", string(step)).Str("plugin", p.Name()).Logger()
	logger.Debug().Msg("start step")

	return logger
}

func stepError(step plugin.Step, p instance, err error) error {
	return fmt.Errorf("%s of %s: %w", step, p.Name(), err)
}

// verifyConditions runs every verifier and reports all failures at once.
func verifyConditions(ctx context.Context, rc *plugin.Context, plugins []instance) error {
	var errs []error

	for _, p := range plugins {
		v, ok := p.Plugin.(plugin.ConditionVerifier)
		if !ok {
			continue
		}

		logger := enter(rc, p, plugin.StepVerifyConditions)

		if err := v.VerifyConditions(ctx, rc); err != nil {
			logger.Error().Err(err).Msg("failed step")
			errs = append(errs, stepError(plugin.StepVerifyConditions, p, err))
			continue
		}

		logger.Debug().Msg("completed step")
	}

	return errors.Join(errs...)
}

// analyzeCommits returns the highest release type returned by the analyzers.
func analyzeCommits(ctx context.Context, rc *plugin.Context, plugins []instance) (semver.BumpType, error) {
	bump := semver.BumpNone

	for _, p := range plugins {
		a, ok := p.Plugin.(plugin.CommitAnalyzer)
		if !ok {
			continue
		}

		logger := enter(rc, p, plugin.StepAnalyzeCommits)

		b, err := a.AnalyzeCommits(ctx, rc)
		if err != nil {
			return semver.BumpNone, stepError(plugin.StepAnalyzeCommits, p, err)
		}

		logger.Debug().Str("release", b.String()).Msg("completed step")

		bump = max(bump, b)
	}

	return bump, nil
}

func verifyRelease(ctx context.Context, rc *plugin.Context, plugins []instance) error {
	for _, p := range plugins {
		v, ok := p.Plugin.(plugin.ReleaseVerifier)
		if !ok {
			continue
		}

		logger := enter(rc, p, plugin.StepVerifyRelease)

		if err := v.VerifyRelease(ctx, rc); err != nil {
			return stepError(plugin.StepVerifyRelease, p, err)
		}

		logger.Debug().Msg("completed step")
	}

	return nil
}

// generateNotes concatenates the non-empty notes of every generator, separated by a blank line.
func generateNotes(ctx context.Context, rc *plugin.Context, plugins []instance) (string, error) {
	var notes []string

	for _, p := range plugins {
		g, ok := p.Plugin.(plugin.NotesGenerator)
		if !ok {
			continue
		}

		logger := enter(rc, p, plugin.StepGenerateNotes)

		n, err := g.GenerateNotes(ctx, rc)
		if err != nil {
			return "", stepError(plugin.StepGenerateNotes, p, err)
		}

		if n = strings.TrimSpace(n); n != "" {
			notes = append(notes, n)
		}

		logger.Debug().Msg("completed step")
	}

	return strings.Join(notes, "\n\n"), nil
}

func prepare(ctx context.Context, rc *plugin.Context, plugins []instance) error {
	for _, p := range plugins {
		pr, ok := p.Plugin.(plugin.Preparer)
		if !ok {
			continue
		}

		logger := enter(rc, p, plugin.StepPrepare)

		if err := pr.Prepare(ctx, rc); err != nil {
			return stepError(plugin.StepPrepare, p, err)
		}

		logger.Debug().Msg("completed step")
	}

	return nil
}

// publishRelease collects the releases returned by publishers into rc.Releases.
func publishRelease(ctx context.Context, rc *plugin.Context, plugins []instance) error {
	for _, p := range plugins {
		pub, ok := p.Plugin.(plugin.Publisher)
		if !ok {
			continue
		}

		logger := enter(rc, p, plugin.StepPublish)

		r, err := pub.Publish(ctx, rc)
		if err != nil {
			return stepError(plugin.StepPublish, p, err)
		}

		if r == nil {
			logger.Debug().Msg("skipped publication")
			continue
		}

		if r.PluginName == "" {
			r.PluginName = p.Name()
		}
		if r.Version == nil {
			r.Version = rc.NextRelease.Version
			r.GitTag = rc.NextRelease.GitTag
			r.GitHead = rc.NextRelease.GitHead
			r.Channel = rc.NextRelease.Channel
		}

		rc.Releases = append(rc.Releases, *r)

		logger.Info().Str("name", r.Name).Str("url", r.URL).Msg("published release")
	}

	return nil
}

func success(ctx context.Context, rc *plugin.Context, plugins []instance) error {
	for _, p := range plugins {
		s, ok := p.Plugin.(plugin.SuccessNotifier)
		if !ok {
			continue
		}

		logger := enter(rc, p, plugin.StepSuccess)

		if err := s.Success(ctx, rc); err != nil {
			return stepError(plugin.StepSuccess, p, err)
		}

		logger.Debug().Msg("completed step")
	}

	return nil
}

// fail notifies every plugin of the errors in rc.Errors. Errors of the notifiers themselves are only logged.
func fail(ctx context.Context, rc *plugin.Context, plugins []instance) {
	for _, p := range plugins {
		f, ok := p.Plugin.(plugin.FailNotifier)
		if !ok {
			continue
		}

		logger := enter(rc, p, plugin.StepFail)

		if err := f.Fail(ctx, rc); err != nil {
			logger.Error().Err(err).Msg("failed step")
			continue
		}

		logger.Debug().Msg("completed step")
	}
}
