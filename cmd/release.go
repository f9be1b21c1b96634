package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/spf13/cobra"

	"github.com/jayal13/nebo-release/internal/appcontext"
	"github.com/jayal13/nebo-release/internal/ci"
	"github.com/jayal13/nebo-release/internal/config"
	"github.com/jayal13/nebo-release/internal/gpg"
	"github.com/jayal13/nebo-release/internal/plugins/builtin"
	"github.com/jayal13/nebo-release/internal/release"
	"github.com/jayal13/nebo-release/internal/remote"
)

func NewReleaseCmd(ctx *appcontext.AppContext) *cobra.Command {
	releaseCmd := &cobra.Command{
		Use:   "release [REPOSITORY_PATH_OR_URL]",
		Short: "Release a Git repository according to its release configuration",
		Long:  "Analyze the commits added since the last release of the current branch and, when they warrant a new version, tag it and run the configured plugins to publish it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			target := "."
			if len(args) == 1 {
				target = args[0]
			}

			origin := remote.New(ctx.RemoteName, ctx.AccessToken)

			var (
				repository *git.Repository
				dir        string
				pusher     release.Remote
			)

			if isRemoteURL(target) {
				repository, dir, err = origin.Clone(target)
				if err != nil {
					return fmt.Errorf("cloning Git repository: %w", err)
				}
				defer func() { _ = os.RemoveAll(dir) }()

				pusher = origin
			} else {
				dir = target
				repository, err = git.PlainOpen(dir)
				if err != nil {
					return fmt.Errorf("opening local Git repository: %w", err)
				}

				err = origin.Attach(repository)
				switch {
				case err == nil:
					pusher = origin
				case errors.Is(err, remote.ErrNoRemote):
					ctx.Logger.Debug().Str("remote", ctx.RemoteName).Msg("no remote, releasing locally")
				default:
					return err
				}
			}

			cfg, err := loadConfig(ctx, dir)
			if err != nil {
				return err
			}

			entity, err := gpg.Load(ctx.GPGKeyPath, &gpg.Options{Passphrase: ctx.GPGPassphrase})
			if err != nil {
				return fmt.Errorf("configuring GPG key: %w", err)
			}

			if entity != nil {
				ctx.Logger.Debug().Str("path", ctx.GPGKeyPath).Msg("signing release commits and tags")
			}

			result, err := release.Run(cmd.Context(), release.Options{
				Logger:     ctx.Logger,
				Config:     cfg,
				Registry:   builtin.Registry(),
				Repository: repository,
				Dir:        dir,
				Remote:     pusher,
				RemoteName: ctx.RemoteName,
				Env:        ctx.Env,
				GitName:    ctx.GitName,
				GitEmail:   ctx.GitEmail,
				SignKey:    entity,
			})
			if err != nil {
				return fmt.Errorf("releasing: %w", err)
			}

			return writeOutputs(cmd, ctx, result)
		},
	}

	return releaseCmd
}

func isRemoteURL(target string) bool {
	return strings.Contains(target, "://") || strings.HasPrefix(target, "git@")
}

// loadConfig reads the configuration file given on the command line, or the one found in dir, and applies the
// command line overrides.
func loadConfig(ctx *appcontext.AppContext, dir string) (config.Config, error) {
	path := ctx.CfgFile

	if path == "" {
		found, err := config.Find(dir)
		switch {
		case err == nil:
			path = found
		case errors.Is(err, config.ErrNotFound):
			ctx.Logger.Debug().Msg("no configuration file found, using defaults")
		default:
			return config.Config{}, err
		}
	}

	raw := map[string]any{}

	if path != "" {
		ctx.Logger.Debug().Str("path", path).Msg("loading configuration file")

		var err error
		if raw, err = config.ReadFile(path); err != nil {
			return config.Config{}, err
		}
	}

	if err := config.Bind(ctx.Viper, raw); err != nil {
		return config.Config{}, err
	}

	cfg, err := config.Load(ctx.Viper, raw, config.Overrides{
		Branches: ctx.BranchesCfg,
		Plugins:  ctx.PluginsCfg,
	})
	if err != nil {
		return cfg, fmt.Errorf("loading configuration: %w", err)
	}

	if err = cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func writeOutputs(cmd *cobra.Command, ctx *appcontext.AppContext, result release.Result) error {
	out := ci.ReleaseOutput{
		NewRelease: result.NewRelease && !result.DryRun,
		DryRun:     result.DryRun,
		Branch:     result.Branch,
	}

	switch {
	case result.Skipped:
		out.Message = "skipped: " + result.Reason
	case !result.NewRelease:
		out.Message = "no new release"
	case result.DryRun:
		out.Message = "dry-run enabled, next release found"
	default:
		out.Message = "new release published"
	}

	if result.LastRelease != nil {
		out.LastVersion = result.LastRelease.Version.String()
		out.Version = out.LastVersion
		out.Tag = result.LastRelease.GitTag
	}

	if result.NextRelease != nil {
		out.Version = result.NextRelease.Version.String()
		out.Tag = result.NextRelease.GitTag
		out.Type = result.NextRelease.Type.String()
	}

	for _, r := range result.Releases {
		out.Published = append(out.Published, ci.PublishOutput{Plugin: r.PluginName, Name: r.Name, URL: r.URL})
	}

	gh := ci.GitHubOutput{
		NewRelease: out.NewRelease,
		Version:    out.Version,
		Tag:        out.Tag,
	}
	if result.NextRelease != nil {
		gh.Channel = result.NextRelease.Channel
	}

	err := ci.GenerateGitHubOutput(ctx.Env, gh)
	if err != nil {
		return fmt.Errorf("generating github output: %w", err)
	}

	if !ctx.JSON {
		return nil
	}

	output := ci.NewJSONOutput()
	output.AddRelease(out)

	return output.Write(cmd.OutOrStdout())
}
