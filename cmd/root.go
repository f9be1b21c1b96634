// Package cmd implements the nebo-release command line interface.
package cmd

import (
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jayal13/nebo-release/internal/appcontext"
	"github.com/jayal13/nebo-release/internal/config"
)

const (
	defaultGitName    = "NEBo Release Bot"
	defaultGitEmail   = "nebo-release@release.bot"
	defaultRemoteName = "origin"
	envPrefix         = "NEBO_RELEASE"
)

func NewRootCommand(ctx *appcontext.AppContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "nebo-release",
		Short:         "nebo-release - automated semantic releases driven by conventional commits",
		Long:          "Determine the next semantic version of a Git repository from its conventional commits, then tag and publish it through the configured plugins",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initializeConfig(cmd, ctx)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.CfgFile, "config", "c", "", "Release configuration file (default: .releaserc, .releaserc.yaml, .releaserc.json or package.json in the repository)")
	flags.BoolVarP(&ctx.Verbose, "verbose", "v", false, "Verbose output")
	flags.BoolVarP(&ctx.DryRun, "dry-run", "d", false, "Compute the next release without tagging or publishing it")
	flags.BoolVar(&ctx.NoCI, "no-ci", false, "Run outside of a CI environment, and on pull requests")
	flags.BoolVar(&ctx.JSON, "json", false, "Write a JSON summary of the run to standard output")
	flags.Var(&ctx.BranchesCfg, "branches", "Release branches, as comma-separated names or a JSON array (e.g. '[{\"name\": \"beta\", \"prerelease\": true}]')")
	flags.Var(&ctx.PluginsCfg, "plugins", "Plugins, as comma-separated identifiers or a JSON array (e.g. '[\"@semantic-release/commit-analyzer\"]')")
	flags.String("repository-url", "", "Git repository URL (default: URL of the remote)")
	flags.String("tag-format", "", "Git tag format, must contain ${version} (default: v${version})")
	flags.StringVar(&ctx.GitName, "git-name", defaultGitName, "Name used to author release commits and tags")
	flags.StringVar(&ctx.GitEmail, "git-email", defaultGitEmail, "Email used to author release commits and tags")
	flags.StringVar(&ctx.AccessToken, "access-token", "", "Access token used to push to the remote (default: $GH_TOKEN or $GITHUB_TOKEN)")
	flags.StringVar(&ctx.RemoteName, "remote-name", defaultRemoteName, "Name of the Git remote releases are pushed to")
	flags.StringVar(&ctx.GPGKeyPath, "gpg-key-path", "", "Path to an armored GPG key used to sign release commits and tags")
	flags.StringVar(&ctx.GPGPassphrase, "gpg-passphrase", "", "Passphrase of the GPG key")

	rootCmd.AddCommand(NewReleaseCmd(ctx))
	rootCmd.AddCommand(NewValidateCmd(ctx))
	rootCmd.AddCommand(NewPluginsCmd())
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// initializeConfig binds the flags to the Viper instance of ctx, reads unset flag values from NEBO_RELEASE_*
// environment variables and sets up the logger.
func initializeConfig(cmd *cobra.Command, ctx *appcontext.AppContext) error {
	v := ctx.Viper

	v.SetDefault(config.KeyCI, true)

	bindings := map[string]string{
		config.KeyRepositoryURL: "repository-url",
		config.KeyTagFormat:     "tag-format",
		config.KeyDryRun:        "dry-run",
	}

	for key, name := range bindings {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return err
		}
	}

	var bindErr error

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed || bindErr != nil {
			return
		}

		envName := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		if val, ok := ctx.Env[envName]; ok && val != "" {
			bindErr = cmd.Flags().Set(f.Name, val)
		}
	})
	if bindErr != nil {
		return bindErr
	}

	if ctx.AccessToken == "" {
		ctx.AccessToken = ctx.Getenv("GH_TOKEN")
	}
	if ctx.AccessToken == "" {
		ctx.AccessToken = ctx.Getenv("GITHUB_TOKEN")
	}

	if ctx.NoCI {
		v.Set(config.KeyCI, false)
	}

	var out io.Writer = cmd.OutOrStdout()
	if ctx.JSON {
		out = cmd.ErrOrStderr()
	}

	level := zerolog.InfoLevel
	if ctx.Verbose {
		level = zerolog.DebugLevel
	}

	ctx.Logger = zerolog.New(out).Level(level).With().Timestamp().Logger()

	return nil
}
