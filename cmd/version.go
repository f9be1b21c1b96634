package cmd

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X" on release builds, read from the embedded build info otherwise.
var (
	cmdVersion      string
	buildNumber     string
	buildCommitHash string
)

type versionInfo struct {
	Version   string
	Commit    string
	GoVersion string
	Modified  bool
}

func NewVersionCmd() *cobra.Command {
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Display CLI current version",
		Long:  "Display CLI current version, the associated build number, commit hash and Go version",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := readVersionInfo()

			version := info.Version
			if info.Modified {
				version += " (modified)"
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Version: %s\n", version)

			if buildNumber != "" {
				_, _ = fmt.Fprintf(out, "Build: %s\n", buildNumber)
			}

			_, _ = fmt.Fprintf(out, "Commit: %s\n", info.Commit)
			_, _ = fmt.Fprintf(out, "Go: %s\n", info.GoVersion)

			return nil
		},
	}

	return versionCmd
}

func readVersionInfo() versionInfo {
	info := versionInfo{
		Version:   "unknown",
		Commit:    "unknown",
		GoVersion: runtime.Version(),
	}

	if cmdVersion != "" {
		info.Version = cmdVersion
	}
	if buildCommitHash != "" {
		info.Commit = buildCommitHash
	}

	build, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}

	if cmdVersion == "" && build.Main.Version != "" {
		info.Version = build.Main.Version
	}

	for _, setting := range build.Settings {
		switch setting.Key {
		case "vcs.revision":
			if buildCommitHash == "" {
				info.Commit = setting.Value
				if len(info.Commit) > 12 {
					info.Commit = info.Commit[:12]
				}
			}
		case "vcs.modified":
			info.Modified = setting.Value == "true"
		}
	}

	return info
}
