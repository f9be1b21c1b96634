// Package ci provides functions to read the CI environment and to generate output for CI/CD pipelines.
package ci

import (
	"fmt"
	"os"
	"strings"
)

// GitHubOutput holds the values a release run exposes to later GitHub Actions steps.
type GitHubOutput struct {
	NewRelease bool
	Version    string
	Tag        string
	Channel    string
}

// GenerateGitHubOutput appends the release outcome to the file named by GITHUB_OUTPUT, if set.
func GenerateGitHubOutput(env map[string]string, out GitHubOutput) (err error) {
	path, exists := env["GITHUB_OUTPUT"]
	if !exists || path == "" {
		return nil
	}

	var b strings.Builder

	fmt.Fprintf(&b, "\nNEW_RELEASE=%t\n", out.NewRelease)
	fmt.Fprintf(&b, "VERSION=%s\n", out.Version)
	fmt.Fprintf(&b, "TAG=%s\n", out.Tag)
	if out.Channel != "" {
		fmt.Fprintf(&b, "CHANNEL=%s\n", out.Channel)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening ci file: %w", err)
	}

	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing ci file: %w", closeErr)
		}
	}()

	if _, err = f.WriteString(b.String()); err != nil {
		return fmt.Errorf("writing to ci file: %w", err)
	}

	return nil
}
