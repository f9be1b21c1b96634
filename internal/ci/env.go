package ci

import (
	"strconv"
	"strings"
)

// Environment describes the CI service a release runs on.
type Environment struct {
	Name   string
	IsCI   bool
	IsPR   bool
	Branch string
	Commit string
}

// Detect reads the CI environment from environment variables. GitHub Actions and GitLab CI are recognized by name;
// any other service setting CI=true is reported as "generic".
func Detect(env map[string]string) Environment {
	switch {
	case env["GITHUB_ACTIONS"] == "true":
		e := Environment{
			Name:   "GitHub Actions",
			IsCI:   true,
			Commit: env["GITHUB_SHA"],
		}

		event := env["GITHUB_EVENT_NAME"]
		e.IsPR = event == "pull_request" || event == "pull_request_target"

		if e.IsPR {
			e.Branch = env["GITHUB_BASE_REF"]
		} else {
			e.Branch = strings.TrimPrefix(env["GITHUB_REF"], "refs/heads/")
			if name := env["GITHUB_REF_NAME"]; name != "" {
				e.Branch = name
			}
		}

		return e
	case env["GITLAB_CI"] == "true":
		return Environment{
			Name:   "GitLab CI/CD",
			IsCI:   true,
			IsPR:   env["CI_MERGE_REQUEST_ID"] != "",
			Branch: firstNonEmpty(env["CI_MERGE_REQUEST_TARGET_BRANCH_NAME"], env["CI_COMMIT_REF_NAME"]),
			Commit: env["CI_COMMIT_SHA"],
		}
	}

	isCI, _ := strconv.ParseBool(env["CI"])
	if !isCI {
		return Environment{Branch: env["BRANCH_NAME"]}
	}

	return Environment{
		Name:   "generic",
		IsCI:   true,
		Branch: env["BRANCH_NAME"],
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
