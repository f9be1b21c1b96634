// Package repourl parses Git repository locations into the host, owner and name of the hosted repository.
package repourl

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var ErrUnsupported = errors.New("unsupported repository URL")

type URL struct {
	Scheme string
	Host   string
	Owner  string
	Repo   string
}

// Parse accepts HTTP(S) URLs ("https://github.com/owner/repo.git"), "git+https" and "git+ssh" URLs and the SCP-like
// SSH syntax ("git@github.com:owner/repo.git"). Owner may contain slashes for nested groups.
func Parse(raw string) (URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return URL{}, fmt.Errorf("%w: empty", ErrUnsupported)
	}

	raw = strings.TrimPrefix(raw, "git+")

	var host, path string
	scheme := "https"

	if !strings.Contains(raw, "://") {
		// SCP-like syntax: [user@]host:path
		at := strings.Index(raw, "@")
		colon := strings.Index(raw, ":")
		if colon < 0 || colon < at {
			return URL{}, fmt.Errorf("%w: %q", ErrUnsupported, raw)
		}
		host = raw[at+1 : colon]
		path = raw[colon+1:]
	} else {
		u, err := url.Parse(raw)
		if err != nil {
			return URL{}, fmt.Errorf("%w: %w", ErrUnsupported, err)
		}
		host = u.Host
		path = u.Path
		if u.Scheme == "http" {
			scheme = "http"
		}
		if u.Scheme == "ssh" || u.Scheme == "git" {
			host = u.Hostname()
		}
	}

	path = strings.TrimSuffix(strings.Trim(path, "/"), ".git")

	i := strings.LastIndex(path, "/")
	if host == "" || i <= 0 || i == len(path)-1 {
		return URL{}, fmt.Errorf("%w: %q", ErrUnsupported, raw)
	}

	return URL{
		Scheme: scheme,
		Host:   host,
		Owner:  path[:i],
		Repo:   path[i+1:],
	}, nil
}

// Web returns the browsable URL of the repository.
func (u URL) Web() string {
	return fmt.Sprintf("%s://%s/%s/%s", u.Scheme, u.Host, u.Owner, u.Repo)
}

// Slug returns "owner/repo".
func (u URL) Slug() string {
	return u.Owner + "/" + u.Repo
}

func (u URL) CommitURL(hash string) string {
	return u.Web() + "/commit/" + hash
}

func (u URL) CompareURL(from, to string) string {
	return fmt.Sprintf("%s/compare/%s...%s", u.Web(), from, to)
}

func (u URL) IssueURL(number string) string {
	return u.Web() + "/issues/" + number
}
