package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gogithub "github.com/google/go-github/v75/github"
	"golang.org/x/oauth2"
)

// newClient returns a GitHub client authenticated with token and sending its requests to baseURL.
func newClient(ctx context.Context, baseURL string, token string) (*gogithub.Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	c := gogithub.NewClient(oauth2.NewClient(ctx, ts))

	u, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parsing GitHub API URL: %w", err)
	}
	c.BaseURL = u

	return c, nil
}

func isNotFound(resp *gogithub.Response) bool {
	return resp != nil && resp.StatusCode == http.StatusNotFound
}
