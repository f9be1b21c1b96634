// Package github publishes releases on GitHub and reports release failures in a GitHub issue.
package github

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	gogithub "github.com/google/go-github/v75/github"

	"github.com/jayal13/nebo-release/internal/plugin"
	"github.com/jayal13/nebo-release/internal/repourl"
)

const (
	Name                       = "@semantic-release/github"
	DefaultAPIURL              = "https://api.github.com"
	DefaultFailTitle           = "The automated release is failing 🚨"
	DefaultReleaseNameTemplate = "{{ .NextRelease.GitTag }}"
	DefaultSuccessComment      = ":tada: This issue has been resolved in version {{ .NextRelease.Version }} :tada:"
	defaultLabel               = "semantic-release"
)

var issueRef = regexp.MustCompile(`(?:^|[^\w/])#(\d+)\b`)

var (
	ErrNoToken      = errors.New("no GitHub token specified")
	ErrInvalidURL   = errors.New("repository URL is not a GitHub repository")
	ErrMissingRepo  = errors.New("repository not found")
	ErrNoPermission = errors.New("token cannot push to the repository")
)

type Options struct {
	GithubURL           string   `mapstructure:"githubUrl"`
	GithubAPIPathPrefix string   `mapstructure:"githubApiPathPrefix"`
	DraftRelease        bool     `mapstructure:"draftRelease"`
	ReleaseNameTemplate string   `mapstructure:"releaseNameTemplate"`
	FailComment         any      `mapstructure:"failComment"`
	FailTitle           string   `mapstructure:"failTitle"`
	SuccessComment      any      `mapstructure:"successComment"`
	Labels              []string `mapstructure:"labels"`
	Assignees           []string `mapstructure:"assignees"`
}

type GitHub struct {
	opts           Options
	releaseName    *template.Template
	successComment *template.Template
	failComment    bool
}

func New(options map[string]any) (plugin.Plugin, error) {
	opts := Options{
		ReleaseNameTemplate: DefaultReleaseNameTemplate,
		FailTitle:           DefaultFailTitle,
		Labels:              []string{defaultLabel},
	}

	if err := plugin.DecodeOptions(options, &opts); err != nil {
		return nil, err
	}

	releaseName, err := template.New("releaseName").Funcs(sprig.TxtFuncMap()).Parse(opts.ReleaseNameTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing releaseNameTemplate: %w", err)
	}

	g := &GitHub{opts: opts, releaseName: releaseName, failComment: true}
	if b, ok := opts.FailComment.(bool); ok && !b {
		g.failComment = false
	}

	successComment := DefaultSuccessComment
	switch v := opts.SuccessComment.(type) {
	case nil:
	case bool:
		if !v {
			successComment = ""
		}
	case string:
		successComment = v
	default:
		return nil, fmt.Errorf("successComment must be a template or false, got %T", opts.SuccessComment)
	}

	if successComment != "" {
		g.successComment, err = template.New("successComment").Funcs(sprig.TxtFuncMap()).Parse(successComment)
		if err != nil {
			return nil, fmt.Errorf("parsing successComment: %w", err)
		}
	}

	return g, nil
}

func (g *GitHub) Name() string {
	return Name
}

func token(rc *plugin.Context) string {
	if t := rc.Getenv("GH_TOKEN"); t != "" {
		return t
	}
	return rc.Getenv("GITHUB_TOKEN")
}

// apiURL resolves the API base from the githubUrl option, then GITHUB_API_URL.
func (g *GitHub) apiURL(rc *plugin.Context) string {
	base := g.opts.GithubURL
	if base == "" {
		base = rc.Getenv("GITHUB_API_URL")
	}
	if base == "" {
		base = DefaultAPIURL
	}
	return strings.TrimSuffix(base, "/") + g.opts.GithubAPIPathPrefix
}

func (g *GitHub) setup(ctx context.Context, rc *plugin.Context) (*gogithub.Client, repourl.URL, error) {
	t := token(rc)
	if t == "" {
		return nil, repourl.URL{}, fmt.Errorf("%w: set GH_TOKEN or GITHUB_TOKEN", ErrNoToken)
	}

	repo, err := repourl.Parse(rc.RepositoryURL)
	if err != nil {
		return nil, repourl.URL{}, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	c, err := newClient(ctx, g.apiURL(rc), t)
	if err != nil {
		return nil, repourl.URL{}, err
	}

	return c, repo, nil
}

func (g *GitHub) VerifyConditions(ctx context.Context, rc *plugin.Context) error {
	c, repo, err := g.setup(ctx, rc)
	if err != nil {
		return err
	}

	r, resp, err := c.Repositories.Get(ctx, repo.Owner, repo.Repo)
	if isNotFound(resp) {
		return fmt.Errorf("%w: %s", ErrMissingRepo, repo.Slug())
	}
	if err != nil {
		return fmt.Errorf("fetching repository %s: %w", repo.Slug(), err)
	}

	if !r.GetPermissions()["push"] {
		return fmt.Errorf("%w: %s", ErrNoPermission, repo.Slug())
	}

	rc.Logger.Debug().Str("plugin", Name).Str("repository", repo.Slug()).Msg("verified GitHub authentication")

	return nil
}

// Publish creates the GitHub release of the tag created for the next release.
func (g *GitHub) Publish(ctx context.Context, rc *plugin.Context) (*plugin.Release, error) {
	c, repo, err := g.setup(ctx, rc)
	if err != nil {
		return nil, err
	}

	var name bytes.Buffer
	if err = g.releaseName.Execute(&name, rc); err != nil {
		return nil, fmt.Errorf("rendering release name: %w", err)
	}

	req := &gogithub.RepositoryRelease{
		TagName:         gogithub.Ptr(rc.NextRelease.GitTag),
		TargetCommitish: gogithub.Ptr(rc.Branch.Name),
		Name:            gogithub.Ptr(name.String()),
		Body:            gogithub.Ptr(rc.NextRelease.Notes),
		Draft:           gogithub.Ptr(g.opts.DraftRelease),
		Prerelease:      gogithub.Ptr(rc.Branch.Prerelease),
	}

	created, _, err := c.Repositories.CreateRelease(ctx, repo.Owner, repo.Repo, req)
	if err != nil {
		return nil, fmt.Errorf("creating release: %w", err)
	}

	rc.Logger.Info().Str("plugin", Name).Str("url", created.GetHTMLURL()).Msg("published GitHub release")

	return &plugin.Release{
		Name:       "GitHub release",
		URL:        created.GetHTMLURL(),
		PluginName: Name,
	}, nil
}

// Success comments on the issues referenced by the released commits, then closes the issues opened by previous
// failed runs.
func (g *GitHub) Success(ctx context.Context, rc *plugin.Context) error {
	logger := rc.Logger.With().Str("plugin", Name).Logger()

	c, repo, err := g.setup(ctx, rc)
	if err != nil {
		return err
	}

	var errs []error

	if g.successComment != nil {
		var body bytes.Buffer
		if err = g.successComment.Execute(&body, rc); err != nil {
			return fmt.Errorf("rendering success comment: %w", err)
		}

		for _, number := range referencedIssues(rc) {
			comment := &gogithub.IssueComment{Body: gogithub.Ptr(body.String())}
			if _, _, err = c.Issues.CreateComment(ctx, repo.Owner, repo.Repo, number, comment); err != nil {
				errs = append(errs, fmt.Errorf("commenting on issue #%d: %w", number, err))
				continue
			}
			logger.Info().Int("issue", number).Msg("commented on resolved issue")
		}
	}

	issues, err := g.failureIssues(ctx, c, repo)
	if err != nil {
		return errors.Join(append(errs, err)...)
	}

	for _, i := range issues {
		closed := &gogithub.IssueRequest{State: gogithub.Ptr("closed")}
		if _, _, err = c.Issues.Edit(ctx, repo.Owner, repo.Repo, i.GetNumber(), closed); err != nil {
			return fmt.Errorf("closing issue #%d: %w", i.GetNumber(), err)
		}
		logger.Info().Int("issue", i.GetNumber()).Msg("closed failure issue")
	}

	for _, r := range rc.Releases {
		logger.Info().Str("release", r.Name).Str("url", r.URL).Msg("release available")
	}

	return errors.Join(errs...)
}

// referencedIssues returns the issue and pull request numbers mentioned by the released commits, in ascending order.
func referencedIssues(rc *plugin.Context) []int {
	seen := make(map[int]struct{})

	for _, c := range rc.Commits {
		for _, match := range issueRef.FindAllStringSubmatch(c.Message, -1) {
			n, err := strconv.Atoi(match[1])
			if err != nil || n == 0 {
				continue
			}
			seen[n] = struct{}{}
		}
	}

	numbers := make([]int, 0, len(seen))
	for n := range seen {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	return numbers
}

// Fail opens an issue listing the errors of the run, or comments on the one already open.
func (g *GitHub) Fail(ctx context.Context, rc *plugin.Context) error {
	logger := rc.Logger.With().Str("plugin", Name).Logger()

	if !g.failComment {
		logger.Info().Msg("skip opening a failure issue as failComment is false")
		return nil
	}

	c, repo, err := g.setup(ctx, rc)
	if err != nil {
		return err
	}

	body := failBody(rc)

	issues, err := g.failureIssues(ctx, c, repo)
	if err != nil {
		return err
	}

	if len(issues) > 0 {
		number := issues[0].GetNumber()
		comment := &gogithub.IssueComment{Body: gogithub.Ptr(body)}
		if _, _, err = c.Issues.CreateComment(ctx, repo.Owner, repo.Repo, number, comment); err != nil {
			return fmt.Errorf("commenting on issue #%d: %w", number, err)
		}
		logger.Info().Int("issue", number).Msg("commented on failure issue")
		return nil
	}

	req := &gogithub.IssueRequest{
		Title: gogithub.Ptr(g.opts.FailTitle),
		Body:  gogithub.Ptr(body),
	}
	if len(g.opts.Labels) > 0 {
		req.Labels = &g.opts.Labels
	}
	if len(g.opts.Assignees) > 0 {
		req.Assignees = &g.opts.Assignees
	}

	created, _, err := c.Issues.Create(ctx, repo.Owner, repo.Repo, req)
	if err != nil {
		return fmt.Errorf("opening failure issue: %w", err)
	}

	logger.Info().Str("url", created.GetHTMLURL()).Msg("opened failure issue")

	return nil
}

func (g *GitHub) failureIssues(ctx context.Context, c *gogithub.Client, repo repourl.URL) ([]*gogithub.Issue, error) {
	opts := &gogithub.IssueListByRepoOptions{
		State:       "open",
		Labels:      g.opts.Labels,
		ListOptions: gogithub.ListOptions{PerPage: 100},
	}

	all, _, err := c.Issues.ListByRepo(ctx, repo.Owner, repo.Repo, opts)
	if err != nil {
		return nil, fmt.Errorf("listing issues: %w", err)
	}

	var matching []*gogithub.Issue
	for _, i := range all {
		if i.GetTitle() == g.opts.FailTitle {
			matching = append(matching, i)
		}
	}

	return matching, nil
}

func failBody(rc *plugin.Context) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## :rotating_light: The automated release from the `%s` branch failed. :rotating_light:\n\n", rc.Branch.Name)
	b.WriteString("I recommend you give this issue a high priority, so other packages depending on you can benefit from your bug fixes and new features.\n\n")
	b.WriteString("### Errors\n\n")

	for _, err := range rc.Errors {
		fmt.Fprintf(&b, "* %s\n", err)
	}

	return b.String()
}
