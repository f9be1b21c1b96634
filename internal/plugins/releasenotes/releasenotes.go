// Package releasenotes generates markdown release notes from conventional commits.
package releasenotes

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"

	"github.com/jayal13/nebo-release/internal/commit"
	"github.com/jayal13/nebo-release/internal/plugin"
	"github.com/jayal13/nebo-release/internal/repourl"
)

const Name = "@semantic-release/release-notes-generator"

const (
	DefaultHeaderTemplate = `{{ if .CompareURL }}## [{{ .Version }}]({{ .CompareURL }}){{ else }}## {{ .Version }}{{ end }} ({{ .Date }})`
	DefaultCommitTemplate = `* {{ if .Scope }}**{{ .Scope }}:** {{ end }}{{ .Subject }}{{ if .CommitURL }} ([{{ .ShortHash }}]({{ .CommitURL }})){{ else }} ({{ .ShortHash }}){{ end }}`
)

const breakingTitle = "⚠ BREAKING CHANGES"

var issueRegex = regexp.MustCompile(`(^|[\s(])#(\d+)\b`)

// sections lists the commit types rendered in the notes, in order.
var sections = []struct {
	Type  string
	Title string
}{
	{"feat", "Features"},
	{"fix", "Bug Fixes"},
	{"perf", "Performance Improvements"},
	{"revert", "Reverts"},
}

type Options struct {
	HeaderTemplate string `mapstructure:"headerTemplate"`
	CommitTemplate string `mapstructure:"commitTemplate"`
	LinkCompare    bool   `mapstructure:"linkCompare"`
	LinkReferences bool   `mapstructure:"linkReferences"`
	Preset         any    `mapstructure:"preset"`
	WriterOpts     any    `mapstructure:"writerOpts"`
}

// HeaderData is the data the header template is executed with.
type HeaderData struct {
	Version     string
	CurrentTag  string
	PreviousTag string
	CompareURL  string
	Date        string
	Channel     string
}

// CommitData is the data the commit template is executed with.
type CommitData struct {
	commit.Conventional
	CommitURL string
}

type Generator struct {
	opts   Options
	header *template.Template
	entry  *template.Template
	now    func() time.Time
}

func New(options map[string]any) (plugin.Plugin, error) {
	opts := Options{
		HeaderTemplate: DefaultHeaderTemplate,
		CommitTemplate: DefaultCommitTemplate,
		LinkCompare:    true,
		LinkReferences: true,
	}

	if err := plugin.DecodeOptions(options, &opts); err != nil {
		return nil, err
	}

	header, err := template.New("header").Funcs(sprig.TxtFuncMap()).Parse(opts.HeaderTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing headerTemplate: %w", err)
	}

	entry, err := template.New("commit").Funcs(sprig.TxtFuncMap()).Parse(opts.CommitTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing commitTemplate: %w", err)
	}

	return &Generator{
		opts:   opts,
		header: header,
		entry:  entry,
		now:    time.Now,
	}, nil
}

func (g *Generator) Name() string {
	return Name
}

// GenerateNotes renders the notes of the next release.
func (g *Generator) GenerateNotes(_ context.Context, rc *plugin.Context) (string, error) {
	if rc.NextRelease == nil {
		return "", nil
	}

	var repo *repourl.URL
	if u, err := repourl.Parse(rc.RepositoryURL); err == nil {
		repo = &u
	} else {
		rc.Logger.Debug().Str("plugin", Name).Err(err).Msg("notes rendered without links")
	}

	var b strings.Builder

	header, err := g.renderHeader(rc, repo)
	if err != nil {
		return "", err
	}
	b.WriteString(header)
	b.WriteString("\n")

	byType := make(map[string][]CommitData)
	var breaking []string

	for _, c := range rc.Commits {
		if commit.Skipped(c) {
			continue
		}

		parsed := commit.Parse(c)
		if !parsed.IsConventional() {
			continue
		}

		data := CommitData{Conventional: parsed}
		if repo != nil {
			data.CommitURL = repo.CommitURL(c.Hash)
			if g.opts.LinkReferences {
				data.Subject = linkIssues(data.Subject, *repo)
			}
		}

		byType[parsed.Type] = append(byType[parsed.Type], data)

		for _, note := range parsed.Notes {
			line := "* "
			if parsed.Scope != "" {
				line += "**" + parsed.Scope + ":** "
			}
			breaking = append(breaking, line+note.Text)
		}
	}

	if len(breaking) > 0 {
		fmt.Fprintf(&b, "\n### %s\n\n%s\n", breakingTitle, strings.Join(breaking, "\n"))
	}

	for _, s := range sections {
		entries := byType[s.Type]
		if len(entries) == 0 {
			continue
		}

		fmt.Fprintf(&b, "\n### %s\n\n", s.Title)

		for _, e := range entries {
			var buf bytes.Buffer
			if err := g.entry.Execute(&buf, e); err != nil {
				return "", fmt.Errorf("rendering commit %s: %w", e.ShortHash(), err)
			}
			b.WriteString(strings.TrimRight(buf.String(), "\n"))
			b.WriteString("\n")
		}
	}

	return strings.TrimSpace(b.String()), nil
}

func (g *Generator) renderHeader(rc *plugin.Context, repo *repourl.URL) (string, error) {
	data := HeaderData{
		Version:    rc.NextRelease.Version.String(),
		CurrentTag: rc.NextRelease.GitTag,
		Date:       g.now().UTC().Format(time.DateOnly),
		Channel:    rc.NextRelease.Channel,
	}

	if rc.LastRelease != nil {
		data.PreviousTag = rc.LastRelease.GitTag
	}

	if repo != nil && g.opts.LinkCompare && data.PreviousTag != "" && data.CurrentTag != "" {
		data.CompareURL = repo.CompareURL(data.PreviousTag, data.CurrentTag)
	}

	var buf bytes.Buffer
	if err := g.header.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering header: %w", err)
	}

	return strings.TrimSpace(buf.String()), nil
}

func linkIssues(subject string, repo repourl.URL) string {
	return issueRegex.ReplaceAllStringFunc(subject, func(m string) string {
		sub := issueRegex.FindStringSubmatch(m)
		return fmt.Sprintf("%s[#%s](%s)", sub[1], sub[2], repo.IssueURL(sub[2]))
	})
}
