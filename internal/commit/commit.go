// Package commit parses Git commit messages following the Conventional Commits specification.
package commit

import (
	"regexp"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing/object"
)

var (
	headerRegex    = regexp.MustCompile(`^(\w+)(?:\(([^()\r\n]*)\))?(!)?: (.+)$`)
	revertRegex    = regexp.MustCompile(`^Revert "(.+)"`)
	noteRegex      = regexp.MustCompile(`^(BREAKING[ -]CHANGE)S?: ?([\s\S]*)`)
	referenceRegex = regexp.MustCompile(`(?:([\w-]+/[\w.-]+))?#(\d+)`)
	skipRegex      = regexp.MustCompile(`\[(?:skip release|release skip)\]`)
)

type Commit struct {
	Hash        string
	Message     string
	AuthorName  string
	AuthorEmail string
	Date        time.Time
}

// ShortHash returns the seven first characters of the commit hash.
func (c Commit) ShortHash() string {
	if len(c.Hash) > 7 {
		return c.Hash[:7]
	}
	return c.Hash
}

// FromObject converts a go-git commit object.
func FromObject(c *object.Commit) Commit {
	return Commit{
		Hash:        c.Hash.String(),
		Message:     c.Message,
		AuthorName:  c.Author.Name,
		AuthorEmail: c.Author.Email,
		Date:        c.Committer.When,
	}
}

// Note is a footer note such as "BREAKING CHANGE: drop support for Node 14".
type Note struct {
	Title string
	Text  string
}

// Reference is an issue or pull request reference found in the commit message.
type Reference struct {
	Repository string
	Issue      string
}

// Conventional is the structured form of a commit message.
type Conventional struct {
	Commit

	Type       string
	Scope      string
	Subject    string
	Header     string
	Body       string
	Footer     string
	Breaking   bool
	Notes      []Note
	References []Reference
	Revert     bool
}

// IsConventional reports whether the commit header follows the "type(scope)!: subject" form.
func (c Conventional) IsConventional() bool {
	return c.Type != ""
}

// Parse parses the message of c. Messages that do not follow the Conventional Commits form are still returned, with
// an empty Type.
func Parse(c Commit) Conventional {
	msg := strings.ReplaceAll(strings.TrimSpace(c.Message), "\r\n", "\n")

	header, rest, _ := strings.Cut(msg, "\n")
	out := Conventional{Commit: c, Header: header}

	if m := headerRegex.FindStringSubmatch(header); m != nil {
		out.Type = strings.ToLower(m[1])
		out.Scope = m[2]
		out.Breaking = m[3] == "!"
		out.Subject = strings.TrimSpace(m[4])
	} else if m := revertRegex.FindStringSubmatch(header); m != nil {
		out.Type = "revert"
		out.Subject = m[1]
		out.Revert = true
	} else {
		out.Subject = header
	}

	if out.Type == "revert" {
		out.Revert = true
	}

	body, footer := splitFooter(strings.TrimSpace(rest))
	out.Body = body
	out.Footer = footer

	if footer != "" {
		if m := noteRegex.FindStringSubmatch(footer); m != nil {
			out.Notes = append(out.Notes, Note{Title: "BREAKING CHANGE", Text: strings.TrimSpace(m[2])})
			out.Breaking = true
		}
	}

	if out.Breaking && len(out.Notes) == 0 {
		out.Notes = append(out.Notes, Note{Title: "BREAKING CHANGE", Text: out.Subject})
	}

	for _, m := range referenceRegex.FindAllStringSubmatch(msg, -1) {
		out.References = append(out.References, Reference{Repository: m[1], Issue: m[2]})
	}

	return out
}

// splitFooter separates the breaking change footer, which starts at the first line beginning with "BREAKING CHANGE"
// or "BREAKING-CHANGE", from the rest of the body.
func splitFooter(rest string) (body string, footer string) {
	lines := strings.Split(rest, "\n")

	for i, line := range lines {
		if noteRegex.MatchString(line) {
			return strings.TrimSpace(strings.Join(lines[:i], "\n")), strings.Join(lines[i:], "\n")
		}
	}

	return rest, ""
}

// Skipped reports whether the commit message asks to be ignored by releases.
func Skipped(c Commit) bool {
	return skipRegex.MatchString(c.Message)
}
