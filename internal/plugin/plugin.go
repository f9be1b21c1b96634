// Package plugin defines the contract between the release pipeline and the plugins listed in the release
// configuration.
//
// A plugin takes part in any subset of the release lifecycle by implementing the matching step interface. Steps run
// in the following order: verifyConditions, analyzeCommits, verifyRelease, generateNotes, prepare, publish, then
// success or fail. Within a step, plugins run in the order of the configuration.
package plugin

import (
	"context"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/go-git/go-git/v5"
	"github.com/rs/zerolog"

	"github.com/jayal13/nebo-release/internal/branch"
	"github.com/jayal13/nebo-release/internal/commit"
	"github.com/jayal13/nebo-release/internal/semver"
)

type Step string

const (
	StepVerifyConditions Step = "verifyConditions"
	StepAnalyzeCommits   Step = "analyzeCommits"
	StepVerifyRelease    Step = "verifyRelease"
	StepGenerateNotes    Step = "generateNotes"
	StepPrepare          Step = "prepare"
	StepPublish          Step = "publish"
	StepSuccess          Step = "success"
	StepFail             Step = "fail"
)

// Steps lists every lifecycle step in execution order.
var Steps = []Step{
	StepVerifyConditions,
	StepAnalyzeCommits,
	StepVerifyRelease,
	StepGenerateNotes,
	StepPrepare,
	StepPublish,
	StepSuccess,
	StepFail,
}

type Plugin interface {
	Name() string
}

type ConditionVerifier interface {
	VerifyConditions(ctx context.Context, rc *Context) error
}

// CommitAnalyzer returns the kind of release the commits since the last release warrant.
type CommitAnalyzer interface {
	AnalyzeCommits(ctx context.Context, rc *Context) (semver.BumpType, error)
}

type ReleaseVerifier interface {
	VerifyRelease(ctx context.Context, rc *Context) error
}

type NotesGenerator interface {
	GenerateNotes(ctx context.Context, rc *Context) (string, error)
}

type Preparer interface {
	Prepare(ctx context.Context, rc *Context) error
}

// Publisher publishes the release. A nil Release means the plugin skipped publication.
type Publisher interface {
	Publish(ctx context.Context, rc *Context) (*Release, error)
}

type SuccessNotifier interface {
	Success(ctx context.Context, rc *Context) error
}

type FailNotifier interface {
	Fail(ctx context.Context, rc *Context) error
}

// Implements returns the lifecycle steps p takes part in.
func Implements(p Plugin) []Step {
	var steps []Step

	if _, ok := p.(ConditionVerifier); ok {
		steps = append(steps, StepVerifyConditions)
	}
	if _, ok := p.(CommitAnalyzer); ok {
		steps = append(steps, StepAnalyzeCommits)
	}
	if _, ok := p.(ReleaseVerifier); ok {
		steps = append(steps, StepVerifyRelease)
	}
	if _, ok := p.(NotesGenerator); ok {
		steps = append(steps, StepGenerateNotes)
	}
	if _, ok := p.(Preparer); ok {
		steps = append(steps, StepPrepare)
	}
	if _, ok := p.(Publisher); ok {
		steps = append(steps, StepPublish)
	}
	if _, ok := p.(SuccessNotifier); ok {
		steps = append(steps, StepSuccess)
	}
	if _, ok := p.(FailNotifier); ok {
		steps = append(steps, StepFail)
	}

	return steps
}

// Release describes a release, either the last one found in the repository or the one being made.
type Release struct {
	Version *semver.Version
	Type    semver.BumpType
	GitTag  string
	GitHead string
	Name    string
	Notes   string
	Channel string

	// Set by publishers.
	URL        string
	PluginName string
}

// Pusher pushes local references to the repository remote.
type Pusher interface {
	PushBranch(name string) error
}

// Context is the shared state of a release run handed to every plugin step.
type Context struct {
	Logger     zerolog.Logger
	Repository *git.Repository
	Dir        string
	Env        map[string]string

	RepositoryURL string
	TagFormat     string
	Branch        branch.Item
	GitName       string
	GitEmail      string
	SignKey       *openpgp.Entity
	Pusher        Pusher
	DryRun        bool

	Commits     []commit.Commit
	LastRelease *Release
	NextRelease *Release
	Releases    []Release
	Errors      []error

	// Options of the plugin currently running, as written in the configuration.
	Options map[string]any
}

// Getenv returns the value of an environment variable from the run environment.
func (c *Context) Getenv(key string) string {
	if c.Env == nil {
		return ""
	}
	return c.Env[key]
}

// EnvFromOS snapshots the process environment.
func EnvFromOS() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			env[k] = v
		}
	}
	return env
}
