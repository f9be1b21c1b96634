// Package remote provides basic functions to work with Git remotes.
package remote

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

const authUsername = "nebo-release"

var ErrNoRemote = errors.New("remote not configured")

type pusher interface {
	Push(o *git.PushOptions) error
}

type Remote struct {
	name       string
	auth       *http.BasicAuth
	repository pusher
}

// New returns a Remote authenticating with token. An empty token relies on the transport default credentials.
func New(name string, token string) *Remote {
	r := &Remote{name: name}

	if token != "" {
		r.auth = &http.BasicAuth{
			Username: authUsername,
			Password: token,
		}
	}

	return r
}

func (r *Remote) Name() string {
	return r.name
}

// Clone clones a given remote repository to a temporary directory.
func (r *Remote) Clone(url string) (*git.Repository, string, error) {
	tempDir, err := os.MkdirTemp("", "nebo-release-*")
	if err != nil {
		return nil, "", fmt.Errorf("creating temporary directory: %w", err)
	}

	opts := &git.CloneOptions{
		RemoteName: r.name,
		URL:        url,
		Progress:   io.Discard,
	}
	if r.auth != nil {
		opts.Auth = r.auth
	}

	repository, err := git.PlainClone(tempDir, false, opts)
	if err != nil {
		_ = os.RemoveAll(tempDir)
		return nil, "", fmt.Errorf("cloning repository: %w", err)
	}

	r.repository = repository

	return repository, tempDir, nil
}

// Attach binds r to an already opened repository. It returns ErrNoRemote if the repository has no remote named
// after r.
func (r *Remote) Attach(repository *git.Repository) error {
	if _, err := repository.Remote(r.name); err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return fmt.Errorf("%w: %q", ErrNoRemote, r.name)
		}
		return fmt.Errorf("looking up remote %q: %w", r.name, err)
	}

	r.repository = repository

	return nil
}

// PushTag pushes a given tag to the repository's remote.
func (r *Remote) PushTag(tagName string) error {
	refSpec := config.RefSpec(fmt.Sprintf("refs/tags/%s:refs/tags/%s", tagName, tagName))

	if err := r.push(refSpec); err != nil {
		return fmt.Errorf("pushing tag %q: %w", tagName, err)
	}

	return nil
}

// PushBranch pushes a given local branch to the branch of the same name on the repository's remote.
func (r *Remote) PushBranch(name string) error {
	refSpec := config.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", name, name))

	if err := r.push(refSpec); err != nil {
		return fmt.Errorf("pushing branch %q: %w", name, err)
	}

	return nil
}

func (r *Remote) push(refSpec config.RefSpec) error {
	if r.repository == nil {
		return ErrNoRemote
	}

	po := &git.PushOptions{
		RemoteName: r.name,
		RefSpecs:   []config.RefSpec{refSpec},
		Progress:   io.Discard,
	}
	if r.auth != nil {
		po.Auth = r.auth
	}

	err := r.repository.Push(po)
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return err
	}

	return nil
}

// URL returns the first URL of the named remote of a repository.
func URL(repository *git.Repository, name string) (string, error) {
	rem, err := repository.Remote(name)
	if err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return "", fmt.Errorf("%w: %q", ErrNoRemote, name)
		}
		return "", fmt.Errorf("looking up remote %q: %w", name, err)
	}

	urls := rem.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("%w: %q has no URL", ErrNoRemote, name)
	}

	return urls[0], nil
}
