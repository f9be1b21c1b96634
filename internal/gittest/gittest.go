// Package gittest provides basic types and functions for testing operations related to Git repositories.
package gittest

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	sampleFile    = "sample.txt"
	DefaultBranch = "master"
	AuthorName    = "NEBo Release"
	AuthorEmail   = "nebo-release@release.ci"
)

var referenceTime = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

type TestRepository struct {
	*git.Repository
	Path    string
	Counter int
}

// NewRepository creates a new TestRepository on the "master" branch, holding a single non-conventional commit.
func NewRepository() (testRepository *TestRepository, err error) {
	testRepository = &TestRepository{}

	path, err := os.MkdirTemp("", "gittest-*")
	if err != nil {
		return testRepository, fmt.Errorf("creating temporary directory: %w", err)
	}

	testRepository.Path = path

	repository, err := git.PlainInitWithOptions(path, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName(DefaultBranch)},
	})
	if err != nil {
		return testRepository, fmt.Errorf("initializing repository: %w", err)
	}

	testRepository.Repository = repository

	if err = os.WriteFile(filepath.Join(path, sampleFile), []byte("..."), 0o644); err != nil {
		return testRepository, fmt.Errorf("creating first commit file: %w", err)
	}

	if _, err = testRepository.commit("First commit", sampleFile); err != nil {
		return testRepository, err
	}

	return testRepository, nil
}

// AddCommit adds a new commit with a given conventional commit type to the underlying Git repository.
func (r *TestRepository) AddCommit(commitType string) (plumbing.Hash, error) {
	return r.AddCommitWithMessage(fmt.Sprintf("%s: this a test commit", commitType))
}

// AddCommitWithMessage adds a new commit with the given message, modifying the sample file.
func (r *TestRepository) AddCommitWithMessage(message string) (plumbing.Hash, error) {
	err := os.WriteFile(filepath.Join(r.Path, sampleFile), []byte(strconv.Itoa(rand.IntN(1_000_000))), 0o644)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("writing commit file: %w", err)
	}

	return r.commit(message, sampleFile)
}

// WriteFile writes a file relative to the repository root, creating parent directories.
func (r *TestRepository) WriteFile(name string, content string) error {
	path := filepath.Join(r.Path, name)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}

	return os.WriteFile(path, []byte(content), 0o644)
}

// CommitFile writes a file and commits it with the given message.
func (r *TestRepository) CommitFile(name string, content string, message string) (plumbing.Hash, error) {
	if err := r.WriteFile(name, content); err != nil {
		return plumbing.ZeroHash, err
	}

	return r.commit(message, name)
}

func (r *TestRepository) commit(message string, files ...string) (plumbing.Hash, error) {
	worktree, err := r.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("fetching worktree: %w", err)
	}

	for _, file := range files {
		if _, err = worktree.Add(file); err != nil {
			return plumbing.ZeroHash, fmt.Errorf("adding %s to worktree: %w", file, err)
		}
	}

	when := r.When()

	commitHash, err := worktree.Commit(message, &git.CommitOptions{
		Author:    &object.Signature{Name: AuthorName, Email: AuthorEmail, When: when},
		Committer: &object.Signature{Name: AuthorName, Email: AuthorEmail, When: when},
	})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("creating commit: %w", err)
	}

	return commitHash, nil
}

// AddTag adds a new annotated tag to the underlying Git repository with a given name and pointing to a given hash.
func (r *TestRepository) AddTag(tagName string, hash plumbing.Hash) error {
	tagOpts := &git.CreateTagOptions{
		Message: tagName,
		Tagger: &object.Signature{
			Name:  AuthorName,
			Email: AuthorEmail,
			When:  r.When(),
		},
	}

	_, err := r.CreateTag(tagName, hash, tagOpts)

	return err
}

// AddLightweightTag adds a tag reference pointing directly to the given commit.
func (r *TestRepository) AddLightweightTag(tagName string, hash plumbing.Hash) error {
	_, err := r.CreateTag(tagName, hash, nil)
	return err
}

// HeadHash returns the hash HEAD points to.
func (r *TestRepository) HeadHash() (plumbing.Hash, error) {
	head, err := r.Head()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return head.Hash(), nil
}

// Remove removes the underlying Git repository.
func (r *TestRepository) Remove() error {
	return os.RemoveAll(r.Path)
}

// CheckoutBranch creates a new branch with the given name from HEAD and checks it out.
func (r *TestRepository) CheckoutBranch(name string) error {
	worktree, err := r.Worktree()
	if err != nil {
		return err
	}

	refName := plumbing.NewBranchReferenceName(name)

	_, err = r.Reference(refName, true)
	create := err != nil

	return worktree.Checkout(&git.CheckoutOptions{
		Branch: refName,
		Create: create,
	})
}

// When returns a time.Time starting at 2000/01/01 00:00:00 and increasing of 10 second every new call.
func (r *TestRepository) When() time.Time {
	r.Counter++
	return referenceTime.Add(time.Duration(r.Counter*10) * time.Second)
}
