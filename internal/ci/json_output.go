package ci

import (
	"encoding/json"
	"fmt"
	"io"
)

// ReleaseOutput represents the outcome of a release run in the JSON output.
type ReleaseOutput struct {
	NewRelease  bool            `json:"new_release"`
	DryRun      bool            `json:"dry_run"`
	Version     string          `json:"version"`
	LastVersion string          `json:"last_version,omitempty"`
	Tag         string          `json:"tag,omitempty"`
	Branch      string          `json:"branch"`
	Type        string          `json:"type,omitempty"`
	Message     string          `json:"message"`
	Published   []PublishOutput `json:"published,omitempty"`
}

// PublishOutput is a release published by a plugin.
type PublishOutput struct {
	Plugin string `json:"plugin"`
	Name   string `json:"name,omitempty"`
	URL    string `json:"url,omitempty"`
}

// Summary contains aggregate information about all releases.
type Summary struct {
	TotalCount   int  `json:"total_count"`
	ReleaseCount int  `json:"release_count"`
	HasReleases  bool `json:"has_releases"`
}

// JSONOutput represents the structured JSON output containing all releases and a summary.
type JSONOutput struct {
	Summary  Summary         `json:"summary"`
	Releases []ReleaseOutput `json:"releases"`
}

// NewJSONOutput creates a new JSONOutput instance.
func NewJSONOutput() *JSONOutput {
	return &JSONOutput{
		Releases: make([]ReleaseOutput, 0),
	}
}

// AddRelease adds a release to the output.
func (j *JSONOutput) AddRelease(release ReleaseOutput) {
	j.Releases = append(j.Releases, release)
}

// Finalize computes the summary based on added releases.
func (j *JSONOutput) Finalize() {
	j.Summary.TotalCount = len(j.Releases)
	j.Summary.ReleaseCount = 0
	j.Summary.HasReleases = false

	for _, r := range j.Releases {
		if r.NewRelease {
			j.Summary.ReleaseCount++
			j.Summary.HasReleases = true
		}
	}
}

// Write outputs the JSON to the given writer.
func (j *JSONOutput) Write(w io.Writer) error {
	j.Finalize()

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(j); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	return nil
}
