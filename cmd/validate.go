package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jayal13/nebo-release/internal/appcontext"
	"github.com/jayal13/nebo-release/internal/branch"
	"github.com/jayal13/nebo-release/internal/config"
	"github.com/jayal13/nebo-release/internal/plugin"
	"github.com/jayal13/nebo-release/internal/plugins/builtin"
	"github.com/jayal13/nebo-release/internal/repourl"
	"github.com/jayal13/nebo-release/internal/tag"
)

var errValidationFailed = errors.New("configuration is invalid")

var knownKeys = map[string]struct{}{
	config.KeyBranches:      {},
	config.KeyRepositoryURL: {},
	config.KeyTagFormat:     {},
	config.KeyPlugins:       {},
	config.KeyDryRun:        {},
	config.KeyCI:            {},
}

type ValidationResult struct {
	Errors   []string
	Warnings []string
}

func (v *ValidationResult) AddError(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

func (v *ValidationResult) AddWarning(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}

func (v *ValidationResult) HasErrors() bool {
	return len(v.Errors) > 0
}

func NewValidateCmd(ctx *appcontext.AppContext) *cobra.Command {
	validateCmd := &cobra.Command{
		Use:   "validate [CONFIGURATION_FILE_PATH]",
		Short: "Validate a release configuration file",
		Long:  "Validate a release configuration file for syntax and semantic errors, and warn about unknown plugins and options",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ctx.CfgFile
			if len(args) == 1 {
				path = args[0]
			}

			if path == "" {
				found, err := config.Find(".")
				if err != nil {
					return err
				}
				path = found
			}

			result, err := validateConfigFile(path)
			if err != nil {
				return err
			}

			printValidationResult(cmd.OutOrStdout(), path, result)

			if result.HasErrors() {
				return errValidationFailed
			}

			return nil
		},
	}

	return validateCmd
}

func validateConfigFile(path string) (*ValidationResult, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	raw, err := config.ReadFile(path)
	if err != nil {
		return nil, err
	}

	result := &ValidationResult{}

	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if _, ok := knownKeys[key]; !ok {
			result.AddWarning("unknown key %q", key)
		}
	}

	validateBranches(raw[config.KeyBranches], result)
	validateRepositoryURL(raw, result)
	validateTagFormat(raw, result)
	validatePlugins(raw[config.KeyPlugins], result)

	return result, nil
}

func validateBranches(branches any, result *ValidationResult) {
	if branches == nil {
		result.AddWarning("no branches configured, the default branches will be used")
		return
	}

	var list []any

	switch v := branches.(type) {
	case string:
		list = []any{v}
	case []any:
		list = v
	default:
		result.AddError("branches: expected a branch name or an array, got %T", branches)
		return
	}

	if len(list) == 0 {
		result.AddError("branches: at least one branch is required")
		return
	}

	hasStable := false
	seenNames := make(map[string]bool)

	for i, item := range list {
		var (
			name       any
			prerelease any
		)

		switch b := item.(type) {
		case string:
			name = b
		case map[string]any:
			var ok bool
			if name, ok = b["name"]; !ok {
				result.AddError("branches[%d]: \"name\" key is required", i)
				continue
			}
			prerelease = b["prerelease"]
		default:
			result.AddError("branches[%d]: expected a branch name or an object with a \"name\" key, got %T", i, item)
			continue
		}

		nameStr, ok := name.(string)
		if !ok {
			result.AddError("branches[%d]: \"name\" must be a string, got %T", i, name)
			continue
		}

		if nameStr == "" {
			result.AddError("branches[%d]: \"name\" cannot be empty", i)
			continue
		}

		if seenNames[nameStr] {
			result.AddError("branches[%d]: duplicate branch name %q", i, nameStr)
		}
		seenNames[nameStr] = true

		identifier := ""

		switch pr := prerelease.(type) {
		case nil:
			hasStable = true
		case bool:
			if !pr {
				hasStable = true
			} else {
				identifier = nameStr
			}
		case string:
			if b, err := strconv.ParseBool(pr); err == nil {
				if !b {
					hasStable = true
				} else {
					identifier = nameStr
				}
			} else if pr == "" {
				result.AddError("branches[%d]: \"prerelease\" identifier cannot be empty", i)
			} else {
				identifier = pr
			}
		default:
			result.AddError("branches[%d]: \"prerelease\" must be a boolean or an identifier, got %T", i, prerelease)
		}

		if identifier != "" && !branch.ValidIdentifier(identifier) {
			result.AddError("branches[%d]: prerelease identifier %q must only contain alphanumerics and hyphens", i, identifier)
		}
	}

	if !hasStable {
		result.AddError("branches: at least one stable (non-prerelease) branch is required")
	}
}

func validateRepositoryURL(raw map[string]any, result *ValidationResult) {
	value, ok := raw[config.KeyRepositoryURL]
	if !ok || value == nil {
		result.AddWarning("repositoryUrl: not set, the URL of the Git remote will be used")
		return
	}

	url, ok := value.(string)
	if !ok {
		result.AddError("repositoryUrl: expected a string, got %T", value)
		return
	}

	if _, err := repourl.Parse(url); err != nil {
		result.AddWarning("repositoryUrl: %q is not a hosted repository URL, release notes will not contain links", url)
	}
}

func validateTagFormat(raw map[string]any, result *ValidationResult) {
	value, ok := raw[config.KeyTagFormat]
	if !ok {
		return
	}

	format, ok := value.(string)
	if !ok {
		result.AddError("tagFormat: expected a string, got %T", value)
		return
	}

	if err := tag.ValidateFormat(format); err != nil {
		result.AddError("tagFormat: %s", err)
	}
}

func validatePlugins(plugins any, result *ValidationResult) {
	if plugins == nil {
		result.AddWarning("no plugins configured, the default plugins will be used")
		return
	}

	list, ok := plugins.([]any)
	if !ok {
		result.AddError("plugins: expected an array, got %T", plugins)
		return
	}

	registry := builtin.Registry()

	for i, item := range list {
		directives, err := plugin.ParseDirectives([]any{item})
		if err != nil {
			result.AddError("plugins[%d]: %s", i, errors.Unwrap(err))
			continue
		}

		d := directives[0]

		id, _, found := registry.Lookup(d.Name)
		if !found {
			result.AddWarning("plugins[%d]: unknown plugin %q, available plugins are listed by the plugins command", i, d.Name)
			continue
		}

		target, _ := builtin.Options(id)

		unused, err := plugin.UnusedOptions(d.Options, target)
		if err != nil {
			result.AddError("plugins[%d]: %s: %s", i, d.Name, err)
			continue
		}

		for _, option := range unused {
			result.AddWarning("plugins[%d]: unknown option %q for %s", i, option, d.Name)
		}

		if _, err = registry.New(d); err != nil {
			result.AddError("plugins[%d]: %s", i, err)
		}
	}
}

func printValidationResult(w io.Writer, path string, result *ValidationResult) {
	success := color.New(color.FgGreen).SprintFunc()
	failure := color.New(color.FgRed).SprintFunc()
	warning := color.New(color.FgYellow).SprintFunc()

	_, _ = fmt.Fprintf(w, "Validating %s...\n\n", path)

	if !result.HasErrors() && len(result.Warnings) == 0 {
		_, _ = fmt.Fprintln(w, success("✓ Configuration valid"))
		_, _ = fmt.Fprintf(w, "\n0 errors, 0 warnings\n")
		return
	}

	for _, err := range result.Errors {
		_, _ = fmt.Fprintln(w, failure("✗ "+err))
	}

	for _, warn := range result.Warnings {
		_, _ = fmt.Fprintln(w, warning("⚠ "+warn))
	}

	_, _ = fmt.Fprintf(w, "\n%d error(s), %d warning(s)\n", len(result.Errors), len(result.Warnings))
}
