package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

var (
	ErrInvalidDirective = errors.New("invalid plugin directive")
	ErrNoPluginName     = errors.New("plugin directive has no name")
)

// Directive is one entry of the ordered plugin list: a plugin identifier and the options passed to it.
type Directive struct {
	Name    string         `json:"name"`
	Options map[string]any `json:"options,omitempty"`
}

// ParseDirectives parses a raw plugin list. Each entry is either a bare identifier or a two-element list made of an
// identifier and an options mapping. Order is preserved.
func ParseDirectives(input any) ([]Directive, error) {
	var raw []any

	switch v := input.(type) {
	case nil:
		return nil, nil
	case []any:
		raw = v
	case []string:
		for _, s := range v {
			raw = append(raw, s)
		}
	case string:
		raw = []any{v}
	default:
		return nil, fmt.Errorf("%w: expected a list, got %T", ErrInvalidDirective, input)
	}

	directives := make([]Directive, 0, len(raw))

	for i, r := range raw {
		d, err := parseDirective(r)
		if err != nil {
			return nil, fmt.Errorf("plugins[%d]: %w", i, err)
		}
		directives = append(directives, d)
	}

	return directives, nil
}

func parseDirective(raw any) (Directive, error) {
	switch v := raw.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return Directive{}, ErrNoPluginName
		}
		return Directive{Name: v, Options: map[string]any{}}, nil
	case Directive:
		if v.Options == nil {
			v.Options = map[string]any{}
		}
		return v, nil
	case []any:
		if len(v) == 0 || len(v) > 2 {
			return Directive{}, fmt.Errorf("%w: expected [name] or [name, options], got %d elements", ErrInvalidDirective, len(v))
		}

		name, ok := v[0].(string)
		if !ok {
			return Directive{}, fmt.Errorf("%w: name is %T", ErrInvalidDirective, v[0])
		}
		if strings.TrimSpace(name) == "" {
			return Directive{}, ErrNoPluginName
		}

		d := Directive{Name: name, Options: map[string]any{}}
		if len(v) == 1 || v[1] == nil {
			return d, nil
		}

		opts, err := normalizeMap(v[1])
		if err != nil {
			return Directive{}, fmt.Errorf("%w: options of %q: %w", ErrInvalidDirective, name, err)
		}
		d.Options = opts

		return d, nil
	default:
		return Directive{}, fmt.Errorf("%w: unexpected %T", ErrInvalidDirective, raw)
	}
}

// normalizeMap converts the map flavours produced by YAML and JSON decoders to map[string]any, recursively.
func normalizeMap(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = normalizeValue(val)
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[fmt.Sprint(k)] = normalizeValue(val)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a mapping, got %T", raw)
	}
}

func normalizeValue(raw any) any {
	switch v := raw.(type) {
	case map[string]any, map[any]any:
		m, _ := normalizeMap(v)
		return m
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = normalizeValue(val)
		}
		return out
	default:
		return v
	}
}

// Flag holds a plugin list set from the command line, either as a JSON array using the configuration file syntax
// or as comma-separated identifiers.
type Flag []Directive

const FlagType = "plugins"

func (f *Flag) String() string {
	if f == nil || len(*f) == 0 {
		return "[]"
	}

	b, err := json.Marshal(f)
	if err != nil {
		return err.Error()
	}

	return string(b)
}

func (f *Flag) Set(value string) error {
	*f = Flag{}

	value = strings.TrimSpace(value)
	if value == "" || value == "[]" {
		return nil
	}

	if !strings.HasPrefix(value, "[") {
		for _, name := range strings.Split(value, ",") {
			if name = strings.TrimSpace(name); name != "" {
				*f = append(*f, Directive{Name: name, Options: map[string]any{}})
			}
		}
		return nil
	}

	var raw []any
	if err := json.Unmarshal([]byte(value), &raw); err != nil {
		return fmt.Errorf("unmarshalling %s flag value: %w", FlagType, err)
	}

	directives, err := ParseDirectives(raw)
	if err != nil {
		return err
	}

	*f = directives
	return nil
}

func (f *Flag) Type() string {
	return FlagType
}

var _ pflag.Value = (*Flag)(nil)
