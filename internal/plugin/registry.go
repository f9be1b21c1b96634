package plugin

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
)

var ErrUnknownPlugin = errors.New("unknown plugin")

// Constructor builds a plugin from the options found in its configuration directive.
type Constructor func(options map[string]any) (Plugin, error)

type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register adds a constructor under the given identifier. It panics if the identifier is already taken.
func (r *Registry) Register(name string, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.constructors[name]; ok {
		panic(fmt.Sprintf("plugin %q registered twice", name))
	}

	r.constructors[name] = c
}

// Lookup resolves an identifier, either exactly or by short name ("git" resolves "@semantic-release/git").
func (r *Registry) Lookup(name string) (string, Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.constructors[name]; ok {
		return name, c, true
	}

	for id, c := range r.constructors {
		if ShortName(id) == name {
			return id, c, true
		}
	}

	return "", nil, false
}

// New instantiates the plugin a directive refers to.
func (r *Registry) New(d Directive) (Plugin, error) {
	_, c, ok := r.Lookup(d.Name)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownPlugin, d.Name)
	}

	opts := d.Options
	if opts == nil {
		opts = map[string]any{}
	}

	p, err := c(opts)
	if err != nil {
		return nil, fmt.Errorf("configuring plugin %q: %w", d.Name, err)
	}

	return p, nil
}

// Names returns the registered identifiers, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// ShortName strips the npm scope of a plugin identifier.
func ShortName(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}

// DecodeOptions decodes a directive options mapping into target, a pointer to a struct whose fields carry
// mapstructure tags. Scalar values are converted weakly ("false" decodes to a bool).
func DecodeOptions(options map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		ErrorUnused:      false,
		TagName:          "mapstructure",
	})
	if err != nil {
		return fmt.Errorf("creating options decoder: %w", err)
	}

	if err = decoder.Decode(options); err != nil {
		return fmt.Errorf("decoding options: %w", err)
	}

	return nil
}

// UnusedOptions returns the keys of options that target does not declare.
func UnusedOptions(options map[string]any, target any) ([]string, error) {
	var md mapstructure.Metadata

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		Metadata:         &md,
	})
	if err != nil {
		return nil, fmt.Errorf("creating options decoder: %w", err)
	}

	if err = decoder.Decode(options); err != nil {
		return nil, fmt.Errorf("decoding options: %w", err)
	}

	sort.Strings(md.Unused)
	return md.Unused, nil
}
