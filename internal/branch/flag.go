package branch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

var FlagType = "branches"

// Flag holds a branch list set from the command line, either as a JSON array or as comma-separated names.
type Flag []Item

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
				*f = append(*f, Item{Name: name})
			}
		}
		return nil
	}

	var raw []any
	if err := json.Unmarshal([]byte(value), &raw); err != nil {
		return fmt.Errorf("unmarshalling %s flag value: %w", FlagType, err)
	}

	items, err := Unmarshall(raw)
	if err != nil {
		return fmt.Errorf("parsing %s flag value: %w", FlagType, err)
	}

	*f = items
	return nil
}

func (f *Flag) Type() string {
	return FlagType
}

// GetItems returns the parsed branch items.
func (f *Flag) GetItems() []Item {
	if f == nil {
		return nil
	}
	return *f
}

var _ pflag.Value = (*Flag)(nil)
