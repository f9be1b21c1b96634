package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jayal13/nebo-release/internal/plugin"
	"github.com/jayal13/nebo-release/internal/plugins/builtin"
)

func NewPluginsCmd() *cobra.Command {
	pluginsCmd := &cobra.Command{
		Use:   "plugins",
		Short: "List the built-in plugins",
		Long:  "List the built-in plugins and the release steps each of them takes part in",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry := builtin.Registry()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "PLUGIN\tSTEPS")

			for _, name := range registry.Names() {
				p, err := registry.New(plugin.Directive{Name: name})
				if err != nil {
					return err
				}

				steps := plugin.Implements(p)
				names := make([]string, len(steps))
				for i, s := range steps {
					names[i] = string(s)
				}

				_, _ = fmt.Fprintf(w, "%s\t%s\n", name, strings.Join(names, ", "))
			}

			return w.Flush()
		},
	}

	return pluginsCmd
}
