package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list [path]",
	Short: "List objects under a path",
	Long: `List the objects stored under the given path prefix, or under the
backend root when no path is given. Directory-like prefixes are shown
with a trailing slash.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}

		backend, reg, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer reg.Close()

		entries, err := backend.List(cmd.Context(), path)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
		for _, e := range entries {
			if e.IsPrefix() {
				fmt.Fprintf(w, "%s/\t\t\n", e.Name)
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n",
				e.Name,
				humanize.Bytes(uint64(e.Size)),
				e.LastModified.Format(time.RFC3339))
		}
		return w.Flush()
	},
}
