package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the configured storage profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
		for _, p := range cfg.Profiles {
			marker := ""
			if p.Name == cfg.DefaultProfile {
				marker = "*"
			}
			fmt.Fprintf(w, "%s%s\t%s\n", p.Name, marker, p.Type)
		}
		return w.Flush()
	},
}
