package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/caskstore/cask/pkg/storage"
)

var (
	linkOperations string
	linkExpire     time.Duration
)

var linkCmd = &cobra.Command{
	Use:   "link <remote-path>",
	Short: "Generate a pre-authorized link to an object",
	Long: `Generate a time-limited URL granting credential-free access to the
object at remote-path. Backends with native support produce a presigned
or SAS URL; the others produce a signed token consumed by the link
server (see "cask serve").

Operations are given as a string of flags: d (download), u (upload),
r (remove). Backends with native links accept exactly one operation.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ops, err := storage.ParseOperation(linkOperations)
		if err != nil {
			return err
		}
		if ops == 0 {
			return fmt.Errorf("at least one operation is required")
		}

		backend, reg, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer reg.Close()

		url, err := backend.LinkTo(cmd.Context(), args[0], ops, time.Now().Add(linkExpire))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), url)
		return nil
	},
}

func init() {
	linkCmd.Flags().StringVarP(&linkOperations, "operations", "o", "d", "operations to permit: d(ownload), u(pload), r(emove)")
	linkCmd.Flags().DurationVarP(&linkExpire, "expire", "e", 24*time.Hour, "how long the link stays valid")
}
