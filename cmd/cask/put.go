package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/caskstore/cask/internal/logger"
	"github.com/caskstore/cask/pkg/storage"
)

var putCmd = &cobra.Command{
	Use:   "put <local-path> [remote-path]",
	Short: "Upload a local file to an object",
	Long: `Upload the local file at local-path to remote-path. When remote-path
is omitted the file's base name is used.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		local := args[0]
		remote := filepath.Base(local)
		if len(args) == 2 {
			remote = args[1]
		}

		in, err := os.Open(local)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", local, err)
		}
		defer in.Close()

		backend, reg, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer reg.Close()

		n, err := storage.Upload(cmd.Context(), backend, in, remote, func(total int64) {
			logger.Debug("uploaded %d bytes of %s", total, remote)
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s to %s (%s)\n",
			local, remote, humanize.Bytes(uint64(n)))
		return nil
	},
}
