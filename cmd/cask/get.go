package main

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/caskstore/cask/internal/logger"
	"github.com/caskstore/cask/pkg/storage"
)

var getCmd = &cobra.Command{
	Use:   "get <remote-path> [local-path]",
	Short: "Download an object to a local file",
	Long: `Download the object at remote-path into local-path. When local-path
is omitted the object's base name is used in the current directory.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		remote := args[0]
		local := path.Base(remote)
		if len(args) == 2 {
			local = args[1]
		}

		backend, reg, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer reg.Close()

		out, err := os.Create(local)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", local, err)
		}

		n, err := storage.Download(cmd.Context(), backend, remote, out, func(total int64) {
			logger.Debug("downloaded %d bytes of %s", total, remote)
		})
		if err != nil {
			out.Close()
			os.Remove(local)
			return err
		}
		if err := out.Close(); err != nil {
			return fmt.Errorf("failed to write %s: %w", local, err)
		}

		abs, err := filepath.Abs(local)
		if err != nil {
			abs = local
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %s to %s (%s)\n",
			remote, abs, humanize.Bytes(uint64(n)))
		return nil
	},
}
