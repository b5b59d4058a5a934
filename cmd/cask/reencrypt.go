package main

import (
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caskstore/cask/pkg/crypto"
)

var (
	reencryptOldKeys []string
	reencryptNewKey  string
)

var reencryptCmd = &cobra.Command{
	Use:   "reencrypt <remote-path>",
	Short: "Re-encrypt a stored object under a new key",
	Long: `Download the encrypted object at remote-path, decrypt it with the
first old key that authenticates, seal it with the new key and write it
back in place.

Keys are standard base64 encodings of 32 raw bytes. Old keys of the
wrong length are skipped, and the new key is always tried as a
decryption candidate so an interrupted run can be restarted safely.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		newKey, err := decodeKey(reencryptNewKey)
		if err != nil {
			return fmt.Errorf("invalid new key: %w", err)
		}

		candidates := make([][]byte, 0, len(reencryptOldKeys)+1)
		for _, encoded := range reencryptOldKeys {
			key, err := decodeKey(encoded)
			if err != nil {
				continue
			}
			candidates = append(candidates, key)
		}
		candidates = append(candidates, newKey)

		backend, reg, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer reg.Close()

		if err := crypto.Reencrypt(cmd.Context(), backend, args[0], candidates, newKey); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Reencrypted %s\n", args[0])
		return nil
	},
}

func decodeKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	if len(key) != crypto.KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", crypto.KeySize, len(key))
	}
	return key, nil
}

func init() {
	reencryptCmd.Flags().StringArrayVar(&reencryptOldKeys, "old-key", nil, "base64 candidate key the object may currently be sealed with (repeatable)")
	reencryptCmd.Flags().StringVar(&reencryptNewKey, "new-key", "", "base64 key to seal the object with")
	reencryptCmd.MarkFlagRequired("new-key")
}
