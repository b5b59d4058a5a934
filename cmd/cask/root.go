package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/caskstore/cask/internal/logger"
	"github.com/caskstore/cask/pkg/config"
	"github.com/caskstore/cask/pkg/registry"
	"github.com/caskstore/cask/pkg/storage"
)

var (
	cfgFile     string
	profileName string
)

var rootCmd = &cobra.Command{
	Use:   "cask",
	Short: "A uniform client for object storage backends",
	Long: `Cask talks to S3, Azure Blob Storage, SFTP servers, the local
filesystem and in-memory stores through one interface. Backends are
configured as named profiles; select one with --profile or rely on the
configured default.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is "+config.GetDefaultConfigPath()+")")
	rootCmd.PersistentFlags().StringVarP(&profileName, "profile", "p", "", "storage profile to use (default is the configured default_profile)")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(linkCmd)
	rootCmd.AddCommand(reencryptCmd)
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(serveCmd)
}

// loadConfig loads the configuration and applies its logging settings.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := applyLogging(&cfg.Logging); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyLogging(lc *config.LoggingConfig) error {
	logger.SetLevel(lc.Level)

	switch lc.Output {
	case "stderr", "":
		logger.SetOutput(os.Stderr)
	case "stdout":
		logger.SetOutput(os.Stdout)
	default:
		f, err := os.OpenFile(lc.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log output %s: %w", lc.Output, err)
		}
		logger.SetOutput(f)
	}
	return nil
}

// openBackend builds the full registry from configuration and returns the
// selected backend. The caller must Close the returned registry.
func openBackend(ctx context.Context) (storage.Backend, *registry.Registry, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	reg, err := config.BuildRegistry(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	var backend storage.Backend
	if profileName != "" {
		backend, err = reg.Get(profileName)
	} else {
		backend, err = reg.Default()
	}
	if err != nil {
		reg.Close()
		return nil, nil, err
	}
	return backend, reg, nil
}
