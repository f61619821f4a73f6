/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/beanstore/pkg/config"
	"github.com/ssargent/beanstore/pkg/di"
	"github.com/ssargent/beanstore/pkg/storage"
)

var container *di.Container

// SetContainer sets the dependency container used by every command
func SetContainer(c *di.Container) {
	container = c
}

type configKey struct{}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "beanstore",
	Short: "beanstore - transactional bean store",
	Long: `beanstore keeps records encoded in the bean wire format and changes them
inside journaled transactions, over a pebble, bolt or log-structured backend.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: OS-specific location)")
	rootCmd.PersistentFlags().StringP("data-dir", "d", "", "Data directory for the store")
	rootCmd.PersistentFlags().String("engine", "", "Storage engine: pebble, bolt, log or memory")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
}

func configPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.GetDefaultConfigPath()
	}
	return path
}

// resolveConfig loads the config file when present, falls back to defaults
// and then applies command line overrides.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configPath(cmd)

	cfg := config.DefaultConfig()
	if config.ConfigExists(path) {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("engine") {
		cfg.Storage.Engine, _ = flags.GetString("engine")
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func configFrom(cmd *cobra.Command) (*config.Config, error) {
	cfg, ok := cmd.Context().Value(configKey{}).(*config.Config)
	if !ok {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// openApp builds the store described by the command's config. The caller
// closes it.
func openApp(cmd *cobra.Command) (*di.App, error) {
	if container == nil {
		return nil, errors.New("dependency container not initialized")
	}
	cfg, err := configFrom(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.Storage.Engine != storage.EngineMemory {
		if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
	}
	return container.Build(cfg)
}
