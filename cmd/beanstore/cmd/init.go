/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/beanstore/pkg/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with a generated API key",
	Long: `Create the beanstore configuration file and data directory.

A fresh API key is generated and stored in the config file. An existing
config is left alone unless --force is given.

Examples:
  beanstore init
  beanstore init --data-dir ./data --config ./beanstore.yaml --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		cfg, err := configFrom(cmd)
		if err != nil {
			return err
		}
		path := configPath(cmd)

		created, ok, err := initConfig(path, cfg.DataDir, force)
		if err != nil {
			return err
		}
		if !ok {
			cmd.Printf("Config already exists at %s. Use --force to overwrite.\n", path)
			return nil
		}

		cmd.Printf("Config written to %s\n", path)
		cmd.Printf("Data directory: %s\n", created.DataDir)
		cmd.Printf("API key: %s\n", created.Security.APIKey)
		cmd.Printf("\nStart the server with:\n  beanstore serve --config %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().Bool("force", false, "Overwrite an existing config")
}

// initConfig bootstraps a config at path. It reports false without error
// when a config already exists and force is off.
func initConfig(path, dataDir string, force bool) (*config.Config, bool, error) {
	if config.ConfigExists(path) && !force {
		return nil, false, nil
	}
	cfg, err := config.BootstrapConfig(path, dataDir)
	if err != nil {
		return nil, false, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return nil, false, fmt.Errorf("failed to create data dir: %w", err)
	}
	return cfg, true, nil
}
