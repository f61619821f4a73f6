/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"
)

// upCmd represents the up command
var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Bootstrap and start the beanstore server",
	Long: `Create a configuration with a generated API key if none exists, then
start the REST API server. This is the recommended way to get beanstore running.

Examples:
  beanstore up
  beanstore up --data-dir ./mydata --port 9000
  beanstore up --config ./custom-config.yaml --print-key`,
	RunE: func(cmd *cobra.Command, args []string) error {
		printKey, _ := cmd.Flags().GetBool("print-key")
		cfg, err := configFrom(cmd)
		if err != nil {
			return err
		}
		path := configPath(cmd)

		created, ok, err := initConfig(path, cfg.DataDir, false)
		if err != nil {
			return err
		}
		if ok {
			cmd.Printf("First run detected. Configuration created at %s\n", path)
			cfg.Security.APIKey = created.Security.APIKey
			if printKey {
				cmd.Printf("API key: %s\n", created.Security.APIKey)
			}
		} else {
			cmd.Printf("Loaded existing configuration from %s\n", path)
		}

		applyServerFlags(cmd, cfg)
		return runServer(cmd, cfg)
	},
}

func init() {
	rootCmd.AddCommand(upCmd)
	addServerFlags(upCmd)
	upCmd.Flags().Bool("print-key", false, "Print the generated API key on first run")
}
