/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ssargent/beanstore/pkg/config"
)

// serviceCmd represents the service command
var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Run beanstore as a system service",
}

// unitCmd renders a systemd unit for the current config
var unitCmd = &cobra.Command{
	Use:   "unit",
	Short: "Print a systemd unit that runs beanstore up",
	Long: `Print a systemd unit file for this configuration, or write it with --output.

Example:
  beanstore service unit --user beanstore --output /etc/systemd/system/beanstore.service
  systemctl daemon-reload && systemctl enable --now beanstore`,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		binary, _ := cmd.Flags().GetString("binary")
		output, _ := cmd.Flags().GetString("output")
		cfg, err := configFrom(cmd)
		if err != nil {
			return err
		}

		path, err := filepath.Abs(configPath(cmd))
		if err != nil {
			return err
		}
		unit := systemdUnit(cfg, path, user, binary)

		if output == "" {
			cmd.Print(unit)
			return nil
		}
		if err := os.WriteFile(output, []byte(unit), 0600); err != nil {
			return fmt.Errorf("failed to write unit: %w", err)
		}
		cmd.Printf("Unit written to %s\n", output)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serviceCmd)
	serviceCmd.AddCommand(unitCmd)

	unitCmd.Flags().String("user", "beanstore", "User to run the service as")
	unitCmd.Flags().String("binary", "/usr/local/bin/beanstore", "Path to the beanstore binary")
	unitCmd.Flags().String("output", "", "Write the unit here instead of stdout")
}

func systemdUnit(cfg *config.Config, configPath, user, binary string) string {
	dataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		dataDir = cfg.DataDir
	}
	return fmt.Sprintf(`[Unit]
Description=beanstore server
After=network-online.target
Wants=network-online.target

[Service]
User=%s
Group=%s
ExecStart=%s up --config %s
Restart=on-failure
NoNewPrivileges=true
UMask=0077
ReadWritePaths=%s
ReadWritePaths=%s

[Install]
WantedBy=multi-user.target
`, user, user, binary, configPath, dataDir, filepath.Dir(configPath))
}
