package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ssargent/beanstore/pkg/store"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show what each table holds",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")

		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		profiles, err := app.Profiles.Stats()
		if err != nil {
			return err
		}
		beans, err := app.Beans.Stats()
		if err != nil {
			return err
		}
		return writeValue(cmd.OutOrStdout(), []*store.TableStats{profiles, beans}, format)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringP("format", "o", "yaml", "Output format: json or yaml")
}
