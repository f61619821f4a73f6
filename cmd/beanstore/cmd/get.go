package cmd

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ssargent/beanstore/pkg/sample"
)

// getCmd represents the get command
var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a profile",
	Long: `Print a stored profile.

Formats: json, yaml, msgpack, or hex for the raw bean encoding.

Example:
  beanstore get ada --format yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")

		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		row, err := app.Profiles.Load(args[0])
		if err != nil {
			return err
		}
		return writeProfile(cmd.OutOrStdout(), row.Record, format)
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().StringP("format", "o", "json", "Output format: json, yaml, msgpack or hex")
}

func writeProfile(w io.Writer, p *sample.Profile, format string) error {
	if format == "hex" {
		_, err := fmt.Fprintln(w, hex.EncodeToString(sample.ProfileLayout.Encode(p)))
		return err
	}
	return writeValue(w, sample.NewProfileDoc(p), format)
}
