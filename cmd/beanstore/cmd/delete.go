package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ssargent/beanstore/pkg/proc"
	"github.com/ssargent/beanstore/pkg/txn"
)

// deleteCmd represents the delete command
var deleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete a profile",
	Long: `Delete a profile from the store.

Example:
  beanstore delete ada`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]

		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		err = app.Runner.Run(cmd.Context(), "cli.delete_profile", func(ctx context.Context, tx *txn.Txn) error {
			return app.Profiles.Delete(tx, key)
		}, proc.WithLocks(app.Profiles.LockID(key)))
		if err != nil {
			return err
		}

		cmd.Printf("Deleted %s\n", key)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
