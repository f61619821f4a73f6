package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ssargent/beanstore/pkg/di"
	"github.com/ssargent/beanstore/pkg/proc"
	"github.com/ssargent/beanstore/pkg/sample"
	"github.com/ssargent/beanstore/pkg/store"
	"github.com/ssargent/beanstore/pkg/txn"
)

// putCmd represents the put command
var putCmd = &cobra.Command{
	Use:   "put [key]",
	Short: "Store a profile",
	Long: `Store a profile given as JSON. Without a key a new one is generated.

Examples:
  beanstore put --json '{"name":"ada","age":36}'
  beanstore put ada --file ada.json
  cat ada.json | beanstore put ada --file -`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetString("json")
		file, _ := cmd.Flags().GetString("file")

		doc, err := readProfileDoc(raw, file, cmd.InOrStdin())
		if err != nil {
			return err
		}

		key := store.NewKey()
		if len(args) == 1 {
			key = args[0]
		}

		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := putProfile(cmd.Context(), app, key, doc); err != nil {
			return err
		}
		cmd.Println(key)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(putCmd)
	putCmd.Flags().String("json", "", "Profile as a JSON document")
	putCmd.Flags().StringP("file", "f", "", "Read the profile JSON from a file, - for stdin")
}

func readProfileDoc(raw, file string, stdin io.Reader) (*sample.ProfileDoc, error) {
	var r io.Reader
	switch {
	case raw != "" && file != "":
		return nil, errors.New("use either --json or --file")
	case raw != "":
		r = strings.NewReader(raw)
	case file == "-":
		r = stdin
	case file != "":
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	default:
		return nil, errors.New("a profile is required: pass --json or --file")
	}

	var doc sample.ProfileDoc
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid profile JSON: %w", err)
	}
	return &doc, nil
}

func putProfile(ctx context.Context, app *di.App, key string, doc *sample.ProfileDoc) error {
	return app.Runner.Run(ctx, "cli.put_profile", func(ctx context.Context, tx *txn.Txn) error {
		_, err := app.Profiles.Put(tx, key, doc.Profile())
		return err
	}, proc.WithLocks(app.Profiles.LockID(key)))
}
