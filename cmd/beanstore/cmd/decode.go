package cmd

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/beanstore/pkg/bean"
	"github.com/ssargent/beanstore/pkg/sample"
)

// decodeCmd represents the decode command
var decodeCmd = &cobra.Command{
	Use:   "decode [data]",
	Short: "Decode a bean encoding",
	Long: `Decode bytes in the bean wire format and print them.

The dynamic layout needs no schema and keys fields by ordinal. The profile
and test_bean layouts decode into the named record.

Examples:
  beanstore decode 0509096404
  beanstore decode --input base64 BQkJZAQ=
  beanstore get ada -o hex | beanstore decode --layout profile -o yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		file, _ := cmd.Flags().GetString("file")
		layout, _ := cmd.Flags().GetString("layout")
		format, _ := cmd.Flags().GetString("format")

		var src []byte
		var err error
		switch {
		case len(args) == 1:
			src = []byte(args[0])
		case file != "" && file != "-":
			src, err = os.ReadFile(file)
		default:
			src, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return err
		}

		data, err := decodeInput(src, input)
		if err != nil {
			return err
		}
		v, n, err := decodeBean(layout, data)
		if err != nil {
			return err
		}
		if n < len(data) {
			cmd.PrintErrf("%d trailing bytes after the bean\n", len(data)-n)
		}
		return writeValue(cmd.OutOrStdout(), v, format)
	},
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().String("input", "hex", "Input encoding: hex, base64 or raw")
	decodeCmd.Flags().StringP("file", "f", "", "Read input from a file, - for stdin")
	decodeCmd.Flags().String("layout", "dynamic", "Layout: dynamic, profile or test_bean")
	decodeCmd.Flags().StringP("format", "o", "json", "Output format: json, yaml or msgpack")
}

func decodeInput(src []byte, encoding string) ([]byte, error) {
	switch encoding {
	case "raw":
		return src, nil
	case "hex", "":
		text := bytes.TrimSpace(src)
		out := make([]byte, hex.DecodedLen(len(text)))
		n, err := hex.Decode(out, text)
		if err != nil {
			return nil, fmt.Errorf("invalid hex input: %w", err)
		}
		return out[:n], nil
	case "base64":
		text := bytes.TrimSpace(src)
		out := make([]byte, base64.StdEncoding.DecodedLen(len(text)))
		n, err := base64.StdEncoding.Decode(out, text)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 input: %w", err)
		}
		return out[:n], nil
	default:
		return nil, fmt.Errorf("unknown input encoding %q", encoding)
	}
}

// decodeBean decodes one bean and reports how many bytes it used.
func decodeBean(layout string, data []byte) (any, int, error) {
	switch layout {
	case "dynamic", "":
		d, n, err := bean.DecodeDynamic(data)
		if err != nil {
			return nil, 0, err
		}
		return d.Export(), n, nil
	case sample.ProfileLayout.Name():
		p := sample.ProfileLayout.New()
		n, err := sample.ProfileLayout.Decode(data, p)
		if err != nil {
			return nil, 0, err
		}
		return sample.NewProfileDoc(p), n, nil
	case sample.TestBeanLayout.Name():
		b := sample.TestBeanLayout.New()
		n, err := sample.TestBeanLayout.Decode(data, b)
		if err != nil {
			return nil, 0, err
		}
		return sample.TestBeanLayout.Export(b), n, nil
	default:
		return nil, 0, fmt.Errorf("unknown layout %q", layout)
	}
}
