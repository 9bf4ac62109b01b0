package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/shapebin/pkg/codec"
)

func newVerifyCmd(a *app) *cobra.Command {
	var asReading, strict bool

	cmd := &cobra.Command{
		Use:   "verify <file>",
		Short: "Check that a blob file is well formed",
		Long: `Check that a blob file has a valid header and a complete payload. With
--as-reading the payload is also decoded as the records written by the
sample command.

Examples:
  shapebin verify readings.bin
  shapebin verify readings.bin --as-reading --strict`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			h, err := codec.InspectFile(path, a.codecOpts...)
			if err != nil {
				return err
			}
			info, err := os.Stat(path)
			if err != nil {
				return err
			}

			trailing := info.Size() - h.Len() - int64(h.TotalSize)
			if trailing > 0 {
				if strict {
					return fmt.Errorf("%s: %d trailing bytes after payload", path, trailing)
				}
				cmd.Printf("warning: %d trailing bytes after payload\n", trailing)
			}

			if asReading {
				decoded, err := codec.FromFile[Reading](path, a.codecOpts...)
				if err != nil {
					return err
				}
				if vs, ok := decoded.Array(); ok {
					cmd.Printf("decoded %d readings\n", len(vs))
				} else {
					cmd.Printf("decoded 1 reading\n")
				}
			}

			cmd.Printf("OK: %s blob, header %d bytes, payload %d bytes\n", h.RootTag, h.Len(), h.TotalSize)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asReading, "as-reading", false, "Decode the payload as sample readings")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail on trailing bytes")
	return cmd
}
