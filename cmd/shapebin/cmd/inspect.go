package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ssargent/shapebin/pkg/codec"
)

func newInspectCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print the header of a blob file",
		Long: `Print the header of a blob file: root shape, byte order, address width,
segment tables and the schema tree.

Examples:
  shapebin inspect readings.bin
  shapebin inspect readings.bin -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := codec.InspectFile(args[0], a.codecOpts...)
			if err != nil {
				return err
			}
			return printHeader(cmd.OutOrStdout(), h, format)
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", "tree", "Output format: tree, json or yaml")
	return cmd
}
