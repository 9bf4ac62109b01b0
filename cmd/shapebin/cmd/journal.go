package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ssargent/shapebin/pkg/codec"
	"github.com/ssargent/shapebin/pkg/journal"
)

func newJournalCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Append blobs to and list the blob journal",
	}
	cmd.AddCommand(newJournalAppendCmd(a), newJournalListCmd(a))
	return cmd
}

func newJournalAppendCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "append <file>...",
		Short: "Append blob files to the journal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := journal.NewWriter(journal.WriterConfig{
				FilePath:      a.cfg.JournalPath(),
				FsyncInterval: a.cfg.Journal.FsyncInterval,
				BufferSize:    a.cfg.Journal.BufferSize,
				CodecOptions:  a.codecOpts,
				Logger:        a.log,
			})
			if err != nil {
				return err
			}

			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					w.Close()
					return fmt.Errorf("failed to read %s: %w", path, err)
				}
				off, err := w.Append(data)
				if err != nil {
					w.Close()
					return fmt.Errorf("%s: %w", path, err)
				}
				cmd.Printf("%s appended at offset %d\n", path, off)
			}
			return w.Close()
		},
	}
}

func newJournalListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the frames of the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := journal.NewReader(journal.ReaderConfig{FilePath: a.cfg.JournalPath()})
			if err != nil {
				return err
			}
			defer r.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "OFFSET\tSIZE\tWRITTEN\tROOT\tPAYLOAD")

			it := r.Iterator()
			for it.Next() {
				f := it.Frame()
				root, payload := "?", "?"
				if h, err := codec.InspectHeader(f.Payload, a.codecOpts...); err == nil {
					root = h.RootTag.String()
					payload = fmt.Sprint(h.TotalSize)
				}
				fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n",
					it.Offset(), len(f.Payload), f.Time().UTC().Format(time.RFC3339), root, payload)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			return it.Err()
		},
	}
}
