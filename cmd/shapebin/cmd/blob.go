package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/shapebin/pkg/storage"
)

func newBlobCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blob",
		Short: "Manage blobs in the local store",
	}
	cmd.AddCommand(
		newBlobPutCmd(a),
		newBlobGetCmd(a),
		newBlobHeaderCmd(a),
		newBlobDeleteCmd(a),
		newBlobListCmd(a),
	)
	return cmd
}

// withStore opens the blob store for the duration of fn
func (a *app) withStore(fn func(s *storage.BlobStore) error) error {
	s, err := a.openStore()
	if err != nil {
		return err
	}
	if err := fn(s); err != nil {
		s.Close()
		return err
	}
	return s.Close()
}

func newBlobPutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "put <file>",
		Short: "Store a blob file and print its id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			return a.withStore(func(s *storage.BlobStore) error {
				id, err := s.Put(data)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id.String())
				return nil
			})
		},
	}
}

func newBlobGetCmd(a *app) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Write a stored blob to a file or stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := storage.ParseID(args[0])
			if err != nil {
				return err
			}
			return a.withStore(func(s *storage.BlobStore) error {
				blob, err := s.Get(id)
				if err != nil {
					return err
				}
				if out == "" {
					_, err = cmd.OutOrStdout().Write(blob)
					return err
				}
				return os.WriteFile(out, blob, 0644)
			})
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	return cmd
}

func newBlobHeaderCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "header <id>",
		Short: "Print the header of a stored blob",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := storage.ParseID(args[0])
			if err != nil {
				return err
			}
			return a.withStore(func(s *storage.BlobStore) error {
				h, err := s.Header(id)
				if err != nil {
					return err
				}
				return printHeader(cmd.OutOrStdout(), h, format)
			})
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", "tree", "Output format: tree, json or yaml")
	return cmd
}

func newBlobDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored blob",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := storage.ParseID(args[0])
			if err != nil {
				return err
			}
			return a.withStore(func(s *storage.BlobStore) error {
				if err := s.Delete(id); err != nil {
					return err
				}
				cmd.Printf("Deleted %s\n", id)
				return nil
			})
		},
	}
}

func newBlobListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored blob ids in creation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *storage.BlobStore) error {
				ids, err := s.List()
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id.String())
				}
				return nil
			})
		},
	}
}
