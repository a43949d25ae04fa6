package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/clickfit/clickfit/internal/storage"
)

func ImagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "images",
		Short: "Inspect and manage stored images",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored images, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStorage()
			if err != nil {
				return err
			}
			defer store.Close()

			assets, err := store.List(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FILENAME\tSIZE\tUPLOADED\tURL")
			for _, asset := range assets {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", asset.Identifier, asset.Size, asset.CreatedAt.Format("2006-01-02 15:04:05"), asset.URL)
			}
			fmt.Fprintf(tw, "\n%d images (%s storage)\n", len(assets), store.Driver())
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <filename>",
		Short: "Delete a stored image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStorage()
			if err != nil {
				return err
			}
			defer store.Close()

			err = store.Delete(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("delete %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	})

	return cmd
}

func openStorage() (storage.Storage, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return storage.New(cfg, nil)
}
