package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/justyntemme/aladinkr/internal/metadata"
	"github.com/justyntemme/aladinkr/internal/storage"
)

func newCoverCmd(a *app) *cobra.Command {
	var (
		flags     lookupFlags
		outputDir string
	)

	cmd := &cobra.Command{
		Use:   "cover",
		Short: "Download a book cover",
		Example: `  aladinkr cover --isbn 9788936434120 -o covers/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openCache()
			if err != nil {
				return err
			}
			defer db.Close()

			req := flags.request()
			data, err := a.newService(db).DownloadCover(cmd.Context(), req)
			if err != nil {
				return err
			}

			store, err := storage.NewCoverStore(outputDir)
			if err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
			path, err := store.SaveCover(coverName(req), data)
			if err != nil {
				return fmt.Errorf("failed to save cover: %w", err)
			}

			a.logger.Info("cover saved", "path", path, "bytes", len(data))
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", ".", "directory to write the cover to")

	return cmd
}

// coverName picks a file name from the most specific thing the user gave
func coverName(req metadata.IdentifyRequest) string {
	if id := req.Identifiers[metadata.IdentifierCatalog]; id != "" {
		return id
	}
	if req.Title != "" {
		return req.Title
	}
	return req.Identifiers[metadata.IdentifierISBN]
}
