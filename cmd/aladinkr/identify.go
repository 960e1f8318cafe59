package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/justyntemme/aladinkr/internal/bookfile"
	"github.com/justyntemme/aladinkr/internal/metadata"
)

func newIdentifyCmd(a *app) *cobra.Command {
	var (
		flags lookupFlags
		file  string
		apply bool
	)

	cmd := &cobra.Command{
		Use:   "identify",
		Short: "Look up book metadata",
		Long: `Looks up book metadata by ISBN, Aladin item id, or title and author.

With --file the lookup starts from the metadata already embedded in an EPUB
or PDF; flags given explicitly take precedence. --apply writes the best
match back into that file.`,
		Example: `  # By ISBN
  aladinkr identify --isbn 9788936434120

  # By title and author, as YAML
  aladinkr identify -t "채식주의자" -a "한강" -f yaml

  # Fix up a book file
  aladinkr identify --file 채식주의자.epub --apply`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if apply && file == "" {
				return errors.New("--apply requires --file")
			}

			req := flags.request()
			if file != "" {
				seed, err := bookfile.Request(file)
				if err != nil {
					return err
				}
				req = mergeRequest(seed, req)
				a.logger.Debug("read book file", "path", file, "title", req.Title, "identifiers", req.Identifiers)
			}

			db, err := a.openCache()
			if err != nil {
				return err
			}
			defer db.Close()

			records, err := a.newService(db).IdentifyAll(cmd.Context(), req)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				a.logger.Info("no matching metadata found")
				return a.print(cmd.OutOrStdout(), records)
			}

			if apply {
				if err := bookfile.Apply(file, records[0]); err != nil {
					return fmt.Errorf("failed to update %s: %w", file, err)
				}
				a.logger.Info("metadata written", "path", file, "catalog_id", records[0].CatalogID())
			}
			return a.print(cmd.OutOrStdout(), records)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&file, "file", "", "EPUB or PDF whose embedded metadata seeds the lookup")
	cmd.Flags().BoolVar(&apply, "apply", false, "write the best match into --file")

	return cmd
}

// mergeRequest overlays the fields set in override onto base
func mergeRequest(base, override metadata.IdentifyRequest) metadata.IdentifyRequest {
	if override.Title != "" {
		base.Title = override.Title
	}
	if len(override.Authors) > 0 {
		base.Authors = override.Authors
	}
	if base.Identifiers == nil {
		base.Identifiers = map[string]string{}
	}
	for k, v := range override.Identifiers {
		base.Identifiers[k] = v
	}
	return base
}
