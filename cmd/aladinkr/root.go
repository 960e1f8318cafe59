package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/justyntemme/aladinkr/internal/config"
	"github.com/justyntemme/aladinkr/internal/fetch"
	"github.com/justyntemme/aladinkr/internal/metadata"
	"github.com/justyntemme/aladinkr/internal/storage"
)

// app carries state shared by every subcommand
type app struct {
	cfgFile string
	verbose bool
	format  string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "aladinkr",
		Short: "Book metadata and covers from the Aladin catalog",
		Long: `aladinkr identifies books against aladin.co.kr and downloads their covers.

Lookups accept an ISBN, an Aladin item id, or a title and author. Results can
be printed, saved, or served over HTTP.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			level := slog.LevelInfo
			if a.verbose {
				level = slog.LevelDebug
			}
			a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(a.logger)

			if cmd.Name() == "init" {
				return nil
			}
			cfg, err := config.Load(a.cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default ./aladinkr.yaml or $HOME/.aladinkr/aladinkr.yaml)")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().StringVarP(&a.format, "format", "f", "json", "output format: json or yaml")

	cmd.AddCommand(newIdentifyCmd(a))
	cmd.AddCommand(newCoverCmd(a))
	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newTokenCmd(a))
	cmd.AddCommand(newInitCmd(a))

	return cmd
}

// openCache opens the persistent cover cache. An empty database path gives
// an in-memory database.
func (a *app) openCache() (*storage.Database, error) {
	if dir := filepath.Dir(a.cfg.DatabasePath); a.cfg.DatabasePath != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}
	db, err := storage.NewDatabase(a.cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	return db, nil
}

func (a *app) newService(cache metadata.CoverCache) *metadata.Service {
	fc := fetch.DefaultConfig()
	fc.Timeout = a.cfg.Timeout
	fc.UserAgent = a.cfg.UserAgent

	client := fetch.NewClient(fc)
	pages := storage.NewPageStore(a.cfg.PagesDir)
	a.logger.Debug("catalog client ready",
		"base_url", a.cfg.BaseURL,
		"user_agent", client.UserAgent(),
		"timeout", client.Timeout(),
		"pages_dir", pages.Dir(),
	)

	return metadata.NewService(
		client,
		cache,
		metadata.WithLogger(a.logger),
		metadata.WithBaseURL(a.cfg.BaseURL),
		metadata.WithTimeout(a.cfg.Timeout),
		metadata.WithStagger(a.cfg.Stagger),
		metadata.WithPageOverride(pages),
	)
}

func (a *app) print(w io.Writer, v any) error {
	switch a.format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format %q", a.format)
	}
}

// lookupFlags are the book identification flags shared by identify and cover
type lookupFlags struct {
	title   string
	authors []string
	isbn    string
	aladin  string
}

func (f *lookupFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.title, "title", "t", "", "book title")
	cmd.Flags().StringArrayVarP(&f.authors, "author", "a", nil, "author name (repeatable)")
	cmd.Flags().StringVar(&f.isbn, "isbn", "", "ISBN-10 or ISBN-13")
	cmd.Flags().StringVar(&f.aladin, "aladin", "", "Aladin item id")
}

func (f *lookupFlags) request() metadata.IdentifyRequest {
	req := metadata.IdentifyRequest{
		Title:       f.title,
		Authors:     f.authors,
		Identifiers: map[string]string{},
	}
	if f.isbn != "" {
		req.Identifiers[metadata.IdentifierISBN] = f.isbn
	}
	if f.aladin != "" {
		req.Identifiers[metadata.IdentifierCatalog] = f.aladin
	}
	return req
}
