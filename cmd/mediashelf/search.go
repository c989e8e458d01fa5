package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mediashelf/mediashelf/internal/catalog"
	"github.com/mediashelf/mediashelf/internal/config"
	"github.com/mediashelf/mediashelf/internal/ingest"
	"github.com/mediashelf/mediashelf/internal/metadata"
	"github.com/mediashelf/mediashelf/internal/preferences"
)

func newSearchCmd() *cobra.Command {
	var (
		category     string
		year         int
		includeAdult bool
	)

	cmd := &cobra.Command{
		Use:   "search [flags] <query>",
		Short: "Search a metadata provider and print the results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.ParseCategory(category)
			if err != nil {
				return err
			}
			provider, err := ingest.ProviderFor(cat)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			prefs, err := preferences.Load(cfg.SettingsPath(), config.EmbeddedTMDBKey, zerolog.Nop())
			if err != nil {
				return err
			}

			adapter := metadata.NewAdapterFromConfig(cfg.Metadata, prefs.TMDBKey(), zerolog.Nop())
			if !adapter.IsConfigured(provider) {
				return &ingest.ConfigError{Provider: provider}
			}

			var yearPtr *int
			if year > 0 {
				yearPtr = &year
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			results, err := adapter.Search(ctx, provider, args[0], yearPtr, includeAdult || prefs.Get().IncludeAdult)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tYEAR\tTITLE\tNATIVE")
			for _, r := range results {
				y := "-"
				if r.Year != nil {
					y = fmt.Sprint(*r.Year)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.ID, y, r.Title, r.NativeTitle)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d results from %s\n", len(results), provider.Service())
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", string(catalog.CategoryMovie), "Movie, TV or Anime")
	cmd.Flags().IntVarP(&year, "year", "y", 0, "Release year filter")
	cmd.Flags().BoolVar(&includeAdult, "adult", false, "Include adult results")
	return cmd
}
