package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"stock-finder/internal/directory"
)

func newScrapeCmd() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Load the retailer directory",
		Long:  "Loads the retailer directory from the snapshot, scraping the store locator when no snapshot exists. Use --refresh to scrape again.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var rs []directory.Retailer
			if refresh {
				fmt.Fprintln(cmd.OutOrStdout(), "Scraping retailers (this may take a few minutes)...")
				rs, err = a.Directory.Reload(ctx)
			} else {
				rs, err = a.Directory.GetOrLoad(ctx)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d US retailers (%d with phone numbers)\n", len(rs), len(directory.WithPhones(rs)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "scrape the store locator even if a snapshot exists")
	return cmd
}
