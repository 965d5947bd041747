package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"stock-finder/internal/geo"
)

// listPreview is how many retailers are shown without --show-all.
const listPreview = 10

type searchFlags struct {
	zip     string
	radius  float64
	showAll bool
}

func newSearchCmd() *cobra.Command {
	var f searchFlags

	cmd := &cobra.Command{
		Use:   "search",
		Short: "List retailers near a zip code",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			zip, radius := f.zip, f.radius
			if zip == "" {
				zip = a.Catalog.Search.ZipCode
			}
			if radius <= 0 {
				radius = a.Catalog.Search.RadiusMiles
			}
			rs, err := a.Directory.GetOrLoad(ctx)
			if err != nil {
				return err
			}
			matches, _, err := a.Geo.ByZip(ctx, rs, zip, radius)
			if err != nil {
				return err
			}
			if len(matches) == 0 {
				return fmt.Errorf("no retailers found within %.0f miles of %s", radius, zip)
			}
			printMatches(cmd.OutOrStdout(), matches, f.showAll)
			return nil
		},
	}

	cmd.Flags().StringVarP(&f.zip, "zip", "z", "", "zip code to search around (default from catalog)")
	cmd.Flags().Float64VarP(&f.radius, "radius", "r", 0, "search radius in miles (default from catalog)")
	cmd.Flags().BoolVar(&f.showAll, "show-all", false, "show every retailer instead of the nearest 10")
	return cmd
}

func printMatches(w io.Writer, matches []geo.Match, showAll bool) {
	fmt.Fprintf(w, "\nFound %d retailers within range:\n", len(matches))
	fmt.Fprintln(w, "----------------------------------------------------------------------")
	shown := matches
	if !showAll && len(shown) > listPreview {
		shown = shown[:listPreview]
	}
	for i, m := range shown {
		r := m.Retailer
		address := r.Address
		if address == "" {
			address = "Address not available"
		}
		phone := "no phone"
		if r.HasPhone() {
			phone = r.Phone
		}
		fmt.Fprintf(w, "%2d. %s\n    %.1f miles away\n    %s\n    %s\n\n", i+1, r.Name, m.DistanceMiles, address, phone)
	}
	if len(shown) < len(matches) {
		fmt.Fprintf(w, "... and %d more retailers\nUse --show-all to see all retailers\n", len(matches)-len(shown))
	}
}
