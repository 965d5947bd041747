package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newWebsitesCmd() *cobra.Command {
	var (
		product string
		list    bool
	)

	cmd := &cobra.Command{
		Use:   "websites [retailer...]",
		Short: "Check retailer websites for the product",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			out := cmd.OutOrStdout()

			if list || len(args) == 0 {
				fmt.Fprintln(out, "Retailers with website checks:")
				for _, name := range a.Websites.Supported() {
					fmt.Fprintf(out, "  - %s\n", name)
				}
				return nil
			}

			p, err := a.Catalog.Resolve(product)
			if err != nil {
				return err
			}
			found := a.Websites.CheckBatch(ctx, args, p.Reference)
			for _, name := range args {
				r, ok := found[name]
				if !ok {
					r = a.Websites.Check(ctx, name, p.Reference)
				}
				fmt.Fprintf(out, "%s: %s\n", name, r.Status)
				if r.Price != nil {
					fmt.Fprintf(out, "    price: $%.2f\n", *r.Price)
				}
				if r.ProductURL != "" {
					fmt.Fprintf(out, "    %s\n", r.ProductURL)
				}
				if r.Message != "" {
					fmt.Fprintf(out, "    %s\n", r.Message)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&product, "product", "p", "", "product reference (default from catalog)")
	cmd.Flags().BoolVar(&list, "list", false, "list retailers with website checks")
	return cmd
}
