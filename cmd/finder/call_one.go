package main

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"stock-finder/internal/calls"
)

func newCallOneCmd() *cobra.Command {
	var name, phone, product string

	cmd := &cobra.Command{
		Use:   "call-one",
		Short: "Call a single store and print the refined result",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(name) == "" || strings.TrimSpace(phone) == "" {
				return errors.New("--name and --phone are required")
			}
			ctx, a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.Catalog.Resolve(product)
			if err != nil {
				return err
			}
			res := a.Calls.CallOne(ctx, calls.Target{DisplayName: name, Phone: phone}, p)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "store name")
	cmd.Flags().StringVar(&phone, "phone", "", "store phone number")
	cmd.Flags().StringVarP(&product, "product", "p", "", "product reference (default from catalog)")
	return cmd
}
