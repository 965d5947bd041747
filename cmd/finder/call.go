package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stock-finder/internal/calls"
	"stock-finder/internal/catalog"
	"stock-finder/internal/directory"
	"stock-finder/internal/geo"
	"stock-finder/internal/orchestrator"
	"stock-finder/internal/reporting"
)

var errCanceled = errors.New("canceled")

type callFlags struct {
	zip      string
	radius   float64
	maxCalls int
	product  string
	delay    time.Duration
	yes      bool
	output   string
}

func newCallCmd() *cobra.Command {
	var f callFlags

	cmd := &cobra.Command{
		Use:   "call",
		Short: "Call nearby retailers and report stock",
		Long:  "Calls the retailers with phone numbers near a zip code, nearest first, one at a time, and prints a stock summary.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, f)
		},
	}

	cmd.Flags().StringVarP(&f.zip, "zip", "z", "", "zip code to search around (default from catalog)")
	cmd.Flags().Float64VarP(&f.radius, "radius", "r", 0, "search radius in miles (default from catalog)")
	cmd.Flags().IntVarP(&f.maxCalls, "max-calls", "m", 0, "maximum number of calls (0 means no limit)")
	cmd.Flags().StringVarP(&f.product, "product", "p", "", "product reference (default from catalog)")
	cmd.Flags().DurationVarP(&f.delay, "delay", "d", -1, "pause between calls (default CALL_DELAY)")
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "do not ask for confirmation")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "write results as JSON to this file")
	return cmd
}

func runCall(cmd *cobra.Command, f callFlags) error {
	ctx, a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	out := cmd.OutOrStdout()

	product, err := a.Catalog.Resolve(f.product)
	if err != nil {
		return err
	}
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
	callable := directory.WithPhones(geo.Retailers(matches))
	if len(callable) == 0 {
		return errors.New("no retailers with phone numbers found in the search area")
	}
	targets := make([]calls.Target, 0, len(callable))
	for _, r := range callable {
		targets = append(targets, r.Target())
	}
	targets = orchestrator.Cap(targets, f.maxCalls)

	opts := a.BatchOptions(product)
	if f.delay >= 0 {
		opts.Delay = f.delay
	}

	fmt.Fprintf(out, "\nAbout to make %d phone calls\n", len(targets))
	fmt.Fprintf(out, "   Item: %s\n   Reference: %s\n", product.FullName, product.Reference)
	if !f.yes && !confirm(cmd.InOrStdin(), out, "Continue? (y/N): ") {
		fmt.Fprintln(out, "Cancelled.")
		return errCanceled
	}

	results := a.Calls.RunBatch(ctx, "", targets, opts)
	for _, r := range results {
		fmt.Fprintf(out, "  %s: %s\n", r.TargetName, r.Status)
		if r.Summary != "" {
			fmt.Fprintf(out, "    %s\n", r.Summary)
		}
	}

	summary := reporting.Summarize(results)
	if err := reporting.WriteText(out, product.FullName, summary); err != nil {
		return err
	}
	if f.output != "" {
		if err := writeResults(f.output, product, results, summary); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nResults saved to %s\n", f.output)
	}
	return nil
}

// confirm reads one line from in and reports whether it starts with y.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

type resultsFile struct {
	Product   catalog.Product        `json:"product"`
	CheckedAt time.Time              `json:"checked_at"`
	Results   []calls.Result         `json:"results"`
	Summary   reporting.BatchSummary `json:"summary"`
}

func writeResults(path string, p catalog.Product, results []calls.Result, s reporting.BatchSummary) error {
	raw, err := json.MarshalIndent(resultsFile{Product: p, CheckedAt: time.Now().UTC(), Results: results, Summary: s}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}
