package reporting

import (
	"fmt"
	"io"
	"strings"

	"stock-finder/internal/calls"
	"stock-finder/internal/inventory"
)

// Summarize aggregates results in order. It never fails; an empty slice
// gives a zero summary with an empty breakdown.
func Summarize(results []calls.Result) BatchSummary {
	out := BatchSummary{
		StatusBreakdown:  map[inventory.Status]int{},
		InStockRetailers: []RetailerRef{},
	}
	withDuration := 0
	for _, r := range results {
		out.TotalCalls++
		out.StatusBreakdown[r.Status]++
		if r.Status.Reclassifiable() {
			out.ConnectedCalls++
		}
		if r.DurationSeconds != nil {
			out.TotalDurationSeconds += *r.DurationSeconds
			withDuration++
		}
		if r.Status == inventory.StatusInStock {
			out.InStockRetailers = append(out.InStockRetailers, RetailerRef{Name: r.TargetName, Phone: r.TargetPhone})
		}
	}
	if withDuration > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / withDuration
	}
	return out
}

// WriteText prints a human-readable report of s for subject to w.
func WriteText(w io.Writer, subject string, s BatchSummary) error {
	var b strings.Builder
	b.WriteString(strings.Repeat("=", 60) + "\n")
	b.WriteString("INVENTORY CHECK SUMMARY\n")
	b.WriteString(strings.Repeat("=", 60) + "\n")
	if subject != "" {
		fmt.Fprintf(&b, "Item: %s\n", subject)
	}
	fmt.Fprintf(&b, "Total calls made: %d\n", s.TotalCalls)
	b.WriteString("\nStatus breakdown:\n")
	for _, st := range inventory.All {
		if n := s.StatusBreakdown[st]; n > 0 {
			fmt.Fprintf(&b, "  - %s: %d\n", st, n)
		}
	}
	if len(s.InStockRetailers) == 0 {
		b.WriteString("\nItem not found in stock at any called retailer\n")
	} else {
		b.WriteString("\nIN STOCK AT:\n")
		for _, r := range s.InStockRetailers {
			fmt.Fprintf(&b, "  * %s - %s\n", r.Name, r.Phone)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
