package reporting

import "stock-finder/internal/inventory"

// RetailerRef names a retailer that reported the item in stock.
type RetailerRef struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// BatchSummary aggregates the results of one batch of calls.
type BatchSummary struct {
	TotalCalls int `json:"total_calls"`

	// StatusBreakdown only has keys for statuses that occurred.
	StatusBreakdown map[inventory.Status]int `json:"status_breakdown"`

	InStockRetailers []RetailerRef `json:"in_stock_retailers"`

	// ConnectedCalls counts calls that reached a person or system, i.e. not
	// no_answer and not call_failed.
	ConnectedCalls int `json:"connected_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`
}
