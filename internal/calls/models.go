package calls

import (
	"encoding/json"
	"time"

	"stock-finder/internal/inventory"
)

// Target is a single retailer/phone pair to be called.
// It is an immutable input to a call attempt.
type Target struct {
	DisplayName string `json:"display_name"`
	// Phone is E.164 where possible; NormalizePhone is applied before dialing.
	Phone string `json:"phone_number"`
}

// Result is the outcome of one call attempt.
//
// Transcript, Summary and DurationSeconds are only filled once the provider
// reports a terminal state. Evidence is never mutated after creation; use
// Reclassify to derive a status from a newer summary.
type Result struct {
	TargetName  string `json:"retailer_name"`
	TargetPhone string `json:"retailer_phone"`

	// ProviderCallID is empty when the provider never accepted the call.
	ProviderCallID string `json:"call_id"`

	Status inventory.Status `json:"status"`

	Transcript string `json:"transcript,omitempty"`
	Summary    string `json:"summary,omitempty"`

	DurationSeconds *int `json:"call_duration,omitempty"`

	Timestamp time.Time `json:"timestamp"`

	// RawPayload is the provider's terminal poll response, kept for debugging.
	RawPayload json.RawMessage `json:"raw_response,omitempty"`

	// Website is set when a website stock check was used as a fallback.
	Website *WebsiteCheck `json:"website,omitempty"`
}

// WebsiteCheck is the outcome of a retailer website lookup attached to a call.
type WebsiteCheck struct {
	Status     string   `json:"status"`
	ProductURL string   `json:"product_url,omitempty"`
	Price      *float64 `json:"price,omitempty"`
	Message    string   `json:"message,omitempty"`
}

// Reclassify returns the status this result would have if classified against
// summary instead of its own. Calls that never connected keep their status.
func (r Result) Reclassify(summary string) inventory.Status {
	if !r.Status.Reclassifiable() {
		return r.Status
	}
	return inventory.Classify(r.Transcript, summary)
}

// Failed builds a call_failed result for target with a human-readable reason.
func Failed(t Target, providerCallID, reason string, at time.Time) Result {
	return Result{
		TargetName:     t.DisplayName,
		TargetPhone:    t.Phone,
		ProviderCallID: providerCallID,
		Status:         inventory.StatusCallFailed,
		Summary:        reason,
		Timestamp:      at,
	}
}
