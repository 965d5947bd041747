package inventory

import "fmt"

// Status is the terminal classification of a single inventory check.
// Exactly one value is produced per completed classification; values never combine.
type Status string

const (
	StatusInStock    Status = "in_stock"
	StatusOutOfStock Status = "out_of_stock"
	StatusCanOrder   Status = "can_order"
	StatusWaitlist   Status = "waitlist"
	StatusUnknown    Status = "unknown"
	StatusNoAnswer   Status = "no_answer"
	StatusCallFailed Status = "call_failed"
)

// All lists every status in a stable order (useful for reports).
var All = []Status{
	StatusInStock,
	StatusOutOfStock,
	StatusCanOrder,
	StatusWaitlist,
	StatusUnknown,
	StatusNoAnswer,
	StatusCallFailed,
}

func (s Status) Valid() bool {
	switch s {
	case StatusInStock, StatusOutOfStock, StatusCanOrder, StatusWaitlist,
		StatusUnknown, StatusNoAnswer, StatusCallFailed:
		return true
	default:
		return false
	}
}

// Reclassifiable reports whether a result with this status carries a transcript
// worth classifying again. Calls that never connected have nothing to re-read.
func (s Status) Reclassifiable() bool {
	return s != StatusNoAnswer && s != StatusCallFailed
}

func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", fmt.Errorf("inventory: unknown status %q", v)
	}
	return s, nil
}

// sentences is the fixed human-readable fallback per status.
var sentences = map[Status]string{
	StatusInStock:    "The store confirmed the item is in stock.",
	StatusOutOfStock: "The store does not have the item in stock.",
	StatusCanOrder:   "The item is not in stock, but the store can order it.",
	StatusWaitlist:   "The item is not in stock, but the store offered to add you to a waitlist.",
	StatusUnknown:    "The call completed, but the stock status could not be determined.",
	StatusNoAnswer:   "The store did not answer the call.",
	StatusCallFailed: "The call could not be completed.",
}

// Sentence returns a one-sentence summary for s. It never returns an empty string.
func Sentence(s Status) string {
	if v, ok := sentences[s]; ok {
		return v
	}
	return sentences[StatusUnknown]
}
