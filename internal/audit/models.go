package audit

import "time"

// Event is an immutable, append-only audit log record of an operator action
// that costs money or reaches a third party (placing calls).
//
// Invariants:
// - Events are never updated or deleted.
// - actor and ip capture are best-effort; do not block call flows on audit failures.
type Event struct {
	ID string `json:"id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type"`

	// ActorOperatorID is the authenticated operator causing the event.
	ActorOperatorID string `json:"actor_operator_id,omitempty"`
	ActorRole       string `json:"actor_role,omitempty"`

	// IPAddress is the resolved client IP as seen by the API.
	IPAddress string `json:"ip_address,omitempty"`

	// Target identifiers (optional, depending on the event type).
	JobID   string `json:"job_id,omitempty"`
	Product string `json:"product,omitempty"`
	// Targets is the number of retailers the action will call.
	Targets int `json:"targets,omitempty"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type EventType string

const (
	EventTypeBatchStarted EventType = "batch_started"
	EventTypeSingleCall   EventType = "single_call"
)
