package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// VoiceProvider defines the provider-agnostic interface used by the call driver.
//
// Rules:
// - No provider HTTP calls outside telephony adapters.
// - Keep request/response types provider-agnostic; keep the provider's raw payload in Raw.
type VoiceProvider interface {
	Name() string
	HealthCheck(ctx context.Context) error

	// CreateCall places one outbound call order. It returns ErrNoCallID when the
	// provider accepted the request but did not identify the call.
	CreateCall(ctx context.Context, req CallRequest) (CreateCallResult, error)

	// GetCall returns the current provider view of a call. An empty Status means
	// the provider response carried no usable status.
	GetCall(ctx context.Context, callID string) (CallStatus, error)
}

// CallRequest is an outbound call order.
type CallRequest struct {
	// To is the destination number in E.164.
	To string `json:"to"`

	// OpeningLine is spoken first once the call connects.
	OpeningLine string `json:"opening_line"`
	// Task describes in natural language what information the agent must extract.
	Task string `json:"task"`

	VoiceID         string `json:"voice_id,omitempty"`
	Model           string `json:"model,omitempty"`
	Language        string `json:"language,omitempty"`
	MaxDurationSecs int    `json:"max_duration_secs"`
	WaitForGreeting bool   `json:"wait_for_greeting"`
	Record          bool   `json:"record"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

type CreateCallResult struct {
	CallID string `json:"call_id"`
}

// CallStatus is one poll response from the provider.
type CallStatus struct {
	CallID string `json:"call_id"`
	Status string `json:"status"`

	Transcript string `json:"transcript,omitempty"`
	Summary    string `json:"summary,omitempty"`

	// DurationSeconds is nil when the provider did not report a length.
	DurationSeconds *int `json:"duration_seconds,omitempty"`

	Raw json.RawMessage `json:"raw,omitempty"`
}

// Provider call states that will not change further.
const (
	ProviderStatusCompleted = "completed"
	ProviderStatusEnded     = "ended"
	ProviderStatusFailed    = "failed"
	ProviderStatusNoAnswer  = "no-answer"
	ProviderStatusBusy      = "busy"
	ProviderStatusVoicemail = "voicemail"
)

// IsTerminal reports whether a provider status is final.
func IsTerminal(status string) bool {
	switch status {
	case ProviderStatusCompleted, ProviderStatusEnded, ProviderStatusFailed,
		ProviderStatusNoAnswer, ProviderStatusBusy, ProviderStatusVoicemail:
		return true
	default:
		return false
	}
}

// IsUnanswered reports whether a terminal status means nobody picked up.
// These calls carry no usable transcript.
func IsUnanswered(status string) bool {
	switch status {
	case ProviderStatusNoAnswer, ProviderStatusBusy, ProviderStatusVoicemail:
		return true
	default:
		return false
	}
}

var ErrNoCallID = errors.New("telephony: provider returned no call id")

// RequestError is a network failure or non-success HTTP response from a provider.
type RequestError struct {
	Provider   string
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: API error: %d - %s", e.Provider, e.Op, e.StatusCode, e.Body)
}

func (e *RequestError) Unwrap() error { return e.Err }
