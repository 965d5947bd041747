package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

const DefaultBlandBaseURL = "https://api.bland.ai/v1"

// maxErrorBody caps how much of an error response we keep for messages.
const maxErrorBody = 2048

// BlandProvider talks to the Bland AI voice-call REST API.
// It intentionally avoids any provider SDK dependency.
type BlandProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type BlandOptions struct {
	BaseURL string
	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client
}

func NewBlandProvider(apiKey string, opts BlandOptions) (*BlandProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("telephony: bland api key is required")
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBlandBaseURL
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &BlandProvider{baseURL: base, apiKey: apiKey, client: client}, nil
}

func (p *BlandProvider) Name() string { return "bland" }

func (p *BlandProvider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/calls?limit=1", nil)
	if err != nil {
		return err
	}
	_, err = p.do(req, "health")
	return err
}

type blandCreateRequest struct {
	PhoneNumber     string            `json:"phone_number"`
	Task            string            `json:"task"`
	Model           string            `json:"model,omitempty"`
	Voice           string            `json:"voice,omitempty"`
	FirstSentence   string            `json:"first_sentence"`
	WaitForGreeting bool              `json:"wait_for_greeting"`
	Record          bool              `json:"record"`
	MaxDuration     int               `json:"max_duration"`
	Language        string            `json:"language,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

func (p *BlandProvider) CreateCall(ctx context.Context, in CallRequest) (CreateCallResult, error) {
	payload := blandCreateRequest{
		PhoneNumber:     in.To,
		Task:            in.Task,
		Model:           in.Model,
		Voice:           in.VoiceID,
		FirstSentence:   in.OpeningLine,
		WaitForGreeting: in.WaitForGreeting,
		Record:          in.Record,
		MaxDuration:     in.MaxDurationSecs,
		Language:        in.Language,
		Metadata:        in.Metadata,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return CreateCallResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/calls", bytes.NewReader(body))
	if err != nil {
		return CreateCallResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := p.do(req, "create call")
	if err != nil {
		return CreateCallResult{}, err
	}

	var out struct {
		CallID string `json:"call_id"`
	}
	if err := json.Unmarshal(raw, &out); err != nil || strings.TrimSpace(out.CallID) == "" {
		return CreateCallResult{}, fmt.Errorf("%w: %s", ErrNoCallID, truncate(string(raw)))
	}
	return CreateCallResult{CallID: out.CallID}, nil
}

func (p *BlandProvider) GetCall(ctx context.Context, callID string) (CallStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/calls/"+url.PathEscape(callID), nil)
	if err != nil {
		return CallStatus{}, err
	}
	raw, err := p.do(req, "get call")
	if err != nil {
		return CallStatus{}, err
	}
	return ParseBlandCall(callID, raw), nil
}

func (p *BlandProvider) do(req *http.Request, op string) ([]byte, error) {
	req.Header.Set("Authorization", p.apiKey)
	res, err := p.client.Do(req)
	if err != nil {
		return nil, &RequestError{Provider: p.Name(), Op: op, Err: err}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &RequestError{Provider: p.Name(), Op: op, Err: err}
	}
	if res.StatusCode != http.StatusOK {
		return nil, &RequestError{Provider: p.Name(), Op: op, StatusCode: res.StatusCode, Body: truncate(string(raw))}
	}
	return raw, nil
}

// ParseBlandCall extracts a CallStatus from a Bland call payload.
//
// Field names vary between API versions, so several shapes are accepted:
// transcript | concatenated_transcript, summary | analysis.summary,
// call_length (minutes) | duration (seconds). A body that is not a JSON object
// yields an empty Status, which callers treat as "still waiting".
func ParseBlandCall(callID string, raw []byte) CallStatus {
	out := CallStatus{CallID: callID}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return out
	}
	out.Raw = json.RawMessage(raw)
	out.Status = strings.ToLower(stringField(m, "status"))
	out.Transcript = stringField(m, "transcript", "concatenated_transcript")
	out.Summary = stringField(m, "summary")
	if out.Summary == "" {
		if a, ok := m["analysis"]; ok {
			var analysis map[string]json.RawMessage
			if json.Unmarshal(a, &analysis) == nil {
				out.Summary = stringField(analysis, "summary")
			}
		}
	}
	if minutes, ok := numberField(m, "call_length"); ok {
		secs := int(math.Round(minutes * 60))
		out.DurationSeconds = &secs
	} else if seconds, ok := numberField(m, "duration"); ok {
		secs := int(math.Round(seconds))
		out.DurationSeconds = &secs
	}
	return out
}

// stringField returns the first non-empty string value among keys.
// Non-string values are skipped.
func stringField(m map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(v, &s) == nil && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func numberField(m map[string]json.RawMessage, key string) (float64, bool) {
	v, ok := m[key]
	if !ok || string(bytes.TrimSpace(v)) == "null" {
		return 0, false
	}
	var f float64
	if json.Unmarshal(v, &f) != nil {
		return 0, false
	}
	return f, true
}

// truncate cuts s to at most maxErrorBody bytes without splitting a rune.
func truncate(s string) string {
	if len(s) <= maxErrorBody {
		return s
	}
	n := maxErrorBody
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
