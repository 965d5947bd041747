package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/template"
	"time"
)

// Summarizer condenses a call transcript into a short, third-person summary.
type Summarizer interface {
	Summarize(ctx context.Context, req Request) (string, error)
}

type Request struct {
	Transcript string
	// EntityName is who was called, e.g. the retailer name.
	EntityName string
	// Subject is what was asked about, e.g. the product full name.
	Subject string
}

var (
	ErrEmptyTranscript = errors.New("summarizer: transcript is empty")
	ErrEmptySummary    = errors.New("summarizer: provider returned no text")
)

const (
	DefaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	DefaultModel            = "claude-3-haiku-20240307"
	anthropicVersion        = "2023-06-01"
	maxTokens               = 150
)

var promptTmpl = template.Must(template.New("prompt").Parse(
	`Summarize this phone call transcript in 1-3 sentences. The caller was asking {{.EntityName}} about the availability of a {{.Subject}}.

Focus on:
- Whether the item is in stock or not
- Any waitlist, special order, or callback options mentioned
- Any other relevant details (e.g., if they reached an automated system, if the store was busy, etc.)

Keep the summary concise and factual. Write from a third-person perspective (e.g., "The store confirmed..." not "I confirmed...").

Transcript:
{{.Transcript}}

Summary:`))

// Prompt renders the instruction sent to the model for req.
func Prompt(req Request) string {
	var b strings.Builder
	_ = promptTmpl.Execute(&b, req)
	return b.String()
}

// AnthropicClient calls the Anthropic Messages API over plain HTTP.
type AnthropicClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

type AnthropicOptions struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

func NewAnthropicClient(apiKey string, opts AnthropicOptions) (*AnthropicClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("summarizer: anthropic api key is required")
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultAnthropicBaseURL
	}
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &AnthropicClient{baseURL: base, apiKey: apiKey, model: model, client: client}, nil
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (a *AnthropicClient) Summarize(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Transcript) == "" {
		return "", ErrEmptyTranscript
	}
	body, err := json.Marshal(messagesRequest{
		Model:     a.model,
		MaxTokens: maxTokens,
		Messages:  []message{{Role: "user", Content: Prompt(req)}},
	})
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	res, err := a.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("summarizer: request failed: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("summarizer: read response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("summarizer: API error: %d - %s", res.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out messagesResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("summarizer: decode response: %w", err)
	}
	for _, c := range out.Content {
		if c.Type == "text" || c.Type == "" {
			if text := strings.TrimSpace(c.Text); text != "" {
				return text, nil
			}
		}
	}
	return "", ErrEmptySummary
}
