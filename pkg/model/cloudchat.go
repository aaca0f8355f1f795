package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/attache/attache/pkg/fault"
)

// CloudChatAdapter speaks the bearer-token chat-completions shape used by the
// hosted providers.
type CloudChatAdapter struct {
	baseURL string
	apiKey  string
	client  httpDoer
}

// CloudChatOption customizes a CloudChatAdapter.
type CloudChatOption func(*CloudChatAdapter)

// WithCloudHTTPClient overrides the HTTP client (tests).
func WithCloudHTTPClient(client httpDoer) CloudChatOption {
	return func(a *CloudChatAdapter) { a.client = client }
}

// NewCloudChatAdapter creates a cloud-chat adapter against baseURL.
func NewCloudChatAdapter(baseURL, apiKey string, timeout time.Duration, opts ...CloudChatOption) *CloudChatAdapter {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	a := &CloudChatAdapter{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Provider returns the cloud-chat provider tag.
func (a *CloudChatAdapter) Provider() string { return ProviderCloudChat }

type chatCompletionsRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

type chatCompletionsResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations,omitempty"`
}

// Invoke performs exactly one chat-completions request.
func (a *CloudChatAdapter) Invoke(ctx context.Context, model string, messages []Message, opts Options) (string, error) {
	text, _, err := a.invoke(ctx, model, messages, opts)
	return text, err
}

func (a *CloudChatAdapter) invoke(ctx context.Context, model string, messages []Message, opts Options) (string, []string, error) {
	if err := validateInvocation(model, messages); err != nil {
		return "", nil, err
	}

	body, err := json.Marshal(chatCompletionsRequest{
		Model:       model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return "", nil, fault.BackendUnavailable("model %s: encode request: %v", model, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", nil, fault.BackendUnavailable("model %s: build request: %v", model, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", nil, fault.BackendUnavailable("model %s: %v", model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", nil, fault.BackendUnavailable("model %s: HTTP %d: %s", model, resp.StatusCode, snippet)
	}

	var parsed chatCompletionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", nil, fault.BackendUnavailable("model %s: decode response: %v", model, err)
	}
	if len(parsed.Choices) == 0 {
		return "", nil, fault.BackendUnavailable("model %s: response has no choices", model)
	}
	return parsed.Choices[0].Message.Content, parsed.Citations, nil
}

// CitationsAdapter is a single-shot "answer with citations" provider. It
// shares the chat-completions wire shape but appends the returned source
// list to the answer text.
type CitationsAdapter struct {
	cloud *CloudChatAdapter
}

// NewCitationsAdapter creates a citations adapter against baseURL.
func NewCitationsAdapter(baseURL, apiKey string, timeout time.Duration, opts ...CloudChatOption) *CitationsAdapter {
	return &CitationsAdapter{cloud: NewCloudChatAdapter(baseURL, apiKey, timeout, opts...)}
}

// Provider returns the citations provider tag.
func (a *CitationsAdapter) Provider() string { return ProviderCitations }

// Invoke performs one request and appends a numbered source list when the
// backend returned citations.
func (a *CitationsAdapter) Invoke(ctx context.Context, model string, messages []Message, opts Options) (string, error) {
	text, citations, err := a.cloud.invoke(ctx, model, messages, opts)
	if err != nil {
		return "", err
	}
	if len(citations) == 0 {
		return text, nil
	}
	out := text + "\n\nSources:"
	for i, c := range citations {
		out += fmt.Sprintf("\n[%d] %s", i+1, c)
	}
	return out, nil
}
