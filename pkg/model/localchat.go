package model

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/attache/attache/pkg/fault"
)

// LocalChatAdapter speaks the unauthenticated local chat shape
// ({model, messages, options} in, {message:{content}} out). Local models are
// slow to warm up, so the default timeout is much longer than the cloud one.
type LocalChatAdapter struct {
	host   string
	client httpDoer
}

// LocalChatOption customizes a LocalChatAdapter.
type LocalChatOption func(*LocalChatAdapter)

// WithLocalHTTPClient overrides the HTTP client (tests).
func WithLocalHTTPClient(client httpDoer) LocalChatOption {
	return func(a *LocalChatAdapter) { a.client = client }
}

// NewLocalChatAdapter creates a local-chat adapter against host.
func NewLocalChatAdapter(host string, timeout time.Duration, opts ...LocalChatOption) *LocalChatAdapter {
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	a := &LocalChatAdapter{
		host:   host,
		client: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Provider returns the local-chat provider tag.
func (a *LocalChatAdapter) Provider() string { return ProviderLocalChat }

type localChatRequest struct {
	Model    string           `json:"model"`
	Messages []Message        `json:"messages"`
	Stream   bool             `json:"stream"`
	Options  localChatOptions `json:"options,omitempty"`
}

type localChatOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
}

type localChatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

// Invoke performs exactly one local chat request.
func (a *LocalChatAdapter) Invoke(ctx context.Context, model string, messages []Message, opts Options) (string, error) {
	if err := validateInvocation(model, messages); err != nil {
		return "", err
	}

	body, err := json.Marshal(localChatRequest{
		Model:    model,
		Messages: messages,
		Options: localChatOptions{
			Temperature: opts.Temperature,
			NumPredict:  opts.MaxTokens,
		},
	})
	if err != nil {
		return "", fault.BackendUnavailable("model %s: encode request: %v", model, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fault.BackendUnavailable("model %s: build request: %v", model, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fault.BackendUnavailable("model %s: %v", model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fault.BackendUnavailable("model %s: HTTP %d: %s", model, resp.StatusCode, snippet)
	}

	var parsed localChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fault.BackendUnavailable("model %s: decode response: %v", model, err)
	}
	return parsed.Message.Content, nil
}
