package model

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/attache/attache/pkg/fault"
)

// Role values for chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of an ordered conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options is the recognized invocation option bag. Zero values mean "use the
// model's default"; anything a backend does not understand is dropped there.
type Options struct {
	// Temperature overrides the sampling temperature when non-nil.
	Temperature *float64

	// MaxTokens caps the completion length when positive.
	MaxTokens int
}

// Adapter is the uniform invocation surface over one backend family.
// Implementations perform exactly one outbound HTTP request per call and
// never retry; retry policy lives in the Router.
type Adapter interface {
	// Provider returns the provider tag this adapter serves.
	Provider() string

	// Invoke sends messages to the named model and returns the text of the
	// first assistant choice. Any transport, HTTP, timeout, or parse error
	// is reported as a backend_unavailable fault naming the model.
	Invoke(ctx context.Context, model string, messages []Message, opts Options) (string, error)
}

// httpDoer abstracts *http.Client for tests.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// breakerAdapter wraps an Adapter with a circuit breaker. A tripped breaker
// reports backend_unavailable immediately without burning a request, which
// feeds straight into the Router's fallback path.
type breakerAdapter struct {
	inner   Adapter
	breaker *gobreaker.CircuitBreaker
}

// WithBreaker wraps adapter with a circuit breaker using the given settings.
// A zero Settings name defaults to the adapter's provider tag.
func WithBreaker(adapter Adapter, settings gobreaker.Settings) Adapter {
	if settings.Name == "" {
		settings.Name = adapter.Provider()
	}
	if settings.Timeout == 0 {
		settings.Timeout = 30 * time.Second
	}
	if settings.ReadyToTrip == nil {
		settings.ReadyToTrip = func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		}
	}
	return &breakerAdapter{
		inner:   adapter,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (b *breakerAdapter) Provider() string {
	return b.inner.Provider()
}

func (b *breakerAdapter) Invoke(ctx context.Context, model string, messages []Message, opts Options) (string, error) {
	out, err := b.breaker.Execute(func() (interface{}, error) {
		return b.inner.Invoke(ctx, model, messages, opts)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fault.BackendUnavailable("model %s: circuit open", model)
		}
		return "", err
	}
	return out.(string), nil
}

// validateInvocation rejects empty message sequences before any network work.
func validateInvocation(model string, messages []Message) error {
	if model == "" {
		return fault.BadInput("model name is required")
	}
	if len(messages) == 0 {
		return fault.BadInput("messages must be nonempty")
	}
	return nil
}
