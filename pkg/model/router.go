package model

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/attache/attache/config"
	"github.com/attache/attache/pkg/fault"
	"github.com/attache/attache/pkg/logger"
)

// Complexity buckets a request's difficulty.
type Complexity string

const (
	ComplexityLow  Complexity = "low"
	ComplexityMed  Complexity = "med"
	ComplexityHigh Complexity = "high"
)

// Priority selects the optimization axis within the candidate set.
type Priority string

const (
	PrioritySpeed   Priority = "speed"
	PriorityQuality Priority = "quality"
	PriorityCost    Priority = "cost"
)

// CallObserver receives model invocation telemetry. Implemented by the
// metrics manager; a nil observer is allowed.
type CallObserver interface {
	ModelCallStarted()
	ModelCallFinished()
	RecordModelCall(model, outcome string, duration time.Duration)
	RecordFallback()
}

// Router selects a model per request and dispatches invocations to the
// adapter matching the model's provider. All outbound calls pass through the
// process-wide concurrency gate and the optional rate limiter.
type Router struct {
	registry *Registry
	adapters map[string]Adapter
	routing  config.RoutingConfig
	fallback string
	defaults []string

	sema     *semaphore.Weighted
	limiter  *rate.Limiter
	observer CallObserver
	log      logger.Logger
}

// RouterOption customizes Router construction.
type RouterOption func(*Router)

// WithObserver wires invocation telemetry.
func WithObserver(o CallObserver) RouterOption {
	return func(r *Router) { r.observer = o }
}

// WithLogger sets the router logger.
func WithLogger(log logger.Logger) RouterOption {
	return func(r *Router) { r.log = log }
}

// NewRouter builds a Router. adapters maps provider tag to adapter; cfg
// supplies the routing table, fallback model, concurrency cap, and rate.
func NewRouter(registry *Registry, adapters map[string]Adapter, cfg *config.ModelsConfig, opts ...RouterOption) (*Router, error) {
	if registry == nil || registry.Len() == 0 {
		return nil, fault.Fatal("model registry is empty")
	}
	if !registry.Has(cfg.Fallback) {
		return nil, fault.Fatal("fallback model %q not in registry", cfg.Fallback)
	}
	if cfg.Default == cfg.Fallback {
		return nil, fault.Fatal("fallback model must differ from the default")
	}

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), maxConcurrent)
	}

	defaults := cfg.Routing.DefaultModels
	if len(defaults) == 0 {
		defaults = []string{cfg.Default}
	}

	r := &Router{
		registry: registry,
		adapters: adapters,
		routing:  cfg.Routing,
		fallback: cfg.Fallback,
		defaults: defaults,
		sema:     semaphore.NewWeighted(int64(maxConcurrent)),
		limiter:  limiter,
		log:      logger.Global(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Registry exposes the capability registry.
func (r *Router) Registry() *Registry { return r.registry }

// Fallback returns the configured fallback model name.
func (r *Router) Fallback() string { return r.fallback }

// Select chooses one model name for a task hint. Deterministic: identical
// inputs against the same registry always yield the same name.
func (r *Router) Select(taskHint string, complexity Complexity, priority Priority) string {
	candidates := r.candidates(taskHint)
	filtered := filterByComplexity(candidates, complexity)
	if len(filtered) == 0 {
		filtered = candidates
	}
	return pickByPriority(filtered, priority).Name
}

// candidates resolves the ordered candidate set for a task hint: routing
// table first, then specialty-tag matching, then the configured defaults.
func (r *Router) candidates(taskHint string) []*Capability {
	tokens := tokenize(taskHint)

	for _, token := range tokens {
		if names, ok := r.routing.TaskTypes[token]; ok {
			return r.lookupAll(names)
		}
	}

	var tagged []*Capability
	for _, cap := range r.registry.All() {
		for _, token := range tokens {
			if cap.HasSpecialty(token) {
				tagged = append(tagged, cap)
				break
			}
		}
	}
	if len(tagged) > 0 {
		return tagged
	}

	return r.lookupAll(r.defaults)
}

func (r *Router) lookupAll(names []string) []*Capability {
	out := make([]*Capability, 0, len(names))
	for _, name := range names {
		if cap, err := r.registry.Get(name); err == nil {
			out = append(out, cap)
		}
	}
	if len(out) == 0 {
		// Config validation keeps this unreachable, but never return empty.
		out = r.registry.All()
	}
	return out
}

// filterByComplexity narrows candidates: low keeps fast models, high keeps
// high-quality models, med keeps all.
func filterByComplexity(candidates []*Capability, complexity Complexity) []*Capability {
	var keep func(*Capability) bool
	switch complexity {
	case ComplexityLow:
		keep = func(c *Capability) bool { return c.Speed >= 7 }
	case ComplexityHigh:
		keep = func(c *Capability) bool { return c.Quality >= 9 }
	default:
		return candidates
	}
	var out []*Capability
	for _, c := range candidates {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// pickByPriority selects within candidates. Ties break by candidate order,
// which follows registry declaration order (stable).
func pickByPriority(candidates []*Capability, priority Priority) *Capability {
	best := candidates[0]
	for _, c := range candidates[1:] {
		switch priority {
		case PrioritySpeed:
			if c.Speed > best.Speed {
				best = c
			}
		case PriorityCost:
			if c.CostPerMillionTokens < best.CostPerMillionTokens {
				best = c
			}
		default: // quality
			if c.Quality > best.Quality {
				best = c
			}
		}
	}
	return best
}

// Invoke dispatches to the adapter for the model's provider. On a
// backend_unavailable failure it retries exactly once against the configured
// fallback model; a second failure surfaces. Returns the text and the model
// that actually produced it.
func (r *Router) Invoke(ctx context.Context, modelName string, messages []Message, opts Options) (string, string, error) {
	text, err := r.invokeOne(ctx, modelName, messages, opts)
	if err == nil {
		return text, modelName, nil
	}
	if !errors.Is(err, fault.ErrBackendUnavailable) || modelName == r.fallback {
		return "", modelName, err
	}

	r.log.WarnContext(ctx, "primary model unavailable, trying fallback",
		"model", modelName, "fallback", r.fallback, "error", err)
	if r.observer != nil {
		r.observer.RecordFallback()
	}

	text, fbErr := r.invokeOne(ctx, r.fallback, messages, opts)
	if fbErr != nil {
		return "", r.fallback, fbErr
	}
	return text, r.fallback, nil
}

// invokeOne performs a single gated adapter call.
func (r *Router) invokeOne(ctx context.Context, modelName string, messages []Message, opts Options) (string, error) {
	cap, err := r.registry.Get(modelName)
	if err != nil {
		return "", fault.BadInput("unknown model %q", modelName)
	}
	adapter, ok := r.adapters[cap.Provider]
	if !ok {
		return "", fault.BackendUnavailable("model %s: no adapter for provider %s", modelName, cap.Provider)
	}

	if opts.Temperature == nil {
		t := cap.Temperature
		opts.Temperature = &t
	}

	if err := r.sema.Acquire(ctx, 1); err != nil {
		return "", fault.BudgetExceeded("model %s: %v", modelName, err)
	}
	defer r.sema.Release(1)

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return "", fault.BudgetExceeded("model %s: %v", modelName, err)
		}
	}

	if r.observer != nil {
		r.observer.ModelCallStarted()
		defer r.observer.ModelCallFinished()
	}

	start := time.Now()
	text, err := adapter.Invoke(ctx, modelName, messages, opts)
	if r.observer != nil {
		outcome := "ok"
		if err != nil {
			outcome = string(fault.KindOf(err))
		}
		r.observer.RecordModelCall(modelName, outcome, time.Since(start))
	}
	return text, err
}
