// Package model provides the model capability registry, backend adapters,
// and the request router for Attaché.
package model

import (
	"errors"
	"fmt"

	"github.com/attache/attache/config"
)

// Provider identifies a backend adapter family.
const (
	ProviderCloudChat = "cloud-chat"
	ProviderLocalChat = "local-chat"
	ProviderCitations = "citations"
)

// Sentinel errors for the registry.
var (
	ErrModelNotFound  = errors.New("model: not found in registry")
	ErrDuplicateModel = errors.New("model: duplicate name in registry")
)

// Capability describes one backend model. Immutable after registry load.
type Capability struct {
	// Name is the unique model name.
	Name string

	// Provider selects which adapter invokes this model.
	Provider string

	// Speed rates response latency from 1 (slow) to 10 (fast).
	Speed int

	// Quality rates answer quality from 1 to 10.
	Quality int

	// CostPerMillionTokens is the blended cost in USD.
	CostPerMillionTokens float64

	// Specialties tags what the model is good at.
	Specialties map[string]struct{}

	// ContextWindow is the context size in tokens.
	ContextWindow int

	// Temperature is the default sampling temperature.
	Temperature float64
}

// HasSpecialty reports whether the model carries the given specialty tag.
func (c *Capability) HasSpecialty(tag string) bool {
	_, ok := c.Specialties[tag]
	return ok
}

// Registry holds the immutable capability set, preserving declaration order.
// The declaration order is the routing tie-break order. Read-only after
// construction, so concurrent reads need no locking.
type Registry struct {
	order  []string
	byName map[string]*Capability
}

// NewRegistry builds a registry from configuration. Duplicate names are an
// error: the registry invariant is one capability per name.
func NewRegistry(defs []config.ModelDef) (*Registry, error) {
	r := &Registry{
		order:  make([]string, 0, len(defs)),
		byName: make(map[string]*Capability, len(defs)),
	}
	for _, def := range defs {
		if _, exists := r.byName[def.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateModel, def.Name)
		}
		specialties := make(map[string]struct{}, len(def.Specialties))
		for _, tag := range def.Specialties {
			specialties[tag] = struct{}{}
		}
		cap := &Capability{
			Name:                 def.Name,
			Provider:             def.Provider,
			Speed:                def.Speed,
			Quality:              def.Quality,
			CostPerMillionTokens: def.CostPerMillionTokens,
			Specialties:          specialties,
			ContextWindow:        def.ContextWindow,
			Temperature:          def.Temperature,
		}
		r.order = append(r.order, def.Name)
		r.byName[def.Name] = cap
	}
	return r, nil
}

// Get returns the capability for name.
func (r *Registry) Get(name string) (*Capability, error) {
	cap, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	return cap, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Names returns all model names in declaration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// All returns all capabilities in declaration order.
func (r *Registry) All() []*Capability {
	out := make([]*Capability, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Len returns the registry size.
func (r *Registry) Len() int {
	return len(r.order)
}
