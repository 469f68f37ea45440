// Package registry holds the catalog of AI models available for inference.
//
// DESIGN: The registry is the pricing anchor for the rest of the client.
// Models are immutable once loaded; Refresh merges provider descriptors from
// the network without ever mutating a Model in place. All lookups are safe
// for concurrent use.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// ErrModelNotFound is returned when a model ID has no catalog entry.
var ErrModelNotFound = errors.New("model not found")

// Verifiability describes how a provider attests its inference output.
type Verifiability string

const (
	VerifiabilityNone Verifiability = "none"
	VerifiabilityTEE  Verifiability = "tee"
)

// Model describes one inference model offered on the network.
type Model struct {
	ID              string
	Name            string
	ProviderAddress string
	Description     string
	Verifiability   Verifiability
	InputPrice      decimal.Decimal // currency per input token
	OutputPrice     decimal.Decimal // currency per output token
	CostPerRequest  decimal.Decimal // fixed per-request estimate shown pre-send
}

// ProviderLister is the collaborator capability that supplies live provider
// descriptors. The network package implements it.
type ProviderLister interface {
	ListProviders(ctx context.Context) ([]ProviderDescriptor, error)
}

// ProviderDescriptor is a raw model listing as reported by the network.
type ProviderDescriptor struct {
	ID              string
	Name            string
	ProviderAddress string
	Description     string
	Verifiability   Verifiability
	InputPrice      decimal.Decimal
	OutputPrice     decimal.Decimal
}

// Registry is a fixed or externally-refreshed model catalog keyed by ID.
type Registry struct {
	mu     sync.RWMutex
	models map[string]Model
	order  []string // insertion order, kept stable across Refresh
}

// NewRegistry creates a registry seeded with the built-in catalog.
func NewRegistry() *Registry {
	r := &Registry{models: make(map[string]Model)}
	for _, m := range builtinCatalog {
		r.add(m)
	}
	return r
}

// NewEmptyRegistry creates a registry with no models. Callers must add or
// refresh models before use; List on an empty registry returns nil.
func NewEmptyRegistry() *Registry {
	return &Registry{models: make(map[string]Model)}
}

// List returns all models in stable catalog order.
func (r *Registry) List() []Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Model, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.models[id])
	}
	return out
}

// Get returns the model with the given ID.
func (r *Registry) Get(id string) (Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.models[id]
	if !ok {
		return Model{}, fmt.Errorf("%w: %q", ErrModelNotFound, id)
	}
	return m, nil
}

// Refresh merges provider descriptors from the network into the catalog.
// Known models keep their position; new models append in sorted-ID order so
// the catalog order stays deterministic.
func (r *Registry) Refresh(ctx context.Context, lister ProviderLister) error {
	descs, err := lister.ListProviders(ctx)
	if err != nil {
		return fmt.Errorf("list providers: %w", err)
	}

	sort.Slice(descs, func(i, j int) bool { return descs[i].ID < descs[j].ID })

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range descs {
		if d.ID == "" {
			continue
		}
		m := Model{
			ID:              d.ID,
			Name:            d.Name,
			ProviderAddress: d.ProviderAddress,
			Description:     d.Description,
			Verifiability:   d.Verifiability,
			InputPrice:      d.InputPrice,
			OutputPrice:     d.OutputPrice,
		}
		// A sparse descriptor must not wipe catalog fields it omits.
		if known, ok := r.models[d.ID]; ok {
			if m.Name == "" {
				m.Name = known.Name
			}
			if m.ProviderAddress == "" {
				m.ProviderAddress = known.ProviderAddress
			}
			if m.Description == "" {
				m.Description = known.Description
			}
			if m.Verifiability == "" {
				m.Verifiability = known.Verifiability
			}
		}
		r.add(m)
	}
	return nil
}

// add inserts or replaces a model, deriving CostPerRequest when unset.
// Caller must hold mu (or have exclusive access during construction).
func (r *Registry) add(m Model) {
	if m.CostPerRequest.IsZero() {
		m.CostPerRequest = DeriveCostPerRequest(m)
	}
	if _, known := r.models[m.ID]; !known {
		r.order = append(r.order, m.ID)
	}
	r.models[m.ID] = m
}
