// Package adapter defines the per-marketplace search interface and the
// registry of concrete platform implementations the scheduler draws
// from.
package adapter

import (
	"context"

	"github.com/wildguard/sentinel/internal/model"
)

// ErrorKind classifies a Search failure so the scheduler can decide
// whether to retry, back off, or abort the platform for the remainder
// of the run.
type ErrorKind int

const (
	// ErrKindTransient is a retryable failure: timeout, connection reset,
	// 5xx response.
	ErrKindTransient ErrorKind = iota
	// ErrKindRateLimited means the platform asked us to slow down (429 or
	// an adaptive-limiter signal); back off but keep trying.
	ErrKindRateLimited
	// ErrKindBlocked means anti-bot protection fired (Cloudflare, captcha,
	// JS shell); abort this platform for the remainder of the run.
	ErrKindBlocked
	// ErrKindPermanent is a non-retryable failure: malformed request,
	// authentication failure, or a response shape the parser can't handle.
	ErrKindPermanent
)

// SearchError wraps an adapter failure with its classification.
type SearchError struct {
	Kind ErrorKind
	Err  error
}

func (e *SearchError) Error() string { return e.Err.Error() }
func (e *SearchError) Unwrap() error { return e.Err }

// NewSearchError builds a classified SearchError.
func NewSearchError(kind ErrorKind, err error) *SearchError {
	return &SearchError{Kind: kind, Err: err}
}

// Adapter is the interface each marketplace integration implements.
type Adapter interface {
	// Name returns the unique platform identifier (e.g. "ebay", "avito").
	Name() string

	// Search queries the platform for listings matching any of keywords
	// and returns them normalized. attemptNo counts how many times this
	// adapter has been invoked for its platform this run (starting at 0)
	// and drives locale/region rotation for the platforms that maintain
	// an ordered list of locales. A *SearchError is returned on failure
	// so the scheduler can classify it without type-switching on err.
	Search(ctx context.Context, keywords []string, attemptNo int) ([]model.Listing, error)
}

// Registry maps platform names to their Adapter implementations,
// preserving registration order for deterministic weighted draws.
type Registry struct {
	adapters map[string]Adapter
	order    []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter, keyed by its own Name().
func (r *Registry) Register(a Adapter) {
	name := a.Name()
	if _, exists := r.adapters[name]; !exists {
		r.order = append(r.order, name)
	}
	r.adapters[name] = a
}

// Get returns the adapter for name, or false if unregistered.
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// All returns every registered adapter in registration order.
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.adapters[name])
	}
	return out
}

// Names returns every registered platform name in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
