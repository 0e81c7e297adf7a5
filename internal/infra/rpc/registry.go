package rpc

import (
	"sync"
	"time"
)

// Registry hands out one lazily-created provider per endpoint key and shares
// it across adapters, so pacing applies to every caller of the same API.
// Construct it once at process start and pass it by reference; there is no
// package-level instance.
type Registry struct {
	mu        sync.Mutex
	timeout   time.Duration
	providers map[string]*HTTPProvider
}

// NewRegistry creates an empty registry with the given per-request timeout.
func NewRegistry(timeout time.Duration) *Registry {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Registry{
		timeout:   timeout,
		providers: make(map[string]*HTTPProvider),
	}
}

// Provider returns the cached provider for key, creating it on first use.
// The endpoint is only consulted on creation.
func (r *Registry) Provider(key, endpoint string) *HTTPProvider {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.providers[key]; ok {
		return p
	}
	p := NewHTTPProvider(key, endpoint, r.timeout)
	r.providers[key] = p
	return p
}

// Close closes all cached providers.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.providers {
		_ = p.Close()
	}
	r.providers = make(map[string]*HTTPProvider)
	return nil
}
