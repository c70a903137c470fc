// Package network answers readiness questions about the links of the process.
package network

import (
	"net/netip"
	"sync"
)

// A Provider is a component that brings a network link up.
type Provider interface {
	IsConnected() bool
	IPAddress() netip.Addr
	// UseAddress returns the address other hosts should use to reach this one.
	UseAddress() string
}

// A Registry aggregates the providers of a process. The zero value is ready to use.
type Registry struct {
	mu        sync.RWMutex
	providers []Provider
}

// NewRegistry returns a registry holding `providers`.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{}
	r.Add(providers...)
	return r
}

// Add registers providers.
func (r *Registry) Add(providers ...Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, providers...)
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// IsConnected is true if any provider is connected.
func (r *Registry) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.providers {
		if p.IsConnected() {
			return true
		}
	}
	return false
}

// IPAddress returns the address of the first provider, or the zero address without providers.
func (r *Registry) IPAddress() netip.Addr {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.providers) == 0 {
		return netip.Addr{}
	}
	return r.providers[0].IPAddress()
}

// UseAddress returns the first non empty use address.
func (r *Registry) UseAddress() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.providers {
		if addr := p.UseAddress(); addr != "" {
			return addr
		}
	}
	return ""
}
