package provider

import (
	"context"
	"sync"
)

// The default slot implements spec.md §4.4's process-wide provider
// variant: most callers want exactly one active room connection and don't
// want to thread a *Provider through every layer.
var (
	defaultMu       sync.Mutex
	defaultProvider *Provider
)

// Default returns the process-wide provider, or nil if none is connected.
func Default() *Provider {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultProvider
}

// ConnectDefault builds a Provider, connects it, and installs it as the
// process-wide default. Any previously installed default is left running;
// callers that want a clean switch should call DisposeDefault first.
func ConnectDefault(ctx context.Context, cfg Config, opts ...Option) (*Provider, error) {
	p := New(cfg, opts...)
	if err := p.Connect(ctx); err != nil {
		return nil, err
	}
	defaultMu.Lock()
	defaultProvider = p
	defaultMu.Unlock()
	return p, nil
}

// DisposeDefault disposes and clears the process-wide default, if any.
func DisposeDefault() error {
	defaultMu.Lock()
	p := defaultProvider
	defaultProvider = nil
	defaultMu.Unlock()
	if p == nil {
		return nil
	}
	return p.Dispose()
}
