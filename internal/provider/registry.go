package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/groundwork-iac/groundwork/pkg/provider"
	"github.com/groundwork-iac/groundwork/providers/aws"
	"github.com/groundwork-iac/groundwork/providers/null"
)

// Registry manages the lifecycle of providers.
type Registry struct {
	mu         sync.RWMutex
	providers  map[string]provider.Interface
	configured map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{
		providers:  make(map[string]provider.Interface),
		configured: make(map[string]bool),
	}
}

// LoadProvider initializes and caches a built-in provider.
func (r *Registry) LoadProvider(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return nil
	}

	var p provider.Interface
	switch name {
	case "null":
		p = null.New()
	case "aws":
		p = aws.New()
	default:
		return fmt.Errorf("unknown provider: %s", name)
	}

	r.providers[name] = p
	return nil
}

// Configure loads a provider and hands it its settings. The settings
// reach the provider once; later calls for the same name are no-ops, so
// every planning path can call this without tracking what came first.
func (r *Registry) Configure(ctx context.Context, name string, config map[string]string) error {
	if err := r.LoadProvider(name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.configured[name] {
		return nil
	}
	if err := r.providers[name].Configure(ctx, &provider.ConfigureRequest{Config: config}); err != nil {
		return fmt.Errorf("failed to configure provider %s: %w", name, err)
	}
	r.configured[name] = true
	return nil
}

// Register installs a provider instance under name, replacing any
// built-in. Used by tests to inject fakes.
func (r *Registry) Register(name string, p provider.Interface) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// Get returns a registered provider.
func (r *Registry) Get(name string) (provider.Interface, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider not loaded: %s", name)
	}
	return p, nil
}
