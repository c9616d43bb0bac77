package criteria

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// =====================================
// Provider Interfaces
// =====================================

// Provider owns a connection to a storage engine. Adapter packages return
// concrete providers from their NewProvider functions; repositories are built
// on top of the handle a provider exposes.
type Provider interface {
	// Health checks if the storage engine is reachable and responsive.
	Health(ctx context.Context) error

	// Close shuts down the provider and releases all resources.
	Close() error

	// ProviderInfo returns metadata about this provider.
	ProviderInfo() ProviderInfo
}

// =====================================
// Provider Registry
// =====================================

// DefaultInstance is the instance name used by RegisterDefault and by Get
// when no instance is given.
const DefaultInstance = "default"

var (
	providersOnce       sync.Once
	providersInstance   *ProviderRegistry
	ErrProviderNotFound = errors.New("provider not found")
)

// providerKey identifies one registered instance of an adapter.
type providerKey struct {
	adapter  string
	instance string
}

func (k providerKey) String() string {
	return k.adapter + ":" + k.instance
}

// ProviderRegistry holds open providers by adapter name (ProviderInfo().Name)
// and instance name. It is safe for concurrent use.
type ProviderRegistry struct {
	mu        sync.RWMutex
	providers map[providerKey]Provider
}

// NewProviderRegistry returns an empty registry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{providers: make(map[providerKey]Provider)}
}

// Providers returns the process-wide provider registry.
func Providers() *ProviderRegistry {
	providersOnce.Do(func() {
		providersInstance = NewProviderRegistry()
	})
	return providersInstance
}

// Register stores provider under instanceName, replacing any provider
// already registered there.
func (r *ProviderRegistry) Register(instanceName string, provider Provider) {
	key := providerKey{adapter: provider.ProviderInfo().Name, instance: instanceName}

	r.mu.Lock()
	r.providers[key] = provider
	r.mu.Unlock()
}

// RegisterDefault registers provider as the default instance of its adapter.
func (r *ProviderRegistry) RegisterDefault(provider Provider) {
	r.Register(DefaultInstance, provider)
}

// Get looks up a provider. The instance defaults to DefaultInstance.
func (r *ProviderRegistry) Get(adapter string, instanceName ...string) (Provider, error) {
	key := providerKey{adapter: adapter, instance: DefaultInstance}
	if len(instanceName) > 0 {
		key.instance = instanceName[0]
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(key)
}

// MustGet is like Get but panics if the provider is missing.
func (r *ProviderRegistry) MustGet(adapter string, instanceName ...string) Provider {
	provider, err := r.Get(adapter, instanceName...)
	if err != nil {
		panic(err)
	}
	return provider
}

// Names returns the adapters with at least one registered instance, sorted.
func (r *ProviderRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(r.providers))
	names := make([]string, 0, len(r.providers))
	for key := range r.providers {
		if _, ok := seen[key.adapter]; ok {
			continue
		}
		seen[key.adapter] = struct{}{}
		names = append(names, key.adapter)
	}
	sort.Strings(names)
	return names
}

// Remove closes a provider and forgets it. A provider that fails to close
// stays registered.
func (r *ProviderRegistry) Remove(adapter, instanceName string) error {
	key := providerKey{adapter: adapter, instance: instanceName}

	r.mu.Lock()
	defer r.mu.Unlock()

	provider, err := r.lookup(key)
	if err != nil {
		return err
	}
	if err := provider.Close(); err != nil {
		return fmt.Errorf("close provider %s: %w", key, err)
	}
	delete(r.providers, key)
	return nil
}

// RemoveAll closes every provider and empties the registry. Close errors are
// joined.
func (r *ProviderRegistry) RemoveAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for key, provider := range r.providers {
		if err := provider.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close provider %s: %w", key, err))
		}
	}
	r.providers = make(map[providerKey]Provider)
	return errors.Join(errs...)
}

// HealthCheck runs Health on every provider. Results are keyed by adapter,
// then instance.
func (r *ProviderRegistry) HealthCheck(ctx context.Context) map[string]map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make(map[string]map[string]error)
	for key, provider := range r.providers {
		if results[key.adapter] == nil {
			results[key.adapter] = make(map[string]error)
		}
		results[key.adapter][key.instance] = provider.Health(ctx)
	}
	return results
}

// lookup must be called with r.mu held.
func (r *ProviderRegistry) lookup(key providerKey) (Provider, error) {
	provider, ok := r.providers[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, key)
	}
	return provider, nil
}
