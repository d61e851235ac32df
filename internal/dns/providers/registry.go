package providers

import (
	"fmt"
	"sort"
	"sync"

	"nathanbeddoewebdev/hzdeploy/internal/dns/domain"
	"nathanbeddoewebdev/hzdeploy/internal/util"
)

// Credentials authenticate against a DNS provider. Providers with a single
// bearer token use APIKey only.
type Credentials struct {
	APIKey string
	Secret string
}

// Factory is a constructor function that builds a DNS Provider from credentials.
type Factory func(creds Credentials) (domain.Provider, error)

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

// Register adds a provider factory to the DNS registry.
// It panics on empty name, nil factory, or duplicate registration
// (programmer errors detected at startup).
func Register(name string, factory Factory) {
	normalizedName := util.NormalizeKey(name)
	if normalizedName == "" {
		panic("dns/providers: empty provider name")
	}
	if factory == nil {
		panic("dns/providers: nil factory")
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[normalizedName]; exists {
		panic(fmt.Sprintf("dns/providers: provider %q already registered", name))
	}

	registry[normalizedName] = factory
}

// Get constructs and returns the DNS Provider for the given name.
func Get(name string, creds Credentials) (domain.Provider, error) {
	normalizedName := util.NormalizeKey(name)
	mu.RLock()
	factory, ok := registry[normalizedName]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: unknown DNS provider %q", domain.ErrInvalidInput, name)
	}

	return factory(creds)
}

// List returns the names of all registered DNS providers.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset clears the DNS provider registry. Intended for use in tests only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	registry = map[string]Factory{}
}
