package providers

import (
	"fmt"
	"sort"
	"sync"

	"nathanbeddoewebdev/hzdeploy/internal/domain"
	"nathanbeddoewebdev/hzdeploy/internal/util"
)

// Factory builds a provider from an API token. The token has already been
// resolved from the environment or the keyring by the caller.
type Factory func(token string) (domain.Provider, error)

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

func Register(name string, factory Factory) {
	normalizedName := util.NormalizeKey(name)
	if normalizedName == "" {
		panic("providers: empty provider name")
	}
	if factory == nil {
		panic("providers: nil factory")
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[normalizedName]; exists {
		panic(fmt.Sprintf("providers: provider %q already registered", name))
	}

	registry[normalizedName] = factory
}

func Get(name string, token string) (domain.Provider, error) {
	normalizedName := util.NormalizeKey(name)
	mu.RLock()
	factory, ok := registry[normalizedName]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("providers: unknown provider %q", name)
	}

	return factory(token)
}

// GetCloud is Get for callers that provision: the provider must also
// poll actions and manage SSH keys and firewalls.
func GetCloud(name string, token string) (domain.Cloud, error) {
	provider, err := Get(name, token)
	if err != nil {
		return nil, err
	}
	cloud, ok := provider.(domain.Cloud)
	if !ok {
		return nil, fmt.Errorf("providers: %s cannot provision servers", provider.GetDisplayName())
	}
	return cloud, nil
}

// Reset clears the provider registry. Intended for use in tests only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	registry = map[string]Factory{}
}

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
