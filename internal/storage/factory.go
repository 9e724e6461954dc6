package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/communityhub/platform/internal/config"
)

// FactoryFunc builds a backend from the application config
type FactoryFunc func(*config.Config) (Backend, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]FactoryFunc)
)

// Register makes a backend available under name
func Register(name string, factory FactoryFunc) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = factory
}

// Registered lists the backend names, sorted
func Registered() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewBackend creates the backend named by storage.default_backend
func NewBackend(cfg *config.Config) (Backend, error) {
	mu.RLock()
	factory, ok := factories[cfg.Storage.DefaultBackend]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage backend %q (registered: %v)", cfg.Storage.DefaultBackend, Registered())
	}
	return factory(cfg)
}
