package organizer

import (
	"strings"
	"sync"
)

// KVFactory builds a store backend for a DSN whose scheme was registered
// through RegisterKVFactory. Registered factories take precedence over the
// built-in schemes.
type KVFactory func(scope Scope, dsn string) (KV, error)

var kvFactoryRegistry = struct {
	mu        sync.RWMutex
	factories map[string]KVFactory
}{
	factories: map[string]KVFactory{},
}

func RegisterKVFactory(scheme string, factory KVFactory) {
	scheme = normalizeBackendScheme(scheme)
	if scheme == "" || factory == nil {
		return
	}
	kvFactoryRegistry.mu.Lock()
	defer kvFactoryRegistry.mu.Unlock()
	kvFactoryRegistry.factories[scheme] = factory
}

func lookupKVFactory(scheme string) (KVFactory, bool) {
	scheme = normalizeBackendScheme(scheme)
	kvFactoryRegistry.mu.RLock()
	defer kvFactoryRegistry.mu.RUnlock()
	factory, ok := kvFactoryRegistry.factories[scheme]
	return factory, ok
}

func normalizeBackendScheme(scheme string) string {
	return strings.ToLower(strings.TrimSpace(scheme))
}
