// internal/keys/registry.go
package keys

import (
	"os"
	"strings"

	"energypulse/config"
	"energypulse/internal/cache"
)

// KeyPrefix is the settings-store prefix for per-service API keys. The
// settings UI writes these entries; the core only reads them.
const KeyPrefix = "EP_API_KEY_"

// Registry resolves the API key for an upstream service. Adapters read it
// on every call so a key configured mid-session takes effect immediately.
type Registry interface {
	Get(service string) (string, bool)
}

// StoreRegistry reads keys from the persisted settings store, falling back
// to an environment variable in non-production environments only.
type StoreRegistry struct {
	store cache.Store
}

func NewStoreRegistry(store cache.Store) *StoreRegistry {
	return &StoreRegistry{store: store}
}

func (r *StoreRegistry) Get(service string) (string, bool) {
	name := strings.ToUpper(service)

	raw, ok, err := r.store.Get(KeyPrefix + name)
	if err == nil && ok {
		if key := strings.TrimSpace(string(raw)); key != "" {
			return key, true
		}
	}

	if !config.IsProductionLike(config.AppEnvironment()) {
		if key := strings.TrimSpace(os.Getenv("ENERGYPULSE_" + name + "_API_KEY")); key != "" {
			return key, true
		}
	}

	return "", false
}

// Static is a fixed service→key mapping used in tests.
type Static map[string]string

func (s Static) Get(service string) (string, bool) {
	key, ok := s[strings.ToLower(service)]
	return key, ok && key != ""
}
