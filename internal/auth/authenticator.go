package auth

import (
	"context"
	"sync"
	"time"

	"auv-monitor/ingestion/internal/config"
)

// KeyStore resolves an API key to a vehicle id; empty means unknown.
type KeyStore interface {
	GetAPIKey(ctx context.Context, apiKey string) (string, error)
}

type cacheEntry struct {
	auvID     string
	expiresAt time.Time
}

// Authenticator validates ingestion API keys. The pipeline assumes
// requests are already authorized upstream; this is the thin
// admission check kept in front of the ingest endpoint.
type Authenticator struct {
	localCache sync.Map
	keys       KeyStore // may be nil when no shared store is wired
	ttl        time.Duration
	staticKeys map[string]bool
}

func NewAuthenticator(cfg *config.Config, keys KeyStore) *Authenticator {
	staticKeys := make(map[string]bool, len(cfg.ValidAPIKeys))
	for _, k := range cfg.ValidAPIKeys {
		staticKeys[k] = true
	}

	return &Authenticator{
		keys:       keys,
		ttl:        time.Duration(cfg.AuthCacheTTLSeconds) * time.Second,
		staticKeys: staticKeys,
	}
}

func (a *Authenticator) Validate(ctx context.Context, apiKey string) bool {
	// Level 0: static config keys
	if a.staticKeys[apiKey] {
		return true
	}

	// Level 1: in-memory cache
	if raw, ok := a.localCache.Load(apiKey); ok {
		entry := raw.(cacheEntry)
		if time.Now().Before(entry.expiresAt) {
			return true
		}
		a.localCache.Delete(apiKey)
	}

	// Level 2: shared key store
	if a.keys == nil {
		return false
	}
	auvID, err := a.keys.GetAPIKey(ctx, apiKey)
	if err != nil || auvID == "" {
		return false
	}

	a.localCache.Store(apiKey, cacheEntry{
		auvID:     auvID,
		expiresAt: time.Now().Add(a.ttl),
	})

	return true
}
