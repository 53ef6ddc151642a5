package organizer

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
)

// DefaultIdentity is the sentinel used before any account has ever been
// detected. Auto backups are suppressed for it.
const DefaultIdentity = "default_user"

var accountTokenPattern = regexp.MustCompile(`[a-zA-Z0-9._-]+@[a-zA-Z0-9._-]+\.[a-zA-Z0-9_-]+`)

// ParseAccountLabel extracts an email-like account token from a host-page
// label. Pure; the caching shell lives in IdentityResolver.
func ParseAccountLabel(label string) (string, bool) {
	token := accountTokenPattern.FindString(label)
	if token == "" {
		return "", false
	}
	return token, true
}

// PageProbe supplies the current account label scraped from the host page.
// It may return "" when the page has not rendered the indicator yet.
type PageProbe interface {
	AccountLabel() string
}

type PageProbeFunc func() string

func (f PageProbeFunc) AccountLabel() string {
	if f == nil {
		return ""
	}
	return f()
}

// IdentityResolver determines the account identifier that namespaces every
// persisted key. Resolution order: live page scrape (updating the cache as a
// side effect), then cache, then the default sentinel.
type IdentityResolver struct {
	cache KV
	probe PageProbe
}

func NewIdentityResolver(localKV KV, probe PageProbe) *IdentityResolver {
	if probe == nil {
		probe = PageProbeFunc(func() string { return "" })
	}
	return &IdentityResolver{cache: localKV, probe: probe}
}

// Resolve returns the current identity. Callers must tolerate the incidental
// cache write: a successful scrape that differs from the cached value
// overwrites it immediately. When the account changes, previously written
// data stays under the old identity's keys; no migration or merge happens.
func (r *IdentityResolver) Resolve(ctx context.Context) string {
	cached := r.cachedIdentity(ctx)

	if label := r.probe.AccountLabel(); label != "" {
		if live, ok := ParseAccountLabel(label); ok {
			if live != cached {
				// Best effort: a failed cache write only costs the fallback.
				_ = setJSON(ctx, r.cache, identityCacheKey, live)
			}
			return live
		}
	}

	if cached != "" {
		return cached
	}
	return DefaultIdentity
}

func (r *IdentityResolver) cachedIdentity(ctx context.Context) string {
	if r.cache == nil {
		return ""
	}
	raw, err := getRaw(ctx, r.cache, identityCacheKey)
	if err != nil || len(raw) == 0 {
		return ""
	}
	var cached string
	if err := json.Unmarshal(raw, &cached); err != nil {
		return ""
	}
	return strings.TrimSpace(cached)
}
