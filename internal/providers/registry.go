package providers

import (
	"sort"
	"strings"
)

// Registry maps platform identifiers to providers. It is built once at startup and never mutated.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry indexes providers by Platform(). A later provider for the same platform wins.
func NewRegistry(providers ...Provider) *Registry {
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		if p == nil {
			continue
		}
		m[normalizePlatform(p.Platform())] = p
	}
	return &Registry{providers: m}
}

// Get resolves a platform. Unknown platforms return nil, false.
func (r *Registry) Get(platform string) (Provider, bool) {
	p, ok := r.providers[normalizePlatform(platform)]
	return p, ok
}

// Platforms lists the registered platform identifiers
func (r *Registry) Platforms() []string {
	out := make([]string, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func normalizePlatform(platform string) string {
	return strings.ToLower(strings.TrimSpace(platform))
}
