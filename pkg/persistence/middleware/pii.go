package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/turnstile/pkg/config"
	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/ports"
)

// Mask replaces the values of sensitive keys.
const Mask = "***"

type piiMiddleware struct {
	ports.SessionStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware masks values whose keys match any of the patterns before they reach the store.
// The session held by the caller is left untouched.
func NewPIIMiddleware(patterns []string) (Middleware, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pii pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &piiMiddleware{SessionStore: next, patterns: compiled}
	}, nil
}

func (m *piiMiddleware) Save(ctx context.Context, s *domain.Session) error {
	masked := *s
	masked.Data = config.Overlay(s.Data)
	maskMap(masked.Data, m.patterns)
	return m.SessionStore.Save(ctx, &masked)
}

func maskMap(data map[string]any, patterns []*regexp.Regexp) {
	for k, v := range data {
		if matchesAny(k, patterns) {
			data[k] = Mask
			continue
		}
		if sub, ok := v.(map[string]any); ok {
			maskMap(sub, patterns)
		}
	}
}

func matchesAny(key string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
