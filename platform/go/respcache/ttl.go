package respcache

import (
	"strings"
	"time"
)

// PatternTTL binds a glob pattern (with '*' wildcards) to a TTL, for
// parameterized routes like /api/v1/events/*.
type PatternTTL struct {
	Pattern string
	TTL     time.Duration
}

// TTLConfig decides how long each endpoint's responses live. Resolution
// order: exact path, first matching pattern, then Default. Every result
// is clamped to Max.
type TTLConfig struct {
	Default  time.Duration
	Max      time.Duration
	Exact    map[string]time.Duration
	Patterns []PatternTTL
}

// DefaultTTLConfig is the standard table for the API surface. List
// endpoints stay fresh, item endpoints tolerate more staleness.
func DefaultTTLConfig() TTLConfig {
	return TTLConfig{
		Default: 60 * time.Second,
		Max:     time.Hour,
		Exact: map[string]time.Duration{
			"/api/v1/events":  5 * time.Minute,
			"/api/v1/members": 10 * time.Minute,
		},
		Patterns: []PatternTTL{
			{Pattern: "/api/v1/events/*", TTL: 10 * time.Minute},
			{Pattern: "/api/v1/members/*", TTL: 10 * time.Minute},
		},
	}
}

// For returns the TTL for a request path.
func (c TTLConfig) For(path string) time.Duration {
	ttl := c.Default
	if exact, ok := c.Exact[path]; ok {
		ttl = exact
	} else {
		for _, p := range c.Patterns {
			if matchGlob(p.Pattern, path) {
				ttl = p.TTL
				break
			}
		}
	}
	if c.Max > 0 && ttl > c.Max {
		ttl = c.Max
	}
	return ttl
}

// matchGlob matches pattern against s where '*' spans any run of
// characters, including separators.
func matchGlob(pattern, s string) bool {
	idx := strings.IndexByte(pattern, '*')
	if idx == -1 {
		return pattern == s
	}
	if len(s) < idx || pattern[:idx] != s[:idx] {
		return false
	}
	rest := pattern[idx+1:]
	if rest == "" {
		return true
	}
	s = s[idx:]
	for i := 0; i <= len(s); i++ {
		if matchGlob(rest, s[i:]) {
			return true
		}
	}
	return false
}
