// Package auth validates bearer keys for the management API. An empty key
// set disables authentication, which is the default for local deployments.
package auth

import (
	"crypto/subtle"
	"strings"
)

// Auth holds the accepted management API keys.
type Auth struct {
	keys [][]byte
}

// New builds an Auth from the configured key list. Blank keys are dropped.
func New(keys []string) *Auth {
	a := &Auth{}
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		a.keys = append(a.keys, []byte(k))
	}
	return a
}

// Enabled reports whether any key is configured.
func (a *Auth) Enabled() bool {
	return a != nil && len(a.keys) > 0
}

// Allow reports whether token matches a configured key. Comparison is
// constant-time per key.
func (a *Auth) Allow(token string) bool {
	if !a.Enabled() || token == "" {
		return false
	}
	tb := []byte(token)
	for _, k := range a.keys {
		if len(k) == len(tb) && subtle.ConstantTimeCompare(k, tb) == 1 {
			return true
		}
	}
	return false
}

// ParseBearer extracts the token from an Authorization: Bearer header.
func ParseBearer(h string) (string, bool) {
	parts := strings.Fields(h)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}
