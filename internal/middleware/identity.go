package middleware

import (
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"
)

// ResolveClientIdentity derives a stable rate-limit key from request
// metadata. Precedence: first hop of X-Forwarded-For, then X-Real-IP,
// then the CDN header. When no address header is present the identity
// falls back to a fingerprint of user-agent and accept-language,
// prefixed so downstream consumers can tell it is low-confidence.
// Identical metadata always resolves to the same identity.
func ResolveClientIdentity(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return first
		}
	}

	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}

	h := fnv.New64a()
	h.Write([]byte(r.UserAgent()))
	h.Write([]byte{0})
	h.Write([]byte(r.Header.Get("Accept-Language")))
	return fmt.Sprintf("fp:%x", h.Sum64())
}
