package middleware

import (
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
)

// TrustedRealIP extracts the real client IP from X-Real-IP or
// X-Forwarded-For, but ONLY if the request comes from a trusted proxy.
// Requests from anywhere else keep their original RemoteAddr, so
// untrusted clients cannot spoof headers to dodge rate limiting or
// falsify logs.
func TrustedRealIP(trustedProxies []string) func(http.Handler) http.Handler {
	// Parse the trusted proxy list once at startup
	trusted := parseTrustedProxies(trustedProxies)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remote, err := netip.ParseAddrPort(r.RemoteAddr)
			if err == nil && isTrustedProxy(remote.Addr(), trusted) {
				if client := forwardedClientIP(r); client.IsValid() {
					r.RemoteAddr = client.String()
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// parseTrustedProxies accepts CIDR entries and bare addresses
// ("10.0.0.0/8" or "127.0.0.1"). Invalid entries are logged and skipped
// rather than failing startup.
func parseTrustedProxies(entries []string) []netip.Prefix {
	var prefixes []netip.Prefix
	for _, raw := range entries {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if prefix, err := netip.ParsePrefix(raw); err == nil {
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(raw); err == nil {
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		slog.Warn("realip: invalid trusted proxy entry, skipping", "entry", raw)
	}
	return prefixes
}

func isTrustedProxy(addr netip.Addr, trusted []netip.Prefix) bool {
	addr = addr.Unmap()
	for _, prefix := range trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// forwardedClientIP returns the client address a trusted proxy reported:
// X-Real-IP if present, otherwise the first entry of the X-Forwarded-For
// chain. Returns the zero Addr when neither header carries a valid IP.
func forwardedClientIP(r *http.Request) netip.Addr {
	if rip := strings.TrimSpace(r.Header.Get("X-Real-IP")); rip != "" {
		if addr, err := netip.ParseAddr(rip); err == nil {
			return addr
		}
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := xff
		if idx := strings.Index(xff, ","); idx > 0 {
			first = xff[:idx]
		}
		if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return addr
		}
	}
	return netip.Addr{}
}
