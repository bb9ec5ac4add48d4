package middleware

import (
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
)

// TrustedRealIP replaces r.RemoteAddr with the client address from
// X-Real-IP or X-Forwarded-For, but only when the connection comes from one
// of the trusted proxies. Otherwise the headers are ignored, so clients
// cannot spoof the address used for rate limiting, operator identity and
// auditing. RemoteAddr always ends up as a bare IP when it can be parsed.
func TrustedRealIP(trusted []string) func(http.Handler) http.Handler {
	prefixes := parseTrusted(trusted)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remote, ok := ParseAddr(r.RemoteAddr)
			if ok {
				r.RemoteAddr = remote.String()
			}

			if ok && isTrusted(remote, prefixes) {
				if ip, found := forwardedClient(r.Header); found {
					r.RemoteAddr = ip.String()
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// parseTrusted accepts CIDRs and single addresses.
func parseTrusted(entries []string) []netip.Prefix {
	var prefixes []netip.Prefix
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if p, err := netip.ParsePrefix(e); err == nil {
			prefixes = append(prefixes, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(e); err == nil {
			prefixes = append(prefixes, netip.PrefixFrom(a, a.BitLen()))
			continue
		}
		slog.Warn("realip: invalid trusted proxy, skipping", "entry", e)
	}
	return prefixes
}

// forwardedClient returns the original client from proxy headers.
// X-Real-IP wins; otherwise the first X-Forwarded-For entry is used.
func forwardedClient(h http.Header) (netip.Addr, bool) {
	if rip := strings.TrimSpace(h.Get("X-Real-IP")); rip != "" {
		if a, err := netip.ParseAddr(rip); err == nil {
			return a.Unmap(), true
		}
		return netip.Addr{}, false
	}
	if xff := h.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if a, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return a.Unmap(), true
		}
	}
	return netip.Addr{}, false
}

// ParseAddr parses "host:port" or a bare IP.
func ParseAddr(addr string) (netip.Addr, bool) {
	if ap, err := netip.ParseAddrPort(addr); err == nil {
		return ap.Addr().Unmap(), true
	}
	if a, err := netip.ParseAddr(addr); err == nil {
		return a.Unmap(), true
	}
	return netip.Addr{}, false
}

func isTrusted(ip netip.Addr, trusted []netip.Prefix) bool {
	for _, p := range trusted {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}
