// Package tenant maps request hosts to sites.
package tenant

import (
	"net"
	"strings"
)

// NormalizeHost reduces a host header or URL to its canonical domain:
// lowercase, without scheme, credentials, path, port, "www." prefix or
// trailing dot.
func NormalizeHost(host string) string {
	h := strings.ToLower(strings.TrimSpace(host))

	if i := strings.Index(h, "://"); i >= 0 {
		h = h[i+3:]
	}
	if i := strings.IndexAny(h, "/?#"); i >= 0 {
		h = h[:i]
	}
	if i := strings.LastIndex(h, "@"); i >= 0 {
		h = h[i+1:]
	}
	if hostname, _, err := net.SplitHostPort(h); err == nil {
		h = hostname
	}
	h = strings.Trim(h, "[]")
	h = strings.TrimSuffix(h, ".")
	h = strings.TrimPrefix(h, "www.")

	return h
}
