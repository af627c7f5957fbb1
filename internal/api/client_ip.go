package api

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/cleanward/internal/logging"
)

type clientIPKey struct{}

// ProxyList is the set of peers allowed to report the client address
type ProxyList struct {
	prefixes []netip.Prefix
}

// NewProxyList parses CIDRs and bare IPs. Unparseable entries are logged
// and skipped.
func NewProxyList(entries []string) *ProxyList {
	pl := &ProxyList{}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if p, err := netip.ParsePrefix(entry); err == nil {
			pl.prefixes = append(pl.prefixes, p.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(entry); err == nil {
			addr = addr.Unmap()
			pl.prefixes = append(pl.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		logging.WithField("entry", entry).Warn("ignoring invalid trusted proxy")
	}
	return pl
}

// Trusts reports whether ip belongs to a trusted proxy
func (pl *ProxyList) Trusts(ip string) bool {
	if pl == nil || len(pl.prefixes) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range pl.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Resolve returns the client address for r. X-Forwarded-For is read only
// when the direct peer is trusted, walking from the nearest hop outwards and
// stopping at the first address that is not itself a trusted proxy.
func (pl *ProxyList) Resolve(r *http.Request) string {
	peer := remoteHost(r)
	if !pl.Trusts(peer) {
		return peer
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if _, err := netip.ParseAddr(hop); err != nil {
			break
		}
		if !pl.Trusts(hop) {
			return hop
		}
		peer = hop
	}
	return peer
}

// ClientIPMiddleware resolves the client address once per request
func ClientIPMiddleware(proxies *ProxyList) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), clientIPKey{}, proxies.Resolve(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// clientIP returns the address resolved by ClientIPMiddleware, or the direct
// peer when the middleware did not run
func clientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey{}).(string); ok && ip != "" {
		return ip
	}
	return remoteHost(r)
}

func remoteHost(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
