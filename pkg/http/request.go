package http

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// IPConfig lists the proxies whose forwarding headers are believed. Entries
// are CIDR ranges or single addresses; unparsable entries are ignored.
type IPConfig struct {
	TrustedProxies []string
}

func (c *IPConfig) trusts(addr netip.Addr) bool {
	if c == nil || !addr.IsValid() {
		return false
	}
	addr = addr.Unmap()
	for _, entry := range c.TrustedProxies {
		if p, err := netip.ParsePrefix(entry); err == nil {
			if p.Contains(addr) {
				return true
			}
			continue
		}
		if a, err := netip.ParseAddr(entry); err == nil && a.Unmap() == addr {
			return true
		}
	}
	return false
}

// ExtractClientIP returns the caller's address. The peer address is used
// unless the peer is a trusted proxy, in which case X-Forwarded-For is walked
// from the right, skipping trusted hops, and X-Real-IP is the fallback. A
// client can prepend anything to X-Forwarded-For, so the rightmost untrusted
// entry is the only one a proxy vouched for.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	peer, raw := remoteAddr(r)
	if !config.trusts(peer) {
		return raw
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		var leftmost string
		for i := len(hops) - 1; i >= 0; i-- {
			addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				// A garbled hop ends the trustworthy part of the chain
				break
			}
			if !config.trusts(addr) {
				return addr.Unmap().String()
			}
			leftmost = addr.Unmap().String()
		}
		if leftmost != "" {
			return leftmost
		}
	}

	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.Unmap().String()
	}
	return raw
}

// remoteAddr parses RemoteAddr with or without a port. raw is what to report
// when the address cannot be parsed.
func remoteAddr(r *http.Request) (netip.Addr, string) {
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "" {
		return netip.Addr{}, "unknown"
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, host
	}
	return addr.Unmap(), addr.Unmap().String()
}
