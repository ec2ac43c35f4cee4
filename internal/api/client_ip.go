package api

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIPResolver picks the address used as the rate-limit key and in request
// logs. Forwarding headers count only when the immediate peer is a trusted
// proxy, and the chain is walked from the right so a client cannot prepend a
// spoofed hop.
type ClientIPResolver struct {
	trusted []netip.Prefix
}

func NewClientIPResolver(trustedProxies []string) (*ClientIPResolver, error) {
	resolver := &ClientIPResolver{}

	for _, raw := range trustedProxies {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}

		if addr, err := netip.ParseAddr(value); err == nil {
			addr = addr.Unmap()
			resolver.trusted = append(resolver.trusted, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}

		prefix, err := netip.ParsePrefix(value)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", value, err)
		}
		resolver.trusted = append(resolver.trusted, prefix.Masked())
	}

	return resolver, nil
}

func (r *ClientIPResolver) Resolve(req *http.Request) string {
	peer, ok := parseHostAddr(req.RemoteAddr)
	if !ok {
		return "unknown"
	}
	if !r.isTrusted(peer) {
		return peer.String()
	}

	if client, ok := r.fromChain(forwardedFor(req.Header)); ok {
		return client.String()
	}
	if client, ok := r.fromChain(req.Header.Values("X-Forwarded-For")); ok {
		return client.String()
	}
	if client, ok := parseHostAddr(req.Header.Get("X-Real-IP")); ok {
		return client.String()
	}

	return peer.String()
}

// fromChain returns the right-most hop that is not a trusted proxy.
func (r *ClientIPResolver) fromChain(headers []string) (netip.Addr, bool) {
	var hops []string
	for _, h := range headers {
		hops = append(hops, strings.Split(h, ",")...)
	}

	var last netip.Addr
	for i := len(hops) - 1; i >= 0; i-- {
		addr, ok := parseHostAddr(hops[i])
		if !ok {
			continue
		}
		last = addr
		if !r.isTrusted(addr) {
			return addr, true
		}
	}
	return last, last.IsValid()
}

func (r *ClientIPResolver) isTrusted(addr netip.Addr) bool {
	for _, p := range r.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// forwardedFor extracts the for= parameters of RFC 7239 Forwarded headers.
func forwardedFor(h http.Header) []string {
	var out []string
	for _, line := range h.Values("Forwarded") {
		for _, element := range strings.Split(line, ",") {
			for _, pair := range strings.Split(element, ";") {
				key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
				if ok && strings.EqualFold(key, "for") {
					out = append(out, value)
				}
			}
		}
	}
	return out
}

// parseHostAddr accepts a bare address, host:port, [v6]:port and quoted forms.
func parseHostAddr(value string) (netip.Addr, bool) {
	value = strings.Trim(strings.TrimSpace(value), `"`)
	if value == "" {
		return netip.Addr{}, false
	}

	if addr, err := netip.ParseAddr(strings.Trim(value, "[]")); err == nil {
		return addr.Unmap(), true
	}
	if host, _, err := net.SplitHostPort(value); err == nil {
		if addr, err := netip.ParseAddr(host); err == nil {
			return addr.Unmap(), true
		}
	}
	return netip.Addr{}, false
}
