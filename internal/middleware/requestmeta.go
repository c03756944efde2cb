package middleware

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// RequestMeta describes the client behind a request.
type RequestMeta struct {
	ClientIP  string
	UserAgent string
	Referrer  string
}

type requestMetaKey struct{}

// ContextWithRequestMeta returns a context carrying meta.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext returns the request metadata stored in ctx, if any.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)

	return meta
}

// TrustedProxies lists the networks whose forwarding headers are believed.
type TrustedProxies []netip.Prefix

// ParseTrustedProxies parses a comma-separated list of addresses and CIDR
// prefixes. An empty list trusts nobody.
func ParseTrustedProxies(list string) (TrustedProxies, error) {
	var proxies TrustedProxies

	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
			}

			proxies = append(proxies, prefix.Masked())

			continue
		}

		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
		}

		addr = addr.Unmap()
		proxies = append(proxies, netip.PrefixFrom(addr, addr.BitLen()))
	}

	return proxies, nil
}

// Contains reports whether ip belongs to a trusted network.
func (t TrustedProxies) Contains(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}

	addr = addr.Unmap()

	for _, prefix := range t {
		if prefix.Contains(addr) {
			return true
		}
	}

	return false
}

// RequestMetaMiddleware adds client IP, user-agent and referrer to the request context.
// Forwarding headers are only honoured when the peer is one of proxies.
func RequestMetaMiddleware(_ huma.API, proxies TrustedProxies) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		meta := RequestMeta{
			ClientIP:  clientIP(ctx, proxies),
			UserAgent: ctx.Header("User-Agent"),
			Referrer:  ctx.Header("Referer"),
		}

		next(huma.WithContext(ctx, ContextWithRequestMeta(ctx.Context(), meta)))
	}
}

// clientIP returns the peer address. Behind a trusted proxy it is the
// right-most X-Forwarded-For hop that is not itself a trusted proxy, or
// X-Real-IP when there is no X-Forwarded-For.
func clientIP(ctx huma.Context, proxies TrustedProxies) string {
	peer := peerIP(ctx)
	if !proxies.Contains(peer) {
		return peer
	}

	if xff := ctx.Header("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")

		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if _, err := netip.ParseAddr(hop); err != nil {
				return peer
			}

			if i == 0 || !proxies.Contains(hop) {
				return hop
			}
		}
	}

	if xri := strings.TrimSpace(ctx.Header("X-Real-IP")); xri != "" {
		if _, err := netip.ParseAddr(xri); err == nil {
			return xri
		}
	}

	return peer
}

func peerIP(ctx huma.Context) string {
	addr := ctx.RemoteAddr()
	if addr == "" {
		addr = ctx.Host()
	}

	ip, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}

	return ip
}
