package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// TrustedRealIP rewrites RemoteAddr to the bare IP of the client. The
// forwarding headers are only honoured when the connection itself comes from
// one of trustedCIDRs; see clientIP.
//
// Rate limiting and the ip_address recorded on import logs both read
// RemoteAddr after this middleware.
func TrustedRealIP(trustedCIDRs []string) func(http.Handler) http.Handler {
	proxies := parseProxyNets(trustedCIDRs)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ip := clientIP(r, proxies); ip != nil {
				r.RemoteAddr = ip.String()
			}
			next.ServeHTTP(w, r)
		})
	}
}

// parseProxyNets parses proxy CIDRs. A bare address is a single-host network;
// anything else is logged and skipped.
func parseProxyNets(cidrs []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, raw := range cidrs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if _, network, err := net.ParseCIDR(raw); err == nil {
			nets = append(nets, network)
			continue
		}
		if ip := net.ParseIP(raw); ip != nil {
			nets = append(nets, hostNet(ip))
			continue
		}
		slog.Warn("realip: invalid trusted proxy, skipping", "cidr", raw)
	}
	return nets
}

func hostNet(ip net.IP) *net.IPNet {
	if v4 := ip.To4(); v4 != nil {
		return &net.IPNet{IP: v4, Mask: net.CIDRMask(32, 32)}
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(128, 128)}
}

// clientIP resolves the client address of r. It starts from the connection
// address with any port removed. When that address is a trusted proxy,
// X-Real-IP wins, then the first hop of X-Forwarded-For; a header that does
// not parse as an IP is ignored. It returns nil only when RemoteAddr itself
// is not an address, and callers then leave RemoteAddr as it was.
func clientIP(r *http.Request, proxies []*net.IPNet) net.IP {
	peer := bareIP(r.RemoteAddr)
	if peer == nil || !within(peer, proxies) {
		return peer
	}

	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip
	}
	if r.Header.Get("X-Real-IP") != "" {
		return peer
	}

	first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
	if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
		return ip
	}
	return peer
}

// bareIP parses "host:port" or a plain address into an IP.
func bareIP(addr string) net.IP {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return net.ParseIP(addr)
}

func within(ip net.IP, nets []*net.IPNet) bool {
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
