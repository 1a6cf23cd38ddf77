package middleware

import (
	"net"
	"net/http"
	"strings"

	"bledemo/internal/logging"
	"bledemo/internal/metrics"
)

// blocklist refuses demo API and UI access to whole address ranges, e.g. a
// lab subnet that must not drive the shared demo lists.
type blocklist struct {
	logger logging.Logger
	nets   []*net.IPNet
}

// IPFilter returns a middleware answering 403 to any client whose address
// falls inside one of cidrs. Mount it after CORS so refusals stay readable by
// the browser UI.
func IPFilter(logger logging.Logger, cidrs []string) (Middleware, error) {
	if len(cidrs) == 0 {
		return func(next http.Handler) http.Handler {
			return next
		}, nil
	}

	b := &blocklist{logger: logger}
	for _, c := range cidrs {
		_, ipnet, err := net.ParseCIDR(strings.TrimSpace(c))
		if err != nil {
			return nil, err
		}
		b.nets = append(b.nets, ipnet)
	}

	return b.middleware, nil
}

func (b *blocklist) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		blocked := b.match(ip)
		if blocked == nil {
			next.ServeHTTP(w, r)
			return
		}

		metrics.IncIPBlocked(blocked.String())
		if b.logger != nil {
			b.logger.Warn("client blocked",
				"ip", ip.String(),
				"cidr", blocked.String(),
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", RequestIDFrom(r.Context()),
			)
		}
		writeError(w, http.StatusForbidden, "Forbidden")
	})
}

func (b *blocklist) match(ip net.IP) *net.IPNet {
	if ip == nil {
		return nil
	}
	for _, n := range b.nets {
		if n.Contains(ip) {
			return n
		}
	}
	return nil
}

// ClientIP returns the first X-Forwarded-For hop if present, else the peer
// address. It returns nil when neither parses.
func ClientIP(r *http.Request) net.IP {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return net.ParseIP(r.RemoteAddr)
	}
	return net.ParseIP(host)
}
