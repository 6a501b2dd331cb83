package middleware

import (
	"net"
	"net/http"
	"strings"

	goReset "github.com/MrEthical07/goReset"
)

// ResetContext attaches the client IP and, when tenantHeader is non-empty,
// the request tenant to the request context for goReset.Engine.
//
// The client IP is taken from RemoteAddr, so mount chi's RealIP (or an
// equivalent trusted-proxy rewrite) before it.
func ResetContext(tenantHeader string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if ip := clientIP(r.RemoteAddr); ip != "" {
				ctx = goReset.WithClientIP(ctx, ip)
			}
			if tenantHeader != "" {
				if tenant := strings.TrimSpace(r.Header.Get(tenantHeader)); tenant != "" {
					ctx = goReset.WithTenantID(ctx, tenant)
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func clientIP(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		// RealIP stores a bare address
		return remoteAddr
	}
	return host
}
