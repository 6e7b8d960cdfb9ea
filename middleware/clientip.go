package middleware

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP resolves the caller's address for rate limiting and audit
// records. The first X-Forwarded-For entry wins when present; otherwise
// the connection's remote address is used. Only trust the header when a
// proxy you control sets it.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			fwd = fwd[:idx]
		}
		if ip := strings.TrimSpace(fwd); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
