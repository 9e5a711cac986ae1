package middleware

import (
	"net"
	"net/http"
	"strings"
)

// Proxy headers checked in priority order before falling back to RemoteAddr.
var ipHeaders = []string{"CF-Connecting-IP", "X-Forwarded-For", "X-Real-IP"}

// ClientIP extracts the real client IP address from the request, handling
// common proxy and load balancer headers. X-Forwarded-For may carry a chain;
// the first entry is the original client. Falls back to RemoteAddr when no
// header yields a valid address.
func ClientIP(r *http.Request) string {
	for _, header := range ipHeaders {
		value := r.Header.Get(header)
		if value == "" {
			continue
		}

		ip, _, _ := strings.Cut(value, ",")
		ip = strings.TrimSpace(ip)
		if parsed := net.ParseIP(ip); parsed != nil && !parsed.IsUnspecified() {
			return ip
		}
	}

	if host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr)); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
