package ratelimit

import (
	"net"
	"net/http"
	"strings"

	"contact-gateway/middleware/ratelimit/domain"
)

type KeyFunc func(r *http.Request) string

// firstForwardedFor devolve o primeiro IP do X-Forwarded-For (cliente original) ou "".
//
// O header é controlado pelo cliente quando não há proxy confiável normalizando;
// quem variar o header escapa do limite.
func firstForwardedFor(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return ""
	}
	first, _, _ := strings.Cut(xff, ",")
	return strings.TrimSpace(first)
}

func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			if ip := firstForwardedFor(r); ip != "" {
				return ip
			}
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return string(domain.UnknownKey)
	}
}

// ForwardedForKeyFunc identifica o cliente só pelo X-Forwarded-For.
//
// Sem o header todos caem em domain.UnknownKey e dividem a mesma cota.
func ForwardedForKeyFunc() KeyFunc {
	return func(r *http.Request) string {
		if ip := firstForwardedFor(r); ip != "" {
			return ip
		}
		return string(domain.UnknownKey)
	}
}
