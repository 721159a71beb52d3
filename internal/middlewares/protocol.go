package middlewares

import (
	"strings"

	"microspark/internal/router"
)

// Protocol attaches the request scheme to Context.Protocol: "https" for TLS
// connections, "http" otherwise, overridden by the first X-Forwarded-Proto
// value when present.
func Protocol() router.Middleware {
	return func(c *router.Context) (router.Result, error) {
		c.Protocol = requestProtocol(c)
		return router.Next(), nil
	}
}

func requestProtocol(c *router.Context) string {
	proto := "http"
	if c.Request.TLS != nil {
		proto = "https"
	}
	forwarded := c.Request.Header.Get("X-Forwarded-Proto")
	if forwarded == "" {
		return proto
	}
	first, _, _ := strings.Cut(forwarded, ",")
	if first = strings.TrimSpace(first); first != "" {
		return first
	}
	return proto
}
