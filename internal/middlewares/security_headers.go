package middlewares

import (
	"strconv"

	"microspark/internal/router"
)

// SecurityConfig holds configuration for the security headers middleware.
// Empty values disable the corresponding header.
type SecurityConfig struct {
	// Default: "nosniff"
	ContentTypeNosniff string

	// Values: "DENY", "SAMEORIGIN"
	// Default: "SAMEORIGIN"
	XFrameOptions string

	// Default: "strict-origin-when-cross-origin"
	ReferrerPolicy string

	// HSTSMaxAge is only sent when Context.Protocol is "https".
	// Default: 31536000 (1 year)
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
}

// DefaultSecurityConfig returns a default security configuration
func DefaultSecurityConfig() *SecurityConfig {
	return &SecurityConfig{
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		HSTSMaxAge:         31536000,
	}
}

// SecureHeaders sets browser hardening headers on every response. It reads
// Context.Protocol, so register it after Protocol.
func SecureHeaders(config *SecurityConfig) router.Middleware {
	if config == nil {
		config = DefaultSecurityConfig()
	}

	hsts := ""
	if config.HSTSMaxAge > 0 {
		hsts = "max-age=" + strconv.Itoa(config.HSTSMaxAge)
		if config.HSTSIncludeSubdomains {
			hsts += "; includeSubDomains"
		}
	}

	return func(c *router.Context) (router.Result, error) {
		h := c.Header()
		if config.ContentTypeNosniff != "" {
			h.Set("X-Content-Type-Options", config.ContentTypeNosniff)
		}
		if config.XFrameOptions != "" {
			h.Set("X-Frame-Options", config.XFrameOptions)
		}
		if config.ReferrerPolicy != "" {
			h.Set("Referrer-Policy", config.ReferrerPolicy)
		}
		if hsts != "" && c.Protocol == "https" {
			h.Set("Strict-Transport-Security", hsts)
		}
		return router.Next(), nil
	}
}
