package middlewares

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"microspark/internal/router"
)

// DefaultCORSMaxAge is the preflight cache lifetime in seconds (24 hours)
const DefaultCORSMaxAge = 60 * 60 * 24

// CORSConfig holds configuration for the CORS middleware
type CORSConfig struct {
	// AllowOrigins lists accepted origins. "*" accepts every origin; any
	// other entry accepts origins whose hostname ends with it, so
	// "example.com" also accepts "api.example.com".
	// Default: ["*"]
	AllowOrigins []string

	// AllowMethods defines methods allowed when accessing the resource.
	// Default: ["GET", "POST", "PUT", "DELETE", "OPTIONS", "HEAD", "PATCH"]
	AllowMethods []string

	// AllowHeaders defines request headers that can be used.
	// Default: ["Authorization", "Accept", "Content-Type"]
	AllowHeaders []string

	// ExposeHeaders defines response headers clients can access.
	// Default: []
	ExposeHeaders []string

	// AllowCredentials indicates if credentials (cookies, auth) are allowed.
	// With a "*" origin the request origin is echoed instead of "*".
	// nil means the default.
	// Default: true
	AllowCredentials *bool

	// MaxAge indicates how long (seconds) preflight results can be cached.
	// nil means the default, 0 disables caching, negative values are rejected.
	// Default: 86400
	MaxAge *int

	// Logger for structured logging
	// Default: slog.Default()
	Logger *slog.Logger
}

// DefaultCORSConfig returns the permissive default configuration
func DefaultCORSConfig() *CORSConfig {
	return &CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     defaultCORSMethods(),
		AllowHeaders:     []string{"Authorization", "Accept", "Content-Type"},
		ExposeHeaders:    []string{},
		AllowCredentials: Bool(true),
		MaxAge:           Int(DefaultCORSMaxAge),
		Logger:           slog.Default(),
	}
}

// Bool returns a pointer to v, for optional config fields
func Bool(v bool) *bool { return &v }

// Int returns a pointer to v, for optional config fields
func Int(v int) *int { return &v }

func defaultCORSMethods() []string {
	return []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodDelete,
		http.MethodOptions,
		http.MethodHead,
		http.MethodPatch,
	}
}

// Validate reports configuration errors
func (c *CORSConfig) Validate() error {
	for i, origin := range c.AllowOrigins {
		if strings.TrimSpace(origin) == "" {
			return fmt.Errorf("cors: allow origin %d is blank", i)
		}
	}
	if c.MaxAge != nil && *c.MaxAge < 0 {
		return fmt.Errorf("cors: max age must not be negative, got %d", *c.MaxAge)
	}
	return nil
}

// CORS returns a Cross-Origin Resource Sharing middleware.
//
// For an accepted origin the Access-Control-* headers are set on every
// response. A preflight OPTIONS request from an accepted origin is answered
// with 200 and an empty body and nothing else runs.
func CORS(config *CORSConfig) (router.Middleware, error) {
	if config == nil {
		config = DefaultCORSConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// work on a copy so the caller's config is left alone
	cfg := *config
	defaults := DefaultCORSConfig()
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowOrigins = defaults.AllowOrigins
	}
	if len(cfg.AllowMethods) == 0 {
		cfg.AllowMethods = defaults.AllowMethods
	}
	if len(cfg.AllowHeaders) == 0 {
		cfg.AllowHeaders = defaults.AllowHeaders
	}
	if cfg.AllowCredentials == nil {
		cfg.AllowCredentials = defaults.AllowCredentials
	}
	if cfg.MaxAge == nil {
		cfg.MaxAge = defaults.MaxAge
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	// Pre-compute header values
	allowMethods := strings.Join(cfg.AllowMethods, ",")
	allowHeaders := strings.Join(cfg.AllowHeaders, ",")
	exposeHeaders := strings.Join(cfg.ExposeHeaders, ",")
	credentials := *cfg.AllowCredentials
	allowCredentials := strconv.FormatBool(credentials)
	maxAge := strconv.Itoa(*cfg.MaxAge)
	origins := cfg.AllowOrigins

	return func(c *router.Context) (router.Result, error) {
		origin := c.Request.Header.Get("Origin")
		allowed := allowedOrigin(origin, origins)
		if allowed == "" {
			if origin != "" {
				cfg.Logger.Debug("CORS request from disallowed origin", "origin", origin, "path", c.Request.URL.Path)
			}
			return router.Next(), nil
		}
		if allowed == "*" && credentials {
			allowed = origin
		}

		h := c.Header()
		h.Set("Access-Control-Allow-Origin", allowed)
		h.Add("Vary", "Origin")
		h.Set("Access-Control-Allow-Credentials", allowCredentials)
		h.Set("Access-Control-Allow-Methods", allowMethods)
		h.Set("Access-Control-Allow-Headers", allowHeaders)
		h.Set("Access-Control-Max-Age", maxAge)
		if exposeHeaders != "" {
			h.Set("Access-Control-Expose-Headers", exposeHeaders)
		}

		if c.Request.Method == http.MethodOptions {
			cfg.Logger.Debug("CORS preflight",
				"origin", origin,
				"method", c.Request.Header.Get("Access-Control-Request-Method"),
			)
			if err := c.SendCode(http.StatusOK, ""); err != nil {
				return router.Next(), err
			}
			return router.Done(nil), nil
		}
		return router.Next(), nil
	}, nil
}

// allowedOrigin returns the Access-Control-Allow-Origin value for origin:
// "*" for a wildcard entry, the origin itself for a hostname suffix match,
// "" when the origin is missing, unparsable or not allowed.
func allowedOrigin(origin string, allowOrigins []string) string {
	if origin == "" {
		return ""
	}
	u, err := url.Parse(origin)
	if err != nil {
		return ""
	}
	hostname := u.Hostname()
	if hostname == "" {
		return ""
	}
	for _, allowed := range allowOrigins {
		if allowed == "*" {
			return "*"
		}
		if strings.HasSuffix(hostname, allowed) {
			return origin
		}
	}
	return ""
}
