package middlewares

import (
	"regexp"
	"strings"

	"microspark/internal/router"
)

var cookieSeparator = regexp.MustCompile(`;\s+`)

// Cookies parses the Cookie header into Context.Cookies. Pairs are split on
// ';' followed by whitespace; entries without '=' are skipped and a repeated
// name keeps its last value.
func Cookies() router.Middleware {
	return func(c *router.Context) (router.Result, error) {
		for _, header := range c.Request.Header.Values("Cookie") {
			for k, v := range parseCookies(header) {
				c.Cookies[k] = v
			}
		}
		return router.Next(), nil
	}
}

func parseCookies(header string) map[string]string {
	out := make(map[string]string)
	for _, pair := range cookieSeparator.Split(strings.TrimSpace(header), -1) {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			continue
		}
		out[key] = value
	}
	return out
}
