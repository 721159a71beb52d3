package middlewares

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"microspark/internal/router"
)

// clientIPHeaders are consulted in order; the first one holding a valid IP
// wins. X-Forwarded-For and its relatives may carry a list.
var clientIPHeaders = []string{
	"X-Client-IP",
	"X-Forwarded-For",
	"CF-Connecting-IP",
	"Fastly-Client-IP",
	"True-Client-IP",
	"X-Real-IP",
	"X-Cluster-Client-IP",
	"X-Forwarded",
	"Forwarded-For",
	"Forwarded",
}

// ClientIPConfig configures the ClientIP middleware
type ClientIPConfig struct {
	// TrustedProxies holds IPs or CIDRs. When set, forwarding headers are
	// only honoured for requests whose peer address is in the list.
	// Default: [] (headers are always honoured)
	TrustedProxies []string

	Logger *slog.Logger
}

// ClientIP attaches the originating client address to Context.IP
func ClientIP(config *ClientIPConfig) router.Middleware {
	if config == nil {
		config = &ClientIPConfig{}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	trusted := parseTrustedProxies(config.TrustedProxies, logger)

	return func(c *router.Context) (router.Result, error) {
		c.IP = extractClientIP(c.Request, trusted)
		return router.Next(), nil
	}
}

func extractClientIP(r *http.Request, trusted []*net.IPNet) string {
	remoteIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		remoteIP = r.RemoteAddr
	}

	if len(trusted) > 0 && !inNets(net.ParseIP(remoteIP), trusted) {
		return remoteIP
	}

	for _, name := range clientIPHeaders {
		value := r.Header.Get(name)
		if value == "" {
			continue
		}
		if ip := parseForwardedFor(value); ip != "" {
			return ip
		}
	}
	return remoteIP
}

// parseForwardedFor returns the left-most valid IP of a comma separated
// list. IPv4 entries of the form ip:port are accepted.
func parseForwardedFor(value string) string {
	for _, part := range strings.Split(value, ",") {
		candidate := strings.TrimSpace(part)
		if host, _, ok := strings.Cut(candidate, ":"); ok && strings.Count(candidate, ":") == 1 {
			candidate = host
		}
		if net.ParseIP(candidate) != nil {
			return candidate
		}
	}
	return ""
}

func inNets(ip net.IP, nets []*net.IPNet) bool {
	if ip == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// parseTrustedProxies accepts plain IPs and CIDRs; invalid entries are
// logged and skipped.
func parseTrustedProxies(proxies []string, logger *slog.Logger) []*net.IPNet {
	var nets []*net.IPNet
	for _, proxy := range proxies {
		if strings.Contains(proxy, "/") {
			_, ipNet, err := net.ParseCIDR(proxy)
			if err != nil {
				logger.Warn("Invalid trusted proxy CIDR", "proxy", proxy, "error", err)
				continue
			}
			nets = append(nets, ipNet)
			continue
		}

		ip := net.ParseIP(proxy)
		if ip == nil {
			logger.Warn("Invalid trusted proxy IP", "proxy", proxy)
			continue
		}
		bits := 128
		if ip.To4() != nil {
			bits = 32
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets
}
