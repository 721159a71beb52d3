package middlewares

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// statusRecorder captures the status and size of a response for logging
type statusRecorder struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(data []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(data)
	rw.bytesWritten += int64(n)
	return n, err
}

func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func (rw *statusRecorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("the ResponseWriter doesn't support Hijacker")
	}
	return hijacker.Hijack()
}

// AccessLogConfig holds configuration for the access log wrapper
type AccessLogConfig struct {
	Logger             *slog.Logger // Default: slog.Default()
	SkipPaths          []string     // Paths that are never logged
	IncludeUserAgent   bool
	IncludeQueryParams bool
}

// DefaultAccessLogConfig skips health and metrics probes
func DefaultAccessLogConfig() *AccessLogConfig {
	return &AccessLogConfig{
		Logger:             slog.Default(),
		SkipPaths:          []string{"/health", "/metrics", "/favicon.ico"},
		IncludeUserAgent:   true,
		IncludeQueryParams: true,
	}
}

// AccessLog logs one line per request at a level derived from the status:
// error for 5xx, warn for 4xx, info otherwise.
func AccessLog(config *AccessLogConfig) func(http.Handler) http.Handler {
	if config == nil {
		config = DefaultAccessLogConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	skip := make(map[string]bool, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)
			duration := time.Since(start)

			fields := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.statusCode,
				"latency_ms", duration.Milliseconds(),
				"client_ip", r.RemoteAddr,
				"response_size", rec.bytesWritten,
			}
			if id := w.Header().Get("X-Request-ID"); id != "" {
				fields = append(fields, "request_id", id)
			}
			if config.IncludeQueryParams && r.URL.RawQuery != "" {
				fields = append(fields, "query", r.URL.RawQuery)
			}
			if config.IncludeUserAgent {
				if ua := r.Header.Get("User-Agent"); ua != "" {
					fields = append(fields, "user_agent", ua)
				}
			}

			switch {
			case rec.statusCode >= 500:
				logger.Error("server error", fields...)
			case rec.statusCode >= 400:
				logger.Warn("client error", fields...)
			default:
				logger.Info("request handled", fields...)
			}
		})
	}
}
