package handlers

import (
	"log/slog"
	"time"

	"microspark/internal/cache"
	"microspark/internal/router"
)

// Handler holds the dependencies shared by the application routes
type Handler struct {
	Cache   cache.Cache
	Drive   DriveIndex // nil disables the /drive routes
	Logger  *slog.Logger
	Version string

	started time.Time
}

func NewHandler(c cache.Cache, d DriveIndex, version string, l *slog.Logger) *Handler {
	if l == nil {
		l = slog.Default()
	}
	return &Handler{
		Cache:   c,
		Drive:   d,
		Logger:  l,
		Version: version,
		started: time.Now(),
	}
}

// Register adds the application routes to b
func (h *Handler) Register(b *router.Builder) {
	b.Get("/health", h.Health)

	if h.Drive != nil {
		b.Get("/drive", h.Browse)
		b.Get("/drive/.*", h.Browse)
	}
}
