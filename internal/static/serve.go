// Package static streams files from a directory on disk.
package static

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// CacheControl is sent with every file
const CacheControl = "public, max-age=0, must-revalidate"

var mimeTypes = map[string]string{
	"htm":   "text/html;charset=utf-8",
	"html":  "text/html;charset=utf-8",
	"xml":   "text/xml;charset=utf-8",
	"css":   "text/css;charset=utf-8",
	"js":    "application/javascript;charset=utf-8",
	"json":  "application/json;charset=utf-8",
	"txt":   "text/plain;charset=utf-8",
	"png":   "image/png",
	"jpg":   "image/jpeg",
	"jpeg":  "image/jpeg",
	"gif":   "image/gif",
	"svg":   "image/svg+xml",
	"ico":   "image/x-icon",
	"tif":   "image/tiff",
	"mp3":   "audio/mpeg",
	"mp4":   "video/mp4",
	"zip":   "application/zip",
	"ttf":   "font/ttf",
	"woff":  "font/woff",
	"woff2": "font/woff2",
}

// gzipExtensions are compressed when the client accepts gzip
var gzipExtensions = map[string]bool{
	"js":   true,
	"css":  true,
	"html": true,
}

// Config configures a Server
type Config struct {
	// Root is the directory request paths are resolved against.
	// Default: "."
	Root string

	// GzipLevel is passed to the gzip writer.
	// Default: gzip.DefaultCompression
	GzipLevel int

	Logger *slog.Logger
}

// Server serves regular files below Root
type Server struct {
	root      string
	gzipLevel int
	logger    *slog.Logger
}

// New creates a Server. Root must be an existing directory.
func New(cfg *Config) (*Server, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	root := cfg.Root
	if root == "" {
		root = "."
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("static root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("static root %q is not a directory", root)
	}

	level := cfg.GzipLevel
	if level == 0 {
		level = gzip.DefaultCompression
	}
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		return nil, fmt.Errorf("static gzip level %d out of range", level)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{root: root, gzipLevel: level, logger: logger}, nil
}

// ServeFile writes the file named by the URL path name.
//
// Missing files get 404 "File Not Found: <name>", anything that is not a
// regular file gets 406 "Invalid File: <name>". The returned error is only
// non-nil for I/O failures.
func (s *Server) ServeFile(w http.ResponseWriter, r *http.Request, name string) error {
	rel := sanitizePath(name)
	full := filepath.Join(s.root, filepath.FromSlash(rel))

	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return s.reject(w, http.StatusNotFound, "File Not Found: "+name)
		}
		return fmt.Errorf("stat %s: %w", rel, err)
	}
	if !info.Mode().IsRegular() {
		return s.reject(w, http.StatusNotAcceptable, "Invalid File: "+name)
	}

	f, err := os.Open(full)
	if err != nil {
		return fmt.Errorf("open %s: %w", rel, err)
	}
	defer f.Close()

	ext := strings.TrimPrefix(path.Ext(rel), ".")
	h := w.Header()
	h.Set("Cache-Control", CacheControl)
	h.Set("Last-Modified", info.ModTime().UTC().Format(http.TimeFormat))
	if ct, ok := mimeTypes[ext]; ok {
		h.Set("Content-Type", ct)
	}

	if gzipExtensions[ext] && acceptsGzip(r) {
		h.Set("Content-Encoding", "gzip")
		h.Add("Vary", "Accept-Encoding")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return nil
		}
		gz, err := gzip.NewWriterLevel(w, s.gzipLevel)
		if err != nil {
			return err
		}
		if _, err := io.Copy(gz, f); err != nil {
			gz.Close()
			return fmt.Errorf("stream %s: %w", rel, err)
		}
		return gz.Close()
	}

	h.Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return nil
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("stream %s: %w", rel, err)
	}
	return nil
}

func (s *Server) reject(w http.ResponseWriter, status int, msg string) error {
	s.logger.Warn(msg, "status", status)
	w.Header().Set("Content-Length", strconv.Itoa(len(msg)))
	w.WriteHeader(status)
	_, err := io.WriteString(w, msg)
	return err
}

func acceptsGzip(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")
}

// sanitizePath turns a URL path into a clean path relative to the root.
// Cleaning against "/" resolves every ".." before the root is joined, so
// the result never escapes it; the root itself comes back as "".
func sanitizePath(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}
