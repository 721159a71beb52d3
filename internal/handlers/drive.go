package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"microspark/internal/drive"
	"microspark/internal/router"
)

// DriveIndex is the read side of a Drive folder tree. *drive.Client
// implements it.
type DriveIndex interface {
	Metadata(ctx context.Context, path string) (*drive.File, error)
	List(ctx context.Context, id string) ([]drive.File, error)
	Content(ctx context.Context, id, rangeHeader string) (*drive.Content, error)
}

// DriveListing is the JSON answer for a folder
type DriveListing struct {
	Path  string       `json:"path"`
	Files []drive.File `json:"files"`
}

// proxiedHeaders are copied from the Drive download to the client
var proxiedHeaders = []string{"Content-Type", "Content-Length", "Content-Range", "Accept-Ranges", "Last-Modified", "ETag"}

// Browse answers GET /drive/<path>. Folders are listed as JSON, files are
// streamed from Drive with the client's Range header forwarded.
func (h *Handler) Browse(c *router.Context) (any, error) {
	p := strings.TrimPrefix(c.Request.URL.Path, "/drive")
	if p == "" {
		p = "/"
	}

	f, err := h.Drive.Metadata(c.Context(), p)
	if err != nil {
		return nil, err
	}

	if f.IsFolder() {
		files, err := h.Drive.List(c.Context(), f.ID)
		if err != nil {
			return nil, err
		}
		return &DriveListing{Path: p, Files: files}, nil
	}

	content, err := h.Drive.Content(c.Context(), f.ID, c.Request.Header.Get("Range"))
	if err != nil {
		return nil, err
	}
	defer content.Body.Close()

	header := c.Header()
	for _, k := range proxiedHeaders {
		if v := content.Header.Get(k); v != "" {
			header.Set(k, v)
		}
	}
	if header.Get("Content-Type") == "" && f.MimeType != "" {
		header.Set("Content-Type", f.MimeType)
	}
	if header.Get("Content-Length") == "" && f.Size > 0 && content.Status == http.StatusOK {
		header.Set("Content-Length", strconv.FormatInt(f.Size, 10))
	}

	c.Writer.WriteHeader(content.Status)
	if _, err := io.Copy(c.Writer, content.Body); err != nil {
		return nil, fmt.Errorf("stream %s: %w", f.Name, err)
	}
	return nil, nil
}
