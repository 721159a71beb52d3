// Package drive is a read-only client for a Google Drive folder tree. It
// resolves slash separated paths to file metadata, lists folders and
// streams file content.
package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"microspark/internal/cache"
)

const (
	DefaultTokenURL = "https://www.googleapis.com/oauth2/v4/token"
	DefaultFilesURL = "https://www.googleapis.com/drive/v3/files"

	// FolderMimeType marks Drive folders
	FolderMimeType = "application/vnd.google-apps.folder"

	// PasswordFile is never listed
	PasswordFile = ".password"

	listPageSize = 1000
	listOrderBy  = "folder,name"
	fileFields   = "id, name, mimeType, size, modifiedTime, description, iconLink, thumbnailLink, imageMediaMetadata"
)

// File is the metadata of a Drive file or folder
type File struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	MimeType           string          `json:"mimeType"`
	Size               int64           `json:"size,string,omitempty"`
	ModifiedTime       string          `json:"modifiedTime,omitempty"`
	Description        string          `json:"description,omitempty"`
	IconLink           string          `json:"iconLink,omitempty"`
	ThumbnailLink      string          `json:"thumbnailLink,omitempty"`
	ImageMediaMetadata json.RawMessage `json:"imageMediaMetadata,omitempty"`
}

// IsFolder reports whether f is a folder
func (f *File) IsFolder() bool {
	return f.MimeType == FolderMimeType
}

// Content is an open file download. The caller must close Body.
type Content struct {
	Status int
	Header http.Header
	Body   io.ReadCloser
}

// Config configures a Client
type Config struct {
	// RootID is the folder that "/" resolves to.
	// Default: "root"
	RootID string

	ClientID     string
	ClientSecret string
	RefreshToken string

	// Endpoint overrides, mostly for tests
	TokenURL string
	FilesURL string

	// HTTPClient is the base client used for token refreshes and API calls.
	// Default: a client with a 30s timeout
	HTTPClient *http.Client

	// Cache stores resolved path metadata. Nil disables caching.
	Cache cache.Cache

	// CacheTTL bounds how long resolved paths are trusted.
	// Default: 10 minutes
	CacheTTL time.Duration

	Logger *slog.Logger
}

// Client talks to the Drive v3 files API
type Client struct {
	rootID   string
	filesURL string
	http     *http.Client
	cache    cache.Cache
	cacheTTL time.Duration
	lookups  singleflight.Group
	logger   *slog.Logger
}

// New creates a Client. Access tokens are obtained from the refresh token on
// first use and refreshed whenever they expire.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("drive: config is required")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, errors.New("drive: client id, client secret and refresh token are required")
	}

	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: 30 * time.Second}
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	filesURL := cfg.FilesURL
	if filesURL == "" {
		filesURL = DefaultFilesURL
	}
	rootID := cfg.RootID
	if rootID == "" {
		rootID = "root"
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	// the token source keeps this context for every refresh
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	tokens := oauthCfg.TokenSource(tokenCtx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	httpClient := oauth2.NewClient(tokenCtx, tokens)
	httpClient.Timeout = base.Timeout

	return &Client{
		rootID:   rootID,
		filesURL: strings.TrimSuffix(filesURL, "/"),
		http:     httpClient,
		cache:    cfg.Cache,
		cacheTTL: ttl,
		logger:   logger,
	}, nil
}

// Metadata resolves a slash separated path below the root folder. Each path
// segment is looked up by name inside its parent; resolved segments are
// cached. An unknown path yields an error for which IsNotFound is true.
func (c *Client) Metadata(ctx context.Context, p string) (*File, error) {
	p = normalizePath(p)
	current := &File{ID: c.rootID, MimeType: FolderMimeType}
	if p == "/" {
		return current, nil
	}

	fullPath := "/"
	for _, name := range strings.Split(strings.Trim(p, "/"), "/") {
		if name == "" {
			continue
		}
		if !current.IsFolder() {
			return nil, &APIError{Status: http.StatusNotFound, Message: "File Not Found: " + p}
		}
		fullPath += name + "/"

		next, err := c.child(ctx, current.ID, name, fullPath)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, &APIError{Status: http.StatusNotFound, Message: "File Not Found: " + p}
		}
		current = next
	}
	return current, nil
}

// child looks up name inside the folder parentID. Concurrent lookups of the
// same path share one request. A nil file means no such child.
func (c *Client) child(ctx context.Context, parentID, name, fullPath string) (*File, error) {
	key := "drive:meta:" + fullPath
	if c.cache != nil {
		f, err := cache.GetJSON[File](ctx, c.cache, key)
		if err == nil {
			return &f, nil
		}
		if !errors.Is(err, cache.ErrNotFound) {
			c.logger.Warn("drive metadata cache read failed", "path", fullPath, "error", err)
		}
	}

	v, err, _ := c.lookups.Do(key, func() (any, error) {
		params := url.Values{}
		params.Set("q", fmt.Sprintf("'%s' in parents and name = '%s' and trashed = false",
			escapeQuery(parentID), escapeQuery(name)))
		params.Set("fields", "files("+fileFields+")")

		list, err := c.query(ctx, params)
		if err != nil {
			return nil, err
		}
		if len(list.Files) == 0 {
			return (*File)(nil), nil
		}
		f := list.Files[0]
		if c.cache != nil {
			if err := cache.SetJSON(ctx, c.cache, key, f, c.cacheTTL); err != nil {
				c.logger.Warn("drive metadata cache write failed", "path", fullPath, "error", err)
			}
		}
		return &f, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*File), nil
}

// List returns every entry of the folder id, folders first and then by
// name. The password marker file is never included.
func (c *Client) List(ctx context.Context, id string) ([]File, error) {
	params := url.Values{}
	params.Set("pageSize", fmt.Sprint(listPageSize))
	params.Set("q", fmt.Sprintf("'%s' in parents and trashed = false and name != '%s'", escapeQuery(id), PasswordFile))
	params.Set("fields", "nextPageToken, files("+fileFields+")")
	params.Set("orderBy", listOrderBy)

	files := []File{}
	for {
		list, err := c.query(ctx, params)
		if err != nil {
			return nil, err
		}
		files = append(files, list.Files...)
		if list.NextPageToken == "" {
			return files, nil
		}
		params.Set("pageToken", list.NextPageToken)
	}
}

// Content opens the file id for download. rangeHeader is forwarded as the
// Range request header when not empty.
func (c *Client) Content(ctx context.Context, id, rangeHeader string) (*Content, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.filesURL+"/"+url.PathEscape(id)+"?alt=media", nil)
	if err != nil {
		return nil, err
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("drive content %s: %w", id, tokenError(err))
	}
	if resp.StatusCode < http.StatusBadRequest {
		return &Content{Status: resp.StatusCode, Header: resp.Header, Body: resp.Body}, nil
	}
	defer resp.Body.Close()
	return nil, decodeError(resp)
}

type fileList struct {
	NextPageToken string `json:"nextPageToken"`
	Files         []File `json:"files"`
}

// query runs a files.list call. A rate limit rejection is retried once.
func (c *Client) query(ctx context.Context, params url.Values) (*fileList, error) {
	list, err := c.queryOnce(ctx, params)
	var apiErr *APIError
	if err != nil && errors.As(err, &apiErr) && apiErr.rateLimited() {
		c.logger.Warn("drive rate limited, retrying", "error", err)
		list, err = c.queryOnce(ctx, params)
	}
	return list, err
}

func (c *Client) queryOnce(ctx context.Context, params url.Values) (*fileList, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.filesURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("drive query: %w", tokenError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, decodeError(resp)
	}

	var list fileList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("drive query: decode response: %w", err)
	}
	return &list, nil
}

func decodeError(resp *http.Response) error {
	var body errorBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err == nil && body.Error != nil {
		return &APIError{Status: resp.StatusCode, Message: body.Error.Message}
	}
	return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
}

// normalizePath returns p with exactly one leading and one trailing slash
func normalizePath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return "/"
	}
	return "/" + p + "/"
}

// escapeQuery quotes a value for use inside a single-quoted Drive query
// string literal.
func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
