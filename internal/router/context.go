package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// ContentTypeJSON is set on every payload the finalizer encodes as JSON
const ContentTypeJSON = "application/json; charset=utf-8"

// Context is the per-request state shared by middlewares and handlers.
//
// The request side carries the fields attached by augmenting middlewares.
// The response side tracks the pending status and whether a response has
// already been written; once Sent reports true every further Send or
// Redirect is ignored.
type Context struct {
	Request *http.Request

	// Writer is the response writer. Writing to it directly marks the
	// response as sent.
	Writer http.ResponseWriter

	IP       string
	Protocol string
	Cookies  map[string]string
	Query    url.Values
	Params   Params
	Body     any

	w          *responseWriter
	engine     *Engine
	status     int
	bodyParsed bool
	items      map[string]any
}

func newContext(e *Engine, w http.ResponseWriter, r *http.Request) *Context {
	rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
	return &Context{
		Request: r,
		Writer:  rw,
		Cookies: map[string]string{},
		Query:   r.URL.Query(),
		w:       rw,
		engine:  e,
		status:  http.StatusOK,
	}
}

// Context returns the request's context.Context
func (c *Context) Context() context.Context {
	return c.Request.Context()
}

// Logger returns the engine logger
func (c *Context) Logger() *slog.Logger {
	return c.engine.logger
}

// Header returns the response header map
func (c *Context) Header() http.Header {
	return c.w.Header()
}

// Status returns the pending response status
func (c *Context) Status() int {
	if c.w.wroteHeader {
		return c.w.statusCode
	}
	return c.status
}

// SetStatus changes the status used by Send and by the dispatcher when it
// finalizes a handler's return value.
func (c *Context) SetStatus(code int) {
	c.status = code
}

// Sent reports whether the response has been written
func (c *Context) Sent() bool {
	return c.w.wroteHeader
}

// Set stores a request-scoped value
func (c *Context) Set(key string, value any) {
	if c.items == nil {
		c.items = make(map[string]any)
	}
	c.items[key] = value
}

// Get returns a request-scoped value
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.items[key]
	return v, ok
}

// BodyParsed reports whether a body has already been attached
func (c *Context) BodyParsed() bool {
	return c.bodyParsed
}

// SetBody attaches the parsed request body. Only the first call has any
// effect, so the body is parsed at most once per request.
func (c *Context) SetBody(body any) bool {
	if c.bodyParsed {
		return false
	}
	c.Body = body
	c.bodyParsed = true
	return true
}

// Send writes payload with the pending status (200 unless changed).
func (c *Context) Send(payload any) error {
	return c.SendCode(c.status, payload)
}

// SendCode writes payload with the given status.
//
// Strings and byte slices are written unchanged; every other non-nil value
// is encoded as JSON and labelled application/json. A nil payload produces
// an empty body.
func (c *Context) SendCode(code int, payload any) error {
	if c.Sent() {
		c.warnAlreadySent("send", code)
		return nil
	}

	var body []byte
	switch v := payload.(type) {
	case nil:
	case string:
		body = []byte(v)
	case []byte:
		body = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return WrapHTTPError(http.StatusInternalServerError, fmt.Errorf("encode response: %w", err))
		}
		body = encoded
		c.w.Header().Set("Content-Type", ContentTypeJSON)
	}

	c.status = code
	if !bodyAllowed(code) {
		body = nil
	}
	c.w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	c.w.WriteHeader(code)
	if len(body) == 0 {
		return nil
	}
	_, err := c.w.Write(body)
	return err
}

// Redirect sends a 301 to location
func (c *Context) Redirect(location string) error {
	return c.RedirectCode(http.StatusMovedPermanently, location)
}

// RedirectCode sends a redirect with the given status and an empty body
func (c *Context) RedirectCode(code int, location string) error {
	if c.Sent() {
		c.warnAlreadySent("redirect", code)
		return nil
	}
	c.status = code
	c.w.Header().Set("Location", location)
	c.w.Header().Set("Content-Length", "0")
	c.w.WriteHeader(code)
	return nil
}

// CookieOptions are the optional attributes of SetCookie
type CookieOptions struct {
	Domain   string
	MaxAge   int
	HTTPOnly bool
}

// SetCookie appends a Set-Cookie header of the form
// "key=value; domain=d; max-age=n; httpOnly=true".
func (c *Context) SetCookie(key, value string, opts CookieOptions) {
	parts := []string{key + "=" + value}
	if opts.Domain != "" {
		parts = append(parts, "domain="+opts.Domain)
	}
	if opts.MaxAge != 0 {
		parts = append(parts, "max-age="+strconv.Itoa(opts.MaxAge))
	}
	if opts.HTTPOnly {
		parts = append(parts, "httpOnly=true")
	}
	c.w.Header().Add("Set-Cookie", strings.Join(parts, "; "))
}

// Serve hands the request to the static file server. An empty name serves
// the request path.
func (c *Context) Serve(name string) error {
	if c.engine.files == nil {
		return NewHTTPError(http.StatusNotFound, "static file serving is not configured")
	}
	if name == "" {
		name = c.Request.URL.Path
	}
	return c.engine.files.ServeFile(c.w, c.Request, name)
}

func (c *Context) warnAlreadySent(op string, code int) {
	c.engine.logger.Warn("response already sent, ignoring "+op,
		"method", c.Request.Method,
		"url", c.Request.URL.String(),
		"status", code,
		"sent_status", c.w.statusCode,
	)
}

func bodyAllowed(code int) bool {
	switch {
	case code >= 100 && code <= 199:
		return false
	case code == http.StatusNoContent, code == http.StatusNotModified:
		return false
	}
	return true
}
