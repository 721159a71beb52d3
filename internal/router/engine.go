package router

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
)

// HandlerFunc handles a routed request. A non-nil return value is sent with
// the pending status, a nil value finalizes as 204 unless the handler has
// already responded.
type HandlerFunc func(c *Context) (any, error)

// Middleware runs before routing. Returning Done or writing a response stops
// the chain; returning an error aborts the request.
type Middleware func(c *Context) (Result, error)

// Result tells the dispatcher whether to continue the chain
type Result struct {
	done    bool
	payload any
}

// Next continues with the following middleware or the router
func Next() Result {
	return Result{}
}

// Done stops the chain and finalizes payload
func Done(payload any) Result {
	return Result{done: true, payload: payload}
}

// Stopped reports whether the result ends the chain
func (r Result) Stopped() bool {
	return r.done
}

// Payload returns the value passed to Done
func (r Result) Payload() any {
	return r.payload
}

// FileServer is the static-serve capability used by routes registered with
// Builder.Serve and by Context.Serve.
type FileServer interface {
	ServeFile(w http.ResponseWriter, r *http.Request, name string) error
}

// Config configures a Builder
type Config struct {
	Logger *slog.Logger
	Files  FileServer
	// ExtendedParams allows '@' and '.' inside :name placeholders
	ExtendedParams bool
}

// Builder collects middlewares and routes. Registration errors are logged
// immediately and returned together from Build.
type Builder struct {
	logger      *slog.Logger
	files       FileServer
	middlewares []Middleware
	table       *Table
	errs        []error
}

// NewBuilder creates a Builder. A nil config uses defaults.
func NewBuilder(cfg *Config) *Builder {
	if cfg == nil {
		cfg = &Config{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var opts []PatternOption
	if cfg.ExtendedParams {
		opts = append(opts, WithExtendedParams())
	}

	return &Builder{
		logger: logger,
		files:  cfg.Files,
		table:  NewTable(opts...),
	}
}

// Use appends middlewares to the chain
func (b *Builder) Use(mws ...Middleware) {
	for _, mw := range mws {
		if mw == nil {
			b.fail(errors.New("middleware is required"))
			continue
		}
		b.middlewares = append(b.middlewares, mw)
	}
}

// Handle registers h for method and spec
func (b *Builder) Handle(method, spec string, h HandlerFunc) {
	if err := b.table.Register(method, spec, h); err != nil {
		b.fail(err)
	}
}

func (b *Builder) Get(spec string, h HandlerFunc)     { b.Handle(http.MethodGet, spec, h) }
func (b *Builder) Post(spec string, h HandlerFunc)    { b.Handle(http.MethodPost, spec, h) }
func (b *Builder) Put(spec string, h HandlerFunc)     { b.Handle(http.MethodPut, spec, h) }
func (b *Builder) Delete(spec string, h HandlerFunc)  { b.Handle(http.MethodDelete, spec, h) }
func (b *Builder) Patch(spec string, h HandlerFunc)   { b.Handle(http.MethodPatch, spec, h) }
func (b *Builder) Head(spec string, h HandlerFunc)    { b.Handle(http.MethodHead, spec, h) }
func (b *Builder) Options(spec string, h HandlerFunc) { b.Handle(http.MethodOptions, spec, h) }
func (b *Builder) Any(spec string, h HandlerFunc)     { b.Handle(MethodAny, spec, h) }

// Serve routes every GET below prefix to the static file server
func (b *Builder) Serve(prefix string) {
	if b.files == nil {
		b.fail(&RegistrationError{Method: http.MethodGet, Pattern: prefix, Message: "no file server configured"})
		return
	}
	spec := strings.TrimSuffix(prefix, "/") + "/.+"
	if err := b.table.registerServe(spec); err != nil {
		b.fail(err)
	}
}

func (b *Builder) fail(err error) {
	b.logger.Error("Route registration failed", "error", err)
	b.errs = append(b.errs, err)
}

// Build freezes the middleware chain and the route table. Later changes to
// the Builder do not affect the returned Engine.
func (b *Builder) Build() (*Engine, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}

	mws := make([]Middleware, len(b.middlewares))
	copy(mws, b.middlewares)

	return &Engine{
		logger:      b.logger,
		files:       b.files,
		middlewares: mws,
		table:       b.table.clone(),
	}, nil
}

// Engine is the immutable request dispatcher. It is safe for concurrent use.
type Engine struct {
	logger      *slog.Logger
	files       FileServer
	middlewares []Middleware
	table       *Table
}

// Routes returns the registered routes in match order
func (e *Engine) Routes() []Entry {
	return e.table.Entries()
}

// ServeHTTP runs the middleware chain, routes the request and finalizes
// whatever the handler returned.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c := newContext(e, w, r)

	payload, err := e.dispatch(c)
	if err != nil {
		e.fail(c, err)
		return
	}
	if c.Sent() {
		return
	}

	if payload == nil {
		err = c.SendCode(http.StatusNoContent, nil)
	} else {
		err = c.Send(payload)
	}
	if err != nil {
		e.fail(c, err)
	}
}

func (e *Engine) dispatch(c *Context) (payload any, err error) {
	defer func() {
		if v := recover(); v != nil {
			if v == http.ErrAbortHandler {
				panic(v)
			}
			e.logger.Error("Panic recovered",
				"panic", v,
				"method", c.Request.Method,
				"url", requestURI(c.Request),
				"stack", string(debug.Stack()),
			)
			payload, err = nil, &panicError{value: v}
		}
	}()

	for _, mw := range e.middlewares {
		res, err := mw(c)
		if err != nil {
			return nil, err
		}
		if c.Sent() {
			return nil, nil
		}
		if res.done {
			return res.payload, nil
		}
	}

	m, ok := e.table.Resolve(c.Request.Method, c.Request.URL.Path)
	if !ok {
		uri := requestURI(c.Request)
		e.logger.Warn("Route not found", "method", c.Request.Method, "url", uri)
		return nil, c.SendCode(http.StatusNotFound, "Not Found Route: "+uri)
	}

	c.Params = m.Params
	if m.Entry.Handler == nil {
		return nil, c.Serve("")
	}
	return m.Entry.Handler(c)
}

func (e *Engine) fail(c *Context, err error) {
	status := StatusOf(err)
	e.logger.Error("Request failed",
		"method", c.Request.Method,
		"url", requestURI(c.Request),
		"status", status,
		"error", err,
	)
	if c.Sent() {
		return
	}
	if sendErr := c.SendCode(status, err.Error()); sendErr != nil {
		e.logger.Error("Failed to write error response", "error", sendErr)
	}
}

func requestURI(r *http.Request) string {
	if r.RequestURI != "" {
		return r.RequestURI
	}
	return r.URL.RequestURI()
}
