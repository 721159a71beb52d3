package router

import (
	"net/http"
	"strings"
)

// MethodAny matches every request method
const MethodAny = "ANY"

var knownMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodDelete:  true,
	http.MethodPatch:   true,
	http.MethodHead:    true,
	http.MethodOptions: true,
	MethodAny:          true,
}

// Entry is a single registered route. A nil Handler means the route falls
// through to the static file server.
type Entry struct {
	Method  string
	Pattern *Pattern
	Handler HandlerFunc
}

// Match is the result of a successful Resolve
type Match struct {
	Entry  *Entry
	Params Params
}

// Table is an ordered, append-only list of routes. Overlapping patterns are
// resolved by registration order, not by specificity.
type Table struct {
	entries []*Entry
	opts    []PatternOption
}

// NewTable creates an empty table. Pattern options apply to every route.
func NewTable(opts ...PatternOption) *Table {
	return &Table{opts: opts}
}

// Register appends a route. It fails if the path spec or the handler is
// missing, the method is unknown, or the pattern does not compile.
func (t *Table) Register(method, spec string, handler HandlerFunc) error {
	if handler == nil {
		return &RegistrationError{Method: method, Pattern: spec, Message: "handler is required"}
	}
	return t.add(method, spec, handler)
}

// registerServe appends a handler-less route
func (t *Table) registerServe(spec string) error {
	return t.add(http.MethodGet, spec, nil)
}

func (t *Table) add(method, spec string, handler HandlerFunc) error {
	method = strings.ToUpper(method)
	if spec == "" {
		return &RegistrationError{Method: method, Pattern: spec, Message: "path is required"}
	}
	if !knownMethods[method] {
		return &RegistrationError{Method: method, Pattern: spec, Message: "unsupported method"}
	}

	pattern, err := Compile(spec, t.opts...)
	if err != nil {
		return &RegistrationError{Method: method, Pattern: spec, Message: "invalid pattern", Err: err}
	}

	t.entries = append(t.entries, &Entry{
		Method:  method,
		Pattern: pattern,
		Handler: handler,
	})
	return nil
}

// Resolve returns the first entry matching method and path.
func (t *Table) Resolve(method, path string) (Match, bool) {
	for _, e := range t.entries {
		if e.Method != method && e.Method != MethodAny {
			continue
		}
		if params, ok := e.Pattern.Match(path); ok {
			return Match{Entry: e, Params: params}, true
		}
	}
	return Match{}, false
}

// Len returns the number of registered routes
func (t *Table) Len() int {
	return len(t.entries)
}

// Entries returns a copy of the registered routes in order
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		out[i] = *e
	}
	return out
}

// clone returns a table that shares nothing mutable with t
func (t *Table) clone() *Table {
	entries := make([]*Entry, len(t.entries))
	copy(entries, t.entries)
	return &Table{entries: entries, opts: t.opts}
}
