package router

import (
	"fmt"
	"regexp"
	"strings"
)

// Parameter charsets accepted inside :name placeholders
const (
	paramCharset         = `[A-Za-z0-9_-]+`
	extendedParamCharset = `[A-Za-z0-9_@.-]+`
)

var (
	placeholderRe         = regexp.MustCompile(`:(` + paramCharset + `)`)
	extendedPlaceholderRe = regexp.MustCompile(`:(` + extendedParamCharset + `)`)
)

// Param is a single matched route placeholder
type Param struct {
	Key   string
	Value string
}

// Params holds matched placeholders in declaration order
type Params []Param

// Get returns the value bound to name, or "" when absent
func (ps Params) Get(name string) string {
	v, _ := ps.Lookup(name)
	return v
}

// Lookup returns the value bound to name and whether it was present
func (ps Params) Lookup(name string) (string, bool) {
	for _, p := range ps {
		if p.Key == name {
			return p.Value, true
		}
	}
	return "", false
}

// Map copies the params into a map
func (ps Params) Map() map[string]string {
	m := make(map[string]string, len(ps))
	for _, p := range ps {
		m[p.Key] = p.Value
	}
	return m
}

// PatternOption configures pattern compilation
type PatternOption func(*patternOptions)

type patternOptions struct {
	extended bool
}

// WithExtendedParams widens the placeholder charset with '@' and '.',
// e.g. for e-mail addresses or file names captured from the path.
func WithExtendedParams() PatternOption {
	return func(o *patternOptions) {
		o.extended = true
	}
}

// Pattern is a compiled route path specification.
//
// Literal segments are used as regular expression source, so "/assets/.+"
// matches any path below /assets/. Placeholders of the form :name capture a
// single run of charset characters. The whole expression is anchored and a
// trailing slash is always optional.
type Pattern struct {
	raw   string
	re    *regexp.Regexp
	names []string
	// groups maps each name to its subexpression index in re
	groups []int
}

// Compile turns a path specification into a Pattern.
func Compile(spec string, opts ...PatternOption) (*Pattern, error) {
	if spec == "" {
		return nil, fmt.Errorf("route pattern cannot be empty")
	}

	var o patternOptions
	for _, opt := range opts {
		opt(&o)
	}

	placeholders, charset := placeholderRe, paramCharset
	if o.extended {
		placeholders, charset = extendedPlaceholderRe, extendedParamCharset
	}

	var (
		names []string
		seen  = make(map[string]bool)
		dup   string
	)

	body := strings.TrimSuffix(spec, "/")
	expr := placeholders.ReplaceAllStringFunc(body, func(m string) string {
		name := m[1:]
		if seen[name] && dup == "" {
			dup = name
		}
		seen[name] = true
		// Generated group names keep capture indices stable even when the
		// literal part of the spec contains its own groups.
		group := fmt.Sprintf("p%d", len(names))
		names = append(names, name)
		return "(?P<" + group + ">" + charset + ")"
	})
	if dup != "" {
		return nil, fmt.Errorf("route pattern %q: duplicate placeholder %q", spec, dup)
	}

	re, err := regexp.Compile("^" + expr + "/?$")
	if err != nil {
		return nil, fmt.Errorf("route pattern %q: %w", spec, err)
	}

	groups := make([]int, len(names))
	for i := range names {
		groups[i] = re.SubexpIndex(fmt.Sprintf("p%d", i))
	}

	return &Pattern{
		raw:    spec,
		re:     re,
		names:  names,
		groups: groups,
	}, nil
}

// MustCompile is like Compile but panics on error
func MustCompile(spec string, opts ...PatternOption) *Pattern {
	p, err := Compile(spec, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the raw specification
func (p *Pattern) String() string {
	return p.raw
}

// Names returns the placeholder names in declaration order
func (p *Pattern) Names() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// Match tests path against the pattern. On success it returns the captured
// placeholders in declaration order; a pattern without placeholders yields
// an empty, non-nil Params.
func (p *Pattern) Match(path string) (Params, bool) {
	m := p.re.FindStringSubmatch(path)
	if m == nil {
		return nil, false
	}
	params := make(Params, len(p.names))
	for i, name := range p.names {
		params[i] = Param{Key: name, Value: m[p.groups[i]]}
	}
	return params, true
}
