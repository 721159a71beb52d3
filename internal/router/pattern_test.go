package router

import (
	"reflect"
	"testing"
)

func TestPatternMatch(t *testing.T) {
	tests := []struct {
		name   string
		spec   string
		path   string
		ok     bool
		params Params
	}{
		{"literal", "/health", "/health", true, Params{}},
		{"literal trailing slash", "/health", "/health/", true, Params{}},
		{"spec trailing slash", "/health/", "/health", true, Params{}},
		{"literal mismatch", "/health", "/healthz", false, nil},
		{"case sensitive", "/health", "/Health", false, nil},
		{"single param", "/user/:id", "/user/42", true, Params{{"id", "42"}}},
		{"param with dash", "/user/:id", "/user/a-b_c", true, Params{{"id", "a-b_c"}}},
		{"param stops at slash", "/user/:id", "/user/42/posts", false, nil},
		{"param rejects dot", "/user/:id", "/user/a.b", false, nil},
		{"param empty", "/user/:id", "/user/", false, nil},
		{"two params", "/user/:id/post/:post_id", "/user/7/post/9/", true, Params{{"id", "7"}, {"post_id", "9"}}},
		{"regex passthrough", "/assets/.+", "/assets/css/site.css", true, Params{}},
		{"regex passthrough needs tail", "/assets/.+", "/assets/", false, nil},
		{"root", "/", "/", true, Params{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.spec)
			if err != nil {
				t.Fatalf("Compile(%q): %v", tt.spec, err)
			}
			params, ok := p.Match(tt.path)
			if ok != tt.ok {
				t.Fatalf("Match(%q) ok = %v, want %v", tt.path, ok, tt.ok)
			}
			if !reflect.DeepEqual(params, tt.params) {
				t.Fatalf("Match(%q) params:\n got: %#v\nwant: %#v", tt.path, params, tt.params)
			}
		})
	}
}

func TestPatternRoundTrip(t *testing.T) {
	p := MustCompile("/files/:owner/:name")
	params, ok := p.Match("/files/alice/report")
	if !ok {
		t.Fatal("expected match")
	}
	if got := params.Map(); !reflect.DeepEqual(got, map[string]string{"owner": "alice", "name": "report"}) {
		t.Fatalf("unexpected params: %#v", got)
	}
	if got := p.Names(); !reflect.DeepEqual(got, []string{"owner", "name"}) {
		t.Fatalf("unexpected names: %#v", got)
	}
	if p.String() != "/files/:owner/:name" {
		t.Fatalf("unexpected raw spec: %q", p.String())
	}
}

func TestPatternExtendedParams(t *testing.T) {
	p := MustCompile("/mail/:addr", WithExtendedParams())
	params, ok := p.Match("/mail/bob@example.com")
	if !ok {
		t.Fatal("expected match with extended charset")
	}
	if got := params.Get("addr"); got != "bob@example.com" {
		t.Fatalf("addr = %q", got)
	}

	if _, ok := MustCompile("/mail/:addr").Match("/mail/bob@example.com"); ok {
		t.Fatal("default charset must reject '@' and '.'")
	}
}

func TestCompileErrors(t *testing.T) {
	for _, spec := range []string{"", "/a/:id/b/:id", "/bad/(unclosed"} {
		if _, err := Compile(spec); err == nil {
			t.Fatalf("Compile(%q): expected error", spec)
		}
	}
}

func TestParamsLookup(t *testing.T) {
	ps := Params{{"a", "1"}, {"b", ""}}
	if v, ok := ps.Lookup("b"); !ok || v != "" {
		t.Fatalf("Lookup(b) = %q, %v", v, ok)
	}
	if _, ok := ps.Lookup("c"); ok {
		t.Fatal("Lookup(c) should miss")
	}
	if ps.Get("a") != "1" {
		t.Fatalf("Get(a) = %q", ps.Get("a"))
	}
}
