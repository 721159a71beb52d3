package router

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func build(t *testing.T, cfg *Config, setup func(b *Builder)) *Engine {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Logger == nil {
		cfg.Logger = testLogger()
	}
	b := NewBuilder(cfg)
	setup(b)
	e, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return e
}

func do(e http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestEngineFinalization(t *testing.T) {
	e := build(t, nil, func(b *Builder) {
		b.Get("/empty", okHandler(nil))
		b.Get("/map", okHandler(map[string]any{"ok": true}))
		b.Get("/text", okHandler("hello"))
		b.Get("/bytes", okHandler([]byte{0x01, 0x02}))
		b.Post("/created", func(c *Context) (any, error) {
			c.SetStatus(http.StatusCreated)
			return []int{1, 2}, nil
		})
	})

	tests := []struct {
		method, target string
		code           int
		body           string
		contentType    string
	}{
		{http.MethodGet, "/empty", http.StatusNoContent, "", ""},
		{http.MethodGet, "/map", http.StatusOK, `{"ok":true}`, ContentTypeJSON},
		{http.MethodGet, "/text", http.StatusOK, "hello", ""},
		{http.MethodGet, "/bytes", http.StatusOK, "\x01\x02", ""},
		{http.MethodPost, "/created", http.StatusCreated, "[1,2]", ContentTypeJSON},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := do(e, tt.method, tt.target)
			if rec.Code != tt.code {
				t.Fatalf("status = %d, want %d", rec.Code, tt.code)
			}
			if rec.Body.String() != tt.body {
				t.Fatalf("body = %q, want %q", rec.Body.String(), tt.body)
			}
			if got := rec.Header().Get("Content-Type"); got != tt.contentType {
				t.Fatalf("content type = %q, want %q", got, tt.contentType)
			}
		})
	}
}

func TestEngineNotFound(t *testing.T) {
	e := build(t, nil, func(b *Builder) {
		b.Get("/user/:id", func(c *Context) (any, error) {
			return map[string]string{"id": c.Params.Get("id")}, nil
		})
	})

	rec := do(e, http.MethodGet, "/nope")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/nope") {
		t.Fatalf("body %q should name the path", rec.Body.String())
	}

	rec = do(e, http.MethodPost, "/user/1")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("method mismatch: status = %d, want 404", rec.Code)
	}

	rec = do(e, http.MethodGet, "/user/1?x=y")
	if rec.Code != http.StatusOK || rec.Body.String() != `{"id":"1"}` {
		t.Fatalf("GET /user/1: %d %q", rec.Code, rec.Body.String())
	}
}

func TestEngineMethodMismatch(t *testing.T) {
	e := build(t, nil, func(b *Builder) {
		b.Get("/users/:id", func(c *Context) (any, error) {
			return "get " + c.Params.Get("id"), nil
		})
		b.Post("/users/:id", func(c *Context) (any, error) {
			return "post " + c.Params.Get("id"), nil
		})
	})

	rec := do(e, http.MethodDelete, "/users/5")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("DELETE /users/5: status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/users/5") {
		t.Fatalf("body %q should name the path", rec.Body.String())
	}

	for method, want := range map[string]string{http.MethodGet: "get 5", http.MethodPost: "post 5"} {
		rec = do(e, method, "/users/5")
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("%s /users/5: %d %q, want %q", method, rec.Code, rec.Body.String(), want)
		}
	}
}

func TestEngineParamsAndQuery(t *testing.T) {
	var got *Context
	e := build(t, nil, func(b *Builder) {
		b.Get("/a/:x/b/:y", func(c *Context) (any, error) {
			got = c
			return nil, nil
		})
	})

	do(e, http.MethodGet, "/a/1/b/2/?q=go&q=too")
	if got == nil {
		t.Fatal("handler not called")
	}
	if want := (Params{{"x", "1"}, {"y", "2"}}); !reflect.DeepEqual(got.Params, want) {
		t.Fatalf("params:\n got: %#v\nwant: %#v", got.Params, want)
	}
	if q := got.Query["q"]; !reflect.DeepEqual(q, []string{"go", "too"}) {
		t.Fatalf("query q = %#v", q)
	}
}

func TestEngineFirstRegisteredWins(t *testing.T) {
	e := build(t, nil, func(b *Builder) {
		b.Get("/a/:x", okHandler("param"))
		b.Get("/a/b", okHandler("literal"))
	})
	if body := do(e, http.MethodGet, "/a/b").Body.String(); body != "param" {
		t.Fatalf("body = %q, want the first registered handler", body)
	}
}

func TestEngineMiddlewareChain(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(*Context) (Result, error) {
			order = append(order, name)
			return Next(), nil
		}
	}

	t.Run("runs in order before routing", func(t *testing.T) {
		order = nil
		e := build(t, nil, func(b *Builder) {
			b.Use(mark("one"), mark("two"))
			b.Get("/", func(*Context) (any, error) {
				order = append(order, "handler")
				return nil, nil
			})
		})
		do(e, http.MethodGet, "/")
		if want := []string{"one", "two", "handler"}; !reflect.DeepEqual(order, want) {
			t.Fatalf("order = %v, want %v", order, want)
		}
	})

	t.Run("done stops the chain", func(t *testing.T) {
		order = nil
		e := build(t, nil, func(b *Builder) {
			b.Use(mark("one"), func(*Context) (Result, error) {
				return Done(map[string]int{"early": 1}), nil
			}, mark("never"))
			b.Get("/", func(*Context) (any, error) {
				order = append(order, "handler")
				return nil, nil
			})
		})
		rec := do(e, http.MethodGet, "/")
		if want := []string{"one"}; !reflect.DeepEqual(order, want) {
			t.Fatalf("order = %v, want %v", order, want)
		}
		if rec.Code != http.StatusOK || rec.Body.String() != `{"early":1}` {
			t.Fatalf("got %d %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("direct send stops the chain", func(t *testing.T) {
		order = nil
		e := build(t, nil, func(b *Builder) {
			b.Use(func(c *Context) (Result, error) {
				return Next(), c.SendCode(http.StatusTeapot, "short")
			}, mark("never"))
			b.Get("/", okHandler("handler"))
		})
		rec := do(e, http.MethodGet, "/")
		if len(order) != 0 {
			t.Fatalf("later middlewares ran: %v", order)
		}
		if rec.Code != http.StatusTeapot || rec.Body.String() != "short" {
			t.Fatalf("got %d %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("middleware error aborts", func(t *testing.T) {
		e := build(t, nil, func(b *Builder) {
			b.Use(func(*Context) (Result, error) {
				return Next(), NewHTTPError(http.StatusUnauthorized, "no token")
			})
			b.Get("/", okHandler("handler"))
		})
		rec := do(e, http.MethodGet, "/")
		if rec.Code != http.StatusUnauthorized || rec.Body.String() != "no token" {
			t.Fatalf("got %d %q", rec.Code, rec.Body.String())
		}
	})
}

type statusErr struct{ code int }

func (e statusErr) Error() string   { return "remote failed" }
func (e statusErr) StatusCode() int { return e.code }

func TestEngineErrors(t *testing.T) {
	e := build(t, nil, func(b *Builder) {
		b.Get("/plain", func(*Context) (any, error) { return nil, errors.New("boom") })
		b.Get("/coded", func(*Context) (any, error) {
			return nil, WrapHTTPError(http.StatusBadGateway, statusErr{code: http.StatusTooManyRequests})
		})
		b.Get("/remote", func(*Context) (any, error) {
			return nil, statusErr{code: http.StatusTooManyRequests}
		})
		b.Get("/panic", func(*Context) (any, error) { panic("kaput") })
		b.Get("/late", func(c *Context) (any, error) {
			_ = c.Send("partial")
			return nil, errors.New("after send")
		})
	})

	tests := []struct {
		target string
		code   int
		body   string
	}{
		{"/plain", http.StatusInternalServerError, "boom"},
		{"/coded", http.StatusBadGateway, "remote failed"},
		{"/remote", http.StatusTooManyRequests, "remote failed"},
		{"/panic", http.StatusInternalServerError, "kaput"},
		{"/late", http.StatusOK, "partial"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := do(e, http.MethodGet, tt.target)
			if rec.Code != tt.code || rec.Body.String() != tt.body {
				t.Fatalf("got %d %q, want %d %q", rec.Code, rec.Body.String(), tt.code, tt.body)
			}
		})
	}
}

func TestContextSendOnce(t *testing.T) {
	e := build(t, nil, func(b *Builder) {
		b.Get("/", func(c *Context) (any, error) {
			if err := c.SendCode(http.StatusAccepted, "first"); err != nil {
				return nil, err
			}
			if err := c.Send("second"); err != nil {
				return nil, err
			}
			if err := c.Redirect("/elsewhere"); err != nil {
				return nil, err
			}
			if !c.Sent() {
				t.Error("Sent() should be true")
			}
			return "third", nil
		})
	})

	rec := do(e, http.MethodGet, "/")
	if rec.Code != http.StatusAccepted || rec.Body.String() != "first" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "" {
		t.Fatalf("unexpected Location %q", loc)
	}
}

func TestContextRedirect(t *testing.T) {
	e := build(t, nil, func(b *Builder) {
		b.Get("/old", func(c *Context) (any, error) { return nil, c.Redirect("/new") })
		b.Get("/tmp", func(c *Context) (any, error) {
			return nil, c.RedirectCode(http.StatusFound, "/other")
		})
	})

	rec := do(e, http.MethodGet, "/old")
	if rec.Code != http.StatusMovedPermanently || rec.Header().Get("Location") != "/new" || rec.Body.Len() != 0 {
		t.Fatalf("got %d %q %q", rec.Code, rec.Header().Get("Location"), rec.Body.String())
	}
	rec = do(e, http.MethodGet, "/tmp")
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/other" {
		t.Fatalf("got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestContextSetCookie(t *testing.T) {
	e := build(t, nil, func(b *Builder) {
		b.Get("/", func(c *Context) (any, error) {
			c.SetCookie("session", "abc", CookieOptions{Domain: "example.com", MaxAge: 60, HTTPOnly: true})
			c.SetCookie("theme", "dark", CookieOptions{})
			return nil, nil
		})
	})

	rec := do(e, http.MethodGet, "/")
	want := []string{"session=abc; domain=example.com; max-age=60; httpOnly=true", "theme=dark"}
	if got := rec.Header().Values("Set-Cookie"); !reflect.DeepEqual(got, want) {
		t.Fatalf("Set-Cookie:\n got: %#v\nwant: %#v", got, want)
	}
}

type fakeFiles struct {
	served []string
}

func (f *fakeFiles) ServeFile(w http.ResponseWriter, _ *http.Request, name string) error {
	f.served = append(f.served, name)
	_, err := io.WriteString(w, "file:"+name)
	return err
}

func TestBuilderServe(t *testing.T) {
	files := &fakeFiles{}
	e := build(t, &Config{Files: files}, func(b *Builder) {
		b.Serve("/assets/")
		b.Get("/page", func(c *Context) (any, error) { return nil, c.Serve("/index.html") })
	})

	rec := do(e, http.MethodGet, "/assets/css/site.css")
	if rec.Code != http.StatusOK || rec.Body.String() != "file:/assets/css/site.css" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
	if rec := do(e, http.MethodPost, "/assets/css/site.css"); rec.Code != http.StatusNotFound {
		t.Fatalf("static routes are GET only, got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/page"); rec.Body.String() != "file:/index.html" {
		t.Fatalf("got %q", rec.Body.String())
	}
}

func TestBuilderErrors(t *testing.T) {
	b := NewBuilder(&Config{Logger: testLogger()})
	b.Get("/ok", okHandler(nil))
	b.Get("", okHandler(nil))
	b.Get("/nil", nil)
	b.Handle("BREW", "/coffee", okHandler(nil))
	b.Serve("/static")
	b.Use(nil)

	_, err := b.Build()
	if err == nil {
		t.Fatal("expected build error")
	}
	var regErr *RegistrationError
	if !errors.As(err, &regErr) {
		t.Fatalf("expected a *RegistrationError in %v", err)
	}
	for _, want := range []string{"path is required", "handler is required", "unsupported method", "no file server", "middleware is required"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestEngineIsFrozen(t *testing.T) {
	b := NewBuilder(&Config{Logger: testLogger()})
	b.Get("/a", okHandler("a"))
	e, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	b.Get("/b", okHandler("b"))
	b.Use(func(c *Context) (Result, error) { return Done("hijacked"), nil })

	if rec := do(e, http.MethodGet, "/b"); rec.Code != http.StatusNotFound {
		t.Fatalf("route added after Build is visible: %d", rec.Code)
	}
	if body := do(e, http.MethodGet, "/a").Body.String(); body != "a" {
		t.Fatalf("middleware added after Build ran: %q", body)
	}
	if n := len(e.Routes()); n != 1 {
		t.Fatalf("Routes() = %d entries", n)
	}
}

func TestContextItemsAndBody(t *testing.T) {
	e := build(t, nil, func(b *Builder) {
		b.Use(func(c *Context) (Result, error) {
			c.Set("user", "ada")
			c.SetBody("first")
			return Next(), nil
		})
		b.Get("/", func(c *Context) (any, error) {
			if c.SetBody("second") {
				t.Error("body must be attached once")
			}
			user, _ := c.Get("user")
			return map[string]any{"user": user, "body": c.Body}, nil
		})
	})

	if body := do(e, http.MethodGet, "/").Body.String(); body != `{"body":"first","user":"ada"}` {
		t.Fatalf("body = %q", body)
	}
}
