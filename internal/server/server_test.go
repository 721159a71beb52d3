package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *Config {
	cfg := DefaultConfig("127.0.0.1:0")
	cfg.Logger = discardLogger()
	cfg.ShutdownTimeout = 5 * time.Second
	cfg.Signals = nil
	return cfg
}

type closeLog struct {
	mu    sync.Mutex
	order []string
}

func (l *closeLog) resource(name string, fn func() error) Resource {
	return NewCustomResource(name, func(context.Context) error {
		l.mu.Lock()
		l.order = append(l.order, name)
		l.mu.Unlock()
		if fn != nil {
			return fn()
		}
		return nil
	})
}

func TestStartServesAndShutsDown(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("pong"))
	})

	var (
		log      closeLog
		addr     string
		ready    = make(chan struct{})
		done     = make(chan error, 1)
		stillUp  bool
		readyCnt int
	)
	first := log.resource("first", nil)
	second := log.resource("second", func() error {
		// the listener is already closed when resources are released
		if conn, err := net.Dial("tcp", addr); err == nil {
			conn.Close()
			stillUp = true
		}
		return nil
	})

	go func() {
		done <- Start(ctx, handler, testConfig(), func(a string) {
			readyCnt++
			addr = a
			close(ready)
		}, first, second)
	}()

	select {
	case <-ready:
	case err := <-done:
		t.Fatalf("Start returned early: %v", err)
	}

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + addr + "/ping")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "pong" {
		t.Fatalf("body = %q", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}

	if readyCnt != 1 {
		t.Errorf("onReady called %d times", readyCnt)
	}
	if stillUp {
		t.Error("server still accepted connections while resources were closing")
	}
	if got := log.order; len(got) != 2 || got[0] != "second" || got[1] != "first" {
		t.Errorf("close order = %v, want [second first]", got)
	}
}

func TestStartBindFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	cfg := testConfig()
	cfg.Addr = ln.Addr().String()

	called := false
	err = Start(context.Background(), http.NotFoundHandler(), cfg, func(string) { called = true })
	if err == nil {
		t.Fatal("expected bind error")
	}
	if called {
		t.Fatal("onReady must not run when binding fails")
	}
}

func TestShutdownClosesEverything(t *testing.T) {
	var log closeLog
	boom := errors.New("boom")

	sm := NewShutdownManager(&ShutdownConfig{Logger: discardLogger()})
	sm.Register(log.resource("a", nil))
	sm.Register(log.resource("b", func() error { return boom }))
	sm.Register(NewCloserResource("c", io.NopCloser(nil)))
	sm.Register(log.resource("d", nil))

	err := sm.Shutdown(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if got := log.order; len(got) != 3 || got[0] != "d" || got[1] != "b" || got[2] != "a" {
		t.Fatalf("order = %v", got)
	}
}

func TestWaitReturnsServerFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	var log closeLog
	sm := NewShutdownManager(&ShutdownConfig{Logger: discardLogger()})
	sm.Register(log.resource("cache", nil))

	failed := make(chan error, 1)
	failed <- errors.New("serve failed")

	err := sm.Wait(context.Background(), failed)
	if err == nil || err.Error() != "serve failed" {
		t.Fatalf("err = %v", err)
	}
	if len(log.order) != 1 {
		t.Fatalf("resources not closed: %v", log.order)
	}
}
