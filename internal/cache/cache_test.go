package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMemoryCache(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	mc := NewMemoryCache(&Config{DefaultTTL: time.Hour, Prefix: "t:", Enabled: true})
	defer mc.Close()

	if _, err := mc.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) err = %v, want ErrNotFound", err)
	}

	value := []byte("v1")
	if err := mc.Set(ctx, "k", value, 0); err != nil {
		t.Fatal(err)
	}
	value[0] = 'X'
	got, err := mc.Get(ctx, "k")
	if err != nil || string(got) != "v1" {
		t.Fatalf("Get(k) = %q, %v", got, err)
	}

	if err := mc.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, err := mc.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after Delete err = %v", err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	mc := newMemoryCache(DefaultConfig(), 5*time.Millisecond)
	defer mc.Close()

	if err := mc.Set(ctx, "short", []byte("x"), 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if err := mc.Set(ctx, "forever", []byte("y"), -1); err != nil {
		t.Fatal(err)
	}

	time.Sleep(20 * time.Millisecond)
	if _, err := mc.Get(ctx, "short"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired key err = %v", err)
	}
	if _, err := mc.Get(ctx, "forever"); err != nil {
		t.Fatalf("non-expiring key: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for mc.Len() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("janitor did not sweep, %d entries left", mc.Len())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMemoryCacheDisabled(t *testing.T) {
	defer goleak.VerifyNone(t)

	mc := NewMemoryCache(&Config{Enabled: false})
	defer mc.Close()

	if err := mc.Set(context.Background(), "k", nil, 0); !errors.Is(err, ErrDisabled) {
		t.Fatalf("Set err = %v", err)
	}
	if err := mc.Ping(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Fatalf("Ping err = %v", err)
	}
}

func TestMemoryCacheCloseTwice(t *testing.T) {
	defer goleak.VerifyNone(t)

	mc := NewMemoryCache(nil)
	if err := mc.Close(); err != nil {
		t.Fatal(err)
	}
	if err := mc.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestJSONHelpers(t *testing.T) {
	defer goleak.VerifyNone(t)

	type entry struct {
		ID   string `json:"id"`
		Size int64  `json:"size"`
	}

	ctx := context.Background()
	mc := NewMemoryCache(nil)
	defer mc.Close()

	if err := SetJSON(ctx, mc, "e", entry{ID: "abc", Size: 42}, 0); err != nil {
		t.Fatal(err)
	}
	got, err := GetJSON[entry](ctx, mc, "e")
	if err != nil {
		t.Fatal(err)
	}
	if got != (entry{ID: "abc", Size: 42}) {
		t.Fatalf("got %#v", got)
	}

	_ = mc.Set(ctx, "bad", []byte("{"), 0)
	if _, err := GetJSON[entry](ctx, mc, "bad"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestFallbackWithoutRedis(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	fc := NewFallbackCache(ctx, &FallbackConfig{
		Memory: DefaultConfig(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	defer fc.Close()

	if fc.UsingPrimary() {
		t.Fatal("no redis configured, primary must be unused")
	}
	if err := fc.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	if got, err := fc.Get(ctx, "k"); err != nil || string(got) != "v" {
		t.Fatalf("Get = %q, %v", got, err)
	}
	if err := fc.Ping(ctx); err != nil {
		t.Fatal(err)
	}
}
