package storage

import (
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	// MinCost keeps the registration-heavy tests fast.
	return newTestStoreOpts(t, Options{BcryptCost: bcrypt.MinCost})
}

func newTestStoreOpts(t *testing.T, opts Options) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.MinCost
	}
	return New(client, opts), mr
}

func TestParseRedisOptionsURLForm(t *testing.T) {
	opts, err := ParseRedisOptions("redis://:secret@example.com:6380/2")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opts.Addr != "example.com:6380" {
		t.Fatalf("unexpected addr %q", opts.Addr)
	}
	if opts.Password != "secret" {
		t.Fatalf("unexpected password %q", opts.Password)
	}
	if opts.DB != 2 {
		t.Fatalf("unexpected db %d", opts.DB)
	}
}

func TestParseRedisOptionsCommaForm(t *testing.T) {
	opts, err := ParseRedisOptions("cache.local:6379,password=p4ss,ssl=true")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opts.Addr != "cache.local:6379" {
		t.Fatalf("unexpected addr %q", opts.Addr)
	}
	if opts.Password != "p4ss" {
		t.Fatalf("unexpected password %q", opts.Password)
	}
	if opts.TLSConfig == nil {
		t.Fatalf("expected TLS config for ssl=true")
	}
}
