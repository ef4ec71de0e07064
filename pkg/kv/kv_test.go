package kv_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/haivivi/voiceguard/go/pkg/kv"
)

// testGetSetDelete exercises the Store contract shared by all backends.
func testGetSetDelete(t *testing.T, s kv.Store) {
	t.Helper()
	ctx := context.Background()

	key := kv.Key{"result", "abc123"}
	val := []byte("hello")

	// Get non-existent key.
	_, err := s.Get(ctx, key)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Set and Get.
	if err := s.Set(ctx, key, val, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(val) {
		t.Fatalf("Get = %q, want %q", got, val)
	}

	// Overwrite with a TTL.
	val2 := []byte("world")
	if err := s.Set(ctx, key, val2, time.Hour); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	got, err = s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after overwrite: %v", err)
	}
	if string(got) != string(val2) {
		t.Fatalf("Get = %q, want %q", got, val2)
	}

	// Delete.
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err = s.Get(ctx, key)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	// Delete non-existent key should not error.
	if err := s.Delete(ctx, kv.Key{"no", "such", "key"}); err != nil {
		t.Fatalf("Delete non-existent: %v", err)
	}
}

func TestMemoryGetSetDelete(t *testing.T) {
	s := kv.NewMemory(nil)
	t.Cleanup(func() { s.Close() })
	testGetSetDelete(t, s)
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	s := kv.NewMemory(nil)
	s.Now = func() time.Time { return now }

	if err := s.Set(ctx, kv.Key{"a"}, []byte("1"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, kv.Key{"b"}, []byte("2"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	now = now.Add(59 * time.Second)
	if _, err := s.Get(ctx, kv.Key{"a"}); err != nil {
		t.Fatalf("Get before expiry: %v", err)
	}

	now = now.Add(time.Second)
	if _, err := s.Get(ctx, kv.Key{"a"}); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Get at expiry = %v, want ErrNotFound", err)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1 after lazy expiry", s.Len())
	}

	now = now.Add(24 * time.Hour)
	if _, err := s.Get(ctx, kv.Key{"b"}); err != nil {
		t.Fatalf("Get without ttl: %v", err)
	}
}

func TestMemorySweep(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(0, 0)
	s := kv.NewMemory(nil)
	s.Now = func() time.Time { return now }

	for i, ttl := range []time.Duration{time.Second, 2 * time.Second, 0} {
		if err := s.Set(ctx, kv.Key{"k", string(rune('a' + i))}, []byte("v"), ttl); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	now = now.Add(1500 * time.Millisecond)
	if n := s.Sweep(); n != 1 {
		t.Fatalf("Sweep = %d, want 1", n)
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemory(nil)
	val := []byte("abc")
	if err := s.Set(ctx, kv.Key{"k"}, val, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	val[0] = 'x'
	got, _ := s.Get(ctx, kv.Key{"k"})
	got[1] = 'y'
	again, _ := s.Get(ctx, kv.Key{"k"})
	if string(again) != "abc" {
		t.Fatalf("stored value mutated: %q", again)
	}
}

func TestPrefixAndSeparator(t *testing.T) {
	ctx := context.Background()
	a := kv.NewMemory(&kv.Options{Prefix: kv.Key{"a"}})
	if err := a.Set(ctx, kv.Key{"x"}, []byte("1"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := a.Get(ctx, kv.Key{"x"}); err != nil {
		t.Fatalf("Get: %v", err)
	}

	// "a:b" and "a","b" collide only under the same separator.
	s := kv.NewMemory(&kv.Options{Separator: '/'})
	if err := s.Set(ctx, kv.Key{"a:b"}, []byte("1"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := s.Get(ctx, kv.Key{"a", "b"}); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Get = %v, want ErrNotFound", err)
	}
}

func TestKeyString(t *testing.T) {
	if got := (kv.Key{"vg", "result", "ff"}).String(); got != "vg:result:ff" {
		t.Fatalf("String = %q", got)
	}
}
