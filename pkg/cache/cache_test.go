package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/haivivi/voiceguard/go/pkg/cache"
	"github.com/haivivi/voiceguard/go/pkg/kv"
)

type result struct {
	Label      string
	Confidence float64
	Language   string
}

func TestKey(t *testing.T) {
	a := cache.Key([]byte("audio"), "english")
	if len(a) != 64 {
		t.Fatalf("key length = %d", len(a))
	}
	if a != cache.Key([]byte("audio"), "english") {
		t.Fatal("key is not deterministic")
	}
	if a == cache.Key([]byte("audio"), "tamil") {
		t.Fatal("language does not change the key")
	}
	if a == cache.Key([]byte("audiO"), "english") {
		t.Fatal("audio bytes do not change the key")
	}
}

func TestRoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	store := kv.NewMemory(nil)
	store.Now = func() time.Time { return now }
	c := cache.New[result](cache.Config{Store: store})
	if c.TTL() != time.Hour {
		t.Fatalf("TTL = %v", c.TTL())
	}

	key := cache.Key([]byte{1, 2, 3}, "hindi")
	if _, ok, err := c.Get(ctx, key); ok || err != nil {
		t.Fatalf("Get on empty cache = %v, %v", ok, err)
	}

	want := result{Label: "HUMAN", Confidence: 0.8123456789, Language: "hindi"}
	if err := c.Put(ctx, key, want); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if got != want {
		t.Fatalf("Get = %+v, want %+v", got, want)
	}

	now = now.Add(time.Hour - time.Nanosecond)
	if _, ok, _ := c.Get(ctx, key); !ok {
		t.Fatal("entry expired early")
	}
	now = now.Add(time.Nanosecond)
	if _, ok, _ := c.Get(ctx, key); ok {
		t.Fatal("entry served past TTL")
	}
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	c := cache.New[result](cache.Config{Store: kv.NewMemory(nil), TTL: time.Minute})
	if err := c.Put(ctx, "k", result{Label: "AI_GENERATED"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := c.Invalidate(ctx, "k"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("entry survived Invalidate")
	}
}

type brokenStore struct{ err error }

func (b brokenStore) Get(context.Context, kv.Key) ([]byte, error) { return nil, b.err }
func (b brokenStore) Set(context.Context, kv.Key, []byte, time.Duration) error { return b.err }
func (b brokenStore) Delete(context.Context, kv.Key) error { return b.err }
func (b brokenStore) Close() error { return nil }

func TestBackendErrors(t *testing.T) {
	ctx := context.Background()
	down := errors.New("store down")
	c := cache.New[result](cache.Config{Store: brokenStore{down}})

	if _, ok, err := c.Get(ctx, "k"); ok || !errors.Is(err, down) {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if err := c.Put(ctx, "k", result{}); !errors.Is(err, down) {
		t.Fatalf("Put = %v", err)
	}
}

func TestCorruptEntryIsAMiss(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory(nil)
	if err := store.Set(ctx, kv.Key{"result", "k"}, []byte{0xc1}, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	c := cache.New[result](cache.Config{Store: store})
	if _, ok, err := c.Get(ctx, "k"); ok || err == nil {
		t.Fatalf("Get = %v, %v", ok, err)
	}
}
