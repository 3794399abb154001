package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"

	"github.com/morezero/valuestore/pkg/db"
)

const cacheTestPrefix = "cache:cache_test"

func newTestCache(t *testing.T, opts ...Option) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	srv, err := miniredis.Run()
	if err != nil {
		t.Fatalf("%s - failed to start miniredis: %v", cacheTestPrefix, err)
	}
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	c, err := NewRedisCache(client, opts...)
	if err != nil {
		t.Fatalf("%s - NewRedisCache failed: %v", cacheTestPrefix, err)
	}
	t.Cleanup(func() {
		_ = client.Close()
		srv.Close()
	})
	return c, srv
}

func testDocument() *db.Document {
	rt := "com.example.Dog"
	return &db.Document{
		Collection:   "pets",
		Key:          "rex",
		DeclaredType: "com.example.Animal",
		RuntimeType:  &rt,
		Body:         []byte(`{"@type":"com.example.Dog","@value":{"name":"Rex"}}`),
		ETag:         "abc",
		Revision:     4,
		Modified:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		ModifiedBy:   "tester",
	}
}

func TestRedisCache_SetGet(t *testing.T) {
	c, srv := newTestCache(t, WithTTL(time.Minute))
	ctx := context.Background()

	if err := c.Set(ctx, testDocument()); err != nil {
		t.Fatalf("%s - Set failed: %v", cacheTestPrefix, err)
	}
	if !srv.Exists("valuestore::pets::rex") {
		t.Fatalf("%s - expected key valuestore::pets::rex", cacheTestPrefix)
	}
	if ttl := srv.TTL("valuestore::pets::rex"); ttl != time.Minute {
		t.Errorf("%s - ttl = %v, want 1m", cacheTestPrefix, ttl)
	}

	got, err := c.Get(ctx, "pets", "rex")
	if err != nil || got == nil {
		t.Fatalf("%s - Get = %v, %v", cacheTestPrefix, got, err)
	}
	want := testDocument()
	if string(got.Body) != string(want.Body) || got.ETag != want.ETag || got.Revision != want.Revision {
		t.Errorf("%s - got %+v, want %+v", cacheTestPrefix, got, want)
	}
	if got.RuntimeType == nil || *got.RuntimeType != "com.example.Dog" {
		t.Errorf("%s - runtime type = %v", cacheTestPrefix, got.RuntimeType)
	}
	if !got.Modified.Equal(want.Modified) {
		t.Errorf("%s - modified = %v, want %v", cacheTestPrefix, got.Modified, want.Modified)
	}
}

func TestRedisCache_MissAndDelete(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	got, err := c.Get(ctx, "pets", "nobody")
	if err != nil || got != nil {
		t.Fatalf("%s - Get on miss = %v, %v; want nil, nil", cacheTestPrefix, got, err)
	}

	if err := c.Set(ctx, testDocument()); err != nil {
		t.Fatalf("%s - Set failed: %v", cacheTestPrefix, err)
	}
	if err := c.Delete(ctx, "pets", "rex"); err != nil {
		t.Fatalf("%s - Delete failed: %v", cacheTestPrefix, err)
	}
	if got, _ := c.Get(ctx, "pets", "rex"); got != nil {
		t.Errorf("%s - expected miss after delete", cacheTestPrefix)
	}
}

func TestRedisCache_TTLExpiry(t *testing.T) {
	c, srv := newTestCache(t, WithTTL(time.Second), WithKeyPrefix("test::"))
	ctx := context.Background()

	if err := c.Set(ctx, testDocument()); err != nil {
		t.Fatalf("%s - Set failed: %v", cacheTestPrefix, err)
	}
	if c.Key("pets", "rex") != "test::pets::rex" {
		t.Errorf("%s - key = %s", cacheTestPrefix, c.Key("pets", "rex"))
	}
	srv.FastForward(2 * time.Second)
	if got, _ := c.Get(ctx, "pets", "rex"); got != nil {
		t.Errorf("%s - expected entry to expire", cacheTestPrefix)
	}
}

func TestRedisCache_IncompleteEntryIsMiss(t *testing.T) {
	c, srv := newTestCache(t)
	srv.HSet("valuestore::pets::half", "etag", "x")

	got, err := c.Get(context.Background(), "pets", "half")
	if err != nil || got != nil {
		t.Errorf("%s - Get = %v, %v; want nil, nil", cacheTestPrefix, got, err)
	}
}

func TestNewRedisCache_NilClient(t *testing.T) {
	if _, err := NewRedisCache(nil); err == nil {
		t.Errorf("%s - expected error for nil client", cacheTestPrefix)
	}
}

func TestNoOpCache(t *testing.T) {
	var c DocumentCache = NoOpCache{}
	ctx := context.Background()
	if err := c.Set(ctx, testDocument()); err != nil {
		t.Fatalf("%s - Set: %v", cacheTestPrefix, err)
	}
	if got, err := c.Get(ctx, "pets", "rex"); got != nil || err != nil {
		t.Errorf("%s - NoOpCache.Get = %v, %v", cacheTestPrefix, got, err)
	}
}
