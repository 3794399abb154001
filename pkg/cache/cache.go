// Package cache keeps recently read documents in Redis in front of the
// Postgres repository.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/morezero/valuestore/pkg/db"
)

const logPrefix = "cache:cache"

const (
	fieldDeclaredType = "declared_type"
	fieldRuntimeType  = "runtime_type"
	fieldBody         = "body"
	fieldETag         = "etag"
	fieldRevision     = "revision"
	fieldModified     = "modified"
	fieldModifiedBy   = "modified_by"

	// DefaultKeyPrefix is prepended to every cache key.
	DefaultKeyPrefix = "valuestore::"
)

// DocumentCache caches documents by collection and key. Get returns nil, nil
// on a miss.
type DocumentCache interface {
	Get(ctx context.Context, collection, key string) (*db.Document, error)
	Set(ctx context.Context, doc *db.Document) error
	Delete(ctx context.Context, collection, key string) error
}

// Option configures a RedisCache.
type Option func(*RedisCache)

// WithKeyPrefix overrides DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(c *RedisCache) {
		c.prefix = prefix
	}
}

// WithTTL sets how long entries live. Zero keeps them until invalidated.
func WithTTL(ttl time.Duration) Option {
	return func(c *RedisCache) {
		c.ttl = ttl
	}
}

// RedisCache stores each document as a Redis hash.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client redis.UniversalClient, opts ...Option) (*RedisCache, error) {
	if client == nil {
		return nil, errors.New("cache:cache - redis client is nil")
	}
	c := &RedisCache{client: client, prefix: DefaultKeyPrefix}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Connect creates a client for addr, pings it and wraps it.
func Connect(ctx context.Context, addr string, database int, opts ...Option) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: database})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s - ping %s: %w", logPrefix, addr, err)
	}
	slog.Info(fmt.Sprintf("%s - Connected to redis at %s (db %d)", logPrefix, addr, database))
	return NewRedisCache(client, opts...)
}

// Key returns the Redis key of a document.
func (c *RedisCache) Key(collection, key string) string {
	return c.prefix + collection + "::" + key
}

func (c *RedisCache) Get(ctx context.Context, collection, key string) (*db.Document, error) {
	result, err := c.client.HGetAll(ctx, c.Key(collection, key)).Result()
	if err != nil {
		return nil, fmt.Errorf("%s - get %s/%s: %w", logPrefix, collection, key, err)
	}
	if len(result) == 0 {
		return nil, nil
	}

	doc := &db.Document{
		Collection:   collection,
		Key:          key,
		DeclaredType: result[fieldDeclaredType],
		Body:         []byte(result[fieldBody]),
		ETag:         result[fieldETag],
		ModifiedBy:   result[fieldModifiedBy],
	}
	if rt := result[fieldRuntimeType]; rt != "" {
		doc.RuntimeType = &rt
	}
	if rev, err := strconv.Atoi(result[fieldRevision]); err == nil {
		doc.Revision = rev
	}
	if ts, err := time.Parse(time.RFC3339Nano, result[fieldModified]); err == nil {
		doc.Modified = ts
	}
	// a partially written hash is treated as a miss
	if doc.DeclaredType == "" || len(doc.Body) == 0 {
		slog.Warn(fmt.Sprintf("%s - incomplete entry for %s/%s, ignoring", logPrefix, collection, key))
		return nil, nil
	}
	return doc, nil
}

func (c *RedisCache) Set(ctx context.Context, doc *db.Document) error {
	if doc == nil {
		return nil
	}
	runtimeType := ""
	if doc.RuntimeType != nil {
		runtimeType = *doc.RuntimeType
	}
	fields := map[string]any{
		fieldDeclaredType: doc.DeclaredType,
		fieldRuntimeType:  runtimeType,
		fieldBody:         doc.Body,
		fieldETag:         doc.ETag,
		fieldRevision:     strconv.Itoa(doc.Revision),
		fieldModified:     doc.Modified.UTC().Format(time.RFC3339Nano),
		fieldModifiedBy:   doc.ModifiedBy,
	}

	k := c.Key(doc.Collection, doc.Key)
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, k)
	pipe.HSet(ctx, k, fields)
	if c.ttl > 0 {
		pipe.Expire(ctx, k, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s - set %s/%s: %w", logPrefix, doc.Collection, doc.Key, err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, collection, key string) error {
	if err := c.client.Del(ctx, c.Key(collection, key)).Err(); err != nil {
		return fmt.Errorf("%s - delete %s/%s: %w", logPrefix, collection, key, err)
	}
	return nil
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// NoOpCache never holds anything.
type NoOpCache struct{}

func (NoOpCache) Get(context.Context, string, string) (*db.Document, error) { return nil, nil }
func (NoOpCache) Set(context.Context, *db.Document) error                  { return nil }
func (NoOpCache) Delete(context.Context, string, string) error             { return nil }

var (
	_ DocumentCache = (*RedisCache)(nil)
	_ DocumentCache = NoOpCache{}
)
