package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// JSONCache keeps JSON-encoded values of T under "<prefix>:<id>".
type JSONCache[T any] struct {
	client *Client
	prefix string
}

// NewJSONCache binds a cache to client. An empty prefix stores bare ids.
func NewJSONCache[T any](client *Client, prefix string) *JSONCache[T] {
	return &JSONCache[T]{client: client, prefix: prefix}
}

// Key returns the redis key for id.
func (c *JSONCache[T]) Key(id string) string {
	if c.prefix == "" {
		return id
	}
	return c.prefix + ":" + id
}

// Get returns the cached value. A miss is (nil, nil); a value that no longer
// decodes is dropped and reported as a miss with the decode error.
func (c *JSONCache[T]) Get(ctx context.Context, id string) (*T, error) {
	raw, ok, err := c.client.Get(ctx, c.Key(id))
	if err != nil || !ok {
		return nil, err
	}
	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		_ = c.client.Del(ctx, c.Key(id))
		return nil, fmt.Errorf("decode %s: %w", c.Key(id), err)
	}
	return v, nil
}

// Put stores v for ttl.
func (c *JSONCache[T]) Put(ctx context.Context, id string, v *T, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.Key(id), err)
	}
	return c.client.Set(ctx, c.Key(id), raw, ttl)
}

// Evict removes the entries for ids.
func (c *JSONCache[T]) Evict(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.Key(id)
	}
	return c.client.Del(ctx, keys...)
}
