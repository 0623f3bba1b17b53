/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cache

import (
	"context"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = cache.ErrCacheMiss

// Cache is the small key/value surface shared by the Redis-backed and process-local caches.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, data interface{}) error
	Delete(ctx context.Context, key string) error
}

// Cache values are msgpack-encoded, []byte and string values are stored as-is.
type tieredCache struct {
	cache *cache.Cache
}

// NewRedisCache returns a Redis-backed cache fronted by a TinyLFU local cache.
// localTTL bounds how long a node may serve a value without asking Redis.
func NewRedisCache(client redis.UniversalClient, size int, localTTL time.Duration) Cache {
	return &tieredCache{cache: cache.New(&cache.Options{
		Redis:      client,
		LocalCache: cache.NewTinyLFU(size, localTTL),
	})}
}

// NewLocalCache returns a bounded process-local cache. Entries expire after ttl
// regardless of the ttl given to Set, and are lost on restart.
func NewLocalCache(size int, ttl time.Duration) Cache {
	return &tieredCache{cache: cache.New(&cache.Options{
		LocalCache: cache.NewTinyLFU(size, ttl),
	})}
}

func (c *tieredCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.cache.Set(&cache.Item{
		Ctx:   ctx,
		Key:   key,
		Value: value,
		TTL:   ttl,
	})
}

func (c *tieredCache) Get(ctx context.Context, key string, data interface{}) error {
	return c.cache.Get(ctx, key, data)
}

func (c *tieredCache) Delete(ctx context.Context, key string) error {
	err := c.cache.Delete(ctx, key)
	if err == cache.ErrCacheMiss {
		return nil
	}
	return err
}
