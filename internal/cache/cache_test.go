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
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisCache(t *testing.T) (Cache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisCache(client, 1000, time.Second), mr
}

func TestRedisCacheSetGet(t *testing.T) {
	c, mr := newTestRedisCache(t)
	ctx := context.Background()

	setValue := map[string]string{"hello": "world"}
	require.NoError(t, c.Set(ctx, "testKey", setValue, 10*time.Minute))
	assert.True(t, mr.Exists("testKey"))

	var got map[string]string
	require.NoError(t, c.Get(ctx, "testKey", &got))
	assert.Equal(t, setValue, got)
}

func TestRedisCacheMiss(t *testing.T) {
	c, _ := newTestRedisCache(t)

	var got []byte
	err := c.Get(context.Background(), "nonExistentKey", &got)
	assert.True(t, errors.Is(err, ErrCacheMiss))
	assert.Empty(t, got)
}

func TestRedisCacheDelete(t *testing.T) {
	c, _ := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "gone", []byte("value"), time.Minute))
	require.NoError(t, c.Delete(ctx, "gone"))
	require.NoError(t, c.Delete(ctx, "gone"))

	var got []byte
	assert.ErrorIs(t, c.Get(ctx, "gone", &got), ErrCacheMiss)
}

func TestLocalCache(t *testing.T) {
	c := NewLocalCache(100, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a1b2c3d4", "txn_a1b2c3d4-0000", 0))

	var got string
	require.NoError(t, c.Get(ctx, "a1b2c3d4", &got))
	assert.Equal(t, "txn_a1b2c3d4-0000", got)

	require.NoError(t, c.Delete(ctx, "a1b2c3d4"))
	assert.ErrorIs(t, c.Get(ctx, "a1b2c3d4", &got), ErrCacheMiss)
}
