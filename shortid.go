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

package payrelay

import (
	"context"
	"sync"
	"time"

	"github.com/jerry-enebeli/payrelay/internal/apierror"
	"github.com/jerry-enebeli/payrelay/internal/cache"
	"github.com/jerry-enebeli/payrelay/model"
)

// ShortIDs maps fixed-length prefixes of transaction ids back to the full id so that an
// action payload fits the notification channel's size limit. Entries live in a bounded
// process-local cache and are lost on restart; an unresolved key means the operator must
// be told the request is no longer available.
type ShortIDs struct {
	length int
	ttl    time.Duration
	cache  cache.Cache

	// mu serializes register so a collision is always detected. Keys shared by more
	// than one transaction are tombstoned here until their ttl passes; the cache
	// cannot be trusted to overwrite an existing key.
	mu         sync.Mutex
	tombstones map[string]time.Time
}

func NewShortIDs(length, size int, ttl time.Duration) *ShortIDs {
	if length <= 0 {
		length = 8
	}
	if size <= 0 {
		size = 1000
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ShortIDs{
		length:     length,
		ttl:        ttl,
		cache:      cache.NewLocalCache(size, ttl),
		tombstones: make(map[string]time.Time),
	}
}

// Short returns the short key for a transaction id.
func (s *ShortIDs) Short(transactionID string) string {
	id := model.StripModulePrefix(transactionID)
	if len(id) <= s.length {
		return id
	}
	return id[:s.length]
}

// Register records short -> transactionID. When the short key already points at a
// different transaction the key becomes ambiguous and resolves to nothing.
func (s *ShortIDs) Register(ctx context.Context, transactionID string) (string, error) {
	short := s.Short(transactionID)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.pruneTombstones(now)
	if _, ok := s.tombstones[short]; ok {
		return short, nil
	}

	var existing string
	err := s.cache.Get(ctx, short, &existing)
	switch {
	case err == nil && existing != transactionID:
		s.tombstones[short] = now.Add(s.ttl)
		return short, s.cache.Delete(ctx, short)
	case err == nil:
		return short, nil
	case err != cache.ErrCacheMiss:
		return "", err
	}
	return short, s.cache.Set(ctx, short, transactionID, s.ttl)
}

// Resolve returns the full id for short, or NOT_FOUND.
func (s *ShortIDs) Resolve(ctx context.Context, short string) (string, error) {
	if s.isTombstoned(short) {
		return "", notAvailable()
	}
	var full string
	if err := s.cache.Get(ctx, short, &full); err != nil || full == "" {
		return "", notAvailable()
	}
	return full, nil
}

func (s *ShortIDs) isTombstoned(short string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.tombstones[short]
	return ok && time.Now().Before(until)
}

func (s *ShortIDs) pruneTombstones(now time.Time) {
	for short, until := range s.tombstones {
		if !now.Before(until) {
			delete(s.tombstones, short)
		}
	}
}

func notAvailable() error {
	return apierror.NewAPIError(apierror.ErrNotFound, "transaction is no longer available", nil)
}
