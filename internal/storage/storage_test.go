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

package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jerry-enebeli/payrelay/config"
)

func TestValidateName(t *testing.T) {
	valid := []string{"txn_1.png", "txn_9f0e.jpg"}
	invalid := []string{"", ".", "..", "../etc/passwd", "a/b.png", `a\b.png`, "txn_..png"}

	for _, n := range valid {
		assert.NoError(t, ValidateName(n), n)
	}
	for _, n := range invalid {
		err := ValidateName(n)
		assert.Error(t, err, n)
		assert.True(t, errors.Is(err, ErrInvalidName), n)
	}
}

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := New(config.StorageConfig{Driver: "local", LocalDir: t.TempDir()})
	require.NoError(t, err)

	ctx := context.Background()
	path, err := store.Save(ctx, "txn_1.png", "image/png", []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "txn_1.png", path)

	rc, err := store.Open(ctx, path)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	_, err = store.Open(ctx, "../txn_1.png")
	assert.Error(t, err)
	_, err = store.Open(ctx, "missing.png")
	assert.Error(t, err)

	require.NoError(t, store.Delete(ctx, path))
	_, err = store.Open(ctx, path)
	assert.Error(t, err)
	assert.NoError(t, store.Delete(ctx, path), "deleting a missing object")
	assert.Error(t, store.Delete(ctx, "../txn_1.png"))
}

func TestUnknownDriver(t *testing.T) {
	_, err := New(config.StorageConfig{Driver: "ftp"})
	assert.Error(t, err)
}

func TestS3StoreRoundTrip(t *testing.T) {
	var mu sync.Mutex
	objects := map[string][]byte{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			objects[r.URL.Path] = body
			w.Header().Set("ETag", `"etag"`)
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			body, ok := objects[r.URL.Path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write(body)
		case http.MethodDelete:
			delete(objects, r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer server.Close()

	store, err := New(config.StorageConfig{
		Driver:             "s3",
		S3Endpoint:         server.URL,
		S3BucketName:       "proofs",
		S3Region:           "us-east-1",
		AwsAccessKeyId:     "key",
		AwsSecretAccessKey: "secret",
	})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = store.Save(ctx, "txn_2.jpg", "image/jpeg", []byte("jpeg-bytes"))
	require.NoError(t, err)
	assert.Contains(t, objects, "/proofs/txn_2.jpg")

	rc, err := store.Open(ctx, "txn_2.jpg")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	require.NoError(t, store.Delete(ctx, "txn_2.jpg"))
	mu.Lock()
	assert.NotContains(t, objects, "/proofs/txn_2.jpg")
	mu.Unlock()
}

func TestS3StoreRequiresBucket(t *testing.T) {
	_, err := NewS3Store(config.StorageConfig{Driver: "s3"})
	assert.Error(t, err)
}
