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

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/wacul/ptr"

	"github.com/jerry-enebeli/payrelay/config"
)

func secureConfig() *config.Configuration {
	return &config.Configuration{
		Server:          config.ServerConfig{Secure: true, SecretKey: "master-key"},
		OperatorChannel: config.OperatorChannelConfig{Token: "channel-token"},
	}
}

func newRouter(conf *config.Configuration) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewAuthMiddleware(conf).Authenticate())
	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) }
	r.GET("/health", ok)
	r.POST("/transactions", ok)
	r.GET("/transactions/:id", ok)
	r.POST("/operator-actions", ok)
	r.GET("/proofs/:filename", ok)
	r.GET("/unknown", ok)
	return r
}

func TestAuthMiddleware_Authenticate(t *testing.T) {
	tests := []struct {
		name         string
		conf         *config.Configuration
		method       string
		path         string
		key          string
		expectedCode int
	}{
		{"insecure mode skips auth", &config.Configuration{}, "POST", "/transactions", "", http.StatusOK},
		{"health is open", secureConfig(), "GET", "/health", "", http.StatusOK},
		{"missing key", secureConfig(), "POST", "/transactions", "", http.StatusUnauthorized},
		{"wrong key", secureConfig(), "POST", "/transactions", "nope", http.StatusUnauthorized},
		{"master key", secureConfig(), "POST", "/transactions", "master-key", http.StatusOK},
		{"master key reads", secureConfig(), "GET", "/transactions/txn_1", "master-key", http.StatusOK},
		{"channel token delivers actions", secureConfig(), "POST", "/operator-actions", "channel-token", http.StatusOK},
		{"channel token reads proofs", secureConfig(), "GET", "/proofs/txn_1.png", "channel-token", http.StatusOK},
		{"channel token cannot create payouts", secureConfig(), "POST", "/transactions", "channel-token", http.StatusForbidden},
		{"unknown resource", secureConfig(), "GET", "/unknown", "master-key", http.StatusForbidden},
		{
			"secure without secret",
			&config.Configuration{Server: config.ServerConfig{Secure: true}},
			"POST", "/transactions", "anything", http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(tt.conf)
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.key != "" {
				req.Header.Set(KeyHeader, tt.key)
			}
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)
			assert.Equal(t, tt.expectedCode, resp.Code)
		})
	}
}

func TestHasPermission(t *testing.T) {
	assert.True(t, HasPermission(MasterScopes, ResourceRates, "GET"))
	assert.True(t, HasPermission(ChannelScopes, ResourceOperatorActions, "POST"))
	assert.False(t, HasPermission(ChannelScopes, ResourceOperatorActions, "GET"))
	assert.False(t, HasPermission(ChannelScopes, ResourceTransactions, "GET"))
	assert.False(t, HasPermission(MasterScopes, ResourceRates, "DELETE"))
	assert.False(t, HasPermission([]string{"malformed"}, ResourceRates, "GET"))
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	conf := &config.Configuration{RateLimit: config.RateLimitConfig{
		RequestsPerSecond:  ptr.Float64(1),
		Burst:              ptr.Int(2),
		CleanupIntervalSec: ptr.Int(60),
	}}
	r := gin.New()
	r.Use(RateLimitMiddleware(conf))
	r.GET("/rates/USDT/RUB", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/rates/USDT/RUB", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		codes = append(codes, resp.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimitMiddleware(&config.Configuration{}))
	r.GET("/rates/USDT/RUB", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest("GET", "/rates/USDT/RUB", nil))
		assert.Equal(t, http.StatusOK, resp.Code)
	}
}
