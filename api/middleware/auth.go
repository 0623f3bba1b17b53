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

	"github.com/gin-gonic/gin"

	"github.com/jerry-enebeli/payrelay/config"
)

const (
	KeyHeader = "X-Payrelay-Key"
)

// AuthMiddleware checks the X-Payrelay-Key header. The server secret key may call every
// route; the operator-channel token is limited to ChannelScopes.
type AuthMiddleware struct {
	conf *config.Configuration
}

func NewAuthMiddleware(conf *config.Configuration) *AuthMiddleware {
	return &AuthMiddleware{conf: conf}
}

func (m *AuthMiddleware) scopesFor(key string) ([]string, bool) {
	if secret := m.conf.Server.SecretKey; secret != "" && secureCompare(secret, key) {
		return MasterScopes, true
	}
	if token := m.conf.OperatorChannel.Token; token != "" && secureCompare(token, key) {
		return ChannelScopes, true
	}
	return nil, false
}

// Authenticate is a no-op unless server.secure is set. The root and health routes are
// always open.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if !m.conf.Server.Secure || path == "/" || path == "/health" {
			c.Next()
			return
		}
		if m.conf.Server.SecretKey == "" {
			abort(c, http.StatusInternalServerError, "Secret key is not configured")
			return
		}

		key := c.GetHeader(KeyHeader)
		if key == "" {
			abort(c, http.StatusUnauthorized, "Authentication required. Use X-Payrelay-Key header")
			return
		}
		scopes, ok := m.scopesFor(key)
		if !ok {
			abort(c, http.StatusUnauthorized, "Invalid secret key")
			return
		}

		resource := getResourceFromPath(path)
		if resource == "" {
			abort(c, http.StatusForbidden, "Unknown resource type")
			return
		}
		if !HasPermission(scopes, resource, c.Request.Method) {
			action := methodToAction[c.Request.Method]
			abort(c, http.StatusForbidden, "Insufficient permissions for "+BuildScope(resource, action))
			return
		}

		c.Set("scopes", scopes)
		c.Next()
	}
}
