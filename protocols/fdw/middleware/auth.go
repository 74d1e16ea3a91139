// Copyright (c) 2024 TigerDB Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// 		http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package middleware

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/lscgzwd/tigerfdw/logger"
	"github.com/lscgzwd/tigerfdw/protocols/fdw/http/common"
)

// 认证类型
const (
	AuthBasic  = "basic"
	AuthBearer = "bearer"
	AuthAPIKey = "apikey"
)

// AuthConfig 认证配置
type AuthConfig struct {
	Enabled  bool     `json:"enabled" yaml:"enabled"`
	Type     string   `json:"type" yaml:"type"` // basic, bearer, apikey
	Username string   `json:"username" yaml:"username"`
	Password string   `json:"password" yaml:"password"`
	APIKeys  []string `json:"api_keys" yaml:"api_keys"` // bearer 和 apikey 共用
	Realm    string   `json:"realm" yaml:"realm"`

	// SkipPaths 精确匹配，不做前缀匹配
	SkipPaths []string `json:"skip_paths" yaml:"skip_paths"`
}

// DefaultAuthConfig 返回默认认证配置
func DefaultAuthConfig() *AuthConfig {
	return &AuthConfig{
		Enabled:   false,
		Type:      AuthBasic,
		Realm:     "tigerfdw",
		SkipPaths: []string{"/_health", "/_metrics"},
	}
}

// Validate 验证配置
func (c *AuthConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Type {
	case AuthBasic:
		if c.Username == "" {
			return fmt.Errorf("auth: basic auth requires a username")
		}
	case AuthBearer, AuthAPIKey:
		if len(c.APIKeys) == 0 {
			return fmt.Errorf("auth: %s auth requires at least one api key", c.Type)
		}
	default:
		return fmt.Errorf("auth: unsupported type %q", c.Type)
	}
	if c.Realm == "" {
		c.Realm = "tigerfdw"
	}
	return nil
}

// AuthMiddleware 创建认证中间件
func AuthMiddleware(config *AuthConfig) func(http.HandlerFunc) http.HandlerFunc {
	if config == nil || !config.Enabled {
		return func(next http.HandlerFunc) http.HandlerFunc { return next }
	}

	skip := make(map[string]bool, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = true
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] || checkAuth(r, config) {
				next(w, r)
				return
			}

			logger.Warn("Authentication failed for %s from %s", r.URL.Path, r.RemoteAddr)
			if config.Type == AuthBasic {
				w.Header().Set("WWW-Authenticate", `Basic realm="`+config.Realm+`"`)
			}
			common.HandleError(w, &common.BaseError{
				ErrType:    "security_exception",
				Message:    fmt.Sprintf("missing authentication credentials for REST request [%s]", r.URL.Path),
				HTTPStatus: http.StatusUnauthorized,
			})
		}
	}
}

// checkAuth 检查请求的认证信息
func checkAuth(r *http.Request, config *AuthConfig) bool {
	switch config.Type {
	case AuthBasic:
		return checkBasicAuth(r.Header.Get("Authorization"), config.Username, config.Password)
	case AuthBearer:
		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			return false
		}
		return containsKey(config.APIKeys, strings.TrimPrefix(h, "Bearer "))
	case AuthAPIKey:
		return containsKey(config.APIKeys, r.Header.Get("X-API-Key"))
	default:
		return false
	}
}

// checkBasicAuth 解析 "Basic base64(username:password)"
func checkBasicAuth(authHeader, username, password string) bool {
	if !strings.HasPrefix(authHeader, "Basic ") {
		return false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(authHeader, "Basic "))
	if err != nil {
		logger.Debug("Failed to decode Basic Auth: %v", err)
		return false
	}
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return false
	}
	return equal(parts[0], username) && equal(parts[1], password)
}

func containsKey(keys []string, key string) bool {
	if key == "" {
		return false
	}
	for _, k := range keys {
		if equal(k, key) {
			return true
		}
	}
	return false
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
