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

package fdw

import (
	"fmt"

	"github.com/lscgzwd/tigerfdw/protocols/fdw/http/server"
	"github.com/lscgzwd/tigerfdw/protocols/fdw/middleware"
)

// Config 网关配置
type Config struct {
	// 是否启用网关
	Enabled bool `json:"enabled" yaml:"enabled"`

	// HTTP服务器配置
	ServerConfig *server.ServerConfig `json:"server_config" yaml:"server_config"`

	// 认证配置，/_health 和 /_metrics 不需要认证
	Auth *middleware.AuthConfig `json:"auth,omitempty" yaml:"auth,omitempty"`
}

// DefaultConfig 返回默认网关配置
func DefaultConfig() *Config {
	return &Config{
		Enabled:      true,
		ServerConfig: server.DefaultServerConfig(),
		Auth:         middleware.DefaultAuthConfig(),
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.ServerConfig == nil {
		c.ServerConfig = server.DefaultServerConfig()
	}
	if err := c.ServerConfig.Validate(); err != nil {
		return err
	}
	if c.Auth == nil {
		c.Auth = middleware.DefaultAuthConfig()
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	return nil
}
