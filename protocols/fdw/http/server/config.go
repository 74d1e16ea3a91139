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

package server

import (
	"fmt"
	"time"
)

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Host string `json:"host" yaml:"host"` // 默认 "0.0.0.0"
	Port int    `json:"port" yaml:"port"` // 默认 5480

	ReadTimeout       time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout      time.Duration `json:"write_timeout" yaml:"write_timeout"` // 流式结果可能很慢，0 表示不限制
	IdleTimeout       time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" yaml:"read_header_timeout"`
	MaxHeaderBytes    int           `json:"max_header_bytes" yaml:"max_header_bytes"`

	TLSEnable   bool   `json:"tls_enable" yaml:"tls_enable"`
	TLSCertFile string `json:"tls_cert_file" yaml:"tls_cert_file"`
	TLSKeyFile  string `json:"tls_key_file" yaml:"tls_key_file"`

	EnableCORS  bool     `json:"enable_cors" yaml:"enable_cors"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins"`

	EnableMetrics bool   `json:"enable_metrics" yaml:"enable_metrics"`
	MetricsPath   string `json:"metrics_path" yaml:"metrics_path"`
	HealthPath    string `json:"health_path" yaml:"health_path"`

	// MaxRequestSize 请求体上限（字节）
	MaxRequestSize  int64         `json:"max_request_size" yaml:"max_request_size"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// DefaultServerConfig 返回默认配置
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host: "0.0.0.0",
		Port: 5480,

		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       300 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,

		EnableCORS:  false,
		CORSOrigins: []string{"*"},

		EnableMetrics: true,
		MetricsPath:   "/_metrics",
		HealthPath:    "/_health",

		MaxRequestSize:  10 << 20,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Validate 验证配置
func (c *ServerConfig) Validate() error {
	// 端口 0 由系统分配，用于测试
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be between 1 and 65535, or 0 for automatic assignment)", c.Port)
	}
	if c.MaxRequestSize <= 0 {
		return fmt.Errorf("max_request_size must be greater than 0")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be greater than 0")
	}
	if c.TLSEnable && (c.TLSCertFile == "" || c.TLSKeyFile == "") {
		return fmt.Errorf("TLS cert file and key file must be specified when TLS is enabled")
	}
	if c.HealthPath == "" {
		c.HealthPath = "/_health"
	}
	if c.MetricsPath == "" {
		c.MetricsPath = "/_metrics"
	}
	return nil
}

// Address 监听地址
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Clone 深拷贝
func (c *ServerConfig) Clone() *ServerConfig {
	clone := *c
	if c.CORSOrigins != nil {
		clone.CORSOrigins = make([]string, len(c.CORSOrigins))
		copy(clone.CORSOrigins, c.CORSOrigins)
	}
	return &clone
}
