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

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lscgzwd/tigerfdw/backend"
	"github.com/lscgzwd/tigerfdw/catalog"
	"github.com/lscgzwd/tigerfdw/protocols/fdw"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "TIGERFDW_"

// GlobalConfig 全局配置结构
type GlobalConfig struct {
	// 数据目录，bolt 目录存储默认放在这里
	DataDir string `yaml:"data_dir" json:"data_dir"`

	Catalog       *CatalogConfig  `yaml:"catalog,omitempty" json:"catalog,omitempty"`
	Elasticsearch *backend.Config `yaml:"elasticsearch,omitempty" json:"elasticsearch,omitempty"`
	Gateway       *fdw.Config     `yaml:"gateway,omitempty" json:"gateway,omitempty"`

	// 日志配置（全局）
	Log *LogConfig `yaml:"log,omitempty" json:"log,omitempty"`
}

// CatalogConfig 外部表目录配置
type CatalogConfig struct {
	// Path 启动时导入的表定义文件（YAML），可以为空
	Path string `yaml:"path" json:"path"`
	// Store 目录存储：memory, bolt
	Store string `yaml:"store" json:"store"`
	// BoltFile bolt 数据库文件，为空时使用 <data_dir>/catalog.db
	BoltFile string `yaml:"bolt_file" json:"bolt_file"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level           string `yaml:"level" json:"level"`                       // 日志级别：debug, info, warn, error, silent
	Output          string `yaml:"output" json:"output"`                     // 输出目标：stdout, stderr, 或文件路径
	Format          string `yaml:"format" json:"format"`                     // 日志格式：text, json
	EnableCaller    bool   `yaml:"enable_caller" json:"enable_caller"`       // 是否显示调用位置（文件:行号）
	EnableTimestamp bool   `yaml:"enable_timestamp" json:"enable_timestamp"` // 是否显示时间戳
	MaxSize         int    `yaml:"max_size" json:"max_size"`                 // 单个日志文件的最大大小（MB）
	MaxBackups      int    `yaml:"max_backups" json:"max_backups"`           // 保留的旧日志文件数量
	MaxAge          int    `yaml:"max_age" json:"max_age"`                   // 保留旧日志文件的最大天数
	Compress        bool   `yaml:"compress" json:"compress"`                 // 是否压缩旧日志文件
}

// DefaultGlobalConfig 返回默认全局配置
func DefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		DataDir: "./data",
		Catalog: &CatalogConfig{
			Store: catalog.StoreBolt,
		},
		Elasticsearch: backend.DefaultConfig(),
		Gateway:       fdw.DefaultConfig(),
		Log: &LogConfig{
			Level:           "info",
			Output:          "stdout",
			Format:          "text",
			EnableCaller:    false,
			EnableTimestamp: true,
			MaxSize:         100,
			MaxBackups:      3,
			MaxAge:          7,
			Compress:        true,
		},
	}
}

// Load 在默认配置之上读取 YAML 文件，path 为空时只返回默认配置
func Load(path string) (*GlobalConfig, error) {
	cfg := DefaultGlobalConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate 验证配置并规范化路径
func (c *GlobalConfig) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir cannot be empty")
	}
	if !filepath.IsAbs(c.DataDir) {
		absPath, err := filepath.Abs(c.DataDir)
		if err != nil {
			return fmt.Errorf("failed to resolve data_dir path: %w", err)
		}
		c.DataDir = absPath
	}

	if c.Catalog == nil {
		c.Catalog = &CatalogConfig{Store: catalog.StoreBolt}
	}
	switch c.Catalog.Store {
	case "":
		c.Catalog.Store = catalog.StoreBolt
	case catalog.StoreMemory, catalog.StoreBolt:
	default:
		return fmt.Errorf("invalid catalog store %q (must be %s or %s)", c.Catalog.Store, catalog.StoreMemory, catalog.StoreBolt)
	}
	if c.Catalog.Store == catalog.StoreBolt && c.Catalog.BoltFile == "" {
		c.Catalog.BoltFile = filepath.Join(c.DataDir, "catalog.db")
	}

	if c.Elasticsearch == nil {
		c.Elasticsearch = backend.DefaultConfig()
	}
	if err := c.Elasticsearch.Validate(); err != nil {
		return err
	}

	if c.Gateway == nil {
		c.Gateway = fdw.DefaultConfig()
	}
	if err := c.Gateway.Validate(); err != nil {
		return fmt.Errorf("invalid gateway config: %w", err)
	}

	if c.Log == nil {
		c.Log = DefaultGlobalConfig().Log
	}
	return nil
}

// StoreConfig 目录存储配置
func (c *GlobalConfig) StoreConfig() *catalog.StoreConfig {
	return &catalog.StoreConfig{
		StorageType: c.Catalog.Store,
		FilePath:    c.Catalog.BoltFile,
	}
}

// ApplyEnvOverrides 应用环境变量覆盖
// 无法解析的数值会返回错误，而不是静默忽略。
func (c *GlobalConfig) ApplyEnvOverrides() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *GlobalConfig) applyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		return v, ok && v != ""
	}
	var errs []error

	if v, ok := get("DATA_DIR"); ok {
		c.DataDir = v
	}

	if c.Catalog == nil {
		c.Catalog = &CatalogConfig{}
	}
	if v, ok := get("CATALOG_PATH"); ok {
		c.Catalog.Path = v
	}
	if v, ok := get("CATALOG_STORE"); ok {
		c.Catalog.Store = v
	}

	if c.Elasticsearch == nil {
		c.Elasticsearch = backend.DefaultConfig()
	}
	if v, ok := get("ES_URLS"); ok {
		c.Elasticsearch.URLs = splitList(v)
	}
	if v, ok := get("ES_USERNAME"); ok {
		c.Elasticsearch.Username = v
	}
	if v, ok := get("ES_PASSWORD"); ok {
		c.Elasticsearch.Password = v
	}
	if v, ok := get("ES_SCROLL_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sES_SCROLL_SIZE: %w", EnvPrefix, err))
		} else {
			c.Elasticsearch.ScrollSize = n
		}
	}

	if c.Gateway == nil {
		c.Gateway = fdw.DefaultConfig()
	}
	if c.Gateway.ServerConfig != nil {
		if v, ok := get("HOST"); ok {
			c.Gateway.ServerConfig.Host = v
		}
		if v, ok := get("PORT"); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%sPORT: %w", EnvPrefix, err))
			} else {
				c.Gateway.ServerConfig.Port = n
			}
		}
	}

	if c.Log != nil {
		if v, ok := get("LOG_LEVEL"); ok {
			c.Log.Level = v
		}
		if v, ok := get("LOG_FORMAT"); ok {
			c.Log.Format = v
		}
		if v, ok := get("LOG_OUTPUT"); ok {
			c.Log.Output = v
		}
	}

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
