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

// Package backend 访问 Elasticsearch 集群：滚动检索和计数。
package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/olivere/elastic/v7"

	"github.com/lscgzwd/tigerfdw/logger"
)

// 滚动检索默认参数
const (
	DefaultScrollSize      = 5000
	DefaultScrollKeepAlive = "5m"
)

// Config 集群连接配置
type Config struct {
	URLs            []string      `yaml:"urls"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	Sniff           bool          `yaml:"sniff"`
	Healthcheck     bool          `yaml:"healthcheck"`
	ScrollSize      int           `yaml:"scroll_size"`
	ScrollKeepAlive string        `yaml:"scroll_keep_alive"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		URLs:            []string{elastic.DefaultURL},
		ScrollSize:      DefaultScrollSize,
		ScrollKeepAlive: DefaultScrollKeepAlive,
		RequestTimeout:  60 * time.Second,
	}
}

// Validate 检查并补全默认值
func (c *Config) Validate() error {
	if len(c.URLs) == 0 {
		return fmt.Errorf("elasticsearch: at least one url is required")
	}
	if c.ScrollSize <= 0 {
		c.ScrollSize = DefaultScrollSize
	}
	if c.ScrollKeepAlive == "" {
		c.ScrollKeepAlive = DefaultScrollKeepAlive
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("elasticsearch: request_timeout cannot be negative")
	}
	return nil
}

// Request 一次检索请求
type Request struct {
	Indices []string
	DocType string
	Source  *elastic.SearchSource
}

// Client 封装 olivere 客户端
type Client struct {
	es  *elastic.Client
	cfg Config
}

// NewClient 创建客户端
// 默认关闭嗅探和健康检查，创建时不会访问集群。
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []elastic.ClientOptionFunc{
		elastic.SetURL(cfg.URLs...),
		elastic.SetSniff(cfg.Sniff),
		elastic.SetHealthcheck(cfg.Healthcheck),
	}
	if cfg.Username != "" {
		opts = append(opts, elastic.SetBasicAuth(cfg.Username, cfg.Password))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, elastic.SetHttpClient(&http.Client{Timeout: cfg.RequestTimeout}))
	}

	es, err := elastic.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	logger.Info("Elasticsearch client created: urls=%v sniff=%v", cfg.URLs, cfg.Sniff)
	return &Client{es: es, cfg: *cfg}, nil
}

// Elastic 返回底层客户端
func (c *Client) Elastic() *elastic.Client {
	return c.es
}

// Scan 开始一次滚动检索，首个请求在第一次调用 Next 时发出
func (c *Client) Scan(ctx context.Context, req *Request) Iterator {
	scroll := c.es.Scroll(req.Indices...).
		SearchSource(req.Source).
		Size(c.cfg.ScrollSize).
		KeepAlive(c.cfg.ScrollKeepAlive)
	if req.DocType != "" {
		scroll = scroll.Type(req.DocType)
	}
	return &scrollIterator{scroll: scroll, indices: req.Indices}
}

// Count 统计匹配文档数
// 与 Scan 使用相同的请求体，只是 size 为 0，命中总数需精确统计。
func (c *Client) Count(ctx context.Context, req *Request) (int64, error) {
	search := c.es.Search(req.Indices...).
		SearchSource(req.Source).
		Size(0).
		TrackTotalHits(true)
	if req.DocType != "" {
		search = search.Type(req.DocType)
	}

	res, err := search.Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("count %v: %w", req.Indices, err)
	}
	return res.TotalHits(), nil
}
