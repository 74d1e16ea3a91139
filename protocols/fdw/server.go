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

// Package fdw 外部表网关：通过 HTTP 暴露 execute、rel_size、explain 和表定义查询
package fdw

import (
	"context"
	"fmt"
	"net/http"

	wrapper "github.com/lscgzwd/tigerfdw/fdw"
	"github.com/lscgzwd/tigerfdw/logger"
	"github.com/lscgzwd/tigerfdw/protocols"
	"github.com/lscgzwd/tigerfdw/protocols/fdw/http/server"
	"github.com/lscgzwd/tigerfdw/protocols/fdw/middleware"
)

var _ protocols.ProtocolServer = (*FDWServer)(nil)

// FDWServer 网关服务器
type FDWServer struct {
	config     *Config
	httpServer *server.Server
	handler    *Handler
}

// NewServer 创建网关服务器
func NewServer(w *wrapper.Wrapper, config *Config) (*FDWServer, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gateway config: %w", err)
	}

	httpSrv, err := server.NewServer(config.ServerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP server: %w", err)
	}

	s := &FDWServer{
		config:     config,
		httpServer: httpSrv,
		handler:    NewHandler(w, httpSrv.Metrics()),
	}
	auth := server.Middleware(middleware.AuthMiddleware(config.Auth))
	httpSrv.AddRoutes(s.handler.Routes(auth))
	return s, nil
}

// Handler 完整的 HTTP 处理链，不监听端口
func (s *FDWServer) Handler() http.Handler {
	return s.httpServer.Handler()
}

// Start 启动并阻塞直到关闭
func (s *FDWServer) Start() error {
	logger.Info("fdw gateway listening on %s", s.config.ServerConfig.Address())
	return s.httpServer.Start()
}

// Stop 优雅关闭
func (s *FDWServer) Stop() error {
	return s.httpServer.Stop(context.Background())
}

// Name 协议名称
func (s *FDWServer) Name() string {
	return "fdw"
}

// Address 监听地址
func (s *FDWServer) Address() string {
	return s.httpServer.Address()
}

// IsRunning 是否在运行
func (s *FDWServer) IsRunning() bool {
	return s.httpServer.IsRunning()
}
