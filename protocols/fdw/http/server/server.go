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

// Package server 网关的 HTTP 服务器基础设施：路由、中间件、指标和生命周期
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lscgzwd/tigerfdw/logger"
	"github.com/lscgzwd/tigerfdw/protocols/fdw/http/common"
)

// Server HTTP 服务器
type Server struct {
	config     *ServerConfig
	router     *Router
	metrics    *Metrics
	middleware Middleware

	mu         sync.RWMutex
	httpServer *http.Server
	listener   net.Listener
	started    bool
	startTime  time.Time
}

// NewServer 创建 HTTP 服务器
func NewServer(config *ServerConfig) (*Server, error) {
	if config == nil {
		config = DefaultServerConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}

	s := &Server{
		config:     config,
		router:     NewRouter(),
		metrics:    NewMetrics(),
		middleware: DefaultMiddlewareStack(config),
	}
	s.router.AddRoute(http.MethodGet, config.HealthPath, s.healthHandler)
	if config.EnableMetrics {
		h := promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})
		s.router.AddRoute(http.MethodGet, config.MetricsPath, h.ServeHTTP)
	}
	return s, nil
}

// GetRouter 获取路由管理器
func (s *Server) GetRouter() *Router {
	return s.router
}

// Metrics 指标集合
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// AddRoute 添加路由
func (s *Server) AddRoute(method, path string, handler http.HandlerFunc, middlewares ...Middleware) {
	s.router.AddRoute(method, path, handler, middlewares...)
}

// AddRoutes 批量添加路由
func (s *Server) AddRoutes(routes []Route) {
	s.router.AddRoutes(routes)
}

// Handler 组装路由和全局中间件；测试可以直接交给 httptest
func (s *Server) Handler() http.Handler {
	m := s.router.Build()
	// 指标中间件需要 mux 匹配到的路由名，因此挂在每个路由上而不是最外层
	m.Use(func(next http.Handler) http.Handler {
		return s.metrics.Middleware(next.ServeHTTP)
	})
	return s.middleware(m.ServeHTTP)
}

// Start 监听并阻塞直到服务器关闭
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("server already started")
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		MaxHeaderBytes:    s.config.MaxHeaderBytes,
	}

	if s.config.TLSEnable {
		cert, err := tls.LoadX509KeyPair(s.config.TLSCertFile, s.config.TLSKeyFile)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to load TLS cert: %w", err)
		}
		s.httpServer.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}

	ln, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("listen %s: %w", s.config.Address(), err)
	}
	s.listener = ln
	s.started = true
	s.startTime = time.Now()
	srv := s.httpServer
	s.mu.Unlock()

	logger.Info("Starting tigerfdw HTTP server on %s", ln.Addr())

	if s.config.TLSEnable {
		err = srv.ServeTLS(ln, "", "")
	} else {
		err = srv.Serve(ln)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop 优雅关闭，等待进行中的请求直到 ctx 或 ShutdownTimeout 到期
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	logger.Info("Shutting down tigerfdw HTTP server...")
	err := s.httpServer.Shutdown(ctx)
	s.started = false
	s.listener = nil
	if err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// IsRunning 是否在运行
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Address 实际监听地址；未启动时返回配置地址
func (s *Server) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Address()
}

// Uptime 运行时长
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return 0
	}
	return time.Since(s.startTime)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	common.HandleSuccess(w, common.SuccessResponse().WithData(map[string]interface{}{
		"status": "green",
		"uptime": s.Uptime().String(),
	}), http.StatusOK)
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	common.HandleError(w, common.NewNotFoundError(fmt.Sprintf("no handler found for uri [%s] and method [%s]", r.URL.Path, r.Method)))
}

func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	common.HandleError(w, &common.BaseError{
		ErrType:    "method_not_allowed",
		Message:    fmt.Sprintf("incorrect HTTP method for uri [%s] and method [%s]", r.URL.Path, r.Method),
		HTTPStatus: http.StatusMethodNotAllowed,
	})
}
