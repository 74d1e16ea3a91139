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
	"compress/gzip"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lscgzwd/tigerfdw/logger"
	"github.com/lscgzwd/tigerfdw/protocols/fdw/http/common"
)

// Middleware 中间件函数类型
type Middleware func(http.HandlerFunc) http.HandlerFunc

// LoggingMiddleware 记录错误和慢请求
func LoggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := wrapResponseWriter(w)

		next(rw, r)

		duration := time.Since(start)
		switch {
		case rw.statusCode >= 500:
			logger.Error("[%s] %s %s %d %v", r.Method, r.RequestURI, r.RemoteAddr, rw.statusCode, duration)
		case rw.statusCode >= 400 || duration > time.Second:
			logger.Warn("[%s] %s %s %d %v", r.Method, r.RequestURI, r.RemoteAddr, rw.statusCode, duration)
		case logger.IsDebugEnabled():
			logger.Debug("[%s] %s %s %d %v", r.Method, r.RequestURI, r.RemoteAddr, rw.statusCode, duration)
		}
	}
}

// CORSMiddleware CORS 跨域中间件
func CORSMiddleware(allowedOrigins []string) Middleware {
	allowAll := len(allowedOrigins) == 1 && allowedOrigins[0] == "*"

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := allowAll
			for _, o := range allowedOrigins {
				if allowed {
					break
				}
				allowed = origin == o
			}

			if allowed && origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Encoding, Authorization, X-API-Key")
				w.Header().Set("Access-Control-Max-Age", "86400")
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}
}

// RecoveryMiddleware panic 恢复
func RecoveryMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("Panic recovered on %s %s: %v", r.Method, r.URL.Path, err)
				common.HandleError(w, common.NewInternalServerError("internal server error"))
			}
		}()
		next(w, r)
	}
}

// RequestSizeLimitMiddleware 请求体大小限制
func RequestSizeLimitMiddleware(maxSize int64) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxSize {
				common.HandleError(w, common.NewBadRequestError("request body too large"))
				return
			}
			// chunked 编码时 ContentLength 为 -1，由 MaxBytesReader 在读取时限制
			r.Body = http.MaxBytesReader(w, r.Body, maxSize)
			next(w, r)
		}
	}
}

// GzipDecompressMiddleware 解压 Content-Encoding: gzip 的请求体
func GzipDecompressMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Content-Encoding"), "gzip") {
			next(w, r)
			return
		}

		gz, err := gzip.NewReader(r.Body)
		if err != nil {
			common.HandleError(w, common.NewBadRequestError("invalid gzip content: "+err.Error()))
			return
		}
		defer gz.Close()

		r.Body = io.NopCloser(gz)
		r.Header.Del("Content-Encoding")
		r.ContentLength = -1
		next(w, r)
	}
}

// Metrics 网关的 Prometheus 指标
type Metrics struct {
	Registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inflight prometheus.Gauge
	Rows     *prometheus.CounterVec
}

// NewMetrics 在独立的 registry 上注册指标
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tigerfdw",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tigerfdw",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		inflight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "tigerfdw",
			Name:      "http_requests_in_flight",
			Help:      "Requests currently being served.",
		}),
		Rows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tigerfdw",
			Name:      "rows_streamed_total",
			Help:      "Rows returned by execute, per table.",
		}, []string{"table"}),
	}
}

// Middleware 记录请求数、耗时和并发数
func (m *Metrics) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.inflight.Inc()
		defer m.inflight.Dec()

		rw := wrapResponseWriter(w)
		next(rw, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil && cur.GetName() != "" {
			route = cur.GetName()
		}
		m.requests.WithLabelValues(route, strconv.Itoa(rw.statusCode)).Inc()
		m.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// responseWriter 记录状态码，并保留 Flush 以支持流式输出
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// ChainMiddleware 按顺序组合中间件，第一个在最外层
func ChainMiddleware(middlewares ...Middleware) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// DefaultMiddlewareStack 返回默认中间件栈
func DefaultMiddlewareStack(config *ServerConfig) Middleware {
	middlewares := []Middleware{
		RecoveryMiddleware,
		GzipDecompressMiddleware,
		LoggingMiddleware,
		RequestSizeLimitMiddleware(config.MaxRequestSize),
	}
	if config.EnableCORS {
		middlewares = append(middlewares, CORSMiddleware(config.CORSOrigins))
	}
	return ChainMiddleware(middlewares...)
}
