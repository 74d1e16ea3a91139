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
	"net/http"

	"github.com/gorilla/mux"
)

// Route 路由定义
type Route struct {
	Name        string // 用于指标标签，为空时使用 Path
	Method      string
	Path        string
	Handler     http.HandlerFunc
	Middlewares []Middleware
}

// Router 收集路由，Build 时生成 mux 路由器
type Router struct {
	routes []Route
}

// NewRouter 创建路由器
func NewRouter() *Router {
	return &Router{}
}

// AddRoute 添加单个路由
func (r *Router) AddRoute(method, path string, handler http.HandlerFunc, middlewares ...Middleware) {
	r.routes = append(r.routes, Route{
		Method:      method,
		Path:        path,
		Handler:     handler,
		Middlewares: middlewares,
	})
}

// AddRoutes 批量添加路由
func (r *Router) AddRoutes(routes []Route) {
	r.routes = append(r.routes, routes...)
}

// Routes 已注册的路由
func (r *Router) Routes() []Route {
	out := make([]Route, len(r.routes))
	copy(out, r.routes)
	return out
}

// Build 生成新的 mux 路由器；每次调用都会重新注册全部路由
func (r *Router) Build() *mux.Router {
	m := mux.NewRouter().StrictSlash(true)
	m.NotFoundHandler = http.HandlerFunc(notFoundHandler)
	m.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)

	for _, route := range r.routes {
		handler := route.Handler
		for j := len(route.Middlewares) - 1; j >= 0; j-- {
			handler = route.Middlewares[j](handler)
		}
		name := route.Name
		if name == "" {
			name = route.Path
		}
		m.HandleFunc(route.Path, handler).Methods(route.Method).Name(route.Method + " " + name)
	}
	return m
}
