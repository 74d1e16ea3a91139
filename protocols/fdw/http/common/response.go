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

// Package common 网关的 HTTP 响应和错误格式，与 Elasticsearch 的错误结构保持一致
package common

import (
	"encoding/json"
	"net/http"
)

// 内容类型
const (
	ContentTypeJSON    = "application/json"
	ContentTypeNDJSON  = "application/x-ndjson"
	ContentTypeMsgpack = "application/msgpack"
)

// Response 统一响应格式
type Response struct {
	Acknowledged bool       `json:"acknowledged,omitempty"`
	Error        *ErrorInfo `json:"error,omitempty"`
	Status       int        `json:"status,omitempty"`

	// Data 为 map 时合并到顶层，否则以 "data" 字段输出
	Data interface{} `json:"-"`
}

// ErrorInfo 错误信息
type ErrorInfo struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
	Table  string `json:"table,omitempty"`
	Column string `json:"column,omitempty"`
}

// SuccessResponse 创建成功响应
func SuccessResponse() *Response {
	return &Response{Acknowledged: true}
}

// ErrorResponse 创建错误响应
func ErrorResponse(errType, reason string) *Response {
	return &Response{Error: &ErrorInfo{Type: errType, Reason: reason}}
}

// WithData 设置额外数据
func (r *Response) WithData(data interface{}) *Response {
	r.Data = data
	return r
}

// WriteJSON 将响应写入 HTTP 响应
func (r *Response) WriteJSON(w http.ResponseWriter, statusCode int) error {
	if r.Error != nil && r.Status == 0 {
		r.Status = statusCode
	}
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(statusCode)

	encoder := json.NewEncoder(w)
	if r.Data == nil {
		return encoder.Encode(r)
	}

	out := r.toMap()
	if dataMap, ok := r.Data.(map[string]interface{}); ok {
		for k, v := range dataMap {
			out[k] = v
		}
	} else {
		out["data"] = r.Data
	}
	return encoder.Encode(out)
}

func (r *Response) toMap() map[string]interface{} {
	result := make(map[string]interface{})
	if r.Acknowledged {
		result["acknowledged"] = true
	}
	if r.Error != nil {
		result["error"] = r.Error
	}
	if r.Status != 0 {
		result["status"] = r.Status
	}
	return result
}

// WriteData 直接输出任意 JSON 值
func WriteData(w http.ResponseWriter, data interface{}, statusCode int) error {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}
