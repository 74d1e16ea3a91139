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

package common

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/lscgzwd/tigerfdw/catalog"
	"github.com/lscgzwd/tigerfdw/logger"
	"github.com/lscgzwd/tigerfdw/pushdown"
)

// APIError 带 HTTP 状态码的错误
type APIError interface {
	Error() string
	Type() string
	StatusCode() int
	Response() *Response
}

// BaseError 基础错误结构体
type BaseError struct {
	ErrType    string
	Message    string
	HTTPStatus int
	Table      string
	cause      error
}

func (e *BaseError) Error() string {
	return e.Message
}

func (e *BaseError) Unwrap() error {
	return e.cause
}

func (e *BaseError) Type() string {
	return e.ErrType
}

func (e *BaseError) StatusCode() int {
	return e.HTTPStatus
}

// Response 返回 ES 格式的错误响应
func (e *BaseError) Response() *Response {
	resp := ErrorResponse(e.ErrType, e.Message)
	resp.Error.Table = e.Table
	resp.Status = e.HTTPStatus
	return resp
}

// NewTableNotFoundError 表不存在
func NewTableNotFoundError(table string, cause error) APIError {
	return &BaseError{
		ErrType:    "table_not_found_exception",
		Message:    fmt.Sprintf("no such table [%s]", table),
		HTTPStatus: http.StatusNotFound,
		Table:      table,
		cause:      cause,
	}
}

// NewNotFoundError 路由不存在
func NewNotFoundError(message string) APIError {
	return &BaseError{
		ErrType:    "resource_not_found_exception",
		Message:    message,
		HTTPStatus: http.StatusNotFound,
	}
}

// NewBadRequestError 请求参数错误
func NewBadRequestError(message string) APIError {
	return &BaseError{
		ErrType:    "illegal_argument_exception",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewBackendError 访问后端集群失败
func NewBackendError(cause error) APIError {
	return &BaseError{
		ErrType:    "search_phase_execution_exception",
		Message:    cause.Error(),
		HTTPStatus: http.StatusBadGateway,
		cause:      cause,
	}
}

// NewInternalServerError 服务器内部错误
func NewInternalServerError(message string) APIError {
	return &BaseError{
		ErrType:    "internal_server_error",
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// FromError 按错误类别转换为 APIError
// 未知表为 404，调用方输入错误为 400，其余视为后端失败。
func FromError(table string, err error) APIError {
	var apiErr APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, catalog.ErrTableNotFound):
		return NewTableNotFoundError(table, err)
	case errors.Is(err, catalog.ErrUnknownColumn), errors.Is(err, pushdown.ErrMalformedInterval):
		e := NewBadRequestError(err.Error()).(*BaseError)
		e.Table = table
		e.cause = err
		return e
	default:
		return NewBackendError(err)
	}
}

// HandleError 处理错误并写入 HTTP 响应
func HandleError(w http.ResponseWriter, err error) {
	apiErr, ok := err.(APIError)
	if !ok {
		apiErr = NewInternalServerError(err.Error())
	}
	if writeErr := apiErr.Response().WriteJSON(w, apiErr.StatusCode()); writeErr != nil {
		logger.Error("Failed to write error response: %v (original error: %v)", writeErr, err)
	}
}

// HandleSuccess 处理成功响应
func HandleSuccess(w http.ResponseWriter, response *Response, statusCode int) {
	if statusCode == 0 {
		statusCode = http.StatusOK
	}
	if err := response.WriteJSON(w, statusCode); err != nil {
		logger.Error("Failed to write success response: %v", err)
	}
}
