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
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/ohler55/ojg/oj"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/lscgzwd/tigerfdw/catalog"
	wrapper "github.com/lscgzwd/tigerfdw/fdw"
	"github.com/lscgzwd/tigerfdw/logger"
	"github.com/lscgzwd/tigerfdw/protocols/fdw/http/common"
	"github.com/lscgzwd/tigerfdw/protocols/fdw/http/server"
	"github.com/lscgzwd/tigerfdw/row"
)

// HeaderQueryID 响应头中的查询标识，与日志中的 query id 一致
const HeaderQueryID = "X-Query-Id"

var rowJSONOptions = &oj.Options{Sort: true}

// Handler 外部表相关的 HTTP 处理器
type Handler struct {
	wrapper *wrapper.Wrapper
	metrics *server.Metrics
}

// NewHandler 创建处理器；metrics 可以为 nil
func NewHandler(w *wrapper.Wrapper, metrics *server.Metrics) *Handler {
	return &Handler{wrapper: w, metrics: metrics}
}

// ListTables GET /_fdw/tables
func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.wrapper.Tables()
	if err != nil {
		common.HandleError(w, common.NewInternalServerError(err.Error()))
		return
	}
	if tables == nil {
		tables = []*catalog.Table{}
	}
	common.HandleSuccess(w, (&common.Response{}).WithData(map[string]interface{}{
		"tables": tables,
	}), http.StatusOK)
}

// GetTable GET /_fdw/tables/{table}
func (h *Handler) GetTable(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["table"]
	table, err := h.wrapper.Table(name)
	if err != nil {
		common.HandleError(w, common.FromError(name, err))
		return
	}
	if err := common.WriteData(w, table, http.StatusOK); err != nil {
		logger.Error("Failed to write table %s: %v", name, err)
	}
}

// Execute POST /_fdw/tables/{table}/_execute
//
// 每行输出一个 JSON 对象（NDJSON），Accept 为 application/msgpack 时输出连续的
// MessagePack 对象。第一行取到之前出错时返回普通错误响应；之后出错只能在流末尾
// 追加一个 {"error":...} 对象。
func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["table"]
	req, err := DecodeRequest(r)
	if err != nil {
		common.HandleError(w, common.NewBadRequestError(err.Error()))
		return
	}

	ctx := r.Context()
	it, err := h.wrapper.Execute(ctx, name, req.Quals, req.Columns)
	if err != nil {
		common.HandleError(w, common.FromError(name, err))
		return
	}
	defer func() {
		// 请求可能已取消，清理 scroll 使用独立的 context
		if err := it.Close(context.Background()); err != nil {
			logger.Warn("query %s: close scroll: %v", it.QueryID(), err)
		}
		if h.metrics != nil {
			h.metrics.Rows.WithLabelValues(name).Add(float64(it.Count()))
		}
	}()

	first, err := it.Next(ctx)
	if err != nil && !errors.Is(err, io.EOF) {
		common.HandleError(w, common.FromError(name, err))
		return
	}

	enc := newRowEncoder(w, wantsMsgpack(r))
	w.Header().Set(HeaderQueryID, it.QueryID())
	w.WriteHeader(http.StatusOK)
	if first == nil {
		return
	}

	flusher, _ := w.(http.Flusher)
	for cur := first; ; {
		if err := enc.encode(cur); err != nil {
			logger.Warn("query %s: write row: %v", it.QueryID(), err)
			return
		}
		if flusher != nil && it.Count()%flushEvery == 0 {
			flusher.Flush()
		}

		cur, err = it.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.Error("query %s: %v", it.QueryID(), err)
			apiErr := common.FromError(name, err)
			if encErr := enc.encodeError(apiErr.Response()); encErr != nil {
				logger.Warn("query %s: write error trailer: %v", it.QueryID(), encErr)
			}
			return
		}
	}
	if flusher != nil {
		flusher.Flush()
	}
}

// flushEvery 每写出多少行刷新一次
const flushEvery = 500

// RelSize POST /_fdw/tables/{table}/_rel_size
func (h *Handler) RelSize(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["table"]
	req, err := DecodeRequest(r)
	if err != nil {
		common.HandleError(w, common.NewBadRequestError(err.Error()))
		return
	}

	rows, width, err := h.wrapper.RelSize(r.Context(), name, req.Quals, req.Columns)
	if err != nil {
		common.HandleError(w, common.FromError(name, err))
		return
	}
	if err := common.WriteData(w, map[string]interface{}{"rows": rows, "width": width}, http.StatusOK); err != nil {
		logger.Error("Failed to write rel_size response: %v", err)
	}
}

// Explain POST /_fdw/tables/{table}/_explain
func (h *Handler) Explain(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["table"]
	req, err := DecodeRequest(r)
	if err != nil {
		common.HandleError(w, common.NewBadRequestError(err.Error()))
		return
	}

	exp, err := h.wrapper.Explain(name, req.Quals, req.Columns)
	if err != nil {
		common.HandleError(w, common.FromError(name, err))
		return
	}
	w.Header().Set(HeaderQueryID, exp.QueryID)
	if err := common.WriteData(w, exp, http.StatusOK); err != nil {
		logger.Error("Failed to write explain response: %v", err)
	}
}

// Routes 处理器的全部路由
func (h *Handler) Routes(mw ...server.Middleware) []server.Route {
	return []server.Route{
		{Method: http.MethodGet, Path: "/_fdw/tables", Handler: h.ListTables, Middlewares: mw},
		{Method: http.MethodGet, Path: "/_fdw/tables/{table}", Handler: h.GetTable, Middlewares: mw},
		{Method: http.MethodPost, Path: "/_fdw/tables/{table}/_execute", Handler: h.Execute, Middlewares: mw},
		{Method: http.MethodPost, Path: "/_fdw/tables/{table}/_rel_size", Handler: h.RelSize, Middlewares: mw},
		{Method: http.MethodPost, Path: "/_fdw/tables/{table}/_explain", Handler: h.Explain, Middlewares: mw},
	}
}

// rowEncoder 行流编码
type rowEncoder struct {
	w   io.Writer
	mp  *msgpack.Encoder
	buf []byte
}

func newRowEncoder(w http.ResponseWriter, asMsgpack bool) *rowEncoder {
	if asMsgpack {
		w.Header().Set("Content-Type", common.ContentTypeMsgpack)
		return &rowEncoder{w: w, mp: msgpack.NewEncoder(w)}
	}
	w.Header().Set("Content-Type", common.ContentTypeNDJSON)
	return &rowEncoder{w: w}
}

func (e *rowEncoder) encode(r row.Row) error {
	return e.write(map[string]interface{}(r))
}

func (e *rowEncoder) encodeError(resp *common.Response) error {
	info := map[string]interface{}{
		"type":   resp.Error.Type,
		"reason": resp.Error.Reason,
	}
	if resp.Error.Table != "" {
		info["table"] = resp.Error.Table
	}
	return e.write(map[string]interface{}{
		"error":  info,
		"status": int64(resp.Status),
	})
}

func (e *rowEncoder) write(v map[string]interface{}) error {
	if e.mp != nil {
		return e.mp.Encode(v)
	}
	e.buf = append(e.buf[:0], oj.JSON(v, rowJSONOptions)...)
	e.buf = append(e.buf, '\n')
	_, err := e.w.Write(e.buf)
	return err
}
