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

// Package fdw 外部表访问入口：把宿主下推的条件编译为检索请求，
// 并把命中结果逐行物化。
package fdw

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lscgzwd/tigerfdw/backend"
	"github.com/lscgzwd/tigerfdw/catalog"
	"github.com/lscgzwd/tigerfdw/logger"
	"github.com/lscgzwd/tigerfdw/pushdown"
	"github.com/lscgzwd/tigerfdw/row"
)

// ColumnWidth 每列的估算宽度（字节）
const ColumnWidth = 100

// Searcher 检索后端
type Searcher interface {
	Scan(ctx context.Context, req *backend.Request) backend.Iterator
	Count(ctx context.Context, req *backend.Request) (int64, error)
}

// IndexResolver 决定一次查询访问哪些索引
// 可以根据条件挑选按时间切分的索引，默认返回表定义中的索引。
type IndexResolver func(table *catalog.Table, quals []pushdown.Qualifier) []string

// DefaultIndexResolver 返回表定义中的索引
func DefaultIndexResolver(table *catalog.Table, _ []pushdown.Qualifier) []string {
	return table.Indices
}

// Option 配置项
type Option func(*Wrapper)

// WithIndexResolver 替换索引选择逻辑
func WithIndexResolver(r IndexResolver) Option {
	return func(w *Wrapper) {
		if r != nil {
			w.resolver = r
		}
	}
}

// WithLogger 指定日志输出，默认使用全局 logger
func WithLogger(l *logger.Logger) Option {
	return func(w *Wrapper) {
		w.logger = l
	}
}

// Wrapper 外部表访问入口，可并发使用
type Wrapper struct {
	store    catalog.Store
	searcher Searcher
	resolver IndexResolver
	logger   *logger.Logger
}

// New 创建 Wrapper
func New(store catalog.Store, searcher Searcher, opts ...Option) *Wrapper {
	w := &Wrapper{
		store:    store,
		searcher: searcher,
		resolver: DefaultIndexResolver,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.GetGlobalLogger()
	}
	return w
}

// plan 一次查询的编译结果
type plan struct {
	table   *catalog.Table
	columns []row.Column
	query   *pushdown.BoolQuery
	indices []string
	trace   *logger.Trace
}

func (p *plan) request() *backend.Request {
	return &backend.Request{
		Indices: p.indices,
		DocType: p.table.DocType,
		Source:  p.query.SearchSource(),
	}
}

// prepare 查表、解析列、翻译条件并组装查询
func (w *Wrapper) prepare(tableName string, quals []pushdown.Qualifier, columns []string) (*plan, error) {
	table, err := w.store.GetTable(tableName)
	if err != nil {
		return nil, err
	}
	trace := logger.NewTrace(w.logger, logger.ParseLevel(table.LogLevel))

	cols, err := table.Resolve(columns)
	if err != nil {
		return nil, err
	}

	must, mustNot, err := pushdown.NewTranslator(table.FieldResolver(), trace).Translate(quals)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", table.Name, err)
	}

	fields := make([]string, 0, len(cols))
	fetchAll := false
	for _, c := range cols {
		if c.Identity {
			continue
		}
		fields = append(fields, c.Field)
		fetchAll = fetchAll || c.JSON
	}
	query := pushdown.Assemble(must, mustNot, fields, nil)
	query.FetchAll = fetchAll

	return &plan{
		table:   table,
		columns: cols,
		query:   query,
		indices: w.resolver(table, quals),
		trace:   trace,
	}, nil
}

// traceQuery 记录最终的请求体
func (p *plan) traceQuery(op string) {
	body, err := p.query.Source()
	if err == nil {
		var data []byte
		if data, err = json.Marshal(body); err == nil {
			p.trace.Logf("%s %v: %s", op, p.indices, data)
			return
		}
	}
	p.trace.Logf("%s %v: failed to render query: %v", op, p.indices, err)
}

// Execute 执行查询并返回行迭代器
// 行按需从后端滚动拉取，调用方必须 Close。
func (w *Wrapper) Execute(ctx context.Context, table string, quals []pushdown.Qualifier, columns []string) (*RowIterator, error) {
	p, err := w.prepare(table, quals, columns)
	if err != nil {
		return nil, err
	}
	p.traceQuery("execute")
	p.trace.Flush()

	it := &RowIterator{
		docs:    w.searcher.Scan(ctx, p.request()),
		rows:    row.NewMaterializer(p.columns),
		queryID: p.trace.ID(),
	}
	if p.table.Debug {
		it.debug = w.logger.WithFields(map[string]interface{}{"query_id": p.trace.ID(), "table": p.table.Name})
		it.debug.Warn("debug enabled! This generates very much output.")
	}
	return it, nil
}

// RelSize 估算结果行数和行宽
// 使用与 Execute 相同的条件，size 为 0，只取命中总数。
func (w *Wrapper) RelSize(ctx context.Context, table string, quals []pushdown.Qualifier, columns []string) (int64, int, error) {
	p, err := w.prepare(table, quals, columns)
	if err != nil {
		return 0, 0, err
	}
	zero := 0
	p.query.Size = &zero
	p.traceQuery("rel_size")
	p.trace.Flush()

	rows, err := w.searcher.Count(ctx, p.request())
	if err != nil {
		return 0, 0, err
	}
	return rows, len(p.columns) * ColumnWidth, nil
}

// Explanation 编译结果，不访问后端
type Explanation struct {
	QueryID string      `json:"query_id"`
	Table   string      `json:"table"`
	Indices []string    `json:"indices"`
	DocType string      `json:"doc_type,omitempty"`
	Body    interface{} `json:"body"`
	Notes   []string    `json:"notes,omitempty"`
}

// Explain 返回将要发送的请求体以及被跳过的条件
func (w *Wrapper) Explain(table string, quals []pushdown.Qualifier, columns []string) (*Explanation, error) {
	p, err := w.prepare(table, quals, columns)
	if err != nil {
		return nil, err
	}
	body, err := p.query.Source()
	if err != nil {
		return nil, fmt.Errorf("table %s: render query: %w", table, err)
	}
	return &Explanation{
		QueryID: p.trace.ID(),
		Table:   p.table.Name,
		Indices: p.indices,
		DocType: p.table.DocType,
		Body:    body,
		Notes:   p.trace.Lines(),
	}, nil
}

// Tables 列出全部表定义
func (w *Wrapper) Tables() ([]*catalog.Table, error) {
	return w.store.ListTables()
}

// Table 获取单个表定义
func (w *Wrapper) Table(name string) (*catalog.Table, error) {
	return w.store.GetTable(name)
}
